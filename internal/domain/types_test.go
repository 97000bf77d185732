package domain

import (
	"testing"
	"time"
)

func TestHireRequestLastProposerDefaultsToHousehold(t *testing.T) {
	req := HireRequest{}
	if got := req.LastProposer(); got != RoleHousehold {
		t.Fatalf("expected household, got %s", got)
	}

	req.Negotiations = append(req.Negotiations, Negotiation{ProposedBy: RoleHousehelp})
	if got := req.LastProposer(); got != RoleHousehelp {
		t.Fatalf("expected househelp after counter, got %s", got)
	}
}

func TestHireRequestCurrentTermsResolvesLatestNegotiation(t *testing.T) {
	base := WorkSchedule{Monday: {Morning: true}}
	counter := WorkSchedule{Friday: {Evening: true}}
	req := HireRequest{
		SalaryOffered: 15000,
		Schedule:      base,
		Negotiations: []Negotiation{
			{ProposedBy: RoleHousehelp, SalaryOffered: 18000},
			{ProposedBy: RoleHousehold, SalaryOffered: 16500, Schedule: counter},
		},
	}

	salary, schedule := req.CurrentTerms()
	if salary != 16500 {
		t.Fatalf("expected salary 16500, got %d", salary)
	}
	if !schedule[Friday].Evening {
		t.Fatalf("expected schedule from latest counter, got %#v", schedule)
	}
}

func TestHireRequestDueToExpire(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	req := HireRequest{Status: HireRequestPending, ExpiresAt: now}

	if !req.DueToExpire(now) {
		t.Fatal("request at its expiry instant should be due")
	}
	if req.DueToExpire(now.Add(-time.Second)) {
		t.Fatal("request before expiry should not be due")
	}

	req.Status = HireRequestAccepted
	if req.DueToExpire(now.Add(time.Hour)) {
		t.Fatal("terminal request must never expire")
	}
}

func TestProfileLockLive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lock := ProfileLock{HouseholdID: "hh-1", ExpiresAt: now.Add(time.Hour)}

	if !lock.Live(now) {
		t.Fatal("unexpired lock should be live")
	}
	if lock.Live(now.Add(time.Hour)) {
		t.Fatal("lock at expiry instant should not be live")
	}
	if (ProfileLock{}).Live(now) {
		t.Fatal("empty lock should not be live")
	}
}

func TestNormalizeWorkSchedule(t *testing.T) {
	in := WorkSchedule{
		"Monday":  {Morning: true},
		"funday":  {Evening: true},
		Tuesday:   {},
		Wednesday: {Afternoon: true},
	}

	out, ok := NormalizeWorkSchedule(in)
	if ok {
		t.Fatal("unknown day should flag the schedule invalid")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 normalised days, got %d", len(out))
	}
	if !out[Monday].Morning || !out[Wednesday].Afternoon {
		t.Fatalf("unexpected normalised schedule %#v", out)
	}
	if _, present := out[Tuesday]; present {
		t.Fatal("day without slots should be dropped")
	}
}

func TestPartyRole(t *testing.T) {
	req := HireRequest{HouseholdID: "hh-1", HousehelpID: "hw-1"}

	if role, ok := req.PartyRole(Actor{ID: "hh-1", Role: RoleHousehold}); !ok || role != RoleHousehold {
		t.Fatalf("expected household party, got %s ok=%v", role, ok)
	}
	if _, ok := req.PartyRole(Actor{ID: "hh-2", Role: RoleHousehold}); ok {
		t.Fatal("foreign household must not be a party")
	}
	if _, ok := req.PartyRole(Actor{ID: "hw-1", Role: RoleHousehold}); ok {
		t.Fatal("role mismatch must not be a party")
	}
}
