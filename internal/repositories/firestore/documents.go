package firestore

import (
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/casalink/api/internal/domain"
	"github.com/casalink/api/internal/platform/pagination"
)

func isNotFoundErr(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Collection names. Pair keys are "<householdID>__<househelpID>"; shortlist keys
// are "<householdID>__<profileID>".
const (
	shortlistCollection   = "shortlists"
	profileLockCollection = "profileLocks"
	hireRequestCollection = "hireRequests"
	contractCollection    = "contracts"
	pairCollection        = "engagementPairs"
)

type shortlistDocument struct {
	HouseholdID string    `firestore:"householdId"`
	ProfileID   string    `firestore:"profileId"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func (d shortlistDocument) toDomain() domain.ShortlistEntry {
	return domain.ShortlistEntry{
		HouseholdID: d.HouseholdID,
		ProfileID:   d.ProfileID,
		CreatedAt:   d.CreatedAt,
	}
}

type profileLockDocument struct {
	HouseholdID string    `firestore:"householdId"`
	ExpiresAt   time.Time `firestore:"expiresAt"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func (d profileLockDocument) toDomain(profileID string) domain.ProfileLock {
	return domain.ProfileLock{
		ProfileID:   profileID,
		HouseholdID: d.HouseholdID,
		ExpiresAt:   d.ExpiresAt,
		CreatedAt:   d.CreatedAt,
	}
}

type daySlotsDocument struct {
	Morning   bool `firestore:"morning"`
	Afternoon bool `firestore:"afternoon"`
	Evening   bool `firestore:"evening"`
}

func scheduleToDocument(schedule domain.WorkSchedule) map[string]daySlotsDocument {
	if len(schedule) == 0 {
		return nil
	}
	out := make(map[string]daySlotsDocument, len(schedule))
	for day, slots := range schedule {
		out[day] = daySlotsDocument{Morning: slots.Morning, Afternoon: slots.Afternoon, Evening: slots.Evening}
	}
	return out
}

func scheduleFromDocument(doc map[string]daySlotsDocument) domain.WorkSchedule {
	if len(doc) == 0 {
		return nil
	}
	out := make(domain.WorkSchedule, len(doc))
	for day, slots := range doc {
		out[day] = domain.DaySlots{Morning: slots.Morning, Afternoon: slots.Afternoon, Evening: slots.Evening}
	}
	return out
}

type negotiationDocument struct {
	ID            string                      `firestore:"id"`
	ProposedBy    string                      `firestore:"proposedBy"`
	SalaryOffered int64                       `firestore:"salaryOffered"`
	Schedule      map[string]daySlotsDocument `firestore:"schedule,omitempty"`
	CreatedAt     time.Time                   `firestore:"createdAt"`
}

type hireRequestDocument struct {
	HouseholdID         string                      `firestore:"householdId"`
	HousehelpID         string                      `firestore:"househelpId"`
	JobType             string                      `firestore:"jobType"`
	SalaryOffered       int64                       `firestore:"salaryOffered"`
	SalaryFrequency     string                      `firestore:"salaryFrequency"`
	StartDate           *time.Time                  `firestore:"startDate,omitempty"`
	Schedule            map[string]daySlotsDocument `firestore:"schedule,omitempty"`
	SpecialRequirements string                      `firestore:"specialRequirements,omitempty"`
	TermsAccepted       bool                        `firestore:"termsAccepted"`
	Status              string                      `firestore:"status"`
	DeclineReason       string                      `firestore:"declineReason,omitempty"`
	ContractID          string                      `firestore:"contractId,omitempty"`
	Negotiations        []negotiationDocument       `firestore:"negotiations,omitempty"`
	ExpiresAt           time.Time                   `firestore:"expiresAt"`
	Version             int64                       `firestore:"version"`
	CreatedAt           time.Time                   `firestore:"createdAt"`
	UpdatedAt           time.Time                   `firestore:"updatedAt"`
}

func hireRequestToDocument(req domain.HireRequest) hireRequestDocument {
	doc := hireRequestDocument{
		HouseholdID:         req.HouseholdID,
		HousehelpID:         req.HousehelpID,
		JobType:             string(req.JobType),
		SalaryOffered:       req.SalaryOffered,
		SalaryFrequency:     string(req.SalaryFrequency),
		StartDate:           req.StartDate,
		Schedule:            scheduleToDocument(req.Schedule),
		SpecialRequirements: req.SpecialRequirements,
		TermsAccepted:       req.TermsAccepted,
		Status:              string(req.Status),
		DeclineReason:       req.DeclineReason,
		ContractID:          req.ContractID,
		ExpiresAt:           req.ExpiresAt,
		Version:             req.Version,
		CreatedAt:           req.CreatedAt,
		UpdatedAt:           req.UpdatedAt,
	}
	for _, n := range req.Negotiations {
		doc.Negotiations = append(doc.Negotiations, negotiationDocument{
			ID:            n.ID,
			ProposedBy:    string(n.ProposedBy),
			SalaryOffered: n.SalaryOffered,
			Schedule:      scheduleToDocument(n.Schedule),
			CreatedAt:     n.CreatedAt,
		})
	}
	return doc
}

func (d hireRequestDocument) toDomain(id string) domain.HireRequest {
	req := domain.HireRequest{
		ID:                  id,
		HouseholdID:         d.HouseholdID,
		HousehelpID:         d.HousehelpID,
		JobType:             domain.JobType(d.JobType),
		SalaryOffered:       d.SalaryOffered,
		SalaryFrequency:     domain.SalaryFrequency(d.SalaryFrequency),
		StartDate:           d.StartDate,
		Schedule:            scheduleFromDocument(d.Schedule),
		SpecialRequirements: d.SpecialRequirements,
		TermsAccepted:       d.TermsAccepted,
		Status:              domain.HireRequestStatus(d.Status),
		DeclineReason:       d.DeclineReason,
		ContractID:          d.ContractID,
		ExpiresAt:           d.ExpiresAt,
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	for _, n := range d.Negotiations {
		req.Negotiations = append(req.Negotiations, domain.Negotiation{
			ID:            n.ID,
			ProposedBy:    domain.ActorRole(n.ProposedBy),
			SalaryOffered: n.SalaryOffered,
			Schedule:      scheduleFromDocument(n.Schedule),
			CreatedAt:     n.CreatedAt,
		})
	}
	return req
}

type contractDocument struct {
	HireRequestID     string                      `firestore:"hireRequestId"`
	HouseholdID       string                      `firestore:"householdId"`
	HousehelpID       string                      `firestore:"househelpId"`
	Salary            int64                       `firestore:"salary"`
	SalaryFrequency   string                      `firestore:"salaryFrequency"`
	JobType           string                      `firestore:"jobType"`
	Schedule          map[string]daySlotsDocument `firestore:"schedule,omitempty"`
	StartDate         time.Time                   `firestore:"startDate"`
	EndDate           *time.Time                  `firestore:"endDate,omitempty"`
	Status            string                      `firestore:"status"`
	TerminationReason string                      `firestore:"terminationReason,omitempty"`
	Version           int64                       `firestore:"version"`
	CreatedAt         time.Time                   `firestore:"createdAt"`
	UpdatedAt         time.Time                   `firestore:"updatedAt"`
}

func contractToDocument(contract domain.HireContract) contractDocument {
	return contractDocument{
		HireRequestID:     contract.HireRequestID,
		HouseholdID:       contract.HouseholdID,
		HousehelpID:       contract.HousehelpID,
		Salary:            contract.Salary,
		SalaryFrequency:   string(contract.SalaryFrequency),
		JobType:           string(contract.JobType),
		Schedule:          scheduleToDocument(contract.Schedule),
		StartDate:         contract.StartDate,
		EndDate:           contract.EndDate,
		Status:            string(contract.Status),
		TerminationReason: contract.TerminationReason,
		Version:           contract.Version,
		CreatedAt:         contract.CreatedAt,
		UpdatedAt:         contract.UpdatedAt,
	}
}

func (d contractDocument) toDomain(id string) domain.HireContract {
	return domain.HireContract{
		ID:                id,
		HireRequestID:     d.HireRequestID,
		HouseholdID:       d.HouseholdID,
		HousehelpID:       d.HousehelpID,
		Salary:            d.Salary,
		SalaryFrequency:   domain.SalaryFrequency(d.SalaryFrequency),
		JobType:           domain.JobType(d.JobType),
		Schedule:          scheduleFromDocument(d.Schedule),
		StartDate:         d.StartDate,
		EndDate:           d.EndDate,
		Status:            domain.ContractStatus(d.Status),
		TerminationReason: d.TerminationReason,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type pairDocument struct {
	HouseholdID      string    `firestore:"householdId"`
	HousehelpID      string    `firestore:"househelpId"`
	OpenRequestID    string    `firestore:"openRequestId,omitempty"`
	ActiveContractID string    `firestore:"activeContractId,omitempty"`
	UpdatedAt        time.Time `firestore:"updatedAt"`
}

func (d pairDocument) toDomain() domain.EngagementPair {
	return domain.EngagementPair{
		HouseholdID:      d.HouseholdID,
		HousehelpID:      d.HousehelpID,
		OpenRequestID:    d.OpenRequestID,
		ActiveContractID: d.ActiveContractID,
		UpdatedAt:        d.UpdatedAt,
	}
}

// List queries order by a timestamp column then by document ID, so tokens
// carry both.
func encodePageToken(ts time.Time, docID string) string {
	return pagination.EncodeToken(pagination.Cursor{SortKey: ts.UTC(), DocID: docID})
}

func decodePageToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	return cursor.SortKey, cursor.DocID, nil
}
