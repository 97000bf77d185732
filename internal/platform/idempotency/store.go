// Package idempotency gives engagement mutations replay protection. Clients
// send an Idempotency-Key header on lock, offer, and signature requests; the
// first attempt records its response and later retries replay it verbatim.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Status is the lifecycle state of a stored replay record.
type Status string

const (
	// DefaultTTL bounds how long replay records are retained.
	DefaultTTL = 24 * time.Hour
	// StatusInFlight marks a key claimed by a request that has not finished.
	StatusInFlight Status = "in_flight"
	// StatusStored marks a key whose response is recorded and replayable.
	StatusStored Status = "stored"
)

// ClaimOutcome describes what a Claim call found for the key.
type ClaimOutcome int

const (
	// OutcomeProceed means the key is fresh and the caller owns it now.
	OutcomeProceed ClaimOutcome = iota
	// OutcomeReplay means a stored response exists and should be returned.
	OutcomeReplay
	// OutcomeInFlight means another request holds the key right now.
	OutcomeInFlight
)

// Claim is the result of claiming a key, with the stored record when one exists.
type Claim struct {
	Outcome ClaimOutcome
	Record  Record
}

// Record is the persisted replay state for one idempotency key.
type Record struct {
	Key          string
	Fingerprint  string
	Status       Status
	ReplyStatus  int
	ReplyHeaders map[string][]string
	ReplyBody    []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time
}

// Reply is the HTTP response captured for future replays.
type Reply struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists key claims and their recorded responses.
type Store interface {
	Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	StoreReply(ctx context.Context, key, fingerprint string, reply Reply, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrKeyReused is returned when an idempotency key arrives with a request
// body or target that differs from the one that first claimed it.
var ErrKeyReused = errors.New("idempotency: key reused for a different request")

func docID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeaders copies the response headers worth replaying, dropping
// hop-by-hop and per-response fields that a replay must not repeat.
func storableHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}

	filtered := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if skipOnReplay(canonical) {
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		filtered[canonical] = copied
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

func skipOnReplay(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "connection", "keep-alive", "proxy-authenticate", "proxy-authorization", "te", "trailers", "transfer-encoding", "upgrade":
		return true
	default:
		return false
	}
}

func storedHeader(values map[string][]string) http.Header {
	if len(values) == 0 {
		return http.Header{}
	}

	header := make(http.Header, len(values))
	for name, vals := range values {
		copied := make([]string, len(vals))
		copy(copied, vals)
		header[name] = copied
	}
	return header
}
