package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection   = "idempotency_replays"
	defaultTxAttempts   = 5
	defaultCleanupLimit = 100
)

// FirestoreStore implements Store on Firestore. All instances of the API
// share it, so a retry that lands on another instance still replays.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	attempts   int
}

// FirestoreOption customises FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection replay records are written to.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// WithMaxAttempts configures transaction retry attempts.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(store *FirestoreStore) {
		if attempts > 0 {
			store.attempts = attempts
		}
	}
}

// NewFirestoreStore constructs a Firestore-backed replay store.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{
		client:     client,
		collection: defaultCollection,
		attempts:   defaultTxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Claim transactionally binds the key to the request fingerprint and reports
// what an earlier attempt, if any, left behind.
func (s *FirestoreStore) Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(docID(key))

	var result Claim
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				doc := newReplayDoc(key, fingerprint, now, ttl)
				if err := tx.Set(ref, doc); err != nil {
					return err
				}
				result = Claim{Outcome: OutcomeProceed, Record: doc.toRecord()}
				return nil
			}
			return err
		}

		var doc replayDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Fingerprint != fingerprint {
			return ErrKeyReused
		}

		// An expired record is reclaimed as if it never existed.
		if !doc.ExpiresAt.IsZero() && !now.Before(doc.ExpiresAt) {
			doc = newReplayDoc(key, fingerprint, now, ttl)
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			result = Claim{Outcome: OutcomeProceed, Record: doc.toRecord()}
			return nil
		}

		if doc.Status == string(StatusStored) {
			result = Claim{Outcome: OutcomeReplay, Record: doc.toRecord()}
			return nil
		}
		result = Claim{Outcome: OutcomeInFlight, Record: doc.toRecord()}
		return nil
	}, firestore.MaxAttempts(s.txAttempts()))

	return result, err
}

// StoreReply records the completed response for later replays.
func (s *FirestoreStore) StoreReply(ctx context.Context, key, fingerprint string, reply Reply, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(docID(key))

	headers := storableHeaders(reply.Headers)
	var bodyCopy []byte
	if len(reply.Body) > 0 {
		bodyCopy = append([]byte(nil), reply.Body...)
	}

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		var doc replayDoc
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			doc = replayDoc{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		} else {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrKeyReused
			}
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = now
			}
		}

		doc.Status = string(StatusStored)
		doc.ReplyStatus = reply.Status
		doc.ReplyHeaders = headers
		doc.ReplyBody = bodyCopy
		doc.UpdatedAt = now
		doc.ExpiresAt = now.Add(ttl)

		return tx.Set(ref, doc)
	}, firestore.MaxAttempts(s.txAttempts()))
}

// Release drops the claim so the client can retry after a storage failure.
func (s *FirestoreStore) Release(ctx context.Context, key, _ string) error {
	ref := s.client.Collection(s.collection).Doc(docID(key))
	_, err := ref.Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

// CleanupExpired removes aged-out replay records up to limit. The cleanup
// ticker in the API process calls this periodically.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	if limit <= 0 {
		limit = defaultCleanupLimit
	}

	query := s.client.Collection(s.collection).Where("expires_at", "<=", now).Limit(limit)
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := s.client.Batch()
	for _, doc := range docs {
		batch.Delete(doc.Ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *FirestoreStore) txAttempts() int {
	if s.attempts <= 0 {
		return 1
	}
	return s.attempts
}

type replayDoc struct {
	Key          string              `firestore:"key"`
	Fingerprint  string              `firestore:"fingerprint"`
	Status       string              `firestore:"status"`
	ReplyStatus  int                 `firestore:"reply_status"`
	ReplyHeaders map[string][]string `firestore:"reply_headers"`
	ReplyBody    []byte              `firestore:"reply_body"`
	CreatedAt    time.Time           `firestore:"created_at"`
	UpdatedAt    time.Time           `firestore:"updated_at"`
	ExpiresAt    time.Time           `firestore:"expires_at"`
}

func newReplayDoc(key, fingerprint string, now time.Time, ttl time.Duration) replayDoc {
	return replayDoc{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      string(StatusInFlight),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (d replayDoc) toRecord() Record {
	return Record{
		Key:          d.Key,
		Fingerprint:  d.Fingerprint,
		Status:       Status(d.Status),
		ReplyStatus:  d.ReplyStatus,
		ReplyHeaders: d.ReplyHeaders,
		ReplyBody:    d.ReplyBody,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		ExpiresAt:    d.ExpiresAt,
	}
}
