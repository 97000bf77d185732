package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

var (
	// ErrPaymentNotFound indicates the referenced payment does not exist at the PSP.
	ErrPaymentNotFound = errors.New("billing: payment not found")
	// ErrPaymentNotSettled indicates the payment exists but has not been captured.
	ErrPaymentNotSettled = errors.New("billing: payment not settled")
	// ErrPaymentMismatch indicates the payment does not cover this household/profile lock.
	ErrPaymentMismatch = errors.New("billing: payment does not match lock")
)

// Metadata keys stamped on unlock fee PaymentIntents by the client checkout flow.
const (
	metadataHouseholdKey = "householdId"
	metadataProfileKey   = "profileId"
	metadataPurposeKey   = "purpose"
	purposeProfileUnlock = "profile_unlock"
)

// StripeLogger defines the logging contract for Stripe verifier operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeVerifierConfig configures the StripeUnlockVerifier.
type StripeVerifierConfig struct {
	APIKey      string
	Backends    *stripe.Backends
	FeeAmount   int64
	FeeCurrency string
	Logger      StripeLogger
	Clock       func() time.Time

	// Intents overrides the Stripe client, used by tests.
	Intents stripeIntentAPI
}

// StripeUnlockVerifier confirms lock fee payments against the Stripe API.
type StripeUnlockVerifier struct {
	intents     stripeIntentAPI
	feeAmount   int64
	feeCurrency string
	clock       func() time.Time
	logger      StripeLogger
}

// UnlockPayment identifies the payment backing a profile lock request.
type UnlockPayment struct {
	HouseholdID string
	ProfileID   string
	PaymentRef  string
}

// NewStripeUnlockVerifier constructs a verifier using the given configuration.
func NewStripeUnlockVerifier(cfg StripeVerifierConfig) (*StripeUnlockVerifier, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}

	intents := cfg.Intents
	if intents == nil {
		sc := client.New(apiKey, cfg.Backends)
		intents = sc.PaymentIntents
	}

	if cfg.FeeAmount < 0 {
		return nil, errors.New("stripe: fee amount must not be negative")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeUnlockVerifier{
		intents:     intents,
		feeAmount:   cfg.FeeAmount,
		feeCurrency: strings.ToLower(strings.TrimSpace(cfg.FeeCurrency)),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Verify confirms the payment settled and covers the unlock fee for this
// household/profile pair.
func (v *StripeUnlockVerifier) Verify(ctx context.Context, payment UnlockPayment) error {
	if v == nil || v.intents == nil {
		return errors.New("stripe: verifier not initialised")
	}

	ref := strings.TrimSpace(payment.PaymentRef)
	if ref == "" {
		return fmt.Errorf("%w: payment reference is required", ErrPaymentNotFound)
	}

	intent, err := v.intents.Get(ref, &stripe.PaymentIntentParams{})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return fmt.Errorf("%w: %s", ErrPaymentNotFound, ref)
		}
		return fmt.Errorf("stripe: fetch payment intent: %w", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: intent is %s", ErrPaymentNotSettled, intent.Status)
	}
	if v.feeAmount > 0 && intent.Amount < v.feeAmount {
		return fmt.Errorf("%w: amount %d below fee %d", ErrPaymentMismatch, intent.Amount, v.feeAmount)
	}
	if v.feeCurrency != "" && !strings.EqualFold(string(intent.Currency), v.feeCurrency) {
		return fmt.Errorf("%w: currency %s", ErrPaymentMismatch, intent.Currency)
	}
	if purpose := intent.Metadata[metadataPurposeKey]; purpose != "" && purpose != purposeProfileUnlock {
		return fmt.Errorf("%w: purpose %s", ErrPaymentMismatch, purpose)
	}
	if owner := intent.Metadata[metadataHouseholdKey]; owner != "" && owner != payment.HouseholdID {
		return fmt.Errorf("%w: household mismatch", ErrPaymentMismatch)
	}
	if profile := intent.Metadata[metadataProfileKey]; profile != "" && profile != payment.ProfileID {
		return fmt.Errorf("%w: profile mismatch", ErrPaymentMismatch)
	}

	v.logger(ctx, "billing.stripe.unlock.verified", map[string]any{
		"intentId":    intent.ID,
		"householdId": payment.HouseholdID,
		"profileId":   payment.ProfileID,
		"amount":      intent.Amount,
		"verifiedAt":  v.clock(),
	})
	return nil
}
