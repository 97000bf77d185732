package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
)

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

func TestJWKSCacheReusesFetchedKeys(t *testing.T) {
	key := generateSigningKey(t)

	var mu sync.Mutex
	var fetches int
	server := newJWKSServer(t, &key.PublicKey, "sweep-key", func() {
		mu.Lock()
		fetches++
		mu.Unlock()
	})

	cache := NewJWKSCache(server.URL,
		WithJWKSLogger(noopLogger{}),
		WithJWKSClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
	)

	ctx := context.Background()
	got, err := cache.Key(ctx, "sweep-key")
	if err != nil {
		t.Fatalf("cache.Key: %v", err)
	}
	if _, ok := got.(*rsa.PublicKey); !ok {
		t.Fatalf("expected *rsa.PublicKey, got %T", got)
	}

	if _, err := cache.Key(ctx, "sweep-key"); err != nil {
		t.Fatalf("cache.Key second call: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fetches != 1 {
		t.Fatalf("expected single JWKS fetch, got %d", fetches)
	}
}

func TestJWKSCacheRefreshesExpiredSet(t *testing.T) {
	key := generateSigningKey(t)

	var mu sync.Mutex
	var fetches int
	server := newJWKSServer(t, &key.PublicKey, "sweep-key", func() {
		mu.Lock()
		fetches++
		mu.Unlock()
	})

	now := time.Unix(1_700_000_000, 0)
	cache := NewJWKSCache(server.URL,
		WithJWKSLogger(noopLogger{}),
		WithJWKSClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	if _, err := cache.Key(ctx, "sweep-key"); err != nil {
		t.Fatalf("cache.Key: %v", err)
	}

	// The server advertises max-age=600; step past it.
	now = now.Add(11 * time.Minute)
	if _, err := cache.Key(ctx, "sweep-key"); err != nil {
		t.Fatalf("cache.Key after expiry: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fetches != 2 {
		t.Fatalf("expected refetch after expiry, got %d fetches", fetches)
	}
}

func TestRequireOIDCAllowsSchedulerToken(t *testing.T) {
	validator, token := setupOIDCTest(t, func(claims jwt.MapClaims) {
		claims["aud"] = "https://api.casalink.ph"
		claims["iss"] = "https://accounts.google.com"
	})

	middleware := validator.RequireOIDC("https://api.casalink.ph", []string{"https://accounts.google.com"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/shortlist-locks/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := ServiceCallerFromContext(r.Context())
		if !ok {
			t.Fatalf("expected service caller in context")
		}
		if caller.Email != "sweeper@casalink-prod.iam.gserviceaccount.com" {
			t.Fatalf("unexpected caller email %q", caller.Email)
		}
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
}

func TestRequireOIDCRejectsAudienceMismatch(t *testing.T) {
	validator, token := setupOIDCTest(t, func(claims jwt.MapClaims) {
		claims["aud"] = "https://somewhere-else.example"
		claims["iss"] = "https://accounts.google.com"
	})

	middleware := validator.RequireOIDC("https://api.casalink.ph", []string{"https://accounts.google.com"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/shortlist-locks/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestRequireOIDCRejectsUnknownIssuer(t *testing.T) {
	validator, token := setupOIDCTest(t, func(claims jwt.MapClaims) {
		claims["aud"] = "https://api.casalink.ph"
		claims["iss"] = "https://issuer.example"
	})

	middleware := validator.RequireOIDC("https://api.casalink.ph", []string{"https://accounts.google.com"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/shortlist-locks/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestRequireOIDCUnavailableWhenJWKSUnreachable(t *testing.T) {
	validator, token := setupOIDCTest(t, func(claims jwt.MapClaims) {
		claims["aud"] = "https://api.casalink.ph"
		claims["iss"] = "https://accounts.google.com"
	})

	validator.cache.url = "http://127.0.0.1:65535/invalid"

	middleware := validator.RequireOIDC("https://api.casalink.ph", []string{"https://accounts.google.com"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/shortlist-locks/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestRequireOIDCMissingToken(t *testing.T) {
	validator, _ := setupOIDCTest(t, nil)

	middleware := validator.RequireOIDC("https://api.casalink.ph", []string{"https://accounts.google.com"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/shortlist-locks/sweep", nil)

	middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func generateSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func newJWKSServer(t *testing.T, pub *rsa.PublicKey, kid string, onFetch func()) *httptest.Server {
	t.Helper()

	jwk := jose.JSONWebKey{
		Key:       pub,
		KeyID:     kid,
		Algorithm: jwt.SigningMethodRS256.Alg(),
		Use:       "sig",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if onFetch != nil {
			onFetch()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "max-age=600")
		if err := json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}}); err != nil {
			t.Fatalf("encode jwks: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func setupOIDCTest(t *testing.T, mutateClaims func(jwt.MapClaims)) (*OIDCValidator, string) {
	t.Helper()

	key := generateSigningKey(t)
	server := newJWKSServer(t, &key.PublicKey, "sweep-key", nil)

	now := time.Unix(1_700_000_000, 0)
	originalTimeFunc := jwt.TimeFunc
	jwt.TimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.TimeFunc = originalTimeFunc })

	validator := NewOIDCValidator(
		NewJWKSCache(server.URL,
			WithJWKSLogger(noopLogger{}),
			WithJWKSClock(func() time.Time { return now }),
		),
		WithOIDCLogger(noopLogger{}),
	)

	claims := jwt.MapClaims{
		"aud":   "https://api.casalink.ph",
		"iss":   "https://accounts.google.com",
		"sub":   "113000000000000000001",
		"email": "sweeper@casalink-prod.iam.gserviceaccount.com",
		"exp":   float64(now.Add(time.Hour).Unix()),
		"iat":   float64(now.Unix()),
	}
	if mutateClaims != nil {
		mutateClaims(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "sweep-key"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	return validator, signed
}
