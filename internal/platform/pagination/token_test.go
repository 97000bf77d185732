package pagination

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	cursor := Cursor{
		SortKey: time.Date(2026, time.March, 4, 9, 30, 0, 123456789, time.UTC),
		DocID:   "hh-1__hp-2",
	}

	token := EncodeToken(cursor)
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	decoded, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.SortKey.Equal(cursor.SortKey) {
		t.Fatalf("sort key mismatch: got %s want %s", decoded.SortKey, cursor.SortKey)
	}
	if decoded.DocID != cursor.DocID {
		t.Fatalf("doc id mismatch: got %q", decoded.DocID)
	}
}

func TestDecodeTokenEmpty(t *testing.T) {
	cursor, err := DecodeToken("   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cursor.SortKey.IsZero() || cursor.DocID != "" {
		t.Fatalf("expected zero cursor, got %+v", cursor)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not-base64!!", "aGVsbG8", "e30"} {
		if _, err := DecodeToken(token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("token %q: expected ErrInvalidPageToken, got %v", token, err)
		}
	}
}

func TestClampPageSize(t *testing.T) {
	cases := map[int]int{
		-5:  DefaultPageSize,
		0:   DefaultPageSize,
		1:   1,
		100: 100,
		250: MaxPageSize,
	}
	for in, want := range cases {
		if got := ClampPageSize(in); got != want {
			t.Fatalf("ClampPageSize(%d) = %d, want %d", in, got, want)
		}
	}
}
