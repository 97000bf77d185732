// Package pagination provides cursor page tokens for Firestore list queries.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultPageSize is the item count returned when the client omits page_size.
	DefaultPageSize = 20
	// MaxPageSize caps page_size to prevent unbounded queries.
	MaxPageSize = 100
)

// ErrInvalidPageToken reports a token that could not be decoded.
var ErrInvalidPageToken = errors.New("pagination: invalid page token")

// Cursor identifies the last row of a page by its composite sort key. List
// queries order by a timestamp column and then by document ID so the pair
// resumes the scan deterministically.
type Cursor struct {
	SortKey time.Time `json:"sortKey"`
	DocID   string    `json:"docId"`
}

// EncodeToken serialises the cursor into a base64 URL-safe page token.
func EncodeToken(cursor Cursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken back into a cursor.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.SortKey.IsZero() && cursor.DocID == "" {
		return Cursor{}, ErrInvalidPageToken
	}
	return cursor, nil
}

// ClampPageSize normalises a requested page size into the supported range.
func ClampPageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
