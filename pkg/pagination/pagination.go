// Package pagination implements keyset paging over (created_at, id).
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is a page request as it arrives from a handler.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the key of the last row on the previous page.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(Cursor{CreatedAt: c.CreatedAt.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a token produced by Encode. A blank token means the first
// page and yields a nil cursor.
func Decode(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("cursor is not a page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("cursor is not a page token: %w", err)
	}
	if c.ID == uuid.Nil || c.CreatedAt.IsZero() {
		return nil, fmt.Errorf("cursor is incomplete")
	}
	return &c, nil
}

// Clamp applies the default and maximum page size.
func Clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Trim cuts rows fetched with limit+1 down to limit. When the extra row was
// present it returns the token for the next page.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	if len(rows) <= limit || limit <= 0 {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, key(rows[limit-1]).Encode()
}
