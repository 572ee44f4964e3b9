// Package cursor holds keyset pagination state and its opaque token encoding.
//
// A cursor records the sort field, direction, and the sort-field value of the
// last document seen. Tokens are base64-encoded JSON so callers can hand them
// to clients and resume pagination statelessly.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pagedex/pagedex/internal/domain"
)

// Direction of the keyset scan.
type Direction string

const (
	// Ascending scans with sortField > lastSeen.
	Ascending Direction = "asc"
	// Descending scans with sortField < lastSeen.
	Descending Direction = "desc"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	return d == Ascending || d == Descending
}

// Cursor is keyset pagination state. Owned by exactly one paginator instance;
// shared across paginators only by handing off an encoded token.
type Cursor struct {
	SortField string
	Direction Direction
	LastSeen  *float64 // nil until the first page has loaded
	PageSize  int
}

// Advance returns a copy positioned after the given sort-field value.
func (c Cursor) Advance(lastSeen float64) Cursor {
	c.LastSeen = &lastSeen
	return c
}

// Started reports whether at least one page has been consumed.
func (c Cursor) Started() bool { return c.LastSeen != nil }

// wire is the JSON shape of an encoded token.
type wire struct {
	Field string    `json:"f"`
	Dir   Direction `json:"d"`
	Last  *float64  `json:"v,omitempty"`
	Size  int       `json:"n"`
}

// Encode serializes the cursor into an opaque token.
func (c Cursor) Encode() (string, error) {
	data, err := json.Marshal(wire{Field: c.SortField, Dir: c.Direction, Last: c.LastSeen, Size: c.PageSize})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses an opaque token back into a cursor.
func Decode(token string) (Cursor, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad cursor token: %v", domain.ErrInvalidQuery, err)
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Cursor{}, fmt.Errorf("%w: bad cursor token: %v", domain.ErrInvalidQuery, err)
	}
	if w.Field == "" || !w.Dir.IsValid() || w.Size < 1 {
		return Cursor{}, fmt.Errorf("%w: incomplete cursor token", domain.ErrInvalidQuery)
	}
	return Cursor{SortField: w.Field, Direction: w.Dir, LastSeen: w.Last, PageSize: w.Size}, nil
}
