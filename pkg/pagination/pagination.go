// Package pagination implements newest-first keyset paging over (timestamp, id).
package pagination

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100

	cursorBytes = 8 + 16
)

var ErrBadCursor = errors.New("malformed page cursor")

// Params is what list endpoints accept. A blank Cursor starts at the newest row.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the position of the last row handed out.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], mapping unset to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// EncodeCursor packs the position as unix nanos followed by the id bytes.
func EncodeCursor(c Cursor) string {
	buf := make([]byte, cursorBytes)
	binary.BigEndian.PutUint64(buf[:8], uint64(c.CreatedAt.UnixNano()))
	copy(buf[8:], c.ID[:])
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ParseCursor returns nil for a blank value and ErrBadCursor for anything it cannot decode.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	buf, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(buf) != cursorBytes {
		return nil, ErrBadCursor
	}
	id, err := uuid.FromBytes(buf[8:])
	if err != nil || id == uuid.Nil {
		return nil, ErrBadCursor
	}
	nanos := int64(binary.BigEndian.Uint64(buf[:8]))
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// Keyset orders query by (column DESC, id DESC), resumes after cursor, and fetches one row
// past the page so Trim can tell whether another page exists.
func Keyset(query *gorm.DB, column string, cursor *Cursor, limit int) *gorm.DB {
	if cursor != nil {
		query = query.Where(column+" < ? OR ("+column+" = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	return query.Order(column + " DESC").Order("id DESC").Limit(NormalizeLimit(limit) + 1)
}

// Trim drops the lookahead row fetched by Keyset and derives the next cursor from the last
// row kept. Items is never nil so it encodes as [].
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		if rows == nil {
			rows = []T{}
		}
		return Page[T]{Items: rows}
	}
	kept := rows[:limit]
	return Page[T]{Items: kept, NextCursor: EncodeCursor(cursorOf(kept[limit-1]))}
}
