package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atmx/wager-ledger/internal/model"
)

// historyCursor is the position of the last record on a page. History is
// ordered by (settled_at DESC, id DESC), so the next page holds the records
// strictly before it.
type historyCursor struct {
	settledAt time.Time
	id        string
}

func (c historyCursor) encode() string {
	raw := strconv.FormatInt(c.settledAt.UnixNano(), 10) + ":" + c.id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*historyCursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &historyCursor{settledAt: time.Unix(0, n).UTC(), id: id}, nil
}

func cursorOf(r model.HistoryRecord) historyCursor {
	return historyCursor{settledAt: r.SettledAt, id: r.ID}
}

// before reports whether r sorts after the cursor in newest-first order.
func (c historyCursor) before(r model.HistoryRecord) bool {
	if !r.SettledAt.Equal(c.settledAt) {
		return r.SettledAt.Before(c.settledAt)
	}
	return r.ID < c.id
}

// newerFirst orders records by settled_at DESC, id DESC.
func newerFirst(a, b model.HistoryRecord) int {
	if c := b.SettledAt.Compare(a.SettledAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}
