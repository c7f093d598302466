package audit

import (
	"strconv"
	"strings"
)

// Cursor is a position in the change feed. Entries are ordered by writing
// transaction, then by append sequence. An entry becomes readable only once
// every older writing transaction has finished, so a cursor never skips a
// late commit.
type Cursor struct {
	TxID int64
	Seq  int64
}

// IsZero reports whether c is the start of the feed
func (c Cursor) IsZero() bool {
	return c == Cursor{}
}

// After reports whether e sits past c in the feed
func (c Cursor) After(e *Entry) bool {
	if e.TxID != c.TxID {
		return e.TxID > c.TxID
	}
	return e.Seq > c.Seq
}

// String encodes c as "<tx>.<seq>"; the start of the feed is ""
func (c Cursor) String() string {
	if c.IsZero() {
		return ""
	}
	return strconv.FormatInt(c.TxID, 10) + "." + strconv.FormatInt(c.Seq, 10)
}

// ParseCursor decodes a cursor produced by Cursor.String
func ParseCursor(raw string) (Cursor, error) {
	if raw == "" {
		return Cursor{}, nil
	}
	tx, seq, ok := strings.Cut(raw, ".")
	if !ok {
		return Cursor{}, ErrInvalidCursor
	}
	txID, err := strconv.ParseInt(tx, 10, 64)
	if err != nil || txID < 0 {
		return Cursor{}, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || n < 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{TxID: txID, Seq: n}, nil
}
