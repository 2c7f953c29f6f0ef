package core

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Stored category labels. These literals are the on-disk encoding of Kind and
// must not change.
const (
	LabelExpense = "사용"
	LabelIncome  = "수입"
)

const (
	KindUnset Kind = iota
	KindExpense
	KindIncome
)

type (
	// Kind tags an entry as money going out or coming in.
	Kind int

	// Draft is an entry that has not been inserted yet.
	Draft struct {
		Kind       Kind
		Amount     int64 // minor currency units
		Note       string
		OccurredAt time.Time // ledger date, not audit time
		PhotoRef   *string
	}

	// Entry is a persisted ledger entry. ID is zero only for values that were
	// never returned by the store.
	Entry struct {
		ID         int64
		Kind       Kind
		Amount     int64
		Note       string
		OccurredAt time.Time
		CreatedAt  time.Time
		UpdatedAt  time.Time
		PhotoRef   *string
	}
)

// ParseKind maps a stored label or a user-facing name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case LabelExpense, "expense":
		return KindExpense, nil
	case LabelIncome, "income":
		return KindIncome, nil
	}
	return KindUnset, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) IsValid() bool {
	return k == KindExpense || k == KindIncome
}

// Label returns the on-disk category literal, or "" for an invalid kind.
func (k Kind) Label() string {
	switch k {
	case KindExpense:
		return LabelExpense
	case KindIncome:
		return LabelIncome
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case KindExpense:
		return "expense"
	case KindIncome:
		return "income"
	}
	return "unset"
}

// Normalize fills the documented defaults for unset fields: expense kind,
// occurredAt = now, and nil for an empty photo reference.
func (d Draft) Normalize(now time.Time) Draft {
	if d.Kind == KindUnset {
		d.Kind = KindExpense
	}
	if d.OccurredAt.IsZero() {
		d.OccurredAt = now
	}
	d.OccurredAt = TruncateMillis(d.OccurredAt)
	d.PhotoRef = clonePhotoRef(d.PhotoRef)
	return d
}

// Validate reports the first structural problem in the draft. Every error
// matches ErrValidation.
func (d Draft) Validate() error {
	if !d.Kind.IsValid() {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidKind)
	}
	if d.Amount < 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrNegativeAmount)
	}
	if !utf8.ValidString(d.Note) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidNote)
	}
	if d.OccurredAt.IsZero() || d.OccurredAt.UnixMilli() < 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidDate)
	}
	return nil
}

// Draft returns the mutable fields of the entry.
func (e Entry) Draft() Draft {
	return Draft{
		Kind:       e.Kind,
		Amount:     e.Amount,
		Note:       e.Note,
		OccurredAt: e.OccurredAt,
		PhotoRef:   clonePhotoRef(e.PhotoRef),
	}
}

// Clone returns a copy that shares no memory with e.
func (e Entry) Clone() Entry {
	e.PhotoRef = clonePhotoRef(e.PhotoRef)
	return e
}

// TruncateMillis drops sub-millisecond precision so times survive the round
// trip through epoch-millisecond columns unchanged.
func TruncateMillis(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.UnixMilli(t.UnixMilli()).In(t.Location())
}

// PhotoRef returns a pointer to s, or nil when s is empty.
func PhotoRef(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clonePhotoRef(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	s := *p
	return &s
}
