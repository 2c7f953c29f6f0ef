package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"accountbook/internal/core"
)

const entryColumns = `id, type, price, comment, date, created_at, updated_at, photo_url`

var errMalformedRow = errors.New("malformed entry row")

type rowScanner interface {
	Scan(dest ...any) error
}

// entryRow mirrors account_history with every column nullable, so corrupt or
// partial rows can be scanned and then rejected instead of failing the query.
type entryRow struct {
	ID        sql.NullInt64
	Type      sql.NullString
	Price     sql.NullInt64
	Comment   sql.NullString
	Date      sql.NullInt64
	CreatedAt sql.NullInt64
	UpdatedAt sql.NullInt64
	PhotoURL  sql.NullString
}

func scanEntryRow(s rowScanner) (entryRow, error) {
	var r entryRow
	err := s.Scan(&r.ID, &r.Type, &r.Price, &r.Comment, &r.Date, &r.CreatedAt, &r.UpdatedAt, &r.PhotoURL)
	return r, err
}

// toEntry validates the row structurally and converts it.
func (r entryRow) toEntry(d *DB) (core.Entry, error) {
	if !r.ID.Valid || r.ID.Int64 <= 0 {
		return core.Entry{}, fmt.Errorf("%w: missing id", errMalformedRow)
	}
	if !r.Type.Valid || !r.Price.Valid || !r.Comment.Valid ||
		!r.Date.Valid || !r.CreatedAt.Valid || !r.UpdatedAt.Valid {
		return core.Entry{}, fmt.Errorf("%w: id %d has null required column", errMalformedRow, r.ID.Int64)
	}
	kind, err := core.ParseKind(r.Type.String)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: id %d: %w", errMalformedRow, r.ID.Int64, err)
	}
	if r.CreatedAt.Int64 > r.UpdatedAt.Int64 {
		return core.Entry{}, fmt.Errorf("%w: id %d created after update", errMalformedRow, r.ID.Int64)
	}

	e := core.Entry{
		ID:         r.ID.Int64,
		Kind:       kind,
		Amount:     r.Price.Int64,
		Note:       r.Comment.String,
		OccurredAt: d.fromMillis(r.Date.Int64),
		CreatedAt:  d.fromMillis(r.CreatedAt.Int64),
		UpdatedAt:  d.fromMillis(r.UpdatedAt.Int64),
	}
	if r.PhotoURL.Valid {
		e.PhotoRef = core.PhotoRef(r.PhotoURL.String)
	}
	return e, nil
}

func nullablePhoto(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
