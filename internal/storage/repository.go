package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"accountbook/internal/core"
)

const (
	insertEntrySQL = `INSERT INTO account_history (type, price, comment, date, photo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	updateEntrySQL = `UPDATE account_history
		SET type = ?, price = ?, comment = ?, date = ?, photo_url = ?, updated_at = ?
		WHERE id = ?`

	getEntrySQL = `SELECT ` + entryColumns + ` FROM account_history WHERE id = ?`

	listEntriesSQL = `SELECT ` + entryColumns + ` FROM account_history ORDER BY created_at DESC, id DESC`
)

// EntryRepository reads and writes ledger entries. Every method runs in
// exactly one transaction.
type EntryRepository struct {
	db *DB
}

func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Insert persists a new entry and returns it with the store-assigned id.
// Unset draft fields get their documented defaults first; a draft that is
// still invalid is rejected with core.ErrValidation before any SQL runs.
func (r *EntryRepository) Insert(ctx context.Context, d core.Draft) (core.Entry, error) {
	defaultDate := d.OccurredAt.IsZero()
	d = d.Normalize(r.db.now())
	if err := d.Validate(); err != nil {
		return core.Entry{}, err
	}

	entry, err := WithTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) (core.Entry, error) {
		// stamped once the connection is held so created_at follows commit order
		now := r.db.now()
		if defaultDate {
			d.OccurredAt = now
		}

		res, err := tx.ExecContext(ctx, insertEntrySQL,
			d.Kind.Label(),
			d.Amount,
			d.Note,
			d.OccurredAt.UnixMilli(),
			nullablePhoto(d.PhotoRef),
			now.UnixMilli(),
			now.UnixMilli(),
		)
		if err != nil {
			return core.Entry{}, fmt.Errorf("exec insert: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return core.Entry{}, fmt.Errorf("read insert id: %w", err)
		}
		if id <= 0 {
			return core.Entry{}, errors.New("no insert id returned")
		}

		return core.Entry{
			ID:         id,
			Kind:       d.Kind,
			Amount:     d.Amount,
			Note:       d.Note,
			OccurredAt: d.OccurredAt.In(r.db.loc),
			CreatedAt:  now,
			UpdatedAt:  now,
			PhotoRef:   d.PhotoRef,
		}, nil
	})
	if err != nil {
		return core.Entry{}, classify(core.ErrWrite, "insert entry", err)
	}

	logger().DebugContext(ctx, "Entry saved to SQLite",
		"id", entry.ID,
		"kind", entry.Kind.String(),
		"amount", entry.Amount,
		"occurred_at", entry.OccurredAt)

	return entry.Clone(), nil
}

// Update overwrites the mutable fields of an existing entry and refreshes
// updated_at. The kind of an entry cannot change: an entry with a zero Kind
// keeps the stored one, a different Kind fails with core.ErrKindImmutable.
// OccurredAt is required: a zero date fails with core.ErrInvalidDate.
func (r *EntryRepository) Update(ctx context.Context, e core.Entry) (core.Entry, error) {
	if e.ID == 0 {
		return core.Entry{}, fmt.Errorf("update entry: %w", core.ErrMissingID)
	}

	if e.OccurredAt.IsZero() {
		return core.Entry{}, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrInvalidDate)
	}

	keepKind := e.Kind == core.KindUnset
	d := e.Draft().Normalize(r.db.now())
	if err := d.Validate(); err != nil {
		return core.Entry{}, err
	}

	entry, err := WithTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) (core.Entry, error) {
		current, err := r.get(ctx, tx, e.ID)
		if err != nil {
			return core.Entry{}, err
		}

		if keepKind {
			d.Kind = current.Kind
		} else if d.Kind != current.Kind {
			return core.Entry{}, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrKindImmutable)
		}

		// updated_at must move forward even when the clock has not
		now := r.db.now()
		updatedAt := max(now.UnixMilli(), current.UpdatedAt.UnixMilli()+1)

		res, err := tx.ExecContext(ctx, updateEntrySQL,
			d.Kind.Label(),
			d.Amount,
			d.Note,
			d.OccurredAt.UnixMilli(),
			nullablePhoto(d.PhotoRef),
			updatedAt,
			e.ID,
		)
		if err != nil {
			return core.Entry{}, fmt.Errorf("exec update: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return core.Entry{}, fmt.Errorf("read rows affected: %w", err)
		} else if n != 1 {
			return core.Entry{}, fmt.Errorf("update touched %d rows: %w", n, core.ErrNotFound)
		}

		current.Amount = d.Amount
		current.Note = d.Note
		current.OccurredAt = d.OccurredAt.In(r.db.loc)
		current.PhotoRef = d.PhotoRef
		current.UpdatedAt = r.db.fromMillis(updatedAt)
		return current, nil
	})
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			return core.Entry{}, err
		}
		return core.Entry{}, classify(core.ErrWrite, "update entry", err)
	}

	logger().DebugContext(ctx, "Entry updated in SQLite",
		"id", entry.ID,
		"amount", entry.Amount,
		"updated_at", entry.UpdatedAt)

	return entry.Clone(), nil
}

// Get returns one entry by id.
func (r *EntryRepository) Get(ctx context.Context, id int64) (core.Entry, error) {
	if id == 0 {
		return core.Entry{}, fmt.Errorf("get entry: %w", core.ErrMissingID)
	}

	entry, err := WithTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) (core.Entry, error) {
		return r.get(ctx, tx, id)
	})
	if err != nil {
		return core.Entry{}, classify(core.ErrRead, "get entry", err)
	}
	return entry, nil
}

// List returns every entry, most recently created first. Rows that fail
// structural validation are logged and left out rather than failing the call.
func (r *EntryRepository) List(ctx context.Context) ([]core.Entry, error) {
	entries, err := WithTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) ([]core.Entry, error) {
		rows, err := tx.QueryContext(ctx, listEntriesSQL)
		if err != nil {
			return nil, fmt.Errorf("query entries: %w", err)
		}
		defer rows.Close()

		entries := make([]core.Entry, 0)
		skipped := 0
		for rows.Next() {
			row, err := scanEntryRow(rows)
			if err != nil {
				skipped++
				logger().WarnContext(ctx, "Skipping unreadable entry row", "error", err)
				continue
			}
			e, err := row.toEntry(r.db)
			if err != nil {
				skipped++
				logger().WarnContext(ctx, "Skipping malformed entry row", "error", err)
				continue
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate entries: %w", err)
		}

		if skipped > 0 {
			logger().WarnContext(ctx, "Entry list filtered malformed rows", "skipped", skipped, "returned", len(entries))
		}
		return entries, nil
	})
	if err != nil {
		return nil, classify(core.ErrRead, "list entries", err)
	}
	return entries, nil
}

func (r *EntryRepository) get(ctx context.Context, tx *sql.Tx, id int64) (core.Entry, error) {
	row, err := scanEntryRow(tx.QueryRowContext(ctx, getEntrySQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("id %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("scan entry %d: %w", id, err)
	}
	e, err := row.toEntry(r.db)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}
	return e, nil
}
