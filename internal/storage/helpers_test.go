package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("KST", 9*60*60)

// fakeClock is a settable core.Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestDB returns an opened manager backed by a fresh file.
func newTestDB(t *testing.T, clock *fakeClock) *DB {
	t.Helper()
	d := NewDB(filepath.Join(t.TempDir(), "ledger", "account_history.db"),
		WithClock(clock),
		WithLocation(kst),
	)
	_, err := d.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func countRows(t *testing.T, d *DB) int {
	t.Helper()
	db, err := d.Open(context.Background())
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM account_history`).Scan(&n))
	return n
}
