package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/teranos/dropwatch/errors"
)

// ErrDatabaseClosed marks writes attempted after the connection closed
var ErrDatabaseClosed = errors.New("database is closed")

// BusyRetries is how many times a write is repeated while SQLite reports
// the database locked by another connection
const BusyRetries = 3

const busyBackoff = 50 * time.Millisecond

// IsDatabaseClosed reports whether err means the connection is gone.
// database/sql returns an unexported value here, so the message is checked.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDatabaseClosed) || strings.Contains(err.Error(), "database is closed")
}

// IsBusy reports whether SQLite rejected the statement because another
// connection holds the lock
func IsBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// ExecContext runs a write, repeating it with a growing pause while the
// database is busy. A closed database is marked ErrDatabaseClosed.
func ExecContext(ctx context.Context, conn *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	for attempt := 0; ; attempt++ {
		res, err := conn.ExecContext(ctx, query, args...)
		switch {
		case err == nil:
			return res, nil
		case IsDatabaseClosed(err):
			return nil, errors.Mark(err, ErrDatabaseClosed)
		case !IsBusy(err) || attempt == BusyRetries:
			return nil, err
		}

		timer := time.NewTimer(busyBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
