package listing

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/dropwatch/db"
	"github.com/teranos/dropwatch/errors"
)

// Recorder persists discovered items for later audit
type Recorder interface {
	Record(ctx context.Context, runID string, item Item, matched bool, seenAt time.Time) error
}

// Sighting is a recorded item
type Sighting struct {
	RunID     string    `json:"run_id"`
	Item      Item      `json:"item"`
	Matched   bool      `json:"matched"`
	FirstSeen time.Time `json:"first_seen"`
}

// SQLStore records items in the listing_items table
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store on a migrated database
func NewSQLStore(conn *sql.DB) *SQLStore {
	return &SQLStore{db: conn}
}

// Record stores the first sighting of item in runID; later sightings of the
// same item in the same run are ignored.
func (s *SQLStore) Record(ctx context.Context, runID string, item Item, matched bool, seenAt time.Time) error {
	_, err := db.ExecContext(ctx, s.db, `
		INSERT OR IGNORE INTO listing_items (run_id, item_id, title, url, matched, first_seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, item.ID, item.Title, item.URL, matched, seenAt.UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to record item %s for run %s", item.ID, runID)
	}
	return nil
}

// ListByRun returns the sightings of one run in discovery order
func (s *SQLStore) ListByRun(ctx context.Context, runID string) ([]Sighting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, item_id, title, url, matched, first_seen
		FROM listing_items
		WHERE run_id = ?
		ORDER BY first_seen ASC, item_id ASC
	`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query items for run %s", runID)
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var sg Sighting
		if err := rows.Scan(&sg.RunID, &sg.Item.ID, &sg.Item.Title, &sg.Item.URL, &sg.Matched, &sg.FirstSeen); err != nil {
			return nil, errors.Wrapf(err, "failed to scan item row for run %s", runID)
		}
		out = append(out, sg)
	}
	return out, errors.Wrap(rows.Err(), "iterate listing items")
}
