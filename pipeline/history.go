package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/dropwatch/db"
	"github.com/teranos/dropwatch/errors"
)

// DefaultHistoryLimit is how many runs List returns when limit <= 0
const DefaultHistoryLimit = 20

// History persists run outcomes in the runs table
type History struct {
	db *sql.DB
}

// NewHistory creates a history store on a migrated database
func NewHistory(conn *sql.DB) *History {
	return &History{db: conn}
}

// Record stores a terminal outcome
func (h *History) Record(ctx context.Context, out Outcome) error {
	if !out.Terminal() {
		return errors.NewInvalidRequestError("run %s is not terminal (stage %s)", out.RunID, out.Stage)
	}

	durations := make(map[string]int64, len(out.StageDurations))
	for st, d := range out.StageDurations {
		durations[st.String()] = d.Milliseconds()
	}
	encoded, err := json.Marshal(durations)
	if err != nil {
		return errors.Wrap(err, "failed to encode stage durations")
	}

	var failedStage sql.NullString
	if out.Stage == StageFailed {
		failedStage = sql.NullString{String: out.FailedStage.String(), Valid: true}
	}

	_, err = db.ExecContext(ctx, h.db, `
		INSERT INTO runs (
			id, target_kind, target, stage, failed_stage, reason, message,
			confirmed, manual_completion, finalize_status, matcher_id, evidence,
			exit_code, stage_durations, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		out.RunID, out.TargetKind, out.Target, out.Stage.String(), failedStage,
		nullable(string(out.Reason)), nullable(out.Message),
		out.Confirmed, out.ManualCompletion, nullable(out.FinalizeStatus),
		nullable(out.Signal.MatcherID), nullable(out.Signal.Evidence),
		out.ExitCode(), string(encoded), out.StartedAt.UTC(), out.EndedAt.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record run %s", out.RunID)
	}
	return nil
}

// List returns the most recent runs, newest first
func (h *History) List(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, target_kind, target, stage, failed_stage, reason, message,
			confirmed, manual_completion, finalize_status, matcher_id, evidence,
			stage_durations, started_at, ended_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var runs []Outcome
	for rows.Next() {
		out, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, out)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

func scanRun(rows *sql.Rows) (Outcome, error) {
	var (
		out                                  Outcome
		stage                                string
		failedStage, reason, message, status sql.NullString
		matcher, evidence, durations         sql.NullString
		startedAt, endedAt                   time.Time
	)
	if err := rows.Scan(&out.RunID, &out.TargetKind, &out.Target, &stage, &failedStage, &reason, &message,
		&out.Confirmed, &out.ManualCompletion, &status, &matcher, &evidence,
		&durations, &startedAt, &endedAt); err != nil {
		return Outcome{}, errors.Wrap(err, "failed to scan run row")
	}

	var err error
	if out.Stage, err = ParseStage(stage); err != nil {
		return Outcome{}, errors.Wrapf(err, "run %s", out.RunID)
	}
	if failedStage.Valid {
		if out.FailedStage, err = ParseStage(failedStage.String); err != nil {
			return Outcome{}, errors.Wrapf(err, "run %s", out.RunID)
		}
	}
	out.Reason = Reason(reason.String)
	out.Message = message.String
	out.FinalizeStatus = status.String
	out.Signal = Signal{MatcherID: matcher.String, Evidence: evidence.String}
	out.StartedAt = startedAt
	out.EndedAt = endedAt

	out.StageDurations = make(map[Stage]time.Duration)
	if durations.Valid && durations.String != "" {
		var ms map[string]int64
		if err := json.Unmarshal([]byte(durations.String), &ms); err != nil {
			return Outcome{}, errors.Wrapf(err, "run %s: bad stage durations", out.RunID)
		}
		for name, v := range ms {
			if st, err := ParseStage(name); err == nil {
				out.StageDurations[st] = time.Duration(v) * time.Millisecond
			}
		}
	}
	return out, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
