package store

import (
	"context"
	"fmt"

	"github.com/roach88/nvsh/internal/subshell"
)

// EventRecord is one stored scope event.
type EventRecord struct {
	RunID   string
	Seq     int64
	Type    string
	FrameID string
	Depth   int
	Node    string
	Mode    string
}

// RunSummary aggregates the events of one run.
type RunSummary struct {
	RunID    string
	Events   int
	Frames   int
	Forks    int
	MaxDepth int
}

// Sequencer supplies logical seq numbers. *Clock satisfies it.
type Sequencer interface {
	Next() int64
}

// Recorder is a subshell.Tracer that buffers events in memory, stamped
// with seq numbers, until Flush writes them. Tracing never does I/O.
type Recorder struct {
	runID string
	clock Sequencer
	buf   []EventRecord
}

// NewRecorder records events for runID. A nil clock starts a fresh one.
func NewRecorder(runID string, clock Sequencer) *Recorder {
	if clock == nil {
		clock = NewClock()
	}
	return &Recorder{runID: runID, clock: clock}
}

// RunID returns the run the recorder stamps events with.
func (r *Recorder) RunID() string { return r.runID }

// Trace implements subshell.Tracer.
func (r *Recorder) Trace(e subshell.Event) {
	r.buf = append(r.buf, EventRecord{
		RunID:   r.runID,
		Seq:     r.clock.Next(),
		Type:    string(e.Type),
		FrameID: e.FrameID,
		Depth:   e.Depth,
		Node:    e.Node,
		Mode:    e.Mode,
	})
}

// Pending returns the buffered events.
func (r *Recorder) Pending() []EventRecord {
	out := make([]EventRecord, len(r.buf))
	copy(out, r.buf)
	return out
}

// Flush writes the buffered events to s and clears the buffer. On error
// the buffer is kept so the flush can be retried.
func (r *Recorder) Flush(ctx context.Context, s *Store) error {
	if len(r.buf) == 0 {
		return nil
	}
	if err := s.WriteEvents(ctx, r.buf); err != nil {
		return err
	}
	r.buf = nil
	return nil
}

// WriteEvents inserts events in one transaction. Rows already present for
// the same (run, seq) are left alone.
func (s *Store) WriteEvents(ctx context.Context, events []EventRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scope_events
		(run_id, seq, type, frame_id, depth, node, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.RunID, e.Seq, e.Type, e.FrameID, e.Depth, e.Node, e.Mode); err != nil {
			return fmt.Errorf("write event %s/%d: %w", e.RunID, e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

// ReadEvents returns the events of a run in seq order. A run with no
// events yields an empty slice.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, type, frame_id, depth, node, mode
		FROM scope_events
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Type, &e.FrameID, &e.Depth, &e.Node, &e.Mode); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Runs summarizes every recorded run, ordered by run ID.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id,
		       COUNT(*),
		       COUNT(DISTINCT frame_id),
		       SUM(CASE WHEN type = 'fork' THEN 1 ELSE 0 END),
		       MAX(depth)
		FROM scope_events
		GROUP BY run_id
		ORDER BY run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Events, &r.Frames, &r.Forks, &r.MaxDepth); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
