package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/nvsh/internal/snapshot"
)

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = errors.New("not found")

// WriteSnapshot stores snap under its content hash and labels it for the
// run. Writing the same label again moves it to the new snapshot.
func (s *Store) WriteSnapshot(ctx context.Context, runID, label string, seq int64, snap *snapshot.Snapshot) (string, error) {
	body, err := snap.Canonical()
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	hash := snapshot.HashBytes(body)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (hash, body) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, string(body)); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO run_snapshots (run_id, label, seq, hash) VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, label) DO UPDATE SET seq = excluded.seq, hash = excluded.hash
	`, runID, label, seq, hash); err != nil {
		return "", fmt.Errorf("write snapshot label: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return hash, nil
}

// ReadSnapshot loads a snapshot by hash and checks the body still hashes
// to it.
func (s *Store) ReadSnapshot(ctx context.Context, hash string) (*snapshot.Snapshot, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE hash = ?`, hash).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if got := snapshot.HashBytes([]byte(body)); got != hash {
		return nil, fmt.Errorf("snapshot %s: body hashes to %s", hash, got)
	}
	return snapshot.Parse([]byte(body))
}

// LabeledSnapshot returns the snapshot a run stored under label.
func (s *Store) LabeledSnapshot(ctx context.Context, runID, label string) (*snapshot.Snapshot, string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT hash FROM run_snapshots WHERE run_id = ? AND label = ?
	`, runID, label).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("snapshot %s/%s: %w", runID, label, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read snapshot label: %w", err)
	}
	snap, err := s.ReadSnapshot(ctx, hash)
	if err != nil {
		return nil, "", err
	}
	return snap, hash, nil
}

// SnapshotLabels lists the labels of a run in seq order.
func (s *Store) SnapshotLabels(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label FROM run_snapshots
		WHERE run_id = ?
		ORDER BY seq ASC, label COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot labels: %w", err)
	}
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan snapshot label: %w", err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot labels: %w", err)
	}
	return labels, nil
}
