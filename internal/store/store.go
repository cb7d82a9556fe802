// Package store is the sole SQL boundary for the pipeline: the durable
// work queue (C4-C6, C8's lease discipline, C9's audit trail) and run
// bookkeeping (C7) all live here. Every mutation goes through an
// explicit statement in this package — no ORM, no ad-hoc queries
// elsewhere in the codebase.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gowebpki/jcs"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a lookup by id/key finds no row.
	ErrNotFound = errors.New("store: not found")
	// ErrValidation marks a caller-supplied value that fails a
	// store-level invariant. No Store method returns it at present;
	// httpapi maps it to 400 Bad Request.
	ErrValidation = errors.New("store: validation error")
)

// defaultSchedulingColumn is the column analysis_jobs.run_after uses in
// this module's own migrations. DetectSchedulingColumn lets a Store
// attach to a pre-existing database whose schema predates the
// run_after rename and still carries next_run_at instead.
const defaultSchedulingColumn = "run_after"

// Store wraps a pgx connection pool with the pipeline's durable
// operations.
type Store struct {
	db               *pgxpool.Pool
	schedulingColumn string
}

// New wraps an existing pool. The caller owns the pool's lifecycle.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, schedulingColumn: defaultSchedulingColumn}
}

// DetectSchedulingColumn probes analysis_jobs' actual columns and
// switches to next_run_at when run_after is absent. Call once at
// startup, before the worker or publisher issue any job queries.
func (s *Store) DetectSchedulingColumn(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_name = 'analysis_jobs' AND column_name IN ('run_after', 'next_run_at')
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if !found["run_after"] && found["next_run_at"] {
		s.schedulingColumn = "next_run_at"
	}
	return nil
}

// canonicalJSON marshals v to JSON and runs it through RFC 8785 (JCS)
// canonicalization, matching the ledger teacher's jcsPayload helper —
// two audit rows built from the same logical value always compare
// byte-for-byte regardless of map key iteration order.
func canonicalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}
