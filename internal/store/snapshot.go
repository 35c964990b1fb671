package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/crossplot/internal/chart"
	"github.com/roach88/crossplot/internal/spec"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = errors.New("snapshot not found")

// Entry summarizes one saved snapshot.
type Entry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
	Charts    int       `json:"charts"`
	Predicate string    `json:"predicate"`
}

// contentHash identifies a snapshot's content. Timestamp and predicate are
// excluded: the predicate is derived from the chart states.
func contentHash(st chart.AppState, specHashes map[string]string) (string, error) {
	states := make(map[string]any, len(st.ChartStates))
	for id, s := range st.ChartStates {
		if len(s) > 0 {
			states[id] = s
		}
	}
	return spec.HashValue(spec.DomainState, map[string]any{
		"version":      st.Version,
		"charts":       specHashes,
		"chartStates":  states,
		"layout":       st.Layout,
		"layoutStates": st.LayoutStates,
	})
}

// Save records st under name and returns the snapshot id. Saving content
// identical to an existing snapshot of the same name returns that
// snapshot's id and writes nothing.
func (s *Store) Save(ctx context.Context, name string, st chart.AppState) (int64, error) {
	if name == "" {
		return 0, errors.New("save snapshot: name is required")
	}

	specHashes := make(map[string]string, len(st.Charts))
	specBodies := make(map[string]string, len(st.Charts))
	for id, cs := range st.Charts {
		h, err := spec.Hash(cs)
		if err != nil {
			return 0, fmt.Errorf("save snapshot: chart %s: %w", id, err)
		}
		body, err := marshalCanonical("spec", cs)
		if err != nil {
			return 0, fmt.Errorf("save snapshot: chart %s: %w", id, err)
		}
		specHashes[id] = h
		specBodies[h] = body
	}
	hash, err := contentHash(st, specHashes)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	layout, err := marshalCanonical("layout", layoutDoc{Layout: st.Layout, LayoutStates: st.LayoutStates})
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (name, hash, version, created_at, predicate, layout)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, hash) DO NOTHING
	`,
		name,
		hash,
		st.Version,
		st.Timestamp.UTC().Format(time.RFC3339Nano),
		st.Predicate,
		layout,
	)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	} else if n == 0 {
		var id int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM snapshots WHERE name = ? AND hash = ?", name, hash,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("save snapshot: lookup existing: %w", err)
		}
		return id, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	hashes := make([]string, 0, len(specBodies))
	for h := range specBodies {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	for _, h := range hashes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO specs (hash, body) VALUES (?, ?) ON CONFLICT(hash) DO NOTHING",
			h, specBodies[h],
		); err != nil {
			return 0, fmt.Errorf("save snapshot: write spec: %w", err)
		}
	}

	ids := make([]string, 0, len(specHashes))
	for cid := range specHashes {
		ids = append(ids, cid)
	}
	sort.Strings(ids)
	for _, cid := range ids {
		state, err := marshalChartState(st.ChartStates[cid])
		if err != nil {
			return 0, fmt.Errorf("save snapshot: chart %s: %w", cid, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_charts (snapshot_id, chart_id, spec_hash, state)
			VALUES (?, ?, ?, ?)
		`, id, cid, specHashes[cid], state); err != nil {
			return 0, fmt.Errorf("save snapshot: write chart %s: %w", cid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save snapshot: commit: %w", err)
	}
	return id, nil
}

// Load returns the snapshot with the given id.
func (s *Store) Load(ctx context.Context, id int64) (chart.AppState, error) {
	var (
		st        chart.AppState
		createdAt string
		layout    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, created_at, predicate, layout
		FROM snapshots
		WHERE id = ?
	`, id).Scan(&st.Version, &createdAt, &st.Predicate, &layout)
	if errors.Is(err, sql.ErrNoRows) {
		return chart.AppState{}, fmt.Errorf("load snapshot %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return chart.AppState{}, fmt.Errorf("load snapshot %d: %w", id, err)
	}

	if st.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return chart.AppState{}, fmt.Errorf("load snapshot %d: parse timestamp: %w", id, err)
	}
	doc, err := unmarshalLayout(layout)
	if err != nil {
		return chart.AppState{}, fmt.Errorf("load snapshot %d: %w", id, err)
	}
	st.Layout, st.LayoutStates = doc.Layout, doc.LayoutStates

	st.Charts, st.ChartStates, err = s.loadCharts(ctx, id)
	if err != nil {
		return chart.AppState{}, fmt.Errorf("load snapshot %d: %w", id, err)
	}
	return st, nil
}

func (s *Store) loadCharts(ctx context.Context, id int64) (map[string]spec.ChartSpec, map[string]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chart_id, p.body, c.state
		FROM snapshot_charts c
		JOIN specs p ON p.hash = c.spec_hash
		WHERE c.snapshot_id = ?
		ORDER BY c.chart_id COLLATE BINARY ASC
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query charts: %w", err)
	}
	defer rows.Close()

	charts := map[string]spec.ChartSpec{}
	states := map[string]map[string]any{}
	for rows.Next() {
		var chartID, body, state string
		if err := rows.Scan(&chartID, &body, &state); err != nil {
			return nil, nil, fmt.Errorf("scan chart: %w", err)
		}
		cs, err := unmarshalSpec(body)
		if err != nil {
			return nil, nil, fmt.Errorf("chart %s: %w", chartID, err)
		}
		cst, err := unmarshalChartState(state)
		if err != nil {
			return nil, nil, fmt.Errorf("chart %s: %w", chartID, err)
		}
		charts[chartID] = cs
		states[chartID] = cst
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate charts: %w", err)
	}
	return charts, states, nil
}

// Latest returns the most recently saved snapshot under name and its id.
func (s *Store) Latest(ctx context.Context, name string) (chart.AppState, int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM snapshots WHERE name = ? ORDER BY id DESC LIMIT 1", name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return chart.AppState{}, 0, fmt.Errorf("latest snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return chart.AppState{}, 0, fmt.Errorf("latest snapshot %q: %w", name, err)
	}
	st, err := s.Load(ctx, id)
	if err != nil {
		return chart.AppState{}, 0, err
	}
	return st, id, nil
}

// List returns snapshots ordered by id. An empty name lists every
// snapshot. Returns an empty slice (not nil) when there are none.
func (s *Store) List(ctx context.Context, name string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.hash, s.created_at, s.predicate,
		       (SELECT COUNT(*) FROM snapshot_charts c WHERE c.snapshot_id = s.id)
		FROM snapshots s
		WHERE ? = '' OR s.name = ?
		ORDER BY s.id ASC
	`, name, name)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Hash, &createdAt, &e.Predicate, &e.Charts); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("snapshot %d: parse timestamp: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return entries, nil
}

// Delete removes a snapshot. Specs it referenced are kept for other
// snapshots.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete snapshot %d: %w", id, ErrNotFound)
	}
	return nil
}
