package trace

import (
	"database/sql"
	"log/slog"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/openclaw/aasc/pkg/contracts"
)

// Index is a rebuildable SQLite side-index over the JSONL trace files
// (SPEC_FULL.md §4.18). It is best-effort: any failure to open or
// write the index is logged and never blocks trace writing, since the
// JSONL files remain the source of truth.
//
// Grounded on the teacher's pure-Go modernc.org/sqlite usage (no cgo),
// generalising the single-writer-conn discipline the corpus applies to
// its own SQLite-backed stores.
type Index struct {
	db  *sql.DB
	log *slog.Logger
}

const createIndexTableSQL = `
CREATE TABLE IF NOT EXISTS trace_index (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	classification TEXT,
	subtask_of TEXT,
	cost REAL,
	duration INTEGER,
	action TEXT
);
CREATE INDEX IF NOT EXISTS idx_trace_index_session ON trace_index(agent_id, session_id);
CREATE INDEX IF NOT EXISTS idx_trace_index_subtask ON trace_index(subtask_of);
`

// OpenIndex opens (creating if absent) <baseDir>/index.sqlite. Returns
// nil and logs at Warn if the index cannot be opened — callers treat a
// nil Index as "fall back to the JSONL scan."
func OpenIndex(baseDir string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(baseDir, "index.sqlite")

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		logger.Warn("trace index: failed to open, falling back to full scan", "error", err)
		return nil
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createIndexTableSQL); err != nil {
		logger.Warn("trace index: failed to create schema, falling back to full scan", "error", err)
		db.Close()
		return nil
	}

	return &Index{db: db, log: logger}
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	if idx == nil {
		return nil
	}
	return idx.db.Close()
}

// Upsert records or updates one trace's indexed columns. Failures are
// logged and swallowed, matching the append-only guarantee's
// best-effort contract.
func (idx *Index) Upsert(sessionID, agentID string, tr contracts.ReasoningTrace) {
	if idx == nil {
		return
	}
	_, err := idx.db.Exec(
		`INSERT INTO trace_index (id, session_id, agent_id, timestamp, classification, subtask_of, cost, duration, action)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   timestamp=excluded.timestamp, classification=excluded.classification,
		   subtask_of=excluded.subtask_of, cost=excluded.cost, duration=excluded.duration, action=excluded.action`,
		tr.ID, sessionID, agentID, tr.Timestamp, tr.Decision.Classification,
		tr.Input.SubtaskOf, tr.Outcome.EstimatedCost, tr.Outcome.DurationMs, tr.Decision.Action,
	)
	if err != nil {
		idx.log.Debug("trace index: upsert failed", "error", err)
	}
}

// IndexedIDs returns the ids of traces present in the index matching a
// subtaskOf filter, in ascending timestamp order. Used by QueryTraces
// as a fast pre-filter before falling back to the JSONL bodies for the
// full record.
func (idx *Index) IndexedIDs(subtaskOf string) []string {
	if idx == nil {
		return nil
	}
	rows, err := idx.db.Query(`SELECT id FROM trace_index WHERE subtask_of = ? ORDER BY timestamp ASC`, subtaskOf)
	if err != nil {
		idx.log.Debug("trace index: query failed", "error", err)
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
