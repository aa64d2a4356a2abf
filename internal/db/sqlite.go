package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// schema defines the tables for the persistence layer.
// Version is tracked in the schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS analyses (
    id           TEXT PRIMARY KEY,
    status       TEXT NOT NULL DEFAULT 'running',
    question     TEXT NOT NULL,
    problem_type TEXT NOT NULL DEFAULT 'OTHER',
    confidence   REAL NOT NULL DEFAULT 0.0,
    solution     TEXT NOT NULL DEFAULT '',
    key_findings TEXT NOT NULL DEFAULT '[]',
    degraded     INTEGER NOT NULL DEFAULT 0,
    failure_note TEXT NOT NULL DEFAULT '',
    started_at   DATETIME NOT NULL,
    completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_started_at ON analyses(started_at DESC);

CREATE TABLE IF NOT EXISTS analysis_steps (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    analysis_id     TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
    step_number     INTEGER NOT NULL,
    name            TEXT NOT NULL,
    content         TEXT NOT NULL DEFAULT '',
    confidence      REAL NOT NULL DEFAULT 0.0,
    needs_more_info INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_analysis_steps_analysis ON analysis_steps(analysis_id, id ASC);

CREATE TABLE IF NOT EXISTS analysis_rounds (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    analysis_id       TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
    round             INTEGER NOT NULL,
    fetched_artifacts TEXT NOT NULL DEFAULT '[]',
    step_count        INTEGER NOT NULL DEFAULT 0,
    needs_more_info   INTEGER NOT NULL DEFAULT 0,
    started_at        DATETIME NOT NULL,
    completed_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_rounds_analysis ON analysis_rounds(analysis_id, round ASC);

CREATE TABLE IF NOT EXISTS analysis_artifacts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    name        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_artifacts_analysis ON analysis_artifacts(analysis_id, position ASC);
`,
	},
}

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// runs all pending schema migrations. Pass ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// Enable WAL mode for better concurrency and performance.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enable foreign-key constraints.
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	// Ensure schema_versions table exists before reading from it.
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Analyses ─────────────────────────────────────────────────────────────────

func (s *sqliteStore) SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO analyses(id, status, question, problem_type, confidence, solution, key_findings, degraded, failure_note, started_at, completed_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            status       = excluded.status,
            problem_type = excluded.problem_type,
            confidence   = excluded.confidence,
            solution     = excluded.solution,
            key_findings = excluded.key_findings,
            degraded     = excluded.degraded,
            failure_note = excluded.failure_note,
            completed_at = excluded.completed_at
    `,
		rec.ID, rec.Status, rec.Question, rec.ProblemType, rec.Confidence,
		rec.Solution, rec.KeyFindings, boolToInt(rec.Degraded), rec.FailureNote,
		rec.StartedAt.UTC(), rec.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}

	// steps
	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_steps WHERE analysis_id=?`, rec.ID); err != nil {
		return fmt.Errorf("delete steps: %w", err)
	}
	for _, st := range rec.Steps {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO analysis_steps(analysis_id, step_number, name, content, confidence, needs_more_info)
            VALUES(?,?,?,?,?,?)
        `, rec.ID, st.StepNumber, st.Name, st.Content, st.Confidence, boolToInt(st.NeedsMoreInfo))
		if err != nil {
			return fmt.Errorf("insert step: %w", err)
		}
	}

	// rounds
	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_rounds WHERE analysis_id=?`, rec.ID); err != nil {
		return fmt.Errorf("delete rounds: %w", err)
	}
	for _, r := range rec.Rounds {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO analysis_rounds(analysis_id, round, fetched_artifacts, step_count, needs_more_info, started_at, completed_at)
            VALUES(?,?,?,?,?,?,?)
        `, rec.ID, r.Round, r.FetchedArtifacts, r.StepCount, boolToInt(r.NeedsMoreInfo), r.StartedAt.UTC(), r.CompletedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert round: %w", err)
		}
	}

	// artifacts
	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_artifacts WHERE analysis_id=?`, rec.ID); err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	for _, a := range rec.Artifacts {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO analysis_artifacts(analysis_id, position, name)
            VALUES(?,?,?)
        `, rec.ID, a.Position, a.Name)
		if err != nil {
			return fmt.Errorf("insert artifact: %w", err)
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, status, question, problem_type, confidence, solution, key_findings, degraded, failure_note, started_at, completed_at
        FROM analyses WHERE id=?`, id)
	rec, err := scanAnalysis(row)
	if err != nil {
		return nil, err
	}

	// steps
	stepRows, err := s.db.QueryContext(ctx, `
        SELECT id, step_number, name, content, confidence, needs_more_info
        FROM analysis_steps WHERE analysis_id=? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer stepRows.Close()
	for stepRows.Next() {
		var st StepRecord
		var more int
		st.AnalysisID = id
		if err := stepRows.Scan(&st.ID, &st.StepNumber, &st.Name, &st.Content, &st.Confidence, &more); err != nil {
			return nil, err
		}
		st.NeedsMoreInfo = more != 0
		rec.Steps = append(rec.Steps, st)
	}
	if err := stepRows.Err(); err != nil {
		return nil, err
	}

	// rounds
	roundRows, err := s.db.QueryContext(ctx, `
        SELECT id, round, fetched_artifacts, step_count, needs_more_info, started_at, completed_at
        FROM analysis_rounds WHERE analysis_id=? ORDER BY round ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer roundRows.Close()
	for roundRows.Next() {
		var r RoundRecord
		var more int
		var started, completed string
		r.AnalysisID = id
		if err := roundRows.Scan(&r.ID, &r.Round, &r.FetchedArtifacts, &r.StepCount, &more, &started, &completed); err != nil {
			return nil, err
		}
		r.NeedsMoreInfo = more != 0
		r.StartedAt, _ = parseTime(started)
		r.CompletedAt, _ = parseTime(completed)
		rec.Rounds = append(rec.Rounds, r)
	}
	if err := roundRows.Err(); err != nil {
		return nil, err
	}

	// artifacts
	artRows, err := s.db.QueryContext(ctx, `
        SELECT id, position, name
        FROM analysis_artifacts WHERE analysis_id=? ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer artRows.Close()
	for artRows.Next() {
		var a ArtifactRecord
		a.AnalysisID = id
		if err := artRows.Scan(&a.ID, &a.Position, &a.Name); err != nil {
			return nil, err
		}
		rec.Artifacts = append(rec.Artifacts, a)
	}
	if err := artRows.Err(); err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *sqliteStore) ListAnalyses(ctx context.Context, limit, offset int) ([]*AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, status, question, problem_type, confidence, solution, key_findings, degraded, failure_note, started_at, completed_at
        FROM analyses ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var recs []*AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *sqliteStore) DeleteAnalysis(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Scan helpers ─────────────────────────────────────────────────────────────

// rowScanner lets scanAnalysis work for both QueryRow and Query results.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row rowScanner) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	var degraded int
	var started string
	var completed sql.NullString
	err := row.Scan(
		&rec.ID, &rec.Status, &rec.Question, &rec.ProblemType, &rec.Confidence,
		&rec.Solution, &rec.KeyFindings, &degraded, &rec.FailureNote,
		&started, &completed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	rec.Degraded = degraded != 0
	rec.StartedAt, _ = parseTime(started)
	if completed.Valid {
		rec.CompletedAt, _ = parseTime(completed.String)
	}
	return &rec, nil
}

// parseTime handles the timestamp formats SQLite hands back.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
