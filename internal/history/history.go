// Package history keeps a local SQLite log of optimization runs so that past
// results can be listed with the history command.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/backmassage/gltfpress/internal/failure"
	"github.com/backmassage/gltfpress/internal/stats"
)

// Memory opens a private in-memory database.
const Memory = ":memory:"

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL DEFAULT '',
    input_path TEXT NOT NULL DEFAULT '',
    output_path TEXT NOT NULL DEFAULT '',
    input_size INTEGER NOT NULL DEFAULT 0,
    output_size INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL DEFAULT '',
    elapsed_ms INTEGER NOT NULL DEFAULT 0,

    -- NULL when the report did not mention the count
    vertices INTEGER,
    triangles INTEGER,
    meshes INTEGER,
    materials INTEGER,
    textures INTEGER,

    result TEXT NOT NULL,         -- success, failure
    failure_kind TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Entry is one stored run.
type Entry struct {
	ID          int64
	Record      stats.RunStatistics
	Success     bool
	FailureKind string
	Message     string
}

// Store is a run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path, creating parent directories
// as needed. Use Memory for a throwaway store.
func Open(path string) (*Store, error) {
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores one finished run. A nil runErr marks it successful.
func (s *Store) Record(ctx context.Context, rec stats.RunStatistics, runErr error) (int64, error) {
	result, kind, msg := "success", "", ""
	if runErr != nil {
		result = "failure"
		kind = failure.KindOf(runErr).String()
		msg = runErr.Error()
	}
	started := ""
	if !rec.StartTime.IsZero() {
		started = rec.StartTime.UTC().Format(timeLayout)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, input_path, output_path, input_size, output_size,
			started_at, elapsed_ms, vertices, triangles, meshes, materials, textures,
			result, failure_kind, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.InputPath, rec.OutputPath, rec.InputSizeBytes, rec.OutputSizeBytes,
		started, rec.Elapsed.Milliseconds(),
		nullInt(rec.Counts.Vertices), nullInt(rec.Counts.Triangles), nullInt(rec.Counts.Meshes),
		nullInt(rec.Counts.Materials), nullInt(rec.Counts.Textures),
		result, kind, msg,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, input_path, output_path, input_size, output_size,
			started_at, elapsed_ms, vertices, triangles, meshes, materials, textures,
			result, failure_kind, message
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started, result string
		var elapsedMS int64
		var vert, tri, mesh, mat, tex sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Record.RunID, &e.Record.InputPath, &e.Record.OutputPath,
			&e.Record.InputSizeBytes, &e.Record.OutputSizeBytes, &started, &elapsedMS,
			&vert, &tri, &mesh, &mat, &tex, &result, &e.FailureKind, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if started != "" {
			if ts, err := time.Parse(timeLayout, started); err == nil {
				e.Record.StartTime = ts
			}
		}
		e.Record.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if !e.Record.StartTime.IsZero() {
			e.Record.EndTime = e.Record.StartTime.Add(e.Record.Elapsed)
		}
		e.Record.Counts = stats.Counts{
			Vertices:  intPtr(vert),
			Triangles: intPtr(tri),
			Meshes:    intPtr(mesh),
			Materials: intPtr(mat),
			Textures:  intPtr(tex),
		}
		e.Success = result == "success"
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes runs that started before cutoff. Returns the number removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE started_at != '' AND started_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// Logger is the subset of the logger the Recorder reports through.
type Logger interface {
	Warn(string, ...interface{})
}

// Recorder adapts a Store to pipeline.Observer. Write failures are logged
// and never fail the run.
type Recorder struct {
	Store *Store
	Log   Logger
}

// ObserveRun stores the run.
func (r Recorder) ObserveRun(rec stats.RunStatistics, err error) {
	if _, werr := r.Store.Record(context.Background(), rec, err); werr != nil && r.Log != nil {
		r.Log.Warn("Could not record history: %v", werr)
	}
}
