package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	metadata   BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS series (
	run_id   TEXT NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE TABLE IF NOT EXISTS samples (
	run_id   TEXT NOT NULL,
	step     INTEGER NOT NULL,
	time     REAL NOT NULL,
	position INTEGER NOT NULL,
	value    REAL,
	PRIMARY KEY (run_id, position, step)
);
CREATE TABLE IF NOT EXISTS times (
	run_id TEXT NOT NULL,
	step   INTEGER NOT NULL,
	time   REAL NOT NULL,
	PRIMARY KEY (run_id, step)
);`

// SQLiteStore keeps every run in a single SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "runs.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Save(rec *Record) (runID string, retErr error) {
	if err := rec.validate(); err != nil {
		return "", err
	}
	rec.stamp(time.Now())
	meta, err := json.Marshal(rec.Meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.Exec(`INSERT INTO runs (id, model, created_at, metadata) VALUES (?, ?, ?, ?)`,
		rec.Meta.ID, rec.Meta.Model, rec.Meta.Timestamp.UnixNano(), meta); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	timeStmt, err := tx.Prepare(`INSERT INTO times (run_id, step, time) VALUES (?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer timeStmt.Close()
	for i, t := range rec.Times {
		if _, err := timeStmt.Exec(rec.Meta.ID, i, t); err != nil {
			return "", fmt.Errorf("insert time %d: %w", i, err)
		}
	}

	seriesStmt, err := tx.Prepare(`INSERT INTO series (run_id, position, name) VALUES (?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer seriesStmt.Close()
	sampleStmt, err := tx.Prepare(`INSERT INTO samples (run_id, step, time, position, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer sampleStmt.Close()

	for p, series := range rec.Series {
		if _, err := seriesStmt.Exec(rec.Meta.ID, p, series.Name); err != nil {
			return "", fmt.Errorf("insert series %s: %w", series.Name, err)
		}
		for i, v := range series.Values {
			if _, err := sampleStmt.Exec(rec.Meta.ID, i, rec.Times[i], p, nullable(v)); err != nil {
				return "", fmt.Errorf("insert sample %s[%d]: %w", series.Name, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return rec.Meta.ID, nil
}

// List returns every run, oldest first.
func (s *SQLiteStore) List() ([]RunMetadata, error) {
	rows, err := s.db.Query(`SELECT metadata FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var meta RunMetadata
		if err := json.Unmarshal(payload, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Load(runID string) (*RunMetadata, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT metadata FROM runs WHERE id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}
	var meta RunMetadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *SQLiteStore) LoadSeries(runID string) ([]float64, []Series, error) {
	if _, err := s.Load(runID); err != nil {
		return nil, nil, err
	}

	times, err := s.loadTimes(runID)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(`SELECT position, name FROM series WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("select series: %w", err)
	}
	series := make([]Series, 0)
	for rows.Next() {
		var p int
		var name string
		if err := rows.Scan(&p, &name); err != nil {
			_ = rows.Close()
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		series = append(series, Series{Name: name, Values: make([]float64, len(times))})
	}
	_ = rows.Close()

	rows, err = s.db.Query(`SELECT position, step, value FROM samples WHERE run_id = ?`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("select samples: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p, step int
		var v sql.NullFloat64
		if err := rows.Scan(&p, &step, &v); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		if p >= len(series) || step >= len(times) {
			return nil, nil, fmt.Errorf("sample %d/%d of %s out of range", p, step, runID)
		}
		series[p].Values[step] = fromNullable(v)
	}
	return times, series, rows.Err()
}

func (s *SQLiteStore) loadTimes(runID string) ([]float64, error) {
	rows, err := s.db.Query(`SELECT time FROM times WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("select times: %w", err)
	}
	defer func() { _ = rows.Close() }()
	times := make([]float64, 0)
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// SQLite has no NaN; diverged samples are stored as NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
