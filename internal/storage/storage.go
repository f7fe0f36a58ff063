// Package storage persists simulation runs.
package storage

import (
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("storage: run not found")

type RunMetadata struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Timestamp time.Time          `json:"timestamp"`
	Duration  float64            `json:"duration"`
	Steps     int                `json:"steps"`
	Dt        float64            `json:"dt"`
	Params    map[string]float64 `json:"params,omitempty"`
	Variables []string           `json:"variables"`
	Failures  int                `json:"failures"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Series is the sampled trajectory of one variable.
type Series struct {
	Name   string
	Values []float64
}

// Record is a complete run ready to be stored.
type Record struct {
	Meta   RunMetadata
	Times  []float64
	Series []Series
}

func (r *Record) validate() error {
	for _, s := range r.Series {
		if len(s.Values) != len(r.Times) {
			return fmt.Errorf("storage: series %s has %d samples, want %d", s.Name, len(s.Values), len(r.Times))
		}
	}
	return nil
}

// stamp fills the identifier, timestamp and variable list of a record
// about to be saved.
func (r *Record) stamp(now time.Time) {
	if r.Meta.Timestamp.IsZero() {
		r.Meta.Timestamp = now
	}
	if r.Meta.ID == "" {
		r.Meta.ID = fmt.Sprintf("%s_%d", r.Meta.Model, r.Meta.Timestamp.UnixNano())
	}
	r.Meta.Variables = make([]string, len(r.Series))
	for i, s := range r.Series {
		r.Meta.Variables[i] = s.Name
	}
}

type Store interface {
	Init() error
	Save(rec *Record) (string, error)
	List() ([]RunMetadata, error)
	Load(runID string) (*RunMetadata, error)
	LoadSeries(runID string) ([]float64, []Series, error)
	Close() error
}

// Open returns the store of the given kind rooted at path: a directory
// for "file", a database file for "sqlite".
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store kind: %s", kind)
	}
}
