package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// FileStore keeps one directory per run holding metadata.json and
// values.csv (a time column followed by one column per variable).
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Save(rec *Record) (string, error) {
	if err := rec.validate(); err != nil {
		return "", err
	}
	rec.stamp(time.Now())
	runDir := filepath.Join(s.baseDir, rec.Meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec.Meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "values.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	header := []string{"time"}
	for _, series := range rec.Series {
		header = append(header, series.Name)
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i, t := range rec.Times {
		row := []string{strconv.FormatFloat(t, 'g', -1, 64)}
		for _, series := range rec.Series {
			row = append(row, strconv.FormatFloat(series.Values[i], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return rec.Meta.ID, nil
}

// List returns every readable run, oldest first.
func (s *FileStore) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *FileStore) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", runID, err)
	}

	return &meta, nil
}

func (s *FileStore) LoadSeries(runID string) ([]float64, []Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "values.csv"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return []float64{}, []Series{}, nil
	}

	header := records[0]
	series := make([]Series, len(header)-1)
	for j := range series {
		series[j] = Series{Name: header[j+1], Values: make([]float64, 0, len(records)-1)}
	}
	times := make([]float64, 0, len(records)-1)

	for i, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		times = append(times, t)
		for j := range series {
			v, err := strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d, column %s: %w", i+1, series[j].Name, err)
			}
			series[j].Values = append(series[j].Values, v)
		}
	}

	return times, series, nil
}
