package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/blocksim/internal/storage"
)

type ExportData struct {
	Model    string               `json:"model"`
	Dt       float64              `json:"dt"`
	Duration float64              `json:"duration"`
	Steps    int                  `json:"steps"`
	Params   map[string]float64   `json:"params,omitempty"`
	Times    []float64            `json:"times"`
	Values   map[string][]float64 `json:"values"`
	Metrics  map[string]float64   `json:"metrics"`
}

func newExportData(rec *storage.Record) ExportData {
	data := ExportData{
		Model:    rec.Meta.Model,
		Dt:       rec.Meta.Dt,
		Duration: rec.Meta.Duration,
		Steps:    rec.Meta.Steps,
		Params:   rec.Meta.Params,
		Times:    rec.Times,
		Values:   make(map[string][]float64, len(rec.Series)),
		Metrics:  rec.Meta.Metrics,
	}
	for _, s := range rec.Series {
		data.Values[s.Name] = s.Values
	}
	return data
}

// WriteJSON encodes rec. JSON has no NaN, so diverged samples must be
// absent from rec.
func WriteJSON(w io.Writer, rec *storage.Record) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(rec))
}

func ExportJSON(path string, rec *storage.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, rec)
}
