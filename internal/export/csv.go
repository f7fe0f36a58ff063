package export

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/blocksim/internal/storage"
)

// WriteCSV writes a time column followed by one column per series.
func WriteCSV(w io.Writer, rec *storage.Record) error {
	cw := csv.NewWriter(w)
	header := []string{"time"}
	for _, s := range rec.Series {
		header = append(header, s.Name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, t := range rec.Times {
		row := []string{strconv.FormatFloat(t, 'f', 6, 64)}
		for _, s := range rec.Series {
			row = append(row, strconv.FormatFloat(s.Values[i], 'f', 6, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ExportCSV(path string, rec *storage.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCSV(file, rec)
}
