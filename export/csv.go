package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/hazyhaar/okpyeon/record"
)

// WriteCSV writes a header row and one row per record to w.
func WriteCSV(w io.Writer, cols []string, recs []record.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i, r := range recs {
		if err := cw.Write(Row(cols, r)); err != nil {
			return fmt.Errorf("export: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}

// WriteCSVFile writes records to a new CSV file at path.
func WriteCSVFile(path string, cols []string, recs []record.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := WriteCSV(f, cols, recs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}
