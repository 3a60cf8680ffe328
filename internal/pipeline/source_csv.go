package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"time"
)

// ── Source errors ──────────────────────────────────────────
// Shared by the file-based readers so callers can classify
// failures with errors.Is.

var (
	ErrSourceNotFound = errors.New("source file not found")
	ErrSourceParse    = errors.New("source parse failure")
	ErrSourceEmpty    = errors.New("source is empty")
	ErrMissingKey     = errors.New("expected key not found")
)

// ── CSV source ─────────────────────────────────────────────

// ReadCSV extracts rows from a CSV file with a header row. Rows
// shorter than the header simply omit the trailing fields. The
// file's modification time is returned so the caller can flag
// stale data.
func ReadCSV(path string) ([]RawRecord, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // tolerate ragged rows; validation decides

	records, err := reader.ReadAll()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %s: %v", ErrSourceParse, path, err)
	}
	if len(records) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrSourceEmpty, path)
	}

	headers := records[0]
	rows := make([]RawRecord, 0, len(records)-1)
	for _, row := range records[1:] {
		data := make(RawRecord, len(headers))
		for j, h := range headers {
			if j < len(row) {
				data[h] = row[j]
			}
		}
		rows = append(rows, data)
	}

	return rows, info.ModTime(), nil
}
