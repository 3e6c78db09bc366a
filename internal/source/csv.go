package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/waycore/waykb/internal/entry"
)

// ParseCSV decodes a CSV source file into flat records, one per data
// row, keyed by the header row. All values stay strings; numeric
// coercion happens downstream during extraction.
func ParseCSV(path string) ([]entry.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var records []entry.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		rec := make(entry.Record, len(header))
		for i, h := range header {
			if h == "" || i >= len(row) {
				continue
			}
			rec[h] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}
