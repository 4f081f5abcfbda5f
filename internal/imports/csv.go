package imports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Row is one data row of an uploaded CSV, keyed by the header names. Line
// counts the physical line in the file, starting at 2.
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value of a column, empty when the column is absent.
func (r Row) Get(name string) string {
	return r.Fields[name]
}

// ReadRows parses a CSV stream into header-keyed rows. Files exported from
// spreadsheet tools often carry a UTF-8 BOM, which is stripped before the
// header is read. All values are whitespace-trimmed.
func ReadRows(r io.Reader) ([]Row, error) {
	decoded := transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("imports: file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("imports: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.ToLower(header[i]))
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("imports: read line %d: %w", line, err)
		}
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				fields[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, Row{Line: line, Fields: fields})
	}
	return rows, nil
}
