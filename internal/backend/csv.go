package backend

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ImportRow is a parsed import record and the line it came from
type ImportRow struct {
	Line    int
	Product ProductRequest
}

var exportColumns = []string{"id", "name", "category", "price", "stock", "description", "createdAt", "updatedAt"}

// EncodeCSV writes products with a header row
func EncodeCSV(products []Product) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportColumns); err != nil {
		return nil, err
	}
	for _, p := range products {
		record := []string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			p.Category,
			strconv.FormatFloat(p.Price, 'f', -1, 64),
			strconv.Itoa(p.Stock),
			p.Description,
			p.CreatedAt.Format(time.RFC3339),
			p.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCSV reads product rows. Columns are matched by header name, so id
// and timestamp columns from an export are accepted and ignored. Rows that
// fail to parse are reported with their line number and skipped.
func DecodeCSV(r io.Reader) ([]ImportRow, []ImportFailure, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("import file is empty")
		}
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := columns["name"]; !ok {
		return nil, nil, fmt.Errorf("import file has no name column")
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []ImportRow
	var failed []ImportFailure
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				failed = append(failed, ImportFailure{Line: parseErr.Line, Error: parseErr.Err.Error()})
				continue
			}
			return nil, nil, err
		}
		line, _ := reader.FieldPos(0)

		row := ProductRequest{
			Name:        field(record, "name"),
			Category:    field(record, "category"),
			Description: field(record, "description"),
		}
		if v := field(record, "price"); v != "" {
			if row.Price, err = strconv.ParseFloat(v, 64); err != nil {
				failed = append(failed, ImportFailure{Line: line, Error: fmt.Sprintf("invalid price %q", v)})
				continue
			}
		}
		if v := field(record, "stock"); v != "" {
			if row.Stock, err = strconv.Atoi(v); err != nil {
				failed = append(failed, ImportFailure{Line: line, Error: fmt.Sprintf("invalid stock %q", v)})
				continue
			}
		}
		rows = append(rows, ImportRow{Line: line, Product: row})
	}
	return rows, failed, nil
}
