package codec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const missingValue = "NA"

// ReadCSV parses records from a headered CSV. Columns are matched by header
// name so their order in the file does not matter; extra columns are ignored.
// Real-valued fields may be empty or NA.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing CSV header", ErrMalformed)
		}
		return nil, readError("failed to read CSV header", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	positions := make([]int, FieldCount)
	for i, name := range Columns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: CSV header is missing column %q", ErrMalformed, name)
		}
		positions[i] = pos
	}

	var records []Record
	values := make([]float64, FieldCount)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError("failed to read CSV record", err)
		}

		for i, pos := range positions {
			v, err := parseField(row[pos], integerColumns[i])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d, column %s: %v", ErrMalformed, line, Columns[i], err)
			}
			values[i] = v
		}

		rec, err := RecordFromValues(values)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// readError marks CSV syntax and field-count errors as malformed input and
// leaves reader failures as they are.
func readError(msg string, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func parseField(raw string, integer bool) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, missingValue) {
		if integer {
			return 0, errors.New("value is required")
		}
		return math.NaN(), nil
	}
	if integer {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	}
	return strconv.ParseFloat(raw, 64)
}

// WriteCSV writes records with a header row. Missing values are written as NA.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Columns[:]); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, FieldCount)
	for _, rec := range records {
		for i, v := range rec.Values() {
			row[i] = formatField(v, integerColumns[i])
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatField(v float64, integer bool) string {
	if math.IsNaN(v) {
		return missingValue
	}
	if integer {
		return strconv.FormatUint(uint64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
