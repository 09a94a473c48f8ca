package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadVector parses one float per line. Blank lines are skipped.
func ReadVector(r io.Reader) ([]float64, error) {
	scanner := bufio.NewScanner(r)

	var values []float64
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vector: %w", err)
	}

	return values, nil
}

func WriteVector(w io.Writer, values []float64) error {
	bw := bufio.NewWriter(w)
	for _, v := range values {
		if _, err := bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64) + "\n"); err != nil {
			return fmt.Errorf("failed to write vector: %w", err)
		}
	}
	return bw.Flush()
}
