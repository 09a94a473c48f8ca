package training

import (
	"fmt"
	"math"

	"github.com/theblitlabs/parity-ml/internal/codec"
)

// ColumnRange is the observed span of one column.
type ColumnRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Normalize rescales every column of matrix in place to [0,1] using min-max
// scaling. Constant columns are left unchanged and NaN values are ignored when
// computing ranges. The ranges used are returned.
func Normalize(matrix [][]float64) ([]ColumnRange, error) {
	if len(matrix) == 0 {
		return nil, nil
	}

	cols := len(matrix[0])
	ranges := make([]ColumnRange, cols)
	for j := range ranges {
		ranges[j] = ColumnRange{Min: math.Inf(1), Max: math.Inf(-1)}
	}

	for _, row := range matrix {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: rows have %d and %d columns", ErrShapeMismatch, cols, len(row))
		}
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if v < ranges[j].Min {
				ranges[j].Min = v
			}
			if v > ranges[j].Max {
				ranges[j].Max = v
			}
		}
	}

	for j, r := range ranges {
		span := r.Max - r.Min
		if math.IsInf(span, 0) || !(span > 0) {
			continue
		}
		for _, row := range matrix {
			row[j] = (row[j] - r.Min) / span
		}
	}
	return ranges, nil
}

// NormalizeRecords scales all fifteen columns of records, label included.
func NormalizeRecords(records []codec.Record) ([][]float64, error) {
	matrix := ToMatrix(records)
	if _, err := Normalize(matrix); err != nil {
		return nil, err
	}
	return matrix, nil
}
