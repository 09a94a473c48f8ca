package training

import (
	"encoding/json"
	"fmt"
	"math"
)

// Scaler holds the per-column imputation means and min-max ranges fitted on
// a training set. Applying it transforms each row on its own, so a row maps
// to the same features whatever other rows it arrives with.
type Scaler struct {
	Means  []float64     `json:"means"`
	Ranges []ColumnRange `json:"ranges"`
}

// FitScaler computes means and ranges over the present values of every
// column. A column with no present values is an error.
func FitScaler(features [][]float64) (*Scaler, error) {
	if len(features) == 0 {
		return nil, ErrEmptyDataset
	}

	cols := len(features[0])
	s := &Scaler{
		Means:  make([]float64, cols),
		Ranges: make([]ColumnRange, cols),
	}
	for j := 0; j < cols; j++ {
		sum, present := 0.0, 0
		r := ColumnRange{Min: math.Inf(1), Max: math.Inf(-1)}
		for _, row := range features {
			if len(row) != cols {
				return nil, fmt.Errorf("%w: rows have %d and %d columns", ErrShapeMismatch, cols, len(row))
			}
			v := row[j]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			present++
			r.Min = math.Min(r.Min, v)
			r.Max = math.Max(r.Max, v)
		}
		if present == 0 {
			return nil, fmt.Errorf("%w: column %d", ErrEmptyColumn, j)
		}
		s.Means[j] = sum / float64(present)
		s.Ranges[j] = r
	}
	return s, nil
}

// Apply imputes and rescales features in place. Values outside the fitted
// range land outside [0,1]; constant columns are left unchanged.
func (s *Scaler) Apply(features [][]float64) error {
	cols := len(s.Means)
	for _, row := range features {
		if len(row) != cols {
			return fmt.Errorf("%w: row has %d columns, scaler expects %d", ErrShapeMismatch, len(row), cols)
		}
		for j, v := range row {
			if math.IsNaN(v) {
				v = s.Means[j]
			}
			if span := s.Ranges[j].Max - s.Ranges[j].Min; span > 0 {
				v = (v - s.Ranges[j].Min) / span
			}
			row[j] = v
		}
	}
	return nil
}

func (s *Scaler) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeScaler parses an encoded scaler. Empty data means no scaler was
// saved and yields nil.
func DecodeScaler(data []byte) (*Scaler, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode scaler: %w", err)
	}
	if len(s.Means) != len(s.Ranges) {
		return nil, fmt.Errorf("%w: scaler has %d means and %d ranges", ErrShapeMismatch, len(s.Means), len(s.Ranges))
	}
	return &s, nil
}
