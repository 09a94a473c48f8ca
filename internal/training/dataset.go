package training

import (
	"errors"
	"fmt"
	"math"

	"github.com/theblitlabs/parity-ml/internal/codec"
)

var (
	ErrEmptyColumn    = errors.New("feature column has no present values")
	ErrEmptyDataset   = errors.New("empty dataset")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrShapeMismatch  = errors.New("shape mismatch")
)

// TestEvery puts row i in the test set when i%TestEvery == 0.
const TestEvery = 5

// Dataset is a deterministic train/test partition of cleaned rows.
type Dataset struct {
	XTrain [][]float64
	YTrain []float64
	XTest  [][]float64
	YTest  []float64
}

// ToMatrix converts records into rows of all fifteen columns in field order.
func ToMatrix(records []codec.Record) [][]float64 {
	matrix := make([][]float64, len(records))
	for i, r := range records {
		matrix[i] = r.Values()
	}
	return matrix
}

// SplitLabels separates the last column of every row from the features.
func SplitLabels(matrix [][]float64) ([][]float64, []float64) {
	features := make([][]float64, len(matrix))
	labels := make([]float64, len(matrix))
	for i, row := range matrix {
		last := len(row) - 1
		features[i] = append([]float64(nil), row[:last]...)
		labels[i] = row[last]
	}
	return features, labels
}

// Impute replaces NaN values in each column with the mean of the column's
// present values. A column with no present values is an error.
func Impute(features [][]float64) error {
	if len(features) == 0 {
		return nil
	}

	cols := len(features[0])
	for _, row := range features {
		if len(row) != cols {
			return fmt.Errorf("%w: rows have %d and %d columns", ErrShapeMismatch, cols, len(row))
		}
	}

	for j := 0; j < cols; j++ {
		sum, present := 0.0, 0
		for _, row := range features {
			if !math.IsNaN(row[j]) {
				sum += row[j]
				present++
			}
		}
		if present == len(features) {
			continue
		}
		if present == 0 {
			return fmt.Errorf("%w: column %d", ErrEmptyColumn, j)
		}

		mean := sum / float64(present)
		for _, row := range features {
			if math.IsNaN(row[j]) {
				row[j] = mean
			}
		}
	}
	return nil
}

// Split partitions rows by index, preserving order within each subset.
func Split(features [][]float64, labels []float64) (*Dataset, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, len(features), len(labels))
	}

	testRows := (len(features) + TestEvery - 1) / TestEvery
	ds := &Dataset{
		XTrain: make([][]float64, 0, len(features)-testRows),
		YTrain: make([]float64, 0, len(features)-testRows),
		XTest:  make([][]float64, 0, testRows),
		YTest:  make([]float64, 0, testRows),
	}

	for i := range features {
		if i%TestEvery == 0 {
			ds.XTest = append(ds.XTest, features[i])
			ds.YTest = append(ds.YTest, labels[i])
		} else {
			ds.XTrain = append(ds.XTrain, features[i])
			ds.YTrain = append(ds.YTrain, labels[i])
		}
	}
	return ds, nil
}

// Features returns the imputed feature rows and the label column of records.
func Features(records []codec.Record) ([][]float64, []float64, error) {
	features, labels := SplitLabels(ToMatrix(records))
	if err := Impute(features); err != nil {
		return nil, nil, err
	}
	return features, labels, nil
}

// Clean imputes missing features and splits records into train and test sets.
func Clean(records []codec.Record) (*Dataset, error) {
	features, labels, err := Features(records)
	if err != nil {
		return nil, err
	}
	return Split(features, labels)
}
