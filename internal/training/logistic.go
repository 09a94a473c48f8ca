package training

import (
	"fmt"
	"math"
)

const (
	DefaultIterations   = 1000
	DefaultLearningRate = 0.01
	Threshold           = 0.5
)

// Model holds one coefficient per feature column.
type Model []float64

// LogisticRegression trains with full-batch gradient descent for a fixed
// number of iterations.
type LogisticRegression struct {
	Iterations   int
	LearningRate float64
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		Iterations:   DefaultIterations,
		LearningRate: DefaultLearningRate,
	}
}

func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func width(X [][]float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyDataset
	}
	cols := len(X[0])
	for i, row := range X {
		if len(row) != cols {
			return 0, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrShapeMismatch, i, len(row), cols)
		}
	}
	return cols, nil
}

// Train starts from all-zero coefficients and always runs every iteration.
func (t *LogisticRegression) Train(X [][]float64, y []float64) (Model, error) {
	cols, err := width(X)
	if err != nil {
		return nil, fmt.Errorf("training set: %w", err)
	}
	if len(y) != len(X) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, len(X), len(y))
	}

	m := float64(len(X))
	theta := make([]float64, cols)
	residual := make([]float64, len(X))
	gradient := make([]float64, cols)

	for iter := 0; iter < t.Iterations; iter++ {
		for i, row := range X {
			residual[i] = Sigmoid(dot(row, theta)) - y[i]
		}

		for j := range gradient {
			gradient[j] = 0
		}
		for i, row := range X {
			for j, v := range row {
				gradient[j] += v * residual[i]
			}
		}

		for j := range theta {
			theta[j] -= t.LearningRate * gradient[j] / m
		}
	}

	return theta, nil
}

// Predict labels each row 1 when sigmoid(x·θ) >= 0.5, otherwise 0.
func Predict(model Model, X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(model) {
			return nil, fmt.Errorf("%w: row %d has %d features, model has %d coefficients", ErrShapeMismatch, i, len(row), len(model))
		}
		if Sigmoid(dot(row, model)) >= Threshold {
			out[i] = 1
		}
	}
	return out, nil
}

// Accuracy is the fraction of positions where predicted equals actual.
func Accuracy(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, fmt.Errorf("%w: %d predictions, %d labels", ErrLengthMismatch, len(predicted), len(actual))
	}
	if len(actual) == 0 {
		return 0, ErrEmptyDataset
	}

	correct := 0
	for i := range actual {
		if predicted[i] == actual[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual)), nil
}

// ModelAccuracy predicts X and scores the result against y.
func ModelAccuracy(model Model, X [][]float64, y []float64) (float64, error) {
	predicted, err := Predict(model, X)
	if err != nil {
		return 0, err
	}
	return Accuracy(predicted, y)
}
