// Package training cleans Framingham-style records and fits, applies and
// scores a logistic-regression classifier over them.
package training

import (
	"fmt"
	"math"
	"time"

	"github.com/theblitlabs/parity-ml/internal/codec"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

// Result contains the outcome of one training run. Scaler is the
// preprocessing fitted on the training data; predictions with Model must
// go through it.
type Result struct {
	Model     Model
	Scaler    *Scaler
	Accuracy  float64
	TrainRows int
	TestRows  int
	Duration  time.Duration
}

// Pipeline runs the clean, normalize, train and evaluate steps.
type Pipeline struct {
	trainer *LogisticRegression
}

func NewPipeline(trainer *LogisticRegression) *Pipeline {
	if trainer == nil {
		trainer = NewLogisticRegression()
	}
	return &Pipeline{trainer: trainer}
}

// TrainAndEvaluate fits a model on the training split of records and reports
// its accuracy on the test split.
func (p *Pipeline) TrainAndEvaluate(records []codec.Record) (*Result, error) {
	log := logger.WithComponent("training")
	start := time.Now()

	if len(records) == 0 {
		return nil, fmt.Errorf("failed to prepare dataset: %w", ErrEmptyDataset)
	}
	features, labels := SplitLabels(ToMatrix(records))
	scaler, err := FitScaler(features)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dataset: %w", err)
	}
	if err := scaler.Apply(features); err != nil {
		return nil, fmt.Errorf("failed to prepare dataset: %w", err)
	}

	ds, err := Split(features, labels)
	if err != nil {
		return nil, err
	}
	if len(ds.XTrain) == 0 {
		return nil, fmt.Errorf("training split: %w", ErrEmptyDataset)
	}

	model, err := p.trainer.Train(ds.XTrain, ds.YTrain)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}

	accuracy, err := ModelAccuracy(model, ds.XTest, ds.YTest)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate model: %w", err)
	}

	result := &Result{
		Model:     model,
		Scaler:    scaler,
		Accuracy:  accuracy,
		TrainRows: len(ds.XTrain),
		TestRows:  len(ds.XTest),
		Duration:  time.Since(start),
	}

	log.Info().
		Int("train_rows", result.TrainRows).
		Int("test_rows", result.TestRows).
		Int("iterations", p.trainer.Iterations).
		Float64("accuracy", accuracy).
		Dur("duration", result.Duration).
		Msg("Model trained")

	return result, nil
}

// PredictRecords labels every record with model. With a scaler, rows get the
// imputation and scaling fitted at training time. Without one, features are
// used as read and missing values contribute nothing. Either way each row is
// labelled independently of the others in the batch.
func (p *Pipeline) PredictRecords(model Model, scaler *Scaler, records []codec.Record) ([]float64, error) {
	if len(model) != codec.FeatureCount {
		return nil, fmt.Errorf("%w: model has %d coefficients, expected %d", ErrShapeMismatch, len(model), codec.FeatureCount)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("failed to prepare prediction input: %w", ErrEmptyDataset)
	}

	features, _ := SplitLabels(ToMatrix(records))
	if scaler != nil {
		if err := scaler.Apply(features); err != nil {
			return nil, fmt.Errorf("failed to prepare prediction input: %w", err)
		}
	} else {
		zeroMissing(features)
	}

	predictions, err := Predict(model, features)
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("training")
	log.Info().
		Int("rows", len(predictions)).
		Bool("scaled", scaler != nil).
		Msg("Predictions computed")

	return predictions, nil
}

func zeroMissing(features [][]float64) {
	for _, row := range features {
		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = 0
			}
		}
	}
}
