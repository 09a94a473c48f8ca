// Package server implements the transfer RPC service and hosts it next to the
// admin HTTP API.
package server

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/theblitlabs/parity-ml/internal/auth"
	"github.com/theblitlabs/parity-ml/internal/catalog"
	"github.com/theblitlabs/parity-ml/internal/codec"
	"github.com/theblitlabs/parity-ml/internal/events"
	"github.com/theblitlabs/parity-ml/internal/integrity"
	"github.com/theblitlabs/parity-ml/internal/rpc"
	"github.com/theblitlabs/parity-ml/internal/storage"
	"github.com/theblitlabs/parity-ml/internal/telemetry"
	"github.com/theblitlabs/parity-ml/internal/training"
	"github.com/theblitlabs/parity-ml/internal/transfer"
	"github.com/theblitlabs/parity-ml/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
)

const (
	MsgTrainingMissing = "The training dataset is missing"
	MsgTestingMissing  = "The testing dataset is missing"
	MsgModelMissing    = "The model coefficients are missing"
)

// TransferService receives verified uploads, persists them and runs the
// training and prediction pipelines over the latest primed artifacts.
type TransferService struct {
	sessions *transfer.Manager
	store    storage.Store
	catalog  catalog.Catalog
	pipeline *training.Pipeline
	events   events.Publisher
}

var _ rpc.TransferServer = (*TransferService)(nil)

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

func NewTransferService(sessions *transfer.Manager, store storage.Store, cat catalog.Catalog, pipeline *training.Pipeline, pub events.Publisher) *TransferService {
	if pipeline == nil {
		pipeline = training.NewPipeline(nil)
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	return &TransferService{
		sessions: sessions,
		store:    store,
		catalog:  cat,
		pipeline: pipeline,
		events:   pub,
	}
}

type primedEvent struct {
	SessionID string           `json:"session_id"`
	Filename  string           `json:"filename"`
	Purpose   transfer.Purpose `json:"purpose"`
	Subject   string           `json:"subject,omitempty"`
}

type rejectedEvent struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
	Reason    string `json:"reason"`
}

type trainingEvent struct {
	Filename  string  `json:"filename"`
	Model     string  `json:"model"`
	Accuracy  float64 `json:"accuracy"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

type predictionEvent struct {
	Filename string `json:"filename"`
	Model    string `json:"model"`
	Rows     int    `json:"rows"`
}

// trainedModelName is where the coefficients trained on dataset are saved.
func trainedModelName(dataset string) string {
	return strings.TrimSuffix(dataset, codec.KindRecords.Extension()) + ".model" + codec.KindVector.Extension()
}

// scalerName is the sidecar holding the preprocessing a model was trained
// with. Uploaded models have an empty one.
func scalerName(model string) string {
	return strings.TrimSuffix(model, codec.KindVector.Extension()) + ".scaler.json"
}

func parseSessionID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", errInvalidSessionID, raw)
	}
	return id, nil
}

func (s *TransferService) PrimeSend(ctx context.Context, req *rpc.PrimeRequest) (*rpc.Ack, error) {
	if err := transfer.ValidateFilename(req.Filename, req.Purpose); err != nil {
		return nil, toStatus(err)
	}
	if err := s.store.Create(ctx, req.Filename); err != nil {
		return nil, toStatus(fmt.Errorf("failed to create artifact: %w", err))
	}
	if req.Purpose == transfer.PurposeModelCoefficients {
		if err := s.store.Create(ctx, scalerName(req.Filename)); err != nil {
			return nil, toStatus(fmt.Errorf("failed to reset model scaler: %w", err))
		}
	}

	id, err := s.sessions.Prime(req.Filename, req.Purpose)
	if err != nil {
		return nil, toStatus(err)
	}
	telemetry.UpdateActiveSessions(len(s.sessions.Sessions()))

	event := primedEvent{
		SessionID: id.String(),
		Filename:  req.Filename,
		Purpose:   req.Purpose,
	}
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		event.Subject = claims.Subject
	}
	s.events.Publish(events.TypeTransferPrimed, event)

	return &rpc.Ack{Message: rpc.AckOK, SessionID: id.String()}, nil
}

func (s *TransferService) SendFile(ctx context.Context, req *rpc.SendRequest) (*rpc.Ack, error) {
	id, err := parseSessionID(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}

	if _, err := s.sessions.Append(id, req.Filename, req.Content, req.Digest); err != nil {
		if errors.Is(err, integrity.ErrIntegrity) {
			telemetry.RecordChunk(false, len(req.Content))
			telemetry.RecordIntegrityFailure("digest")
		}
		return nil, toStatus(err)
	}
	telemetry.RecordChunk(true, len(req.Content))

	return &rpc.Ack{Message: rpc.AckOK, SessionID: req.SessionID}, nil
}

func (s *TransferService) FinishTransfer(ctx context.Context, req *rpc.FinishRequest) (*rpc.Ack, error) {
	log := logger.WithComponent("server")

	id, err := parseSessionID(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}

	completed, err := s.sessions.Finish(id, req.Filename, req.MAC)
	if err != nil {
		if errors.Is(err, integrity.ErrIntegrity) {
			telemetry.RecordIntegrityFailure("mac")
			telemetry.UpdateActiveSessions(len(s.sessions.Sessions()))
			s.events.Publish(events.TypeTransferRejected, rejectedEvent{
				SessionID: req.SessionID,
				Filename:  req.Filename,
				Reason:    err.Error(),
			})
		}
		return nil, toStatus(err)
	}
	telemetry.UpdateActiveSessions(len(s.sessions.Sessions()))

	artifact, err := s.persist(ctx, completed)
	if err != nil {
		telemetry.RecordTransfer(completed.Purpose.String(), "failed")
		log.Error().Err(err).
			Str("session_id", req.SessionID).
			Str("filename", req.Filename).
			Msg("Failed to persist artifact")
		return nil, toStatus(err)
	}
	telemetry.RecordTransfer(completed.Purpose.String(), "success")

	s.events.Publish(events.TypeTransferFinished, artifact)

	log.Info().
		Str("session_id", req.SessionID).
		Str("filename", artifact.Filename).
		Str("purpose", artifact.Purpose.String()).
		Int64("size", artifact.Size).
		Str("location", artifact.Location).
		Msg("Artifact stored")

	return &rpc.Ack{Message: rpc.AckOK, SessionID: req.SessionID}, nil
}

// persist decodes a verified payload, writes the artifact and catalogs it.
func (s *TransferService) persist(ctx context.Context, completed *transfer.Completed) (*catalog.Artifact, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "artifact.persist")
	defer span.End()
	span.SetAttributes(
		attribute.String("artifact.filename", completed.Filename),
		attribute.String("artifact.purpose", completed.Purpose.String()),
		attribute.Int("artifact.payload_bytes", len(completed.Payload)),
	)

	data, err := codec.DecodeFile(completed.Purpose.Kind(), completed.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	location, err := s.store.Write(ctx, completed.Filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to write artifact: %w", err)
	}

	artifact := &catalog.Artifact{
		SessionID: completed.SessionID,
		Filename:  completed.Filename,
		Purpose:   completed.Purpose,
		Size:      int64(len(data)),
		MAC:       hex.EncodeToString(completed.MAC),
		Location:  location,
		CreatedAt: time.Now().UTC(),
	}
	if s.catalog != nil {
		if err := s.catalog.Record(ctx, artifact); err != nil {
			return nil, fmt.Errorf("failed to catalog artifact: %w", err)
		}
	}
	return artifact, nil
}

func (s *TransferService) readRecords(ctx context.Context, name string) ([]codec.Record, error) {
	data, err := s.store.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	return codec.ReadCSV(bytes.NewReader(data))
}

func (s *TransferService) LaunchTraining(ctx context.Context, _ *rpc.TrainingRequest) (*rpc.TrainingReply, error) {
	log := logger.WithComponent("server")

	name, ok := s.sessions.LastPrimed(transfer.PurposeTraining)
	if !ok {
		log.Warn().Msg("Training requested without a training dataset")
		return &rpc.TrainingReply{Message: MsgTrainingMissing, Accuracy: 0}, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "training.run")
	defer span.End()
	span.SetAttributes(attribute.String("training.dataset", name))

	start := time.Now()
	result, err := s.train(ctx, name)
	if err != nil {
		telemetry.RecordTraining(ctx, "train", "failed", time.Since(start))
		span.RecordError(err)
		log.Error().Err(err).Str("dataset", name).Msg("Training failed")
		return nil, toStatus(err)
	}
	telemetry.RecordTraining(ctx, "train", "success", result.Duration)
	telemetry.RecordAccuracy(result.Accuracy)
	span.SetAttributes(attribute.Float64("training.accuracy", result.Accuracy))

	model, err := s.saveModel(ctx, name, result)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("dataset", name).Msg("Failed to save trained model")
		return nil, toStatus(err)
	}

	s.events.Publish(events.TypeTrainingCompleted, trainingEvent{
		Filename:  name,
		Model:     model.Filename,
		Accuracy:  result.Accuracy,
		TrainRows: result.TrainRows,
		TestRows:  result.TestRows,
	})

	return &rpc.TrainingReply{Accuracy: result.Accuracy}, nil
}

func (s *TransferService) train(ctx context.Context, name string) (*training.Result, error) {
	records, err := s.readRecords(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load training dataset %q: %w", name, err)
	}
	return s.pipeline.TrainAndEvaluate(records)
}

// saveModel stores the trained coefficients and their scaler, catalogs the
// model and makes it the one predictions use.
func (s *TransferService) saveModel(ctx context.Context, dataset string, result *training.Result) (*catalog.Artifact, error) {
	name := trainedModelName(dataset)

	var buf bytes.Buffer
	if err := codec.WriteVector(&buf, result.Model); err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	location, err := s.store.Write(ctx, name, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to write model: %w", err)
	}

	scaler, err := result.Scaler.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode scaler: %w", err)
	}
	if _, err := s.store.Write(ctx, scalerName(name), scaler); err != nil {
		return nil, fmt.Errorf("failed to write scaler: %w", err)
	}

	artifact := &catalog.Artifact{
		SessionID: uuid.New(),
		Filename:  name,
		Purpose:   transfer.PurposeModelCoefficients,
		Size:      int64(buf.Len()),
		MAC:       hex.EncodeToString(s.sessions.Sign(codec.EncodeVector(result.Model))),
		Location:  location,
		CreatedAt: time.Now().UTC(),
	}
	if s.catalog != nil {
		if err := s.catalog.Record(ctx, artifact); err != nil {
			return nil, fmt.Errorf("failed to catalog model: %w", err)
		}
	}

	if err := s.sessions.SetLastPrimed(name, transfer.PurposeModelCoefficients); err != nil {
		return nil, err
	}
	return artifact, nil
}

func (s *TransferService) LaunchPrediction(ctx context.Context, _ *rpc.PredictionRequest) (*rpc.PredictionReply, error) {
	log := logger.WithComponent("server")

	input, ok := s.sessions.LastPrimed(transfer.PurposePredictionInput)
	if !ok {
		log.Warn().Msg("Prediction requested without a testing dataset")
		return &rpc.PredictionReply{Message: MsgTestingMissing}, nil
	}
	modelName, ok := s.sessions.LastPrimed(transfer.PurposeModelCoefficients)
	if !ok {
		log.Warn().Msg("Prediction requested without model coefficients")
		return &rpc.PredictionReply{Message: MsgModelMissing}, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "prediction.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("prediction.dataset", input),
		attribute.String("prediction.model", modelName),
	)

	start := time.Now()
	predictions, err := s.predict(ctx, input, modelName)
	if err != nil {
		telemetry.RecordTraining(ctx, "predict", "failed", time.Since(start))
		span.RecordError(err)
		log.Error().Err(err).
			Str("dataset", input).
			Str("model", modelName).
			Msg("Prediction failed")
		return nil, toStatus(err)
	}
	telemetry.RecordTraining(ctx, "predict", "success", time.Since(start))

	encoded, err := json.Marshal(predictions)
	if err != nil {
		return nil, toStatus(fmt.Errorf("failed to encode predictions: %w", err))
	}

	s.events.Publish(events.TypePredictionDone, predictionEvent{
		Filename: input,
		Model:    modelName,
		Rows:     len(predictions),
	})

	return &rpc.PredictionReply{Prediction: string(encoded)}, nil
}

func (s *TransferService) predict(ctx context.Context, input, modelName string) ([]float64, error) {
	records, err := s.readRecords(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to load testing dataset %q: %w", input, err)
	}

	raw, err := s.store.Read(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %q: %w", modelName, err)
	}
	coefficients, err := codec.ReadVector(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse model %q: %w", modelName, err)
	}

	scaler, err := s.loadScaler(ctx, modelName)
	if err != nil {
		return nil, err
	}

	return s.pipeline.PredictRecords(training.Model(coefficients), scaler, records)
}

// loadScaler returns the preprocessing saved with a trained model, or nil
// when the model was uploaded.
func (s *TransferService) loadScaler(ctx context.Context, model string) (*training.Scaler, error) {
	raw, err := s.store.Read(ctx, scalerName(model))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scaler for %q: %w", model, err)
	}
	scaler, err := training.DecodeScaler(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scaler for %q: %w", model, err)
	}
	return scaler, nil
}
