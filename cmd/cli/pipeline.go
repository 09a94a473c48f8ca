package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/theblitlabs/parity-ml/internal/config"
	"github.com/theblitlabs/parity-ml/internal/rpc"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

func RunTrain(ctx context.Context, configPath string, out io.Writer) error {
	log := logger.WithComponent("train")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, cfg)
	defer cancel()

	client, closeConn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeConn()

	reply, err := client.LaunchTraining(ctx, &rpc.TrainingRequest{Flag: true})
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	if reply.Message != "" {
		log.Warn().Str("message", reply.Message).Msg("Server did not train")
		fmt.Fprintln(out, reply.Message)
		return nil
	}

	log.Info().Float64("accuracy", reply.Accuracy).Msg("Training complete")
	fmt.Fprintf(out, "accuracy: %.4f\n", reply.Accuracy)
	return nil
}

func RunPredict(ctx context.Context, configPath string, out io.Writer) error {
	log := logger.WithComponent("predict")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, cfg)
	defer cancel()

	client, closeConn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeConn()

	reply, err := client.LaunchPrediction(ctx, &rpc.PredictionRequest{Flag: true})
	if err != nil {
		return fmt.Errorf("prediction failed: %w", err)
	}
	if reply.Message != "" {
		log.Warn().Str("message", reply.Message).Msg("Server did not predict")
		fmt.Fprintln(out, reply.Message)
		return nil
	}

	log.Info().Msg("Prediction complete")
	fmt.Fprintln(out, reply.Prediction)
	return nil
}
