package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/theblitlabs/parity-ml/internal/rpc"
)

type MockTransferClient struct {
	mock.Mock
}

func (m *MockTransferClient) PrimeSend(ctx context.Context, in *rpc.PrimeRequest) (*rpc.Ack, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rpc.Ack), args.Error(1)
}

func (m *MockTransferClient) SendFile(ctx context.Context, in *rpc.SendRequest) (*rpc.Ack, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rpc.Ack), args.Error(1)
}

func (m *MockTransferClient) FinishTransfer(ctx context.Context, in *rpc.FinishRequest) (*rpc.Ack, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rpc.Ack), args.Error(1)
}

func (m *MockTransferClient) LaunchTraining(ctx context.Context, in *rpc.TrainingRequest) (*rpc.TrainingReply, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rpc.TrainingReply), args.Error(1)
}

func (m *MockTransferClient) LaunchPrediction(ctx context.Context, in *rpc.PredictionRequest) (*rpc.PredictionReply, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rpc.PredictionReply), args.Error(1)
}
