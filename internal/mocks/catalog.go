package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/theblitlabs/parity-ml/internal/catalog"
	"github.com/theblitlabs/parity-ml/internal/transfer"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Record(ctx context.Context, artifact *catalog.Artifact) error {
	args := m.Called(ctx, artifact)
	return args.Error(0)
}

func (m *MockCatalog) List(ctx context.Context) ([]catalog.Artifact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Artifact), args.Error(1)
}

func (m *MockCatalog) Latest(ctx context.Context, purpose transfer.Purpose) (*catalog.Artifact, error) {
	args := m.Called(ctx, purpose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Artifact), args.Error(1)
}
