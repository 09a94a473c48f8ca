package server

import (
	"errors"

	"github.com/theblitlabs/parity-ml/internal/codec"
	"github.com/theblitlabs/parity-ml/internal/integrity"
	"github.com/theblitlabs/parity-ml/internal/storage"
	"github.com/theblitlabs/parity-ml/internal/training"
	"github.com/theblitlabs/parity-ml/internal/transfer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errInvalidSessionID = errors.New("invalid session id")

// toStatus maps domain errors onto gRPC status codes at the transport edge.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && status.Code(err) != codes.Unknown {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, integrity.ErrIntegrity):
		code = codes.InvalidArgument
	case errors.Is(err, transfer.ErrSessionNotFound):
		code = codes.NotFound
	case errors.Is(err, transfer.ErrInvalidFilename),
		errors.Is(err, transfer.ErrInvalidPurpose),
		errors.Is(err, transfer.ErrFilenameMismatch),
		errors.Is(err, errInvalidSessionID):
		code = codes.InvalidArgument
	case errors.Is(err, codec.ErrMalformed),
		errors.Is(err, codec.ErrUnsupportedExtension),
		errors.Is(err, training.ErrEmptyColumn),
		errors.Is(err, training.ErrEmptyDataset),
		errors.Is(err, training.ErrLengthMismatch),
		errors.Is(err, training.ErrShapeMismatch),
		errors.Is(err, storage.ErrNotFound):
		code = codes.FailedPrecondition
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
