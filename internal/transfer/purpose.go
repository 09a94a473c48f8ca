package transfer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/theblitlabs/parity-ml/internal/codec"
)

// Purpose tags what a transferred artifact will be used for.
type Purpose int

const (
	PurposeUnknown Purpose = iota
	PurposeTraining
	PurposePredictionInput
	PurposeModelCoefficients
)

var (
	ErrInvalidPurpose  = errors.New("invalid transfer purpose")
	ErrInvalidFilename = errors.New("invalid filename")
)

var Purposes = []Purpose{PurposeTraining, PurposePredictionInput, PurposeModelCoefficients}

func (p Purpose) String() string {
	switch p {
	case PurposeTraining:
		return "training"
	case PurposePredictionInput:
		return "prediction"
	case PurposeModelCoefficients:
		return "model"
	default:
		return "unknown"
	}
}

func ParsePurpose(s string) (Purpose, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "training", "train":
		return PurposeTraining, nil
	case "prediction", "predict":
		return PurposePredictionInput, nil
	case "model", "coefficients", "coefs":
		return PurposeModelCoefficients, nil
	default:
		return PurposeUnknown, fmt.Errorf("%w: %q", ErrInvalidPurpose, s)
	}
}

func (p Purpose) Valid() bool {
	return p >= PurposeTraining && p <= PurposeModelCoefficients
}

// Kind is the codec schema artifacts of this purpose are encoded with.
func (p Purpose) Kind() codec.Kind {
	if p == PurposeModelCoefficients {
		return codec.KindVector
	}
	return codec.KindRecords
}

func (p Purpose) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPurpose, int(p))
	}
	return []byte(p.String()), nil
}

func (p *Purpose) UnmarshalText(text []byte) error {
	parsed, err := ParsePurpose(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ValidateFilename checks that name is a bare file name whose extension
// matches the schema of the purpose. Path components are refused so that
// artifacts always land inside the storage root.
func ValidateFilename(name string, purpose Purpose) error {
	if !purpose.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPurpose, int(purpose))
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q must be a bare file name", ErrInvalidFilename, name)
	}

	kind, err := codec.KindForFilename(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilename, err)
	}
	if kind != purpose.Kind() {
		return fmt.Errorf("%w: %s data must use a %s file, got %q", ErrInvalidFilename, purpose, purpose.Kind().Extension(), name)
	}
	return nil
}
