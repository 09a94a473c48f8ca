package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Kind selects the schema an artifact is encoded with.
type Kind int

const (
	KindRecords Kind = iota + 1
	KindVector
)

var ErrUnsupportedExtension = errors.New("unsupported file extension")

func (k Kind) String() string {
	switch k {
	case KindRecords:
		return "records"
	case KindVector:
		return "vector"
	default:
		return "unknown"
	}
}

// Extension returns the file extension carrying this kind.
func (k Kind) Extension() string {
	switch k {
	case KindRecords:
		return ".csv"
	case KindVector:
		return ".txt"
	default:
		return ""
	}
}

// KindForFilename maps .csv to records and .txt to a coefficient vector.
func KindForFilename(name string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return KindRecords, nil
	case ".txt":
		return KindVector, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedExtension, name)
	}
}

// EncodeFile reads a source artifact and produces its transfer payload.
func EncodeFile(kind Kind, r io.Reader) ([]byte, error) {
	switch kind {
	case KindRecords:
		records, err := ReadCSV(r)
		if err != nil {
			return nil, err
		}
		return EncodeRecords(records), nil
	case KindVector:
		values, err := ReadVector(r)
		if err != nil {
			return nil, err
		}
		return EncodeVector(values), nil
	default:
		return nil, fmt.Errorf("unknown artifact kind %d", kind)
	}
}

// DecodeFile turns a verified transfer payload back into the on-disk artifact
// bytes (CSV or newline-delimited floats).
func DecodeFile(kind Kind, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case KindRecords:
		records, err := DecodeRecords(payload)
		if err != nil {
			return nil, err
		}
		if err := WriteCSV(&buf, records); err != nil {
			return nil, err
		}
	case KindVector:
		values, err := DecodeVector(payload)
		if err != nil {
			return nil, err
		}
		if err := WriteVector(&buf, values); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown artifact kind %d", kind)
	}
	return buf.Bytes(), nil
}
