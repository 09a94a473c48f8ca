package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Payload layout (big-endian):
//
//	records: [magic 1B][count 8B] then per record the 15 fields in column
//	         order, uint32 for integer-coded fields and float64 bits otherwise
//	vector:  [magic 1B][count 8B][float64 bits]*count
const (
	magicRecords byte = 0x52
	magicVector  byte = 0x56

	headerSize = 9
	recordSize = 7*4 + 8*8
)

func EncodeRecords(records []Record) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(records)*recordSize))
	buf.WriteByte(magicRecords)
	writeUint64(buf, uint64(len(records)))

	var scratch [8]byte
	for _, r := range records {
		for i, v := range r.Values() {
			if integerColumns[i] {
				binary.BigEndian.PutUint32(scratch[:4], uint32(v))
				buf.Write(scratch[:4])
				continue
			}
			binary.BigEndian.PutUint64(scratch[:], math.Float64bits(v))
			buf.Write(scratch[:])
		}
	}
	return buf.Bytes()
}

func DecodeRecords(data []byte) ([]Record, error) {
	count, body, err := readHeader(data, magicRecords)
	if err != nil {
		return nil, err
	}
	if count > uint64(len(body))/recordSize || uint64(len(body)) != count*recordSize {
		return nil, fmt.Errorf("%w: %d records need %d bytes, got %d", ErrMalformed, count, count*recordSize, len(body))
	}

	records := make([]Record, 0, count)
	values := make([]float64, FieldCount)
	r := bytes.NewReader(body)
	for n := uint64(0); n < count; n++ {
		for i := 0; i < FieldCount; i++ {
			if integerColumns[i] {
				var u uint32
				if err := binary.Read(r, binary.BigEndian, &u); err != nil {
					return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, n, err)
				}
				values[i] = float64(u)
				continue
			}
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, n, err)
			}
			values[i] = math.Float64frombits(bits)
		}
		rec, err := RecordFromValues(values)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func EncodeVector(values []float64) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(values)*8))
	buf.WriteByte(magicVector)
	writeUint64(buf, uint64(len(values)))
	for _, v := range values {
		writeUint64(buf, math.Float64bits(v))
	}
	return buf.Bytes()
}

func DecodeVector(data []byte) ([]float64, error) {
	count, body, err := readHeader(data, magicVector)
	if err != nil {
		return nil, err
	}
	if count > uint64(len(body))/8 || uint64(len(body)) != count*8 {
		return nil, fmt.Errorf("%w: %d values need %d bytes, got %d", ErrMalformed, count, count*8, len(body))
	}

	values := make([]float64, count)
	for i := range values {
		values[i] = math.Float64frombits(binary.BigEndian.Uint64(body[i*8:]))
	}
	return values, nil
}

// readHeader treats a zero-length payload as an empty collection.
func readHeader(data []byte, magic byte) (uint64, []byte, error) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	if len(data) < headerSize {
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformed, io.ErrUnexpectedEOF)
	}
	if data[0] != magic {
		return 0, nil, fmt.Errorf("%w: unexpected payload type 0x%02x", ErrMalformed, data[0])
	}
	return binary.BigEndian.Uint64(data[1:headerSize]), data[headerSize:], nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
