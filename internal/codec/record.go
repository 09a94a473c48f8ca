// Package codec encodes the fixed 15-column health record and flat
// coefficient vectors, both as transfer payloads and as on-disk artifacts.
package codec

import (
	"errors"
	"fmt"
	"math"
)

const (
	// FieldCount is the number of ordered fields in a Record.
	FieldCount = 15
	// FeatureCount excludes the trailing label column.
	FeatureCount = FieldCount - 1
)

var ErrMalformed = errors.New("malformed payload")

// Columns lists the record header in field order.
var Columns = [FieldCount]string{
	"male",
	"age",
	"currentSmoker",
	"cigsPerDay",
	"BPMeds",
	"prevalentStroke",
	"prevalentHyp",
	"diabetes",
	"totChol",
	"sysBP",
	"diaBP",
	"BMI",
	"heartRate",
	"glucose",
	"TenYearCHD",
}

// integerColumns marks the integer-coded fields; the rest are real-valued
// and may be missing (NaN).
var integerColumns = [FieldCount]bool{
	0: true, 1: true, 2: true, 5: true, 6: true, 7: true, 14: true,
}

type Record struct {
	Male            uint32
	Age             uint32
	CurrentSmoker   uint32
	CigsPerDay      float64
	BPMeds          float64
	PrevalentStroke uint32
	PrevalentHyp    uint32
	Diabetes        uint32
	TotChol         float64
	SysBP           float64
	DiaBP           float64
	BMI             float64
	HeartRate       float64
	Glucose         float64
	TenYearCHD      uint32
}

// Values returns the record as float64s in column order.
func (r Record) Values() []float64 {
	return []float64{
		float64(r.Male),
		float64(r.Age),
		float64(r.CurrentSmoker),
		r.CigsPerDay,
		r.BPMeds,
		float64(r.PrevalentStroke),
		float64(r.PrevalentHyp),
		float64(r.Diabetes),
		r.TotChol,
		r.SysBP,
		r.DiaBP,
		r.BMI,
		r.HeartRate,
		r.Glucose,
		float64(r.TenYearCHD),
	}
}

// RecordFromValues is the inverse of Values. Integer-coded fields must hold
// non-negative whole numbers.
func RecordFromValues(v []float64) (Record, error) {
	if len(v) != FieldCount {
		return Record{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformed, FieldCount, len(v))
	}

	ints := make(map[int]uint32, 7)
	for i, isInt := range integerColumns {
		if !isInt {
			continue
		}
		n, err := toUint32(v[i])
		if err != nil {
			return Record{}, fmt.Errorf("%w: field %s: %v", ErrMalformed, Columns[i], err)
		}
		ints[i] = n
	}

	return Record{
		Male:            ints[0],
		Age:             ints[1],
		CurrentSmoker:   ints[2],
		CigsPerDay:      v[3],
		BPMeds:          v[4],
		PrevalentStroke: ints[5],
		PrevalentHyp:    ints[6],
		Diabetes:        ints[7],
		TotChol:         v[8],
		SysBP:           v[9],
		DiaBP:           v[10],
		BMI:             v[11],
		HeartRate:       v[12],
		Glucose:         v[13],
		TenYearCHD:      ints[14],
	}, nil
}

func toUint32(f float64) (uint32, error) {
	if math.IsNaN(f) || f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an unsigned integer", f)
	}
	return uint32(f), nil
}

// Equal compares records field by field, treating two missing values as equal.
func (r Record) Equal(o Record) bool {
	a, b := r.Values(), o.Values()
	for i := range a {
		if math.IsNaN(a[i]) && math.IsNaN(b[i]) {
			continue
		}
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
