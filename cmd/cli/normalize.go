package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/theblitlabs/parity-ml/internal/codec"
	"github.com/theblitlabs/parity-ml/internal/training"
)

// RunNormalize prints every column of a local CSV scaled to [0, 1]. Missing
// values stay NA.
func RunNormalize(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := codec.ReadCSV(f)
	if err != nil {
		return err
	}
	matrix, err := training.NormalizeRecords(records)
	if err != nil {
		return err
	}

	w := csv.NewWriter(out)
	if err := w.Write(codec.Columns[:]); err != nil {
		return err
	}
	row := make([]string, codec.FieldCount)
	for _, values := range matrix {
		for i, v := range values {
			if math.IsNaN(v) {
				row[i] = "NA"
				continue
			}
			row[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
