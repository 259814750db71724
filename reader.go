package metricviz

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// The live pipeline starts from an io.Reader (usually the experiment process
// piping metric rows to stdin), goes through a StringReader that splits lines
// into fields, then a TextToMetricRowReader that converts them to MetricRows
// for the Broadcaster. The retro path reads a whole metrics CSV into a
// MetricFrame instead.

var errIgnoreThisRow = errors.New("ignore this row")

// MetricRow is one sample of training metrics: the time-axis value plus one
// value per metric column.
type MetricRow struct {
	X  float64
	Ys []float64

	streamEnded bool
	streamErr   error
}

// StringReader yields the raw fields of one input line per Read call.
type StringReader interface {
	Read(context.Context) ([]string, error)
}

// MetricRowReader yields parsed metric rows.
type MetricRowReader interface {
	Read(context.Context) (MetricRow, error)
	ColumnNames() []string
}

// Split on either comma or any run of spaces or tabs.
var relaxedSplitter = regexp.MustCompile("[ \t]+|,")

// RelaxedStringReader splits input lines on commas or whitespace, so both CSV
// and column-aligned metric dumps can be consumed.
type RelaxedStringReader struct {
	input   io.Reader
	scanner *bufio.Scanner

	lineCount int
}

func NewRelaxedStringReader(input io.Reader) *RelaxedStringReader {
	return &RelaxedStringReader{
		input:   input,
		scanner: bufio.NewScanner(input),
	}
}

func (r *RelaxedStringReader) Read(ctx context.Context) ([]string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			logrus.WithField("tag", "RelaxedString").WithError(err).Error("unable to read line")
			return nil, err
		}
		return nil, io.EOF
	}
	r.lineCount++

	line := r.scanner.Text()
	fields := Filter(relaxedSplitter.Split(line, -1), func(value string) bool {
		return len(value) > 0
	})
	return fields, nil
}

// NowXGenerator generates the current unix timestamp in seconds, preserving
// millisecond accuracy.
func NowXGenerator(ys []float64) float64 {
	return float64(time.Now().UnixMicro()) / 1e6
}

// TextToMetricRowReader converts text fields into MetricRows. Unparsable
// lines (including a leading header line) are skipped with a warning.
type TextToMetricRowReader struct {
	// The input reader producing raw fields per line.
	Input StringReader

	// The x column index. If negative, X is produced by XGenerator instead of
	// being taken from the row.
	XIndex int

	// Defaults to NowXGenerator.
	XGenerator func([]float64) float64

	// Metric column labels, excluding the x column.
	Columns []string

	// If set, rows whose column count differs from len(Columns) are skipped.
	ExpectExactColumnCount bool
}

func (r *TextToMetricRowReader) Read(ctx context.Context) (MetricRow, error) {
	fields, err := r.Input.Read(ctx)
	if err != nil {
		return MetricRow{}, err
	}

	logger := logrus.WithFields(logrus.Fields{
		"tag":  "TextToMetricRow",
		"line": fields,
	})

	row := MetricRow{}
	for i, value := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			logger.Warn("cannot parse float, ignoring row")
			return MetricRow{}, errIgnoreThisRow
		}
		if i == r.XIndex {
			row.X = v
			continue
		}
		row.Ys = append(row.Ys, v)
	}

	if r.ExpectExactColumnCount && len(r.Columns) != len(row.Ys) {
		logger.Warnf("expected column count (%d) is not observed (%d), ignoring row", len(r.Columns), len(row.Ys))
		return MetricRow{}, errIgnoreThisRow
	}

	if r.XIndex < 0 {
		gen := r.XGenerator
		if gen == nil {
			gen = NowXGenerator
		}
		row.X = gen(row.Ys)
	}

	return row, nil
}

func (r *TextToMetricRowReader) ColumnNames() []string {
	return r.Columns
}

// ReadMetricsCSV reads a whole metrics table (header line followed by float
// rows) into a MetricFrame. Rows with unparsable values are skipped with a
// warning; column order is returned alongside the frame.
func ReadMetricsCSV(input io.Reader) (MetricFrame, []string, error) {
	logger := logrus.WithField("tag", "ReadMetricsCSV")
	scanner := bufio.NewScanner(input)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("metrics input is empty")
	}
	columns := Filter(relaxedSplitter.Split(scanner.Text(), -1), func(value string) bool {
		return len(value) > 0
	})
	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("metrics input has no columns")
	}

	frame := MetricFrame{}
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		fields := Filter(relaxedSplitter.Split(scanner.Text(), -1), func(value string) bool {
			return len(value) > 0
		})
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(columns) {
			logger.WithField("lineNum", lineNum).Warnf("expected %d columns, got %d, ignoring row", len(columns), len(fields))
			continue
		}

		values := make([]float64, len(fields))
		ok := true
		for i, value := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				logger.WithField("lineNum", lineNum).Warn("cannot parse float, ignoring row")
				ok = false
				break
			}
			values[i] = v
		}
		if !ok {
			continue
		}
		for i, col := range columns {
			frame[col] = append(frame[col], values[i])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return frame, columns, nil
}

// LoadMetricsCSV reads a metrics table from a file.
func LoadMetricsCSV(path string) (MetricFrame, []string, error) {
	f, err := os.Open(smartPath(path))
	if err != nil {
		return nil, nil, fmt.Errorf("open metrics file: %w", err)
	}
	defer f.Close()

	frame, columns, err := ReadMetricsCSV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return frame, columns, nil
}
