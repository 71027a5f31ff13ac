package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"seb-platform/internal/models"
)

const (
	hourlyStep = time.Hour
	dailyStep  = 24 * time.Hour

	// SEB rows of the larger stations run past bufio's 64 KiB default.
	maxLineBytes = 1 << 20
)

// Header is the decoded first line of an SEB file
type Header struct {
	Hourly bool
	Step   time.Duration
	// TimeFields is 3 for "year day hour" files and 2 for "year day" files.
	TimeFields int
	// ValueOffset is the token index of the first variable value in a data row.
	// It is TimeFields, plus one when a "Time" column follows the time fields.
	ValueOffset int
	Variables   []string
}

// ParseHeader validates the "year day [hour] [Time] var..." convention
func ParseHeader(line string) (Header, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 || tokens[0] != "year" || tokens[1] != "day" {
		first, second := "", ""
		if len(tokens) > 0 {
			first = tokens[0]
		}
		if len(tokens) > 1 {
			second = tokens[1]
		}
		return Header{}, &models.DatasetError{
			Kind:    models.KindHeaderFormat,
			Message: fmt.Sprintf("header must start with 'year' and 'day', found %q and %q", first, second),
		}
	}

	h := Header{Step: dailyStep, TimeFields: 2}
	if len(tokens) > 2 && tokens[2] == "hour" {
		h.Hourly = true
		h.Step = hourlyStep
		h.TimeFields = 3
	}

	h.ValueOffset = h.TimeFields
	if len(tokens) > h.ValueOffset && tokens[h.ValueOffset] == "Time" {
		h.ValueOffset++
	}

	h.Variables = append([]string(nil), tokens[h.ValueOffset:]...)
	if len(h.Variables) == 0 {
		return Header{}, &models.DatasetError{
			Kind:    models.KindHeaderFormat,
			Message: "header lists no variables",
		}
	}
	return h, nil
}

// scanHeader is the first pass: it decodes the header and counts data rows.
func scanHeader(path string) (Header, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var (
		h       Header
		rows    int
		sawHead bool
	)
	err = eachLine(f, func(_ int, line string) error {
		if !sawHead {
			sawHead = true
			var herr error
			h, herr = ParseHeader(line)
			return herr
		}
		rows++
		return nil
	})
	if err != nil {
		return Header{}, 0, err
	}
	if !sawHead {
		return Header{}, 0, &models.DatasetError{Kind: models.KindHeaderFormat, Message: "file is empty"}
	}
	return h, rows, nil
}

// readRecords is the second pass: visit is called once per data row with the
// row index, its 1-based line number and its tokens.
func readRecords(path string, visit func(row, lineNo int, tokens []string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	row := -1
	return eachLine(f, func(lineNo int, line string) error {
		if row >= 0 {
			visit(row, lineNo, strings.Fields(line))
		}
		row++
		return nil
	})
}

// eachLine calls fn for every non-blank line; an error from fn stops the scan.
func eachLine(r io.Reader, fn func(lineNo int, line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	return nil
}

// parseRawTime reads the leading time fields of a row. Daily files leave Hour at 0.
func parseRawTime(tokens []string, timeFields int) (RawTime, error) {
	if len(tokens) < timeFields {
		return RawTime{}, fmt.Errorf("expected %d time fields, got %d tokens", timeFields, len(tokens))
	}
	var fields [3]int
	for k := 0; k < timeFields; k++ {
		v, err := strconv.ParseFloat(tokens[k], 64)
		if err != nil {
			return RawTime{}, fmt.Errorf("invalid time field %d: %w", k, err)
		}
		fields[k] = int(v)
	}
	return RawTime{Year: fields[0], DayOfYear: fields[1], Hour: fields[2]}, nil
}

var errValueCount = errors.New("unexpected number of values")

// parseValues converts the value tokens of a row into dst. With lenient set,
// one surplus trailing token is dropped and shorter rows fill the leading
// slots only; otherwise any count other than len(dst) is rejected and dst is
// left untouched. It returns the number of value tokens the row carried.
func parseValues(dst []float64, tokens []string, lenient bool) (int, error) {
	n := len(tokens)
	nvar := len(dst)

	use := n
	switch {
	case n == nvar:
	case lenient && n > nvar:
		use = nvar
	case lenient:
	default:
		return n, fmt.Errorf("%w: expected %d, got %d", errValueCount, nvar, n)
	}

	vals := make([]float64, use)
	for k := 0; k < use; k++ {
		v, err := strconv.ParseFloat(tokens[k], 64)
		if err != nil {
			return n, fmt.Errorf("invalid value in column %d: %w", k, err)
		}
		vals[k] = v
	}
	copy(dst, vals)
	return n, nil
}
