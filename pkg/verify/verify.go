package verify

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/arthur-debert/bootonce/pkg/errors"
)

// DefaultExpected is the number of markers a healthy run logs
const DefaultExpected = 1

const maxLineSize = 1024 * 1024

// Options selects what to look for
type Options struct {
	Marker   string
	Expected int

	// RunID, when set, restricts the scan to JSON lines carrying that
	// run_id; plain-text lines are ignored
	RunID string
}

// Result describes one scan
type Result struct {
	Marker   string `json:"marker" yaml:"marker"`
	RunID    string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Expected int    `json:"expected" yaml:"expected"`
	Found    int    `json:"found" yaml:"found"`
	Lines    []int  `json:"lines,omitempty" yaml:"lines,omitempty"`
	Scanned  int    `json:"scanned" yaml:"scanned"`
}

// OK reports whether the marker count matched
func (r Result) OK() bool {
	return r.Found == r.Expected
}

// Count scans r and records every line whose message contains marker
func Count(r io.Reader, marker string) (Result, error) {
	return count(r, marker, "")
}

func count(r io.Reader, marker, runID string) (Result, error) {
	res := Result{Marker: marker, RunID: runID}
	if marker == "" {
		return res, errors.New(errors.ErrInvalidInput, "marker cannot be empty")
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		res.Scanned++
		line := scanner.Text()
		if runID != "" && !fromRun(line, runID) {
			continue
		}
		if strings.Contains(message(line), marker) {
			res.Found++
			res.Lines = append(res.Lines, res.Scanned)
		}
	}
	if err := scanner.Err(); err != nil {
		return res, errors.Wrap(err, errors.ErrLogRead, "read log").WithDetail("line", res.Scanned+1)
	}
	return res, nil
}

// message extracts the text to match from a single log line
func message(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		if msg := gjson.Get(trimmed, "message"); msg.Exists() {
			return msg.String()
		}
		return ""
	}
	return line
}

// fromRun reports whether a JSON line carries run_id == runID
func fromRun(line, runID string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") || !gjson.Valid(trimmed) {
		return false
	}
	return gjson.Get(trimmed, "run_id").String() == runID
}

// Check counts markers in r and returns VERIFY_MISMATCH unless the count
// equals opts.Expected
func Check(r io.Reader, opts Options) (Result, error) {
	res, err := count(r, opts.Marker, opts.RunID)
	res.Expected = opts.Expected
	if err != nil {
		return res, err
	}
	if !res.OK() {
		return res, errors.Newf(errors.ErrVerifyMismatch,
			"expected %d init marker line(s), found %d", res.Expected, res.Found).
			WithDetail("found", res.Found).
			WithDetail("expected", res.Expected).
			WithDetail("marker", res.Marker).
			WithDetail("run_id", res.RunID)
	}
	return res, nil
}

// CheckFile runs Check over the file at path
func CheckFile(path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{Marker: opts.Marker, RunID: opts.RunID, Expected: opts.Expected},
			errors.Wrapf(err, errors.ErrLogRead, "open log %s", path).WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()
	return Check(f, opts)
}
