// Package report writes per-worker scan results, one line each, to a shared sink.
//
// A line looks like
//
//	T03: 512.25 MB/s 5ba93c9db0cff93f52b521d7420e43f6eda2784f
//
// The throughput token is absent when the scan was not timed.
package report

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// Result is what one worker produced once it has read its whole partition
type Result struct {
	Worker int
	// Timed is false when throughput was not measured
	Timed bool
	// Throughput in bytes per second
	Throughput float64
	Elapsed    time.Duration
	BytesRead  int64
	Digest     []byte
}

// MBps is the throughput in decimal megabytes per second
func (r Result) MBps() float64 {
	return r.Throughput / 1e6
}

// Hex renders the digest as lowercase hex, two digits per byte
func (r Result) Hex() string {
	return hex.EncodeToString(r.Digest)
}

// FormatLine renders r as a single newline-terminated line
func FormatLine(r Result) string {
	if r.Timed {
		return fmt.Sprintf("T%02d: %.2f MB/s %s\n", r.Worker, r.MBps(), r.Hex())
	}
	return fmt.Sprintf("T%02d: %s\n", r.Worker, r.Hex())
}

var lineRE = regexp.MustCompile(`^T(\d{2,}): (?:(\d+\.\d{2}) MB/s )?([0-9a-f]+)$`)

// ParseLine is the inverse of FormatLine, without the trailing newline.
// Throughput is only accurate to the two decimals kept in the line.
func ParseLine(line string) (Result, error) {
	m := lineRE.FindStringSubmatch(line)
	if m == nil {
		return Result{}, fmt.Errorf("malformed result line %q", line)
	}
	worker, err := strconv.Atoi(m[1])
	if err != nil {
		return Result{}, fmt.Errorf("malformed worker index in %q: %w", line, err)
	}
	r := Result{Worker: worker}
	if m[2] != "" {
		mbps, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return Result{}, fmt.Errorf("malformed throughput in %q: %w", line, err)
		}
		r.Timed = true
		r.Throughput = mbps * 1e6
	}
	if r.Digest, err = hex.DecodeString(m[3]); err != nil {
		return Result{}, fmt.Errorf("malformed digest in %q: %w", line, err)
	}
	return r, nil
}

// Reporter serializes result lines onto a shared writer. The writer's lifecycle
// belongs to the caller.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

func New(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Report writes one result line. The line is formatted before the lock is
// taken and written with a single Write call, so concurrent reports never interleave.
func (r *Reporter) Report(res Result) error {
	line := []byte(FormatLine(res))

	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.w.Write(line)
	if err != nil {
		return fmt.Errorf("could not write result of worker %d: %w", res.Worker, err)
	}
	if n != len(line) {
		return fmt.Errorf("could not write result of worker %d: %w", res.Worker, io.ErrShortWrite)
	}
	return nil
}

// CreateFile opens path as a result sink, truncating anything from a previous run
func CreateFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not create result file %s: %w", path, err)
	}
	return f, nil
}
