package scan

import (
	"errors"
	"fmt"
)

// ErrAlreadyRun is returned when Run is called a second time on the same Scanner
var ErrAlreadyRun = errors.New("scanner has already run")

// InvalidConfigurationError rejects a configuration before any I/O
type InvalidConfigurationError struct {
	field  string
	reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.field, e.reason)
}

func (e *InvalidConfigurationError) Field() string {
	return e.field
}

func NewInvalidConfigurationError(field, reason string) *InvalidConfigurationError {
	return &InvalidConfigurationError{
		field:  field,
		reason: reason,
	}
}

// AllocationError is returned when block buffers cannot be allocated. A worker of -1
// means the scan was rejected as a whole before any worker started.
type AllocationError struct {
	worker int
	size   int64
}

func (e *AllocationError) Error() string {
	if e.worker < 0 {
		return fmt.Sprintf("refusing to allocate %d bytes of block buffers", e.size)
	}
	return fmt.Sprintf("T%02d could not allocate %d bytes", e.worker, e.size)
}

func NewAllocationError(worker int, size int64) *AllocationError {
	return &AllocationError{
		worker: worker,
		size:   size,
	}
}

// ReadError is a positional read that failed, as opposed to one that came back short
type ReadError struct {
	worker int
	offset int64
	err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("T%02d failed to read at %d: %v", e.worker, e.offset, e.err)
}

func (e *ReadError) Unwrap() error {
	return e.err
}

func (e *ReadError) Worker() int {
	return e.worker
}

func (e *ReadError) Offset() int64 {
	return e.offset
}

func NewReadError(worker int, offset int64, err error) *ReadError {
	return &ReadError{
		worker: worker,
		offset: offset,
		err:    err,
	}
}

// IncompleteScanError means the scan ran to the end but some workers produced no result
type IncompleteScanError struct {
	expected int
	failed   []int
}

func (e *IncompleteScanError) Error() string {
	return fmt.Sprintf("only %d of %d workers produced a result, failed: %v", e.expected-len(e.failed), e.expected, e.failed)
}

// Failed lists the workers without a result, in ascending order
func (e *IncompleteScanError) Failed() []int {
	return e.failed
}

func NewIncompleteScanError(expected int, failed []int) *IncompleteScanError {
	return &IncompleteScanError{
		expected: expected,
		failed:   failed,
	}
}
