package partition

import "fmt"

// InvalidPlanError is returned by Plan for a non-positive block size or thread
// count, or a negative device size
type InvalidPlanError struct {
	field string
	value int64
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid %s %d", e.field, e.value)
}

// Field names the offending parameter
func (e *InvalidPlanError) Field() string {
	return e.field
}

func NewInvalidPlanError(field string, value int64) *InvalidPlanError {
	return &InvalidPlanError{
		field: field,
		value: value,
	}
}
