package reporting

import (
	"errors"
	"fmt"
)

// Sentinel errors for callers that only need to classify a failure.
var (
	ErrInvalidMonthKey = errors.New("invalid month key")
	ErrDataAccess      = errors.New("data access failed")
)

// InvalidMonthKeyError reports a month key that is not a valid YYYY-MM value.
type InvalidMonthKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidMonthKeyError) Error() string {
	return fmt.Sprintf("invalid month key %q: %s", e.Key, e.Reason)
}

// Is lets errors.Is match ErrInvalidMonthKey.
func (e *InvalidMonthKeyError) Is(target error) bool {
	return target == ErrInvalidMonthKey
}

// DataAccessError wraps a failure of the underlying data source.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed during %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrDataAccess.
func (e *DataAccessError) Is(target error) bool {
	return target == ErrDataAccess
}

// wrapDataAccess attaches op to err unless err already is a DataAccessError.
func wrapDataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &DataAccessError{Op: op, Err: err}
}
