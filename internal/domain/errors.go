package domain

import (
	"errors"
	"fmt"
)

// DataError reports a malformed or missing required field on a transaction.
// A DataError aborts the whole batch.
type DataError struct {
	TransactionID string
	Field         string
	Value         string
	Err           error
}

func (e *DataError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q on transaction %q: %v", e.Field, e.Value, e.TransactionID, e.Err)
	}
	return fmt.Sprintf("invalid %s on transaction %q: %v", e.Field, e.TransactionID, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// IsDataError reports whether err wraps a DataError.
func IsDataError(err error) bool {
	var dataErr *DataError
	return errors.As(err, &dataErr)
}
