package resolver

import "fmt"

// ValidationError is a data problem in the document itself: a missing
// sub-record, an unknown payor, a field that never got a value. It fails the
// enclosing transaction block only.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid data: %s", e.Reason)
}

// StoreError wraps a local store failure during resolution.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// RemoteError wraps a processor API failure during resolution.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error during %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
