package directlink

import (
	"errors"
	"fmt"
)

// Errors that might be returned by a Resolver.
var (
	ErrInvalidInput = errors.New("share_url is required")
	ErrUnavailable  = errors.New("resolver backend not available")
	ErrNoDirectLink = errors.New("Could not retrieve direct link.")
)

// ErrMissing is returned by a Strategy whose backend is not present in the
// environment. Detection moves on to the next strategy.
var ErrMissing = errors.New("backend not present")

// DelegateError wraps any fault raised by a backend while resolving a URL.
// Its message is the fault's message, unchanged.
type DelegateError struct {
	Convention Convention
	Err        error
}

func (e *DelegateError) Error() string {
	return e.Err.Error()
}

func (e *DelegateError) Unwrap() error {
	return e.Err
}

func recoveredFault(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
