package readiness

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is wrapped by every usage error returned by the
	// registration methods of [Dispatcher].
	ErrInvalidArgument = errors.New("readiness: invalid argument")

	// ErrAlreadyRegistered is returned when a channel is added while it is
	// still registered, with the same or another dispatcher.
	ErrAlreadyRegistered = fmt.Errorf("%w: channel already registered", ErrInvalidArgument)

	// ErrInvalidMode is returned when a mode other than ModeSync or ModeAsync
	// is provided.
	ErrInvalidMode = fmt.Errorf("%w: invalid mode", ErrInvalidArgument)

	// ErrNilCallback is returned when a registration has no callback.
	ErrNilCallback = fmt.Errorf("%w: nil callback", ErrInvalidArgument)

	// ErrNilChannel is returned when a registration has no channel.
	ErrNilChannel = fmt.Errorf("%w: nil channel", ErrInvalidArgument)

	// ErrClosed is returned by writes to a closed channel.
	ErrClosed = errors.New("readiness: channel closed")
)

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("readiness: callback panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// invoke calls fn, converting any panic into a *PanicError.
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
