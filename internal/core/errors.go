package core

import "errors"

// Registration errors are fatal at startup.
var (
	ErrDuplicateCommand = errors.New("command already registered")
	ErrMissingAction    = errors.New("callback action has no registered command")
	ErrRegistrySealed   = errors.New("registry is sealed")
	ErrInvalidCommand   = errors.New("invalid command")
)

// Dispatch errors are logged and turned into replies.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrHandlerFailure = errors.New("handler failed")
	ErrHandlerTimeout = errors.New("handler timed out")
)

// permanentError marks a transport error that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so the engine does not retry the send
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
