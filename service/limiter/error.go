package limiter

import (
	"errors"
	"fmt"
)

const errFmt = "%s: %s"

// Common errors for limiter implementations. ErrBackend covers an
// unreachable, erroring or timed-out store; the caller decides the
// disposition, the limiter never maps it to an allow or deny.
var (
	ErrBackend = errors.New("limiter backend")
)

// Error wraps common limiter errors.
type Error struct {
	err error
	msg string
}

func (e Error) Error() string {
	return e.msg
}

// IsBackend indicates if err is ErrBackend.
func IsBackend(err error) bool {
	return unwrapError(err) == ErrBackend
}

func unwrapError(err error) error {
	switch e := err.(type) {
	case *Error:
		return e.err
	}

	return err
}

func wrapError(err error, format string, args ...interface{}) error {
	return &Error{
		err: err,
		msg: fmt.Sprintf(
			errFmt,
			err,
			fmt.Sprintf(format, args...),
		),
	}
}
