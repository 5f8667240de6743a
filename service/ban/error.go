package ban

import (
	"errors"
	"fmt"
)

const errFmt = "%s: %s"

// Common errors for ban service implementations. ErrInvalidPolicy is
// fatal at startup, ErrBackend covers store failures on a single request.
var (
	ErrBackend       = errors.New("ban backend")
	ErrInvalidPolicy = errors.New("invalid ban policy")
)

// Error wraps common ban errors.
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

// IsInvalidPolicy indicates if err is ErrInvalidPolicy.
func IsInvalidPolicy(err error) bool {
	return unwrapError(err) == ErrInvalidPolicy
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
