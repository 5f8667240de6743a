package rule

import (
	"errors"
	"fmt"
)

const errFmt = "%s: %s"

// Common errors for rule compilation. ErrInvalidRule is fatal, the
// service must refuse to start on an ill-defined policy.
var (
	ErrInvalidRule = errors.New("invalid rule")
)

// Error wraps common rule errors.
type Error struct {
	err error
	msg string
}

func (e Error) Error() string {
	return e.msg
}

// IsInvalidRule indicates if err is ErrInvalidRule.
func IsInvalidRule(err error) bool {
	return unwrapError(err) == ErrInvalidRule
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
