package options

import (
	"errors"
	"fmt"
)

// ErrInvalid matches every option validation error via errors.Is.
var ErrInvalid = errors.New("invalid option")

// ErrorKind distinguishes a value of the wrong type from a value out of range.
type ErrorKind int

const (
	KindType ErrorKind = iota
	KindRange
)

func (k ErrorKind) String() string {
	if k == KindRange {
		return "range"
	}
	return "type"
}

// Error reports a malformed option value.
type Error struct {
	Option string
	Kind   ErrorKind
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("options.%s %s", e.Option, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func (e *Error) Unwrap() error {
	return e.Err
}

func typeError(option, msg string) *Error {
	return &Error{Option: option, Kind: KindType, Msg: msg}
}

func rangeError(option, msg string) *Error {
	return &Error{Option: option, Kind: KindRange, Msg: msg}
}
