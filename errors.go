// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import (
	"errors"
	"fmt"
)

// ValidityError reports that the input model violates a precondition of the
// analysis, such as a probability outside [0,1] or an ATLEAST gate whose
// minimum number is larger than its number of arguments.
type ValidityError struct {
	Msg string
}

func (e *ValidityError) Error() string {
	return "validity: " + e.Msg
}

// Validityf returns a new ValidityError with a formatted message.
func Validityf(format string, a ...interface{}) error {
	return &ValidityError{Msg: fmt.Sprintf(format, a...)}
}

// LogicError reports a broken internal invariant. It is fatal and aborts the
// analysis in which it occurred.
type LogicError struct {
	Msg string
}

func (e *LogicError) Error() string {
	return "logic: " + e.Msg
}

func logicf(format string, a ...interface{}) error {
	return &LogicError{Msg: fmt.Sprintf(format, a...)}
}

// LimitError reports that a resource cap was exceeded: a ZBDD or BDD vertex
// arena could not grow any further.
type LimitError struct {
	Msg string
}

func (e *LimitError) Error() string {
	return "limit: " + e.Msg
}

func limitf(format string, a ...interface{}) error {
	return &LimitError{Msg: fmt.Sprintf(format, a...)}
}

// IsValidity reports whether err, or any error it wraps, is a ValidityError.
func IsValidity(err error) bool {
	var v *ValidityError
	return errors.As(err, &v)
}

// IsLogic reports whether err, or any error it wraps, is a LogicError.
func IsLogic(err error) bool {
	var v *LogicError
	return errors.As(err, &v)
}

// IsLimit reports whether err, or any error it wraps, is a LimitError.
func IsLimit(err error) bool {
	var v *LimitError
	return errors.As(err, &v)
}
