package models

import "fmt"

// ErrorKind classifies dataset failures
type ErrorKind string

const (
	KindMissingFile      ErrorKind = "missing_file"
	KindHeaderFormat     ErrorKind = "header_format"
	KindTimeSeed         ErrorKind = "time_seed"
	KindNoData           ErrorKind = "no_data"
	KindRowFormat        ErrorKind = "row_format"
	KindVariableNotFound ErrorKind = "variable_not_found"
	KindErasedVariable   ErrorKind = "erased_variable"
	KindNotApplicable    ErrorKind = "not_applicable"
	KindInsufficientData ErrorKind = "insufficient_data"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrMissingFile      = &DatasetError{Kind: KindMissingFile}
	ErrHeaderFormat     = &DatasetError{Kind: KindHeaderFormat}
	ErrTimeSeed         = &DatasetError{Kind: KindTimeSeed}
	ErrNoData           = &DatasetError{Kind: KindNoData}
	ErrRowFormat        = &DatasetError{Kind: KindRowFormat}
	ErrVariableNotFound = &DatasetError{Kind: KindVariableNotFound}
	ErrErasedVariable   = &DatasetError{Kind: KindErasedVariable}
	ErrNotApplicable    = &DatasetError{Kind: KindNotApplicable}
	ErrInsufficientData = &DatasetError{Kind: KindInsufficientData}
)

// DatasetError is returned by the SEB loader, lookups and reducers.
// File, Variable and Line are filled in when they are known.
type DatasetError struct {
	Kind     ErrorKind
	File     string
	Variable string
	Line     int
	Message  string
	Err      error
}

func (e *DatasetError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg = e.Message
	}
	switch {
	case e.File != "" && e.Line > 0:
		msg = fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
	case e.File != "":
		msg = fmt.Sprintf("%s: %s", e.File, msg)
	}
	if e.Variable != "" {
		msg = fmt.Sprintf("%s (variable %q)", msg, e.Variable)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DatasetError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so that errors.Is(err, ErrErasedVariable) works for any
// erased-variable error regardless of its details.
func (e *DatasetError) Is(target error) bool {
	t, ok := target.(*DatasetError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// IsTransient returns false: every dataset error stems from file content
func (e *DatasetError) IsTransient() bool {
	return false
}

// Fatal reports whether the error leaves the dataset unusable
func (e *DatasetError) Fatal() bool {
	switch e.Kind {
	case KindMissingFile, KindHeaderFormat, KindTimeSeed, KindNoData:
		return true
	}
	return false
}

// ValidationError represents a rejected input value
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
