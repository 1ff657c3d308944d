package detector

import (
	"errors"
	"fmt"
)

// Kind tags every failure that leaves the detector core.
type Kind int

const (
	KindUnknown Kind = iota
	KindExtractionFailure
	KindExtractionTimeout
	KindVectorizationFailure
	KindInferenceFailure
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindExtractionFailure:
		return "ExtractionFailure"
	case KindExtractionTimeout:
		return "ExtractionTimeout"
	case KindVectorizationFailure:
		return "VectorizationFailure"
	case KindInferenceFailure:
		return "InferenceFailure"
	case KindServiceUnavailable:
		return "ServiceUnavailable"
	default:
		return "Unknown"
	}
}

// IsClientError reports whether the kind means the caller's URL could not be
// analyzed, as opposed to the system failing an analysis it accepted.
func (k Kind) IsClientError() bool {
	switch k {
	case KindExtractionFailure, KindExtractionTimeout, KindVectorizationFailure:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is matching on kind alone.
var (
	ErrExtractionFailure    = &Error{Kind: KindExtractionFailure}
	ErrExtractionTimeout    = &Error{Kind: KindExtractionTimeout}
	ErrVectorizationFailure = &Error{Kind: KindVectorizationFailure}
	ErrInferenceFailure     = &Error{Kind: KindInferenceFailure}
	ErrServiceUnavailable   = &Error{Kind: KindServiceUnavailable}
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

func extractionFailure(err error, format string, args ...any) *Error {
	return newError(KindExtractionFailure, err, format, args...)
}

func extractionTimeout(format string, args ...any) *Error {
	return newError(KindExtractionTimeout, nil, format, args...)
}

func vectorizationFailure(err error, format string, args ...any) *Error {
	return newError(KindVectorizationFailure, err, format, args...)
}

func inferenceFailure(err error, format string, args ...any) *Error {
	return newError(KindInferenceFailure, err, format, args...)
}

func serviceUnavailable(err error, format string, args ...any) *Error {
	return newError(KindServiceUnavailable, err, format, args...)
}

// KindOf returns the kind of a classified error, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// Classify returns err as a classified error, tagging it with fallback when
// it carries no kind yet.
func Classify(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de.Kind != KindUnknown {
		return de
	}
	return &Error{Kind: fallback, Message: err.Error(), Err: err}
}

func withStage(err *Error, stage Stage) *Error {
	if err.Stage == StageIdle {
		err.Stage = stage
	}
	return err
}
