package entity

import (
	"errors"
	"fmt"
)

type FailureKind string

const (
	FailureInvalidRequest   FailureKind = "invalid_request"
	FailureEngineNotReady   FailureKind = "engine_not_ready"
	FailureInitialization   FailureKind = "initialization_failure"
	FailureEngineInvocation FailureKind = "engine_invocation_error"
	FailureNotFound         FailureKind = "not_found"
	FailureInternalRouting  FailureKind = "internal_routing_error"
	FailureTornDown         FailureKind = "torn_down"
	FailureRateLimited      FailureKind = "rate_limited"
)

// Failure is the typed error carried across the bridge/router boundary.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

func WrapFailure(kind FailureKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Detail is the message plus the underlying cause, for logs and detailed envelopes.
func (f *Failure) Detail() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

// AsFailure extracts a *Failure from err, classifying anything else as kind.
func AsFailure(err error, kind FailureKind) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return WrapFailure(kind, "unexpected error", err)
}

// IsFailureKind reports whether err is a *Failure of the given kind.
func IsFailureKind(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
