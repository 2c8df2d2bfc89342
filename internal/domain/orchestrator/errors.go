package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoProviderSucceeded matches every *ExhaustedError.
	ErrNoProviderSucceeded  = errors.New("no provider succeeded")
	ErrProviderNotFound     = errors.New("provider not registered")
	ErrOperationUnsupported = errors.New("operation not supported by provider")
	ErrEmptyResult          = errors.New("provider returned no result")
)

// Outcome classifies one failed candidate.
type Outcome string

const (
	OutcomeNotFound    Outcome = "not_found"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeFailed      Outcome = "failed"
)

// Attempt records why one candidate did not produce the result.
type Attempt struct {
	Provider  string
	Operation Operation
	Outcome   Outcome
	Err       error
	Duration  time.Duration
}

// Reason is the human-readable cause.
func (a Attempt) Reason() string {
	if a.Err == nil {
		return string(a.Outcome)
	}
	return a.Err.Error()
}

func (a Attempt) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Provider   string    `json:"provider"`
		Operation  Operation `json:"operation"`
		Outcome    Outcome   `json:"outcome"`
		Reason     string    `json:"reason"`
		DurationMS int64     `json:"duration_ms"`
	}{a.Provider, a.Operation, a.Outcome, a.Reason(), a.Duration.Milliseconds()})
}

// ExhaustedError is the only error a facade call returns: every candidate
// failed or was not applicable.
type ExhaustedError struct {
	Operation Operation
	Attempts  []Attempt
	// Cause is set when the caller's context ended the loop early.
	Cause error
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "No %s provider succeeded.", e.Operation.Label())
	if len(e.Attempts) == 0 && e.Cause == nil {
		b.WriteString(" [no candidates]")
		return b.String()
	}
	parts := make([]string, 0, len(e.Attempts)+1)
	for _, a := range e.Attempts {
		parts = append(parts, a.Provider+": "+a.Reason())
	}
	if e.Cause != nil {
		parts = append(parts, "aborted: "+e.Cause.Error())
	}
	b.WriteString(" [" + strings.Join(parts, "; ") + "]")
	return b.String()
}

// Is makes errors.Is(err, ErrNoProviderSucceeded) hold.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrNoProviderSucceeded
}

// Unwrap exposes each attempt's error and the context cause.
func (e *ExhaustedError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts)+1)
	for _, a := range e.Attempts {
		if a.Err != nil {
			out = append(out, a.Err)
		}
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Providers lists the candidate names in trial order.
func (e *ExhaustedError) Providers() []string {
	out := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		out[i] = a.Provider
	}
	return out
}

// AsExhausted unwraps err into an *ExhaustedError.
func AsExhausted(err error) (*ExhaustedError, bool) {
	var ex *ExhaustedError
	ok := errors.As(err, &ex)
	return ex, ok
}
