package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine. Per-supplier and per-stage
// occurrences are downgraded to partial results by the workflow engine;
// only FatalPipelineError and IntegrityError abort a run.
var (
	// ErrNotFound reports a lookup for an unknown agent id.
	ErrNotFound = errors.New("agent not found")

	// ErrNoSuppliersFound reports that discovery yielded zero candidates.
	// It is surfaced as a structured outcome, never as a run failure.
	ErrNoSuppliersFound = errors.New("no suppliers found")

	// ErrComplianceBlocked reports a failed compliance verdict under strict
	// mode. Outside strict mode the verdict is carried as a flag instead.
	ErrComplianceBlocked = errors.New("compliance verdict failed")

	// ErrUpstreamTimeout reports that a collaborator call exceeded its bound.
	ErrUpstreamTimeout = errors.New("upstream collaborator timed out")
)

// ValidationError rejects malformed input before any state mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// IntegrityError reports a violated data invariant, e.g. a quote whose
// total does not match its items. It indicates a programmer-level bug or
// corrupted data, so it propagates instead of being downgraded.
type IntegrityError struct {
	Subject string
	Reason  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in %s: %s", e.Subject, e.Reason)
}

// FatalPipelineError aborts a workflow run. Only BOM generation failure
// produces it; every other stage degrades to partial results.
type FatalPipelineError struct {
	Stage string
	Err   error
}

func (e *FatalPipelineError) Error() string {
	return fmt.Sprintf("fatal pipeline error in stage %s: %v", e.Stage, e.Err)
}

func (e *FatalPipelineError) Unwrap() error { return e.Err }
