package domain

import "fmt"

// ErrorKind classifies an analysis failure attached to an enriched item.
type ErrorKind string

const (
	ErrKindNone               ErrorKind = ""
	ErrKindTimeout            ErrorKind = "timeout"
	ErrKindBackend            ErrorKind = "backend"
	ErrKindServiceUnavailable ErrorKind = "service_unavailable"
)

// CollectionError marks one source as unreachable or unparsable. The run
// continues with the remaining sources.
type CollectionError struct {
	Source Source
	Err    error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Source, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// AnalysisError is an enrichment failure after retries were exhausted.
type AnalysisError struct {
	Kind ErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis (%s): %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// NotifyError is a delivery failure after retries were exhausted. It is
// counted in the run summary but never aborts the run.
type NotifyError struct {
	Platform    Platform
	Destination string
	Err         error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Platform, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// ConfigurationError is fatal; it aborts a run before collecting starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Reason)
}
