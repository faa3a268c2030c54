package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks missing or invalid configuration. Fatal at startup.
	ErrConfig = errors.New("config error")
	// ErrAuth marks a fetch rejected by the remote service for credentials.
	ErrAuth = errors.New("auth error")
	// ErrTransport marks any other fetch failure.
	ErrTransport = errors.New("transport error")
	// ErrParse marks a single record that could not be normalized.
	ErrParse = errors.New("parse error")
	// ErrCommit marks a failed atomic commit; nothing from the run was persisted.
	ErrCommit = errors.New("commit error")
)

// ParseError describes why one raw record was dropped.
type ParseError struct {
	Index    int    // position in the fetched batch
	RecordID *int64 // nil when the id itself was unparsable
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.RecordID != nil {
		return fmt.Sprintf("record %d (id %d): field %q: %v", e.Index, *e.RecordID, e.Field, e.Err)
	}
	return fmt.Sprintf("record %d: field %q: %v", e.Index, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// FetchError is returned by the remote source. Kind is ErrAuth or ErrTransport.
type FetchError struct {
	Kind       error
	StatusCode int // zero when no response was received
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("toggl: %v: unexpected status %d: %s", e.Kind, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("toggl: %v: unexpected status %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("toggl: %v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("toggl: %v", e.Kind)
	}
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CommitError wraps the failure that rolled back a batch.
type CommitError struct {
	// Duplicate is set when the store rejected a row for an existing key,
	// typically because a concurrent run committed it first.
	Duplicate bool
	Err       error
}

func (e *CommitError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("commit: duplicate key: %v", e.Err)
	}
	return fmt.Sprintf("commit: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

func (e *CommitError) Is(target error) bool { return target == ErrCommit }
