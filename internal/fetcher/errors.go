package fetcher

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/multierr"
)

// FetchError is the failure of one candidate download. Status is zero when
// no HTTP response was received (transport failure, timeout).
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("downloading %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NotFound reports whether the host said the artifact does not exist. A
// release tagged under a different naming convention surfaces this way.
func (e *FetchError) NotFound() bool {
	return e.Status == http.StatusNotFound || e.Status == http.StatusGone
}

// AggregateError is returned when every candidate download failed. It keeps
// each candidate's failure so callers can tell "no such release tag" apart
// from a network outage.
type AggregateError struct {
	Errs []error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("all %d candidate downloads failed: %v", len(e.Errs), multierr.Combine(e.Errs...))
}

func (e *AggregateError) Unwrap() []error { return e.Errs }

// AllNotFound reports whether every candidate failed with a not-found
// status, which usually means the release simply is not tagged the way we
// guessed rather than anything being wrong.
func (e *AggregateError) AllNotFound() bool {
	if len(e.Errs) == 0 {
		return false
	}
	for _, err := range e.Errs {
		var fe *FetchError
		if !errors.As(err, &fe) || !fe.NotFound() {
			return false
		}
	}
	return true
}

// ExtractError is a corrupt or truncated archive. It is distinct from
// FetchError so callers can tell a bad download apart from a bad archive.
type ExtractError struct {
	Archive string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }
