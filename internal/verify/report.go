package verify

import (
	"fmt"
	"io"
)

// Status is the per-dependency outcome.
type Status string

const (
	// StatusOK means every compared file pair hashed equal.
	StatusOK Status = "OK"
	// StatusMismatch means at least one file pair diverged.
	StatusMismatch Status = "MISMATCH"
	// StatusSkipped means the package publishes no repository URL, so
	// source-side verification is impossible. Expected, not an error.
	StatusSkipped Status = "SKIPPED"
	// StatusError means the dependency could not be verified.
	StatusError Status = "ERROR"
)

// Verdict is the outcome of verifying one dependency.
type Verdict struct {
	Dependency string `json:"dependency"`
	Version    string `json:"version,omitempty"`
	Status     Status `json:"status"`

	// MismatchedPaths lists every diverging file, sorted.
	MismatchedPaths []string `json:"mismatchedPaths"`

	// MissingPaths lists files present in the registry tarball but absent
	// from the source archive. Diagnostic only; they never count as
	// mismatches.
	MissingPaths []string `json:"missingPaths,omitempty"`

	// Reason explains SKIPPED and ERROR verdicts.
	Reason string `json:"reason,omitempty"`
}

// Summary counts verdicts per status.
type Summary struct {
	OK       int `json:"ok"`
	Mismatch int `json:"mismatch"`
	Skipped  int `json:"skipped"`
	Error    int `json:"error"`
}

// Report is the ordered sequence of verdicts for one run.
type Report struct {
	Verdicts []Verdict `json:"verdicts"`
	Summary  Summary   `json:"summary"`
}

// NewReport wraps verdicts and computes their summary.
func NewReport(verdicts []Verdict) *Report {
	r := &Report{Verdicts: verdicts}
	for _, v := range verdicts {
		switch v.Status {
		case StatusOK:
			r.Summary.OK++
		case StatusMismatch:
			r.Summary.Mismatch++
		case StatusSkipped:
			r.Summary.Skipped++
		case StatusError:
			r.Summary.Error++
		}
	}
	return r
}

// HasMismatch reports whether any dependency's artifacts diverged. This is
// the run's overall success signal: SKIPPED and ERROR verdicts do not by
// themselves indicate tampering.
func (r *Report) HasMismatch() bool { return r.Summary.Mismatch > 0 }

// RenderText writes one status line per dependency plus, for mismatches,
// the full list of diverging paths, followed by a run summary.
func (r *Report) RenderText(w io.Writer) error {
	for _, v := range r.Verdicts {
		line := fmt.Sprintf("%-9s %s@%s", v.Status, v.Dependency, v.Version)
		if v.Reason != "" {
			line += fmt.Sprintf(" (%s)", v.Reason)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for _, p := range v.MismatchedPaths {
			if _, err := fmt.Fprintf(w, "    ~ %s\n", p); err != nil {
				return err
			}
		}
		for _, p := range v.MissingPaths {
			if _, err := fmt.Fprintf(w, "    ? %s (registry only, not compared)\n", p); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "\n%d ok, %d mismatch, %d skipped, %d error\n",
		r.Summary.OK, r.Summary.Mismatch, r.Summary.Skipped, r.Summary.Error)
	return err
}
