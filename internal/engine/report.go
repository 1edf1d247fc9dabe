package engine

import (
	"time"

	"github.com/roach88/rollcall/internal/directory"
)

// RunStatus is the terminal state of an orchestrated operation.
type RunStatus string

const (
	// RunCompleted means the batch ran to the end. Per-item failures may
	// still be present in the report.
	RunCompleted RunStatus = "completed"

	// RunAborted means the pipeline stopped before any mutation for a
	// normal reason (see AbortReason).
	RunAborted RunStatus = "aborted"

	// RunInterrupted means the context was cancelled between tasks. The
	// report covers only the tasks actually attempted.
	RunInterrupted RunStatus = "interrupted"

	// RunFailed means the operation stopped on an AUTH, FETCH or CONFIG
	// error. Only the journal sees this status; callers get the error.
	RunFailed RunStatus = "failed"
)

// AbortReason says why a run stopped before mutating anything.
type AbortReason string

const (
	AbortNoCredential AbortReason = "no-credential"
	AbortEmptyRoster  AbortReason = "empty-roster"
	AbortDeclined     AbortReason = "declined"
	AbortNoMatches    AbortReason = "no-matches"
)

// Failure names one record that did not succeed and why.
type Failure struct {
	RecordID string `json:"record_id,omitempty"`
	Email    string `json:"email"`
	Status   Status `json:"status"`
	Reason   string `json:"reason"`
}

// Report is the aggregate result of one mutating operation. It is built
// once per run, handed to the caller, and then discarded.
type Report struct {
	RunID       string      `json:"run_id"`
	Operation   string      `json:"operation"`
	Status      RunStatus   `json:"status"`
	AbortReason AbortReason `json:"abort_reason,omitempty"`
	Error       string      `json:"error,omitempty"`

	RosterSize int `json:"roster_size"`
	Pages      int `json:"pages"`
	Matched    int `json:"matched"`
	Attempted  int `json:"attempted"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Abandoned  int `json:"abandoned"`

	// Preserved is the record delete-all kept back.
	Preserved *directory.Record `json:"preserved,omitempty"`

	Failures []Failure `json:"failures"`
	Outcomes []Outcome `json:"outcomes"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func newReport(runID, operation string, started time.Time) *Report {
	return &Report{
		RunID:     runID,
		Operation: operation,
		Failures:  []Failure{},
		Outcomes:  []Outcome{},
		StartedAt: started,
	}
}

// Add records one task outcome.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Attempted++

	switch o.Status {
	case StatusSucceeded:
		r.Succeeded++
		return
	case StatusFailed:
		r.Failed++
	case StatusAbandoned:
		r.Abandoned++
	}
	r.Failures = append(r.Failures, Failure{
		RecordID: o.RecordID,
		Email:    o.Email,
		Status:   o.Status,
		Reason:   o.Reason,
	})
}

// HasFailures reports whether any task failed or was abandoned.
func (r *Report) HasFailures() bool {
	return r.Failed+r.Abandoned > 0
}

// Declined reports whether the run stopped at the confirmation gate.
func (r *Report) Declined() bool {
	return r.Status == RunAborted && r.AbortReason == AbortDeclined
}

// Listing is the result of a read-only operation.
type Listing struct {
	Operation   string      `json:"operation"`
	Status      RunStatus   `json:"status"`
	AbortReason AbortReason `json:"abort_reason,omitempty"`

	RosterSize int              `json:"roster_size"`
	Pages      int              `json:"pages"`
	Cutoff     *time.Time       `json:"cutoff,omitempty"`
	Matches    directory.Roster `json:"matches"`

	// AsOf is the "now" the classification used.
	AsOf time.Time `json:"as_of"`
}
