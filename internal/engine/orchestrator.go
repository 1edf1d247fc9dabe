package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/rollcall/internal/classify"
	"github.com/roach88/rollcall/internal/directory"
)

// Operation names, as reported and journaled.
const (
	OpListAll        = "list-all"
	OpListNoLogin    = "list-no-login"
	OpListInactive   = "list-inactive"
	OpDeleteAll      = "delete-all"
	OpDeleteNoLogin  = "delete-no-login"
	OpDeleteInactive = "delete-inactive"
	OpAddUser        = "add-user"
	OpImportUsers    = "import-users"
)

// Settings is the immutable run configuration handed to the orchestrator.
type Settings struct {
	Cutoff     classify.Cutoff
	Connection string
}

// TokenProvider supplies the bearer token for one operation.
// An empty token with a nil error means no credential is available.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// RosterFetcher fetches the full roster. *directory.Fetcher implements it.
type RosterFetcher interface {
	FetchAll(ctx context.Context, token string) (directory.Roster, int, error)
}

// ConfirmRequest describes a batch awaiting approval.
type ConfirmRequest struct {
	Operation string
	Prompt    string
	Count     int
	Emails    []string
}

// Confirmer is the confirmation gate in front of every mutating batch.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

// PasswordSource supplies passwords for single-user creation. attempt
// starts at 1 and grows each time the service rejects a password as weak.
type PasswordSource interface {
	Password(ctx context.Context, email string, attempt int) (string, error)
}

var confirmPrompts = map[string]string{
	OpDeleteAll:      "Are you sure you want to delete all users? This action is irreversible.",
	OpDeleteNoLogin:  "Are you sure you want to delete all users with no logins? This action is irreversible.",
	OpDeleteInactive: "Are you sure you want to delete all inactive users? This action is irreversible.",
	OpImportUsers:    "Are you sure you want to create these users?",
}

// selector picks the subset of a roster an operation acts on.
type selector func(roster directory.Roster, now time.Time) (directory.Roster, error)

func selectAll(roster directory.Roster, _ time.Time) (directory.Roster, error) {
	return classify.All(roster), nil
}

func selectNoLogin(roster directory.Roster, _ time.Time) (directory.Roster, error) {
	return classify.NoLogin(roster), nil
}

// Orchestrator runs the Fetch, Classify, Confirm, Execute, Report pipeline.
//
// Each call is an independent run: no roster or report outlives it.
type Orchestrator struct {
	tokens    TokenProvider
	fetcher   RosterFetcher
	executor  *Executor
	confirmer Confirmer
	settings  Settings
	journal   Journal
	runIDs    RunIDGenerator
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithJournal records every mutating run to j.
func WithJournal(j Journal) OrchestratorOption {
	return func(o *Orchestrator) {
		if j != nil {
			o.journal = j
		}
	}
}

// WithRunIDs sets the run id generator.
func WithRunIDs(g RunIDGenerator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.runIDs = g
	}
}

// NewOrchestrator wires the pipeline. The orchestrator shares the
// executor's clock and logger. A nil confirmer declines every batch.
func NewOrchestrator(
	tokens TokenProvider,
	fetcher RosterFetcher,
	executor *Executor,
	confirmer Confirmer,
	settings Settings,
	opts ...OrchestratorOption,
) *Orchestrator {
	if confirmer == nil {
		confirmer = declineAll{}
	}
	o := &Orchestrator{
		tokens:    tokens,
		fetcher:   fetcher,
		executor:  executor,
		confirmer: confirmer,
		settings:  settings,
		journal:   nopJournal{},
		runIDs:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type declineAll struct{}

func (declineAll) Confirm(context.Context, ConfirmRequest) (bool, error) { return false, nil }

// ListAll returns every record in the roster.
func (o *Orchestrator) ListAll(ctx context.Context) (*Listing, error) {
	return o.list(ctx, OpListAll, nil, selectAll)
}

// ListNoLogin returns the records that never logged in.
func (o *Orchestrator) ListNoLogin(ctx context.Context) (*Listing, error) {
	return o.list(ctx, OpListNoLogin, nil, selectNoLogin)
}

// ListInactive returns the records inactive under the configured cutoff.
// An unset cutoff is a CONFIG error raised before anything is fetched.
func (o *Orchestrator) ListInactive(ctx context.Context) (*Listing, error) {
	if err := o.settings.Cutoff.Validate(); err != nil {
		return nil, err
	}
	return o.list(ctx, OpListInactive, &o.settings.Cutoff, o.selectInactive)
}

// DeleteAll deletes every record except the last one in fetch order.
func (o *Orchestrator) DeleteAll(ctx context.Context) (*Report, error) {
	return o.deleteRun(ctx, OpDeleteAll, selectAll, true)
}

// DeleteNoLogin deletes the records that never logged in.
func (o *Orchestrator) DeleteNoLogin(ctx context.Context) (*Report, error) {
	return o.deleteRun(ctx, OpDeleteNoLogin, selectNoLogin, false)
}

// DeleteInactive deletes the records inactive under the configured cutoff.
func (o *Orchestrator) DeleteInactive(ctx context.Context) (*Report, error) {
	if err := o.settings.Cutoff.Validate(); err != nil {
		return nil, err
	}
	return o.deleteRun(ctx, OpDeleteInactive, o.selectInactive, false)
}

// AddUser creates a single user, asking src for a password. A password the
// service rejects as too weak triggers another request for the same email;
// any other outcome ends the run. There is no confirmation gate for a
// single creation.
func (o *Orchestrator) AddUser(ctx context.Context, email string, src PasswordSource) (*Report, error) {
	if o.settings.Connection == "" {
		return nil, directory.NewConfigError("connection not set: required to create users")
	}

	report := o.begin(ctx, OpAddUser)
	report.Matched = 1

	token, ok, err := o.token(ctx, report)
	if err != nil || !ok {
		return o.settle(ctx, report, err)
	}

	for attempt := 1; ; attempt++ {
		password, err := src.Password(ctx, email, attempt)
		if err != nil {
			return o.settle(ctx, report, fmt.Errorf("read password: %w", err))
		}

		task := Task{
			Kind:  KindCreate,
			Email: email,
			User:  directory.NewUser{Email: email, Password: password, Connection: o.settings.Connection},
		}
		out := o.executor.Execute(ctx, token, task)
		if out.Status == StatusFailed && directory.IsPasswordStrength(out.Err) {
			o.executor.logger.Warn("password rejected as too weak", "email", email, "attempt", attempt)
			continue
		}

		report.Add(out)
		o.record(ctx, report.RunID, 1, out)
		report.Status = RunCompleted
		return o.settle(ctx, report, nil)
	}
}

// ImportUsers creates users from already-read import records. Every record
// must use the configured connection; a record naming another connection
// fails validation before any mutation.
func (o *Orchestrator) ImportUsers(ctx context.Context, users []directory.NewUser) (*Report, error) {
	if o.settings.Connection == "" {
		return nil, directory.NewConfigError("connection not set: required to create users")
	}

	prepared := make([]directory.NewUser, len(users))
	for i, u := range users {
		switch u.Connection {
		case "":
			u.Connection = o.settings.Connection
		case o.settings.Connection:
		default:
			return nil, directory.NewValidationError(u.Email,
				fmt.Errorf("connection %q does not match configured connection %q", u.Connection, o.settings.Connection))
		}
		prepared[i] = u
	}

	report := o.begin(ctx, OpImportUsers)
	report.Matched = len(prepared)

	if len(prepared) == 0 {
		return o.abort(ctx, report, AbortNoMatches)
	}

	token, ok, err := o.token(ctx, report)
	if err != nil || !ok {
		return o.settle(ctx, report, err)
	}

	emails := make([]string, len(prepared))
	for i, u := range prepared {
		emails[i] = u.Email
	}
	if done, rep, err := o.gate(ctx, report, emails); done {
		return rep, err
	}

	return o.execute(ctx, report, token, CreateTasks(prepared))
}

func (o *Orchestrator) selectInactive(roster directory.Roster, now time.Time) (directory.Roster, error) {
	return classify.Inactive(roster, o.settings.Cutoff, now)
}

func (o *Orchestrator) list(ctx context.Context, op string, cutoff *classify.Cutoff, sel selector) (*Listing, error) {
	now := o.executor.clock.Now()
	listing := &Listing{Operation: op, AsOf: now, Matches: directory.Roster{}}
	if cutoff != nil {
		instant, err := cutoff.Instant(now)
		if err != nil {
			return nil, err
		}
		listing.Cutoff = &instant
	}

	token, err := o.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		listing.Status = RunAborted
		listing.AbortReason = AbortNoCredential
		return listing, nil
	}

	roster, pages, err := o.fetcher.FetchAll(ctx, token)
	if err != nil {
		return nil, err
	}
	listing.RosterSize = len(roster)
	listing.Pages = pages
	if len(roster) == 0 {
		listing.Status = RunAborted
		listing.AbortReason = AbortEmptyRoster
		return listing, nil
	}

	matches, err := sel(roster, now)
	if err != nil {
		return nil, err
	}
	listing.Matches = matches
	listing.Status = RunCompleted
	return listing, nil
}

func (o *Orchestrator) deleteRun(ctx context.Context, op string, sel selector, preserveLast bool) (*Report, error) {
	report := o.begin(ctx, op)

	token, ok, err := o.token(ctx, report)
	if err != nil || !ok {
		return o.settle(ctx, report, err)
	}

	roster, pages, err := o.fetcher.FetchAll(ctx, token)
	if err != nil {
		return o.settle(ctx, report, err)
	}
	report.RosterSize = len(roster)
	report.Pages = pages
	if len(roster) == 0 {
		return o.abort(ctx, report, AbortEmptyRoster)
	}

	matches, err := sel(roster, o.executor.clock.Now())
	if err != nil {
		return o.settle(ctx, report, err)
	}
	if preserveLast {
		// An empty directory cannot be recovered from; one record always stays.
		last := roster[len(roster)-1]
		report.Preserved = &last
		matches = withoutID(matches, last.ID)
	}
	report.Matched = len(matches)
	if len(matches) == 0 {
		return o.abort(ctx, report, AbortNoMatches)
	}

	emails := make([]string, len(matches))
	for i, rec := range matches {
		emails[i] = rec.Email
	}
	if done, rep, err := o.gate(ctx, report, emails); done {
		return rep, err
	}

	return o.execute(ctx, report, token, DeleteTasks(matches))
}

func withoutID(roster directory.Roster, id string) directory.Roster {
	out := make(directory.Roster, 0, len(roster))
	for _, rec := range roster {
		if rec.ID != id {
			out = append(out, rec)
		}
	}
	return out
}

// gate asks the confirmer. done is true when the run ended here.
func (o *Orchestrator) gate(ctx context.Context, report *Report, emails []string) (done bool, rep *Report, err error) {
	approved, err := o.confirmer.Confirm(ctx, ConfirmRequest{
		Operation: report.Operation,
		Prompt:    confirmPrompts[report.Operation],
		Count:     len(emails),
		Emails:    emails,
	})
	if err != nil {
		rep, err = o.settle(ctx, report, fmt.Errorf("confirmation: %w", err))
		return true, rep, err
	}
	if !approved {
		rep, err = o.abort(ctx, report, AbortDeclined)
		return true, rep, err
	}
	return false, nil, nil
}

func (o *Orchestrator) execute(ctx context.Context, report *Report, token string, tasks []Task) (*Report, error) {
	seq := 0
	_, interrupted := o.executor.RunBatch(ctx, token, tasks, func(out Outcome) {
		seq++
		report.Add(out)
		o.record(ctx, report.RunID, seq, out)
	})

	report.Status = RunCompleted
	if interrupted {
		report.Status = RunInterrupted
	}
	o.executor.logger.Info("batch finished",
		"operation", report.Operation,
		"status", report.Status,
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"abandoned", report.Abandoned)
	return o.settle(ctx, report, nil)
}

// token acquires the run's credential. ok is false when the run was
// aborted for lack of one.
func (o *Orchestrator) token(ctx context.Context, report *Report) (token string, ok bool, err error) {
	token, err = o.tokens.Token(ctx)
	if err != nil {
		return "", false, err
	}
	if token == "" {
		report.Status = RunAborted
		report.AbortReason = AbortNoCredential
		return "", false, nil
	}
	return token, true, nil
}

func (o *Orchestrator) begin(ctx context.Context, op string) *Report {
	report := newReport(o.runIDs.Generate(), op, o.executor.clock.Now())
	if err := o.journal.BeginRun(context.WithoutCancel(ctx), report.RunID, op, report.StartedAt); err != nil {
		o.executor.logger.Warn("journal begin failed", "run_id", report.RunID, "error", err)
	}
	return report
}

func (o *Orchestrator) abort(ctx context.Context, report *Report, reason AbortReason) (*Report, error) {
	report.Status = RunAborted
	report.AbortReason = reason
	o.executor.logger.Info("run aborted", "operation", report.Operation, "reason", reason)
	return o.settle(ctx, report, nil)
}

func (o *Orchestrator) record(ctx context.Context, runID string, seq int, out Outcome) {
	if err := o.journal.RecordOutcome(context.WithoutCancel(ctx), runID, seq, out); err != nil {
		o.executor.logger.Warn("journal outcome failed", "run_id", runID, "seq", seq, "error", err)
	}
}

// settle stamps and journals the report. A non-nil err marks the run
// failed and is returned in place of the report.
func (o *Orchestrator) settle(ctx context.Context, report *Report, err error) (*Report, error) {
	report.FinishedAt = o.executor.clock.Now()
	if err != nil {
		report.Status = RunFailed
		report.Error = err.Error()
	}
	if jerr := o.journal.FinishRun(context.WithoutCancel(ctx), report); jerr != nil {
		o.executor.logger.Warn("journal finish failed", "run_id", report.RunID, "error", jerr)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}
