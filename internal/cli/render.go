package cli

import (
	"strconv"
	"time"

	"github.com/roach88/rollcall/internal/classify"
	"github.com/roach88/rollcall/internal/directory"
	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/store"
)

const notAvailable = "N/A"

var listTitles = map[string]string{
	engine.OpListAll:      "List of Users",
	engine.OpListNoLogin:  "List of Users with 0 Logins",
	engine.OpListInactive: "List of Inactive Users",
}

var noMatchMessages = map[string]string{
	engine.OpListAll:        "No users found.",
	engine.OpListNoLogin:    "No users with zero logins found.",
	engine.OpListInactive:   "No inactive users found.",
	engine.OpDeleteAll:      "Only the preserved user is left. No users were deleted.",
	engine.OpDeleteNoLogin:  "No users with zero logins found.",
	engine.OpDeleteInactive: "No inactive users found.",
	engine.OpImportUsers:    "The import file holds no users.",
}

var doneMessages = map[string]string{
	engine.OpDeleteAll:      "All users deleted successfully.",
	engine.OpDeleteNoLogin:  "All users with no logins deleted successfully.",
	engine.OpDeleteInactive: "All inactive users deleted successfully.",
	engine.OpAddUser:        "User added successfully.",
	engine.OpImportUsers:    "All users imported successfully.",
}

// renderListing prints a read-only result.
func renderListing(p *Printer, l *engine.Listing) {
	if l.Status == engine.RunAborted {
		renderAbort(p, l.Operation, l.AbortReason)
		return
	}

	p.Info("Fetched %d pages with %d users", l.Pages, l.RosterSize)
	if len(l.Matches) == 0 {
		p.Print(noMatchMessages[l.Operation])
		return
	}

	inactive := l.Operation == engine.OpListInactive
	if inactive {
		p.Print("Inactive Users: %d (last login before %s)", len(l.Matches), l.Cutoff.Format(time.DateOnly))
	}
	p.Header(listTitles[l.Operation])

	headers := []string{"Email", "User ID", "Logins", "Last Login"}
	if inactive {
		headers = append(headers, "Days Inactive")
	}
	rows := make([][]string, 0, len(l.Matches))
	for _, rec := range l.Matches {
		row := []string{rec.Email, rec.ID, loginCount(rec), lastLogin(rec)}
		if inactive {
			row = append(row, daysInactive(rec, l.AsOf))
		}
		rows = append(rows, row)
	}
	p.Table(headers, rows)
}

// renderReport prints the outcome of a mutating run.
func renderReport(p *Printer, r *engine.Report) {
	if r.RosterSize > 0 {
		p.Info("Fetched %d pages with %d users", r.Pages, r.RosterSize)
	}
	if r.Status == engine.RunAborted {
		renderAbort(p, r.Operation, r.AbortReason)
		return
	}
	if r.Preserved != nil {
		p.Print("Preserved user: %s (User ID: %s)", r.Preserved.Email, r.Preserved.ID)
	}

	for _, o := range r.Outcomes {
		if o.Status != engine.StatusSucceeded {
			continue
		}
		switch {
		case o.Kind == engine.KindDelete:
			p.Success("Deleted user: %s (%s)", o.RecordID, o.Email)
		case o.Created != nil:
			p.Success("Added user: %s (User ID: %s)", o.Created.Email, o.Created.ID)
		default:
			p.Success("Added user: %s", o.Email)
		}
	}

	if len(r.Failures) > 0 {
		p.Header("Failures")
		rows := make([][]string, 0, len(r.Failures))
		for _, f := range r.Failures {
			rows = append(rows, []string{f.Email, f.RecordID, p.StatusBadge(string(f.Status)), f.Reason})
		}
		p.Table([]string{"Email", "Record ID", "Status", "Reason"}, rows)
	}

	p.Print("\n%d attempted, %d succeeded, %d failed, %d abandoned",
		r.Attempted, r.Succeeded, r.Failed, r.Abandoned)

	switch {
	case r.Status == engine.RunInterrupted:
		p.Warning("Interrupted after %d of %d users. Remaining users were not touched.", r.Attempted, r.Matched)
	case r.HasFailures():
		p.Error("%d of %d users did not succeed.", r.Failed+r.Abandoned, r.Attempted)
	default:
		p.Success("%s", doneMessages[r.Operation])
	}
}

func renderAbort(p *Printer, op string, reason engine.AbortReason) {
	switch reason {
	case engine.AbortNoCredential:
		p.Warning("No access token was issued. Nothing was done.")
	case engine.AbortEmptyRoster:
		p.Print("No users found.")
	case engine.AbortDeclined:
		if op == engine.OpImportUsers {
			p.Print("Action cancelled. No users were created.")
		} else {
			p.Print("Action cancelled. No users were deleted.")
		}
	case engine.AbortNoMatches:
		p.Print(noMatchMessages[op])
	}
}

// renderRuns prints the journal's recent runs.
func renderRuns(p *Printer, runs []store.Run) {
	if len(runs) == 0 {
		p.Print("No runs recorded.")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := p.StatusBadge(run.Status)
		if run.AbortReason != "" {
			status += " (" + run.AbortReason + ")"
		}
		rows = append(rows, []string{
			run.ID,
			run.Operation,
			status,
			run.StartedAt.Local().Format(time.DateTime),
			strconv.Itoa(run.Attempted),
			strconv.Itoa(run.Succeeded),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Abandoned),
		})
	}
	p.Table([]string{"Run ID", "Operation", "Status", "Started", "Attempted", "Succeeded", "Failed", "Abandoned"}, rows)
}

func loginCount(rec directory.Record) string {
	if rec.LoginCount == nil {
		return notAvailable
	}
	return strconv.Itoa(*rec.LoginCount)
}

func lastLogin(rec directory.Record) string {
	if rec.LastLogin == nil {
		return "never"
	}
	return rec.LastLogin.UTC().Format(time.RFC3339)
}

func daysInactive(rec directory.Record, now time.Time) string {
	days, ok := classify.InactiveDays(rec, now)
	if !ok {
		return notAvailable
	}
	return strconv.Itoa(days)
}
