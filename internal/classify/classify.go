// Package classify derives record subsets from a roster.
//
// Every function here is pure: no I/O, no clock reads. Callers pass "now"
// explicitly so the cutoff is computed at classification time and tests
// stay deterministic. Output order always matches input order.
package classify

import (
	"time"

	"github.com/roach88/rollcall/internal/directory"
)

// Cutoff is the inactivity policy: a record is inactive when its last login
// is strictly before now minus Months months and Days days.
type Cutoff struct {
	Months int `json:"months" mapstructure:"months"`
	Days   int `json:"days" mapstructure:"days"`
}

// Validate rejects a policy with no positive component. Treating "no
// cutoff" as "cutoff = now" would mark every record inactive.
func (c Cutoff) Validate() error {
	if c.Months < 0 || c.Days < 0 {
		return directory.NewConfigError("inactivity cutoff must not be negative (months=%d, days=%d)", c.Months, c.Days)
	}
	if c.Months == 0 && c.Days == 0 {
		return directory.NewConfigError("inactivity cutoff not set: months or days must be positive")
	}
	return nil
}

// Instant returns the cutoff point relative to now.
func (c Cutoff) Instant(now time.Time) (time.Time, error) {
	if err := c.Validate(); err != nil {
		return time.Time{}, err
	}
	return now.AddDate(0, -c.Months, -c.Days), nil
}

// IsZero reports whether neither component is set.
func (c Cutoff) IsZero() bool {
	return c.Months == 0 && c.Days == 0
}

// All returns the roster unchanged. It is the selector for the
// list-all and delete-all operations.
func All(roster directory.Roster) directory.Roster {
	return roster
}

// NoLogin returns the records whose login count is absent or zero.
func NoLogin(roster directory.Roster) directory.Roster {
	out := directory.Roster{}
	for _, rec := range roster {
		if rec.LoginCount == nil || *rec.LoginCount == 0 {
			out = append(out, rec)
		}
	}
	return out
}

// Inactive returns the records that never logged in or whose last login is
// strictly earlier than the cutoff instant. A missing login timestamp counts
// as maximally inactive.
func Inactive(roster directory.Roster, cutoff Cutoff, now time.Time) (directory.Roster, error) {
	instant, err := cutoff.Instant(now)
	if err != nil {
		return nil, err
	}

	out := directory.Roster{}
	for _, rec := range roster {
		if rec.LastLogin == nil || rec.LastLogin.Before(instant) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// InactiveDays returns the whole days elapsed since rec's last login.
// ok is false when the record never logged in.
func InactiveDays(rec directory.Record, now time.Time) (days int, ok bool) {
	if rec.LastLogin == nil {
		return 0, false
	}
	return int(now.Sub(*rec.LastLogin) / (24 * time.Hour)), true
}
