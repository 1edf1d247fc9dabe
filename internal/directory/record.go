package directory

import "time"

// Record is one identity as returned by the directory's users endpoint.
//
// LoginCount and LastLogin are pointers because the service omits them for
// users that never signed in. A nil LoginCount means "unknown/never
// recorded"; a nil LastLogin means "never logged in".
type Record struct {
	ID         string     `json:"user_id"`
	Email      string     `json:"email"`
	LoginCount *int       `json:"logins_count,omitempty"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// Roster is the ordered set of records fetched in one pagination sweep.
// Order is the order the source returned pages and records in.
type Roster []Record

// IDs returns the record IDs in roster order.
func (r Roster) IDs() []string {
	ids := make([]string, len(r))
	for i, rec := range r {
		ids[i] = rec.ID
	}
	return ids
}

// NewUser is the payload for creating a user.
type NewUser struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Connection string `json:"connection"`
}
