package engine

import "github.com/roach88/rollcall/internal/directory"

// Kind is the mutation a task performs.
type Kind string

const (
	KindDelete Kind = "delete"
	KindCreate Kind = "create"
)

// Task is one remote mutation. Delete tasks carry RecordID; create tasks
// carry User. Email is the display key for both.
type Task struct {
	Kind     Kind
	RecordID string
	Email    string
	User     directory.NewUser
}

// Key identifies the task's target in logs and errors.
func (t Task) Key() string {
	if t.RecordID != "" {
		return t.RecordID
	}
	return t.Email
}

// DeleteTasks builds one delete task per record, in roster order.
func DeleteTasks(roster directory.Roster) []Task {
	tasks := make([]Task, len(roster))
	for i, rec := range roster {
		tasks[i] = Task{Kind: KindDelete, RecordID: rec.ID, Email: rec.Email}
	}
	return tasks
}

// CreateTasks builds one create task per user, in input order.
func CreateTasks(users []directory.NewUser) []Task {
	tasks := make([]Task, len(users))
	for i, u := range users {
		tasks[i] = Task{Kind: KindCreate, Email: u.Email, User: u}
	}
	return tasks
}

// Status is the terminal state of a task.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned-after-retries"
)

// Outcome is the terminal result of one task.
type Outcome struct {
	Kind     Kind   `json:"kind"`
	RecordID string `json:"record_id,omitempty"`
	Email    string `json:"email"`
	Status   Status `json:"status"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason,omitempty"`

	// Created is the stored record for a successful create.
	Created *directory.Record `json:"created,omitempty"`

	// Err is the underlying error for failed and abandoned tasks.
	Err error `json:"-"`
}
