package harness

import (
	"github.com/roach88/nvsh/internal/snapshot"
	"github.com/roach88/nvsh/internal/store"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors holds one message per failed assertion.
	Errors []string `json:"errors,omitempty"`

	// Steps is the number of steps executed.
	Steps int `json:"steps"`

	// Forks counts escapes to a forked child.
	Forks int `json:"forks"`

	// Events are the scope events of the run, in seq order.
	Events []store.EventRecord `json:"events"`

	// Snapshot is the root shell's tree after every scope was closed.
	Snapshot *snapshot.Snapshot `json:"snapshot"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Events: []store.EventRecord{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
