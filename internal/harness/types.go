package harness

import "github.com/roach88/cmsync/internal/reconcile"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Reports holds one report per run, in run order.
	Reports []*reconcile.Report `json:"reports"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Reports: []*reconcile.Report{},
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// run returns the report of run n (1-based), or nil.
func (r *Result) run(n int) *reconcile.Report {
	if n < 1 || n > len(r.Reports) {
		return nil
	}
	return r.Reports[n-1]
}
