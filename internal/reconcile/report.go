package reconcile

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/cmsync/internal/model"
)

// Phase names a reconciliation phase. Phases run in the order of Phases.
type Phase string

const (
	PhaseDefinitions Phase = "definitions"
	PhaseTemplates   Phase = "templates"
	PhaseRecordSets  Phase = "record_sets"
	PhaseArticles    Phase = "articles"
	PhaseFolders     Phase = "folders"
)

// Phases lists every phase in execution order.
var Phases = []Phase{
	PhaseDefinitions,
	PhaseTemplates,
	PhaseRecordSets,
	PhaseArticles,
	PhaseFolders,
}

// Outcome is the result of one item.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{
	OutcomeCreated,
	OutcomeUpdated,
	OutcomeUnchanged,
	OutcomeFailed,
	OutcomeSkipped,
}

// ItemResult records what happened to one declared item.
type ItemResult struct {
	Phase   Phase           `json:"phase"`
	Key     string          `json:"key"`
	ID      int64           `json:"id,omitempty"`
	Outcome Outcome         `json:"outcome"`
	ErrKind model.ErrorKind `json:"error_kind,omitempty"`
	Error   string          `json:"error,omitempty"`
	Err     error           `json:"-"`
}

// Report collects item results of one Reconcile call.
//
// A report is observational: it mirrors what was logged and never changes
// how the run proceeds.
type Report struct {
	Scope model.Scope  `json:"scope"`
	Items []ItemResult `json:"items"`
}

func (r *Report) add(res ItemResult) {
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	r.Items = append(r.Items, res)
}

// Failed returns the failed items in execution order.
func (r *Report) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Outcome == OutcomeFailed {
			out = append(out, it)
		}
	}
	return out
}

// HasFailures reports whether any item failed.
func (r *Report) HasFailures() bool {
	return len(r.Failed()) > 0
}

// Counts returns the number of items per outcome. Every outcome is present.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes))
	for _, o := range Outcomes {
		counts[o] = 0
	}
	for _, it := range r.Items {
		counts[it.Outcome]++
	}
	return counts
}

// WriteText renders the report as an aligned table followed by a summary
// line. The output is deterministic for a given report.
func (r *Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "scope %d (company %d)\n\n", r.Scope.ID, r.Scope.CompanyID); err != nil {
		return err
	}

	var table bytes.Buffer
	tw := tabwriter.NewWriter(&table, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tKEY\tID\tOUTCOME\tDETAIL")
	for _, it := range r.Items {
		id := "-"
		if it.ID != 0 {
			id = fmt.Sprint(it.ID)
		}
		detail := ""
		if it.ErrKind != "" {
			detail = string(it.ErrKind)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.Phase, it.Key, id, it.Outcome, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, line := range strings.SplitAfter(table.String(), "\n") {
		if line == "" {
			continue
		}
		if _, err := io.WriteString(w, strings.TrimRight(line, " \n")+"\n"); err != nil {
			return err
		}
	}

	counts := r.Counts()
	parts := make([]string, 0, len(Outcomes))
	for _, o := range Outcomes {
		parts = append(parts, fmt.Sprintf("%d %s", counts[o], o))
	}
	_, err := fmt.Fprintf(w, "\n%d items: %s\n", len(r.Items), strings.Join(parts, ", "))
	return err
}
