package harness

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cmsync/internal/model"
	"github.com/roach88/cmsync/internal/reconcile"
)

// TestScenarios runs every scenario under testdata/scenarios.
func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Reports, len(s.Runs))
		})
	}
}

func folderScenario(expect ...ExpectItem) *Scenario {
	return &Scenario{
		Name:        "folders",
		Description: "one folder",
		Runs: []Run{{
			Declaration: model.Declaration{
				WebFolders: []model.WebFolder{{Path: "/news"}},
			},
			Expect: expect,
		}},
	}
}

func TestRun_ExpectationMet(t *testing.T) {
	result, err := Run(folderScenario(ExpectItem{Phase: "folders", Key: "/news", Outcome: "created"}))
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Reports, 1)
	require.Len(t, result.Reports[0].Items, 1)
	assert.Equal(t, int64(1), result.Reports[0].Items[0].ID)
}

func TestRun_ExpectationFailures(t *testing.T) {
	tests := []struct {
		name    string
		expect  ExpectItem
		wantErr string
	}{
		{
			name:    "wrong outcome",
			expect:  ExpectItem{Phase: "folders", Key: "/news", Outcome: "unchanged"},
			wantErr: `folders item "/news" unchanged`,
		},
		{
			name:    "missing item",
			expect:  ExpectItem{Phase: "folders", Key: "/blog", Outcome: "created"},
			wantErr: "not found in report",
		},
		{
			name:    "wrong phase",
			expect:  ExpectItem{Phase: "articles", Key: "/news", Outcome: "created"},
			wantErr: "not found in report",
		},
		{
			name:    "wrong error kind",
			expect:  ExpectItem{Phase: "folders", Key: "/news", Outcome: "created", ErrorKind: "PARSE_ERROR"},
			wantErr: "error kind PARSE_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(folderScenario(tt.expect))
			require.NoError(t, err)

			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "run 1: Assertion failed: expect")
			assert.Contains(t, result.Errors[0], tt.wantErr)
			assert.Contains(t, result.Errors[0], "[1] folders /news created")
		})
	}
}

func TestRun_ExpectationsConsumeInOrder(t *testing.T) {
	report := &reconcile.Report{Items: []reconcile.ItemResult{
		{Phase: reconcile.PhaseTemplates, Key: "SHARED", Outcome: reconcile.OutcomeCreated},
		{Phase: reconcile.PhaseTemplates, Key: "SHARED", Outcome: reconcile.OutcomeFailed, ErrKind: model.ErrDuplicateKey},
	}}

	require.NoError(t, checkExpectations(report, []ExpectItem{
		{Phase: "templates", Key: "SHARED", Outcome: "created"},
		{Phase: "templates", Key: "SHARED", Outcome: "failed", ErrorKind: "DUPLICATE_KEY"},
	}))

	err := checkExpectations(report, []ExpectItem{
		{Phase: "templates", Key: "SHARED", Outcome: "failed"},
		{Phase: "templates", Key: "SHARED", Outcome: "created"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: templates item \"SHARED\" failed")
}

func TestRun_RunAssertionsAreLabelled(t *testing.T) {
	s := folderScenario()
	s.Runs[0].Assertions = []Assertion{{Type: AssertRowCount, Table: "artifacts", Count: 5}}
	s.Assertions = []Assertion{{Type: AssertOutcomeCount, Outcome: "created", Count: 2}}

	result, err := Run(s)
	require.NoError(t, err)

	require.Len(t, result.Errors, 2)
	assert.True(t, strings.HasPrefix(result.Errors[0], "run 1: Assertion failed: row_count"))
	assert.True(t, strings.HasPrefix(result.Errors[1], "Assertion failed: outcome_count"))
}

func TestRun_IsolatedAndDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/idempotent_site.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Render(first)
	require.NoError(t, err)
	b, err := Render(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(folderScenario(), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "reconciliation started")
	assert.Contains(t, buf.String(), "scenario run finished")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	assert.Empty(t, r.Errors)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
	assert.Nil(t, r.run(1))
}
