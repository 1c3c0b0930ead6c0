package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cmsync/internal/model"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/rename_keeps_identity.yaml")
	require.NoError(t, err)

	assert.Equal(t, "rename_keeps_identity", scenario.Name)
	assert.Contains(t, scenario.Files, "schemas/s1.json")
	require.Len(t, scenario.Runs, 2)
	assert.Equal(t, []model.DocumentDefinition{{
		Key:  "S1",
		Name: "S1-v2",
		Path: "schemas/s1.json",
	}}, scenario.Runs[1].Declaration.DocumentDefinitions)
	assert.Equal(t, []ExpectItem{{Phase: "definitions", Key: "S1", Outcome: "updated"}}, scenario.Runs[1].Expect)
	require.Len(t, scenario.Assertions, 3)
	assert.Equal(t, AssertRowCount, scenario.Assertions[1].Type)
	assert.Equal(t, map[string]any{"kind": "document_definition"}, scenario.Assertions[1].Where)
}

func TestLoadScenario_Anchors(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/idempotent_site.yaml")
	require.NoError(t, err)

	require.Len(t, scenario.Runs, 2)
	assert.Equal(t, scenario.Runs[0].Declaration, scenario.Runs[1].Declaration)
	assert.Len(t, scenario.Runs[1].Declaration.Articles, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "articels")
}

func TestLoadScenario_MissingRuns(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/missing_runs.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one run is required")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nruns: [{declaration: {}}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nruns: [{declaration: {}}]\n",
			wantErr: "description is required",
		},
		{
			name: "unknown phase",
			yaml: `name: n
description: d
runs:
  - declaration: {}
    expect:
      - {phase: pages, key: A, outcome: created}
`,
			wantErr: `runs[0].expect[0]: unknown phase "pages"`,
		},
		{
			name: "unknown outcome",
			yaml: `name: n
description: d
runs:
  - declaration: {}
    expect:
      - {phase: articles, key: A, outcome: published}
`,
			wantErr: `unknown outcome "published"`,
		},
		{
			name: "expect without key",
			yaml: `name: n
description: d
runs:
  - declaration: {}
    expect:
      - {phase: articles, outcome: created}
`,
			wantErr: "key is required",
		},
		{
			name: "unknown assertion type",
			yaml: `name: n
description: d
runs: [{declaration: {}}]
assertions:
  - type: trace_contains
`,
			wantErr: `assertions[0]: unknown assertion type "trace_contains"`,
		},
		{
			name: "run out of range",
			yaml: `name: n
description: d
runs: [{declaration: {}}]
assertions:
  - {type: outcome_count, run: 2, outcome: created}
`,
			wantErr: "run 2 out of range 1..1",
		},
		{
			name: "item_order needs two keys",
			yaml: `name: n
description: d
runs: [{declaration: {}}]
assertions:
  - {type: item_order, keys: [A]}
`,
			wantErr: "item_order needs at least two keys",
		},
		{
			name: "same_ids without key",
			yaml: `name: n
description: d
runs: [{declaration: {}}]
assertions:
  - {type: same_ids}
`,
			wantErr: "key is required for same_ids",
		},
		{
			name: "row_count without table",
			yaml: `name: n
description: d
runs: [{declaration: {}}]
assertions:
  - {type: row_count, count: 1}
`,
			wantErr: "table is required for row_count",
		},
		{
			name: "final_state without expect",
			yaml: `name: n
description: d
runs:
  - declaration: {}
    assertions:
      - {type: final_state, table: artifacts}
`,
			wantErr: "runs[0].assertions[0]: expect is required for final_state",
		},
		{
			name: "negative count",
			yaml: `name: n
description: d
runs: [{declaration: {}}]
assertions:
  - {type: row_count, table: artifacts, count: -1}
`,
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "template_key_collision")
}

func TestLoadScenarios_ReportsFailingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: [\n"), 0o644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}
