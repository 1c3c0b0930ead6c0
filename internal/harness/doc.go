// Package harness runs reconciliation scenarios as executable contract
// tests.
//
// A scenario declares a set of input files and a sequence of runs. Each run
// reconciles one declaration against the same fresh in-memory store, so a
// scenario can describe a first apply, an edit, and a re-apply in order.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: rename_keeps_identity
//	description: "Renaming a definition updates it in place"
//	files:
//	  schemas/s1.json: '{"fields":[{"name":"body","type":"text"}]}'
//	runs:
//	  - declaration:
//	      document_definitions:
//	        - key: S1
//	          path: schemas/s1.json
//	    expect:
//	      - {phase: definitions, key: S1, outcome: created}
//	    assertions:
//	      - type: row_count
//	        table: artifacts
//	        where: {kind: document_definition}
//	        count: 1
//	assertions:
//	  - type: same_ids
//	    key: S1
//
// Declarations use the same field names as declaration files. Unknown
// fields are rejected.
//
// # Expectations
//
// A run's expect list is matched against its report in order: each entry
// matches the next item with the same phase and key. Outcome and, when
// given, error_kind must agree.
//
// # Assertion Types
//
//   - outcome_count: number of items with an outcome, optionally within one
//     phase and one run
//   - item_order: keys appear in this order within a run
//   - same_ids: an item keeps one non-zero id across every run
//   - row_count: number of store rows matching a where clause
//   - final_state: the single store row matching a where clause has the
//     expected column values
//
// Run-level assertions are evaluated right after that run; scenario-level
// assertions after the last run.
//
// # Deterministic Testing
//
// Every scenario starts from an empty in-memory SQLite store with the
// fixture scope registered, and generated article ids come from a sequence
// ("gen-1", "gen-2", ...). Reports are therefore stable and can be compared
// against golden files with RunWithGolden.
package harness
