// Package harness provides conformance testing for Dhall documents.
//
// A scenario is a small file tree plus the expected outcome of evaluating
// one document in it. The harness resolves, type-checks, and normalizes
// the document against in-memory backends, checks the outcome against the
// scenario's expectations, and verifies the principles every successful
// evaluation must satisfy.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	entry: main.dhall            # defaults to main.dhall
//	files:
//	  main.dhall: ./lib.dhall + 1
//	  lib.dhall: "41"
//	env:
//	  PORT: "8080"
//	remote:
//	  https://example.com/lib.dhall:
//	    body: "1"
//	    cors: "*"
//	policy:                      # omitted: every import is allowed
//	  allow_env: false
//	expect:
//	  type: Natural
//	  normal: "42"
//	  json: "42"
//	  imports: [./lib.dhall]
//	  same_hash_as: [other.dhall]
//	  error: IMPORT_CYCLE        # excludes the fields above
//
// # Principles
//
// Every successful evaluation is also checked against these principles:
//
//   - normalize_idempotent: normalizing a normal form changes nothing
//   - type_preserved: the normal form has the same type as the document
//   - encoding_round_trip: decoding the encoded normal form yields its
//     alpha-normal form
//   - hash_alpha_invariant: alpha-renaming the normal form keeps its hash
//
// # Deterministic Testing
//
// Files live in an in-memory tree rooted at /scenario, the environment is
// exactly the scenario's env map, and remote documents come from the
// scenario's remote map. Resolution IDs are fixed, so outcomes can be
// compared against golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/merge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
