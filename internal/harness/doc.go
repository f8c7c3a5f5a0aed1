// Package harness runs ledger scenarios against a shared SQLite database.
//
// A scenario names a set of masters and a sequence of ledger operations.
// Every master gets its own store on the same database file, so the
// scenario exercises the same cross-connection arbitration that separate
// master processes rely on.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	masters: [m-alpha, m-beta]
//	steps:
//	  - op: register
//	    name: git-poller-1
//	    expect: { id: 1 }
//	  - op: claim
//	    master: m-alpha
//	    id: 1
//	    expect: { outcome: claimed }
//	  - op: list
//	    filter: { active: false }
//	    expect:
//	      views: []
//
// Supported ops are register, claim, release, owner, list and get. A step's
// master selects whose store runs it; steps without one use the first
// master's store. A release with owner_checked: true only removes the
// step master's own claim.
//
// # Golden Files
//
// RunWithGolden compares the recorded trace against
// testdata/golden/{scenario.Name}.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
