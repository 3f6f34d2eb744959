// Package harness runs YAML scenarios against app definitions.
//
// A scenario names a definition file, the agents taking part, optional
// initial state and config overrides, and an ordered list of steps. Each
// step executes one action as one agent, optionally checking the result.
// After the steps run, assertions check final state, emitted
// observations and the execution journal.
//
// Runs are deterministic: generate_id() yields "id-0001", "id-0002", ...
// and every scenario executes against a fresh in-memory store. The trace
// of a run can be compared against a golden file with RunWithGolden.
//
// Example scenario:
//
//	name: transfer_basic
//	description: alice pays bob
//	definition: ../apps/payments.json
//	agents: [alice, bob]
//	steps:
//	  - agent: alice
//	    action: transfer
//	    params: {to: bob, amount: 100}
//	    expect:
//	      success: true
//	      data: {new_balance: 900}
//	assertions:
//	  - type: agent_state
//	    agent: bob
//	    path: balance
//	    equals: 1100
//	  - type: observation_count
//	    agent: bob
//	    count: 1
package harness
