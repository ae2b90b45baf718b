// Package harness runs ledger scenarios and checks their event traces.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	initial:            # optional starting ledger state
//	  xp: 0
//	  coins: 50
//	session: true       # optional: sign in against a scripted remote ledger
//	remote:             # optional starting totals of the scripted remote
//	  xp: 0
//	  coins: 0
//	steps:
//	  - action: toggle
//	    args: { id: task-exercise, xp: 20, coins: 10 }
//	  - action: buy
//	    args: { item: hat, price: 60 }
//	    expect: { ok: false }
//	assertions:
//	  - type: final_state
//	    expect: { xp: 20, coins: 60, tasks.task-exercise: false }
//	  - type: trace_count
//	    event: xpChanged
//	    count: 1
//
// # Actions
//
//   - toggle {id, xp?, coins?}: ToggleTask; without xp/coins the catalog reward applies
//   - buy {item, price}: BuyItem; expect.ok reports success
//   - add_xp {amount}, add_coins {amount}
//   - spend {amount}: SpendCoins; expect.ok reports success
//   - add_task {id}: AddTask; expect.error names the failure (limit, completed, exists)
//   - pull {}: fetch remote totals (requires session)
//   - fail_remote {}: make later remote calls fail
//
// # Assertion Types
//
//   - trace_contains: an entry with the given event name and field subset
//   - trace_order: events appear in the given relative order
//   - trace_count: an event appears exactly N times
//   - request_count: exactly N remote requests were sent
//   - final_state: flattened ledger state matches (xp, coins, level,
//     tasks.<id>, items.<id>)
//
// # Deterministic Testing
//
// Remote calls complete inline and their responses are drained from the
// timeline after each step, so a scenario always produces the same trace.
// Request ids are sequential (req-1, req-2, ...). Traces are compared
// against golden files in testdata/golden.
package harness
