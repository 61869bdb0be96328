// Package harness runs freeze correlation scenarios end to end.
//
// A scenario feeds events through the real ingest pipeline, plugin,
// scheduler and resolver on a fake clock, then checks the resolutions
// and reports it produced.
//
// # Scenario Format
//
//	name: ui_block_6s
//	description: "6S block with its 3S companion and no recovery"
//	rules: rules/freeze_rules.yaml   # relative to the scenario file
//	logs:
//	  block: "main thread stack\n"
//	steps:
//	  - event: {domain: ACE, event_id: UI_BLOCK_3S, timestamp: 7000, pid: 100, log: block}
//	  - event: {domain: ACE, event_id: UI_BLOCK_6S, timestamp: 10000, pid: 100, log: block}
//	  - advance: 3s
//	assertions:
//	  - type: resolution
//	    principal: ACE/UI_BLOCK_6S
//	    state: COMPLETE
//	  - type: report
//	    kind: APP_FREEZE
//	    contains: ["main thread stack"]
//
// Inline rules may be given with rules_inline instead of rules.
//
// # Assertion Types
//
//   - resolution: a principal resolved to the given state
//   - report: a report of the given kind or name exists and contains text
//   - report_count: exactly count reports were composed
//   - trace_order: the listed principals resolved in order
//
// # Deterministic Testing
//
// The scheduler runs one worker on a fake clock, and each step waits for
// the scheduler to go idle before the next one, so traces are stable and
// can be compared against golden files.
package harness
