// Package harness runs scenario-based conformance tests against the
// resolver.
//
// A scenario is a YAML file naming a universe, a sequence of calls to
// dispatch, and assertions over what the resolver recorded. Each run
// compiles the universe, binds a fresh dispatcher over an in-memory
// store, executes every call through the real resolution path, and then
// evaluates the assertions against the stored resolution rows.
//
// # Scenario Format
//
//	name: masked_add_handled
//	description: "MaskedGrid's handler wins over the plain Grid operand"
//	universe: universes/grids.cue
//	call_tokens:
//	  - tok-1
//	calls:
//	  - op: add
//	    variant: call
//	    inputs: [MaskedGrid, Grid]
//	    outputs: [Grid]
//	    kwargs:
//	      axis: 0
//	    expect:
//	      disposition: handled
//	      result: masked-sum
//	assertions:
//	  - type: resolution_recorded
//	    op: add
//	    disposition: handled
//
// The universe path is resolved relative to the base path given to
// LoadScenarioWithBasePath. Variant defaults to "call" when omitted.
// call_tokens pins the call tokens drawn during the run; once the list
// is exhausted, tokens derive from the scenario name and a counter.
// Tokens are drawn in record order, so a delegated resolution draws its
// token before the call that spawned it.
//
// # Assertion Types
//
//   - resolution_recorded: a stored resolution matches op, and variant
//     and disposition when given.
//   - attempt_order: the named types appear as a subsequence of the
//     recorded attempt trail, in seq order.
//   - attempt_count: exactly count attempts were recorded for type_name.
//   - stored_disposition: the resolution recorded for the call at index
//     call carries the given disposition, and optionally the given
//     result and error text.
//
// # Deterministic Runs
//
// Every run starts from a zeroed sequence clock, a scenario-scoped token
// source, and an empty in-memory store, so two runs of the same scenario
// record byte-identical rows. RunWithGolden pins those rows to golden
// files under testdata/golden.
package harness
