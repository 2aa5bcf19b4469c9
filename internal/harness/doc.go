// Package harness runs conformance scenarios against the chord runtime.
//
// A scenario compiles a chord program, executes a list of steps (views,
// tasks, flows or the whole document) against a fresh runtime, checks each
// step's expectations, then evaluates assertions over the run log the
// runtime recorded.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	source: |                 # inline program, or
//	  def task greet { goal: "say hi" }
//	file: program.chord       # path relative to the scenario file
//	signals: { user: Bob }
//	env: { CHORD_TONE: warm } # environment seen by signal fallback
//	files:                    # fixtures written to a temp dir; relative
//	  README.md: "# Title"    # ctx uris resolve against it
//	steps:
//	  - view: hello
//	    expect:
//	      status: ok
//	      prompt: { user: "Hi Bob" }   # substring per section
//	      context: { readme: "Title" } # substring per context key
//	      context_errors: [missing]    # keys that must hold an error marker
//	  - task: greet
//	  - flow: pipeline
//	    expect:
//	      tasks: [greet, reply]
//	  - view: nope
//	    expect:
//	      error: VIEW_NOT_FOUND
//	assertions:
//	  - type: trace_contains
//	    target: view:hello
//	  - type: trace_order
//	    targets: [view:hello, task:greet]
//	  - type: trace_count
//	    target: view:hello
//	    count: 1
//	  - type: final_state
//	    table: runs
//	    where: { target: greet }
//	    expect: { status: ok }
//	  - type: run_log_intact
//
// # Deterministic Testing
//
// Every scenario runs with an in-memory SQLite run log, a logical clock
// starting at zero, sequential run ids ("run-0001", ...) and a wall clock
// frozen at testutil.Epoch. Running a scenario twice yields identical
// traces, which RunWithGolden compares against golden files.
//
// # Test Nodes
//
// A program's test nodes either reference a scenario file
// (scenario: "scenarios/greet.yaml") or describe one step inline
// (view: @hello, expect: {...}). RunTests executes them.
package harness
