// Package harness runs YAML conformance scenarios against the execution
// engine.
//
// A scenario describes one input table run several times in a row, the
// way a user re-runs the tool after fixing a failure. Commands never
// reach a shell: each run scripts the responses of the commands it
// expects, and anything unscripted fails with exit code 127.
//
// # Scenario Format
//
//	name: retry_after_failure
//	description: "A failed row is retried and recorded once it succeeds"
//	command_column: cmd
//	prior:                       # optional results table from an earlier run
//	  - {task: a, cmd: echo hi, command_executed: echo hi, state: success, output: hi}
//	runs:
//	  - input:
//	      - {task: b, cmd: exit 1}
//	    script:
//	      exit 1: {exit_code: 1, stderr: "boom"}
//	    expect:
//	      invocations: ["exit 1"]
//	      summary: {rows: 1, failed: 1}
//	      progress: ["Row 1: Executing: exit 1"]
//	      results:
//	        - {task: b, cmd: exit 1, command_executed: exit 1, state: error, output: boom}
//
// Between runs the result store is written to a CSV results table and read
// back, so every run starts from exactly what a real run would find on
// disk. Every attempt is also recorded in an in-memory run ledger, which
// is where the trace in Result comes from.
//
// # Golden Transcripts
//
// RunWithGolden compares the progress output of all runs against
// testdata/golden/<name>.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
