// Package harness executes scripted input scenarios against a scene.
//
// A scenario names a CUE scene, a list of input steps, and assertions. The
// runner builds the scene's windows, idling resources, and loops, attaches
// a control loop to the calling goroutine, and drives the steps through the
// injection controller. Every injection, delivery, and wait lands in an
// ordered trace and in the journal.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: tap_dialog
//	description: "Tap lands on the dialog, panel sees it from outside"
//	scene: scenes/editor.cue
//	steps:
//	  - tap: { x: 100, y: 100 }
//	  - busy: { resource: net }
//	  - settle: { resource: net, after: 30ms }
//	  - wait_idle: {}
//	assertions:
//	  - type: delivered
//	    window: dialog
//	    action: down
//	  - type: journal_count
//	    kind: pointer
//	    count: 2
//
// # Step Verbs
//
// The following steps are supported:
//
//   - tap, down, up, move: pointer injection at display coordinates
//   - key: a key press (down then up) by code name
//   - text: typing through the key map
//   - wait_idle, wait_at_least: the controller's wait operations
//   - busy, settle: drive a scene resource out of and back to idle
//   - post: queue no-op tasks on the control loop or a scene loop
//
// Each step may carry "expect:" naming the outcome it must produce; steps
// expect ok when silent, so a scripted timeout reads "expect: idle_timeout".
//
// # Assertion Types
//
//   - delivered: a matching delivery appears in the trace
//   - not_delivered: no matching delivery appears in the trace
//   - wait_result: a wait with the given kind and outcome ran
//   - journal_count: the journal holds exactly N matching rows
//
// # Deterministic Traces
//
// Runs use fixed injection tokens and a fresh in-memory journal, so a
// scenario that avoids timing-dependent convergence produces the same trace
// bytes every run. Golden comparison builds on that; see RunWithGolden.
package harness
