// Package driver implements the injection surface over a simulated display:
// inject pointer/key/text events, wait for idle convergence, and record what
// happened.
//
// The driver is the meeting point of the control loop (looper), the idling
// registry (idling), and the window stack (display). Every injection brackets
// its dispatch with idle convergence, so an event is only ever routed into a
// quiescent UI, and the UI is quiescent again before the call returns.
//
// ARCHITECTURE:
//
// Control Goroutine:
// All public methods run on the control loop's executor goroutine; calling
// from anywhere else is a PreconditionError. The control goroutine alternates
// between draining its own queue and blocking on it, which is how cross-
// goroutine idle notifications reach the convergence loop.
//
// Convergence Flow:
// 1. Drain the control queue once (resources may have settled on their own)
// 2. Sync the registry into the current proxy set; empty set returns at once
// 3. Activation pass: every proxy joins the active set and gets a one-shot
//    idle callback
// 4. Block on the control queue up to the remaining timeout, drain, repeat
//    until the active set empties
// 5. Re-run the activation pass until one completes with nothing going
//    active; that pass is the simultaneous-idle observation
//
// CRITICAL PATTERNS:
//
// CP-1: Single-Writer Active Set
// The active set is read and written only on the control goroutine.
// Callbacks firing elsewhere post their removal to the control loop.
// NEVER touch the active set from another goroutine.
//
// CP-2: Check-and-Register Under the Proxy Lock
// A proxy answers "idle now?" and stores the callback in one critical
// section, so a transition cannot slip between the check and the store.
//
// CP-3: Simultaneous-Idle Pass
// "Each resource was idle once" is not convergence; resources flap. The wait
// only ends on a full activation pass where every proxy reports idle
// synchronously.
//
// CP-5: Restamp Before Retry
// A retried key event is refreshed from the uptime clock first; downstream
// staleness checks reject reused timestamps.
package driver
