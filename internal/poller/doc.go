// Package poller runs the read, transform and publish loop.
//
// A Cycle reads one snapshot from a device session and publishes every
// reading present in the snapshot, in catalogue order, to
// <prefix>/<sensor id>. Timestamp readings have their date/time separator
// rewritten to "T".
//
// A Supervisor drives cycles and keeps the gateway alive across transient
// failures:
//
//	connecting ──bus up, settle, device up──▶ running ⟲
//	     │                                      │
//	     └── startup failure (ErrStartup)       └── budget spent (ErrBudgetExhausted) ──▶ exhausted
//
// Startup connects the bus first, waits a settle delay, then connects the
// device with exactly one retry. Each successful cycle restores the full
// failure budget and sleeps Delay; each failed cycle spends one unit and
// sleeps Delay/BackoffDivisor. A failed read does not reconnect the device:
// the same session is used for the next cycle.
//
// Cancelling the context passed to Run stops the loop cleanly (state
// "stopped", nil error).
package poller
