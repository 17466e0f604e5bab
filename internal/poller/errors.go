package poller

import "errors"

var (
	// ErrBudgetExhausted is returned by Supervisor.Run when the configured
	// number of consecutive cycles have failed.
	ErrBudgetExhausted = errors.New("poller: failure budget exhausted")

	// ErrStartup is returned by Supervisor.Run when the bus or the device
	// cannot be connected before the loop starts.
	ErrStartup = errors.New("poller: startup failed")
)
