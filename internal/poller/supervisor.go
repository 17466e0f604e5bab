package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/goodwe-gw/internal/device"
)

// State is the supervisor's lifecycle state.
type State string

const (
	StateConnecting State = "connecting"
	StateRunning    State = "running"
	StateExhausted  State = "exhausted"
	StateStopped    State = "stopped"
)

// Defaults applied by NewSupervisor to zero Config fields.
const (
	DefaultDelay          = 15 * time.Second
	DefaultTries          = 100
	DefaultBackoffDivisor = 3
)

// Bus is the publish side of the message bus owned by the supervisor.
type Bus interface {
	Publisher
	IsConnected() bool
	Close() error
}

// BusDialer opens the bus connection.
type BusDialer func(ctx context.Context) (Bus, error)

// SleepFunc pauses for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds the polling parameters.
type Config struct {
	// Address is the device address passed to the connector.
	Address string

	// Topic is the reading topic prefix.
	Topic string

	// Delay is the pause after a successful cycle. Default: 15s
	Delay time.Duration

	// Tries is the number of consecutive failed cycles tolerated. Default: 100
	Tries int

	// SettleDelay is the pause between bus connect and device connect.
	// Zero means no pause.
	SettleDelay time.Duration

	// ConnectRetryDelay is the pause before the single device connect
	// retry. Zero means retry immediately.
	ConnectRetryDelay time.Duration

	// BackoffDivisor divides Delay to get the pause after a failed cycle.
	// Default: 3
	BackoffDivisor int
}

// SupervisorOptions wires a Supervisor's collaborators.
type SupervisorOptions struct {
	Config    Config
	Connector device.Connector
	DialBus   BusDialer
	Logger    Logger
	Metrics   *Metrics

	// Sleep replaces the real clock. Default: a timer honouring ctx.
	Sleep SleepFunc
}

// Status is a point-in-time view of the supervisor for status reporting.
type Status struct {
	State        State     `json:"state"`
	Remaining    int       `json:"budget_remaining"`
	Tries        int       `json:"budget_tries"`
	BusConnected bool      `json:"bus_connected"`
	LastSuccess  time.Time `json:"last_success,omitzero"`
	LastError    string    `json:"last_error,omitempty"`
	Model        string    `json:"model,omitempty"`
	Serial       string    `json:"serial,omitempty"`
}

// Supervisor connects the bus and the device, then runs cycles until the
// failure budget is spent or its context is cancelled.
type Supervisor struct {
	cfg       Config
	connector device.Connector
	dialBus   BusDialer
	logger    Logger
	metrics   *Metrics
	sleep     SleepFunc
	budget    *Budget

	mu          sync.RWMutex
	state       State
	bus         Bus
	info        device.Info
	lastSuccess time.Time
	lastError   error
}

// NewSupervisor creates a supervisor, filling zero Config fields with defaults.
func NewSupervisor(opts SupervisorOptions) (*Supervisor, error) {
	if opts.Connector == nil {
		return nil, errors.New("poller: connector is required")
	}
	if opts.DialBus == nil {
		return nil, errors.New("poller: bus dialer is required")
	}

	cfg := opts.Config
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Tries == 0 {
		cfg.Tries = DefaultTries
	}
	if cfg.BackoffDivisor == 0 {
		cfg.BackoffDivisor = DefaultBackoffDivisor
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Supervisor{
		cfg:       cfg,
		connector: opts.Connector,
		dialBus:   opts.DialBus,
		logger:    logger,
		metrics:   opts.Metrics,
		sleep:     sleep,
		budget:    NewBudget(cfg.Tries),
		state:     StateConnecting,
	}, nil
}

// Run executes the supervisor until the budget is exhausted, startup fails
// or ctx is cancelled.
//
// Returns:
//   - nil: ctx was cancelled
//   - error wrapping ErrStartup: bus or device could not be connected
//   - error wrapping ErrBudgetExhausted: Tries consecutive cycles failed
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(StateConnecting)
	s.metrics.setBudget(s.budget.Remaining())

	bus, err := s.dialBus(ctx)
	if err != nil {
		return s.stopOrFail(ctx, fmt.Errorf("%w: connecting bus: %w", ErrStartup, err))
	}
	defer func() {
		if err := bus.Close(); err != nil {
			s.logger.Warn("closing bus", "error", err)
		}
	}()
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()
	s.logger.Info("bus connected")

	if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
		return s.stopOrFail(ctx, err)
	}

	session, err := s.connectDevice(ctx)
	if err != nil {
		return s.stopOrFail(ctx, fmt.Errorf("%w: %w", ErrStartup, err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("closing device session", "error", err)
		}
	}()

	cycle := NewCycle(CycleConfig{
		Prefix:    s.cfg.Topic,
		Publisher: bus,
		Logger:    s.logger,
		Metrics:   s.metrics,
	})

	s.budget.Reset()
	s.metrics.setBudget(s.budget.Remaining())
	s.setState(StateRunning)

	for {
		pause := s.cfg.Delay

		_, err := cycle.Run(ctx, session)
		switch {
		case err != nil && ctx.Err() != nil:
			return s.stopOrFail(ctx, err)
		case err != nil:
			exhausted := s.budget.Fail()
			s.metrics.setBudget(s.budget.Remaining())
			s.setLastError(err)
			s.logger.Warn("error reading from inverter",
				"error", err,
				"remaining", s.budget.Remaining(),
			)
			if exhausted {
				s.setState(StateExhausted)
				s.logger.Error("failure budget exhausted, giving up",
					"tries", s.budget.Tries(),
				)
				return fmt.Errorf("%w after %d consecutive failures: %w", ErrBudgetExhausted, s.budget.Tries(), err)
			}
			pause = s.failurePause()
		default:
			s.budget.Reset()
			s.metrics.setBudget(s.budget.Remaining())
			s.mu.Lock()
			s.lastSuccess = time.Now()
			s.lastError = nil
			s.mu.Unlock()
		}

		if err := s.sleep(ctx, pause); err != nil {
			return s.stopOrFail(ctx, err)
		}
	}
}

// connectDevice makes the initial attempt plus exactly one retry.
func (s *Supervisor) connectDevice(ctx context.Context) (device.Session, error) {
	session, err := s.connector.Connect(ctx, s.cfg.Address)
	s.metrics.deviceConnect(err == nil)
	if err != nil {
		s.logger.Warn("device connect failed, retrying once",
			"address", s.cfg.Address,
			"retry_in", s.cfg.ConnectRetryDelay,
			"error", err,
		)
		if err := s.sleep(ctx, s.cfg.ConnectRetryDelay); err != nil {
			return nil, err
		}
		session, err = s.connector.Connect(ctx, s.cfg.Address)
		s.metrics.deviceConnect(err == nil)
		if err != nil {
			return nil, err
		}
	}

	info := session.Info()
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()

	s.logger.Info("device connected",
		"address", s.cfg.Address,
		"model", info.Model,
		"serial", info.Serial,
		"sensors", session.Sensors().Len(),
	)

	return session, nil
}

// stopOrFail ends Run: a cancelled context is a clean stop, anything else
// is returned as is.
func (s *Supervisor) stopOrFail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		s.setState(StateStopped)
		s.logger.Info("poller stopped")
		return nil
	}
	s.setState(StateStopped)
	s.setLastError(err)
	return err
}

func (s *Supervisor) failurePause() time.Duration {
	return s.cfg.Delay / time.Duration(s.cfg.BackoffDivisor)
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Supervisor) setLastError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Remaining returns the failure budget left.
func (s *Supervisor) Remaining() int {
	return s.budget.Remaining()
}

// LastSuccess returns the completion time of the last successful cycle, or
// the zero time if there has been none.
func (s *Supervisor) LastSuccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess
}

// Status returns a snapshot of the supervisor for status reporting.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:       s.state,
		Remaining:   s.budget.Remaining(),
		Tries:       s.budget.Tries(),
		LastSuccess: s.lastSuccess,
		Model:       s.info.Model,
		Serial:      s.info.Serial,
	}
	if s.bus != nil {
		st.BusConnected = s.bus.IsConnected()
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
