package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/goodwe-gw/internal/device"
)

const (
	testDelay  = 15 * time.Second
	testSettle = 3 * time.Second
	testRetry  = 2 * time.Second
)

// harness wires a Supervisor to fakes.
type harness struct {
	log     *eventLog
	session *fakeSession
	bus     *fakeBus
	clock   *sleepRecorder
	metrics *Metrics

	// connectErrs scripts the connector; a nil entry connects.
	connectErrs []error
	dialErr     error

	mu       sync.Mutex
	connects int
}

func newHarness(readScript ...error) *harness {
	log := &eventLog{}
	return &harness{
		log: log,
		session: &fakeSession{
			log:       log,
			catalogue: testCatalogue(),
			snapshot:  device.Snapshot{"vpv1": 345.6, "work_mode_label": "Normal (On-Grid)"},
			script:    readScript,
		},
		bus:     &fakeBus{},
		clock:   &sleepRecorder{log: log},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
}

func (h *harness) connect(_ context.Context, address string) (device.Session, error) {
	h.mu.Lock()
	i := h.connects
	h.connects++
	h.mu.Unlock()

	h.log.add("connect %s", address)
	if i < len(h.connectErrs) && h.connectErrs[i] != nil {
		return nil, h.connectErrs[i]
	}
	return h.session, nil
}

func (h *harness) connectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects
}

func (h *harness) supervisor(t *testing.T, tries int) (*Supervisor, context.Context) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.clock.cancel = cancel

	s, err := NewSupervisor(SupervisorOptions{
		Config: Config{
			Address:           "10.0.0.5",
			Topic:             "solar",
			Delay:             testDelay,
			Tries:             tries,
			SettleDelay:       testSettle,
			ConnectRetryDelay: testRetry,
			BackoffDivisor:    3,
		},
		Connector: device.ConnectorFunc(h.connect),
		DialBus: func(context.Context) (Bus, error) {
			h.log.add("dial")
			if h.dialErr != nil {
				return nil, h.dialErr
			}
			return h.bus, nil
		},
		Metrics: h.metrics,
		Sleep:   h.clock.sleep,
	})
	require.NoError(t, err)
	return s, ctx
}

// stopAfterSuccesses ends the run at the n-th pause of the success length.
func (h *harness) stopAfterSuccesses(n int) {
	h.clock.stopOn = testDelay
	h.clock.stopAfter = n
}

func TestSupervisor_StartupOrder(t *testing.T) {
	h := newHarness()
	h.stopAfterSuccesses(1)
	s, ctx := h.supervisor(t, 100)

	require.NoError(t, s.Run(ctx))

	assert.Equal(t, []string{
		"dial",
		"sleep 3s",
		"connect 10.0.0.5",
		"read",
		"sleep 15s",
	}, h.log.list())
	assert.Equal(t, StateStopped, s.State())
	assert.True(t, h.bus.closed)
	assert.True(t, h.session.isClosed())
}

func TestSupervisor_PublishesEachCycle(t *testing.T) {
	h := newHarness()
	h.stopAfterSuccesses(2)
	s, ctx := h.supervisor(t, 100)

	require.NoError(t, s.Run(ctx))

	sent := h.bus.sent()
	require.Len(t, sent, 4)
	assert.Equal(t, published{"solar/vpv1", "345.6"}, sent[0])
	assert.Equal(t, published{"solar/work_mode_label", "Normal (On-Grid)"}, sent[1])
	assert.False(t, s.LastSuccess().IsZero())
}

func TestSupervisor_ConnectRetrySucceeds(t *testing.T) {
	h := newHarness()
	h.connectErrs = []error{device.ErrConnection}
	h.stopAfterSuccesses(1)
	s, ctx := h.supervisor(t, 100)

	var stateInLoop State
	h.clock.onSleep = func(d time.Duration) {
		if d == testDelay {
			stateInLoop = s.State()
		}
	}

	require.NoError(t, s.Run(ctx))

	assert.Equal(t, StateRunning, stateInLoop)
	assert.Equal(t, 2, h.connectCount())
	assert.Equal(t, []string{
		"dial",
		"sleep 3s",
		"connect 10.0.0.5",
		"sleep 2s",
		"connect 10.0.0.5",
		"read",
		"sleep 15s",
	}, h.log.list())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.deviceConnects.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.deviceConnects.WithLabelValues("success")), 0)
}

func TestSupervisor_ConnectFailsTwice(t *testing.T) {
	h := newHarness()
	h.connectErrs = []error{device.ErrConnection, device.ErrConnection}
	s, ctx := h.supervisor(t, 100)

	err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartup)
	assert.ErrorIs(t, err, device.ErrConnection)

	assert.Equal(t, 2, h.connectCount())
	assert.Zero(t, h.session.readCount())
	assert.Empty(t, h.bus.sent())
	assert.True(t, h.bus.closed)
	assert.NotEqual(t, StateRunning, s.State())
}

func TestSupervisor_BusDialFails(t *testing.T) {
	h := newHarness()
	h.dialErr = errors.New("connection refused")
	s, ctx := h.supervisor(t, 100)

	err := s.Run(ctx)
	assert.ErrorIs(t, err, ErrStartup)
	assert.Zero(t, h.connectCount())
	assert.Equal(t, []string{"dial"}, h.log.list())
}

func TestSupervisor_ExhaustsAfterTriesFailures(t *testing.T) {
	h := newHarness(errTimeout)
	s, ctx := h.supervisor(t, 3)

	err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.ErrorIs(t, err, device.ErrRead)

	assert.Equal(t, 3, h.session.readCount())
	assert.Equal(t, StateExhausted, s.State())
	assert.Equal(t, 0, s.Remaining())
	assert.Empty(t, h.bus.sent())
	assert.Equal(t, []time.Duration{testSettle, testDelay / 3, testDelay / 3}, h.clock.durations())
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.budget), 0)
}

func TestSupervisor_SingleTry(t *testing.T) {
	h := newHarness(errTimeout)
	s, ctx := h.supervisor(t, 1)

	assert.ErrorIs(t, s.Run(ctx), ErrBudgetExhausted)
	assert.Equal(t, 1, h.session.readCount())
}

func TestSupervisor_SuccessRestoresFullBudget(t *testing.T) {
	// tries-1 failures then a success must not terminate.
	h := newHarness(errTimeout, errTimeout, nil)
	h.stopAfterSuccesses(1)
	s, ctx := h.supervisor(t, 3)

	var remainingAtPause []int
	h.clock.onSleep = func(time.Duration) {
		remainingAtPause = append(remainingAtPause, s.Remaining())
	}

	require.NoError(t, s.Run(ctx))

	assert.Equal(t, []time.Duration{testSettle, testDelay / 3, testDelay / 3, testDelay}, h.clock.durations())
	assert.Equal(t, []int{3, 2, 1, 3}, remainingAtPause)
	assert.InDelta(t, 3, testutil.ToFloat64(h.metrics.budget), 0)
}

func TestSupervisor_ReusesSessionAfterReadFailure(t *testing.T) {
	h := newHarness(errTimeout, nil)
	h.stopAfterSuccesses(1)
	s, ctx := h.supervisor(t, 5)

	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 1, h.connectCount())
	assert.Equal(t, 2, h.session.readCount())
	assert.Equal(t, 1, h.log.count("connect 10.0.0.5"))
}

func TestSupervisor_FailurePauseUsesDivisor(t *testing.T) {
	h := newHarness(errTimeout, nil)
	h.stopAfterSuccesses(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.clock.cancel = cancel

	s, err := NewSupervisor(SupervisorOptions{
		Config:    Config{Address: "inv", Topic: "solar", Delay: testDelay, Tries: 5, BackoffDivisor: 5},
		Connector: device.ConnectorFunc(h.connect),
		DialBus:   func(context.Context) (Bus, error) { return h.bus, nil },
		Sleep:     h.clock.sleep,
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, []time.Duration{0, 3 * time.Second, testDelay}, h.clock.durations())
}

func TestSupervisor_CancelDuringSettle(t *testing.T) {
	h := newHarness()
	h.clock.stopOn = testSettle
	h.clock.stopAfter = 1
	s, ctx := h.supervisor(t, 100)

	require.NoError(t, s.Run(ctx))
	assert.Zero(t, h.connectCount())
	assert.Equal(t, StateStopped, s.State())
}

func TestSupervisor_Status(t *testing.T) {
	h := newHarness(errTimeout)
	s, ctx := h.supervisor(t, 4)

	var during Status
	h.clock.onSleep = func(d time.Duration) {
		if d == testDelay/3 && during.State == "" {
			during = s.Status()
		}
	}

	_ = s.Run(ctx)

	assert.Equal(t, StateRunning, during.State)
	assert.Equal(t, 3, during.Remaining)
	assert.Equal(t, 4, during.Tries)
	assert.True(t, during.BusConnected)
	assert.Equal(t, "GW10K-ET", during.Model)
	assert.Contains(t, during.LastError, errTimeout.Error())
	assert.True(t, during.LastSuccess.IsZero())

	final := s.Status()
	assert.Equal(t, StateExhausted, final.State)
	assert.False(t, final.BusConnected)
}

func TestNewSupervisor_Validation(t *testing.T) {
	_, err := NewSupervisor(SupervisorOptions{DialBus: func(context.Context) (Bus, error) { return nil, nil }})
	assert.Error(t, err)

	_, err = NewSupervisor(SupervisorOptions{Connector: device.ConnectorFunc(nil)})
	assert.Error(t, err)
}

func TestNewSupervisor_Defaults(t *testing.T) {
	s, err := NewSupervisor(SupervisorOptions{
		Connector: device.ConnectorFunc(func(context.Context, string) (device.Session, error) { return nil, nil }),
		DialBus:   func(context.Context) (Bus, error) { return nil, nil },
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultDelay, s.cfg.Delay)
	assert.Equal(t, DefaultTries, s.Remaining())
	assert.Equal(t, DefaultBackoffDivisor, s.cfg.BackoffDivisor)
	assert.Equal(t, 5*time.Second, s.failurePause())
	assert.Equal(t, StateConnecting, s.State())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}
