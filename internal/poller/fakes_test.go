package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/nerrad567/goodwe-gw/internal/device"
)

var errTimeout = errors.New("inverter timeout")

// eventLog records collaborator calls in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) count(event string) int {
	n := 0
	for _, e := range l.list() {
		if e == event {
			n++
		}
	}
	return n
}

// mockPublisher is a testify mock of Publisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishReading(topic, payload string) error {
	args := m.Called(topic, payload)
	return args.Error(0)
}

// fakeSession returns scripted read results. Once the script is used up
// the last entry repeats; a nil entry means success.
type fakeSession struct {
	log       *eventLog
	catalogue *device.Catalogue
	snapshot  device.Snapshot
	script    []error

	mu     sync.Mutex
	reads  int
	closed bool
}

func (s *fakeSession) Info() device.Info {
	return device.Info{Model: "GW10K-ET", Serial: "ETU0001"}
}

func (s *fakeSession) Sensors() *device.Catalogue {
	return s.catalogue
}

func (s *fakeSession) ReadSnapshot(_ context.Context) (device.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if len(s.script) > 0 {
		i := min(s.reads, len(s.script)-1)
		err = s.script[i]
	}
	s.reads++
	if s.log != nil {
		s.log.add("read")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", device.ErrRead, err)
	}
	return s.snapshot, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type published struct {
	topic   string
	payload string
}

// fakeBus records publishes.
type fakeBus struct {
	mu       sync.Mutex
	messages []published
	closed   bool
}

func (b *fakeBus) PublishReading(topic, payload string) error {
	b.mu.Lock()
	b.messages = append(b.messages, published{topic, payload})
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) sent() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.messages...)
}

// sleepRecorder replaces the clock. It cancels the run after stopAfter
// recorded pauses of length stopOn.
type sleepRecorder struct {
	log       *eventLog
	cancel    context.CancelFunc
	stopOn    time.Duration
	stopAfter int
	onSleep   func(d time.Duration)

	mu     sync.Mutex
	sleeps []time.Duration
	hits   int
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	if d == r.stopOn {
		r.hits++
		if r.hits >= r.stopAfter && r.cancel != nil {
			r.cancel()
		}
	}
	r.mu.Unlock()

	if r.log != nil {
		r.log.add("sleep %s", d)
	}
	if r.onSleep != nil {
		r.onSleep(d)
	}
	return ctx.Err()
}

func (r *sleepRecorder) durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

// testCatalogue has three sensors, one of each publishing path.
func testCatalogue() *device.Catalogue {
	return device.NewCatalogue([]device.SensorDescriptor{
		{ID: "timestamp", Name: "Timestamp"},
		{ID: "vpv1", Name: "PV1 Voltage", Unit: "V", Group: "PV"},
		{ID: "work_mode_label", Name: "Work Mode", Group: "PV"},
	})
}
