package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/goodwe-gw/internal/device"
)

// Publisher hands one reading to the bus. Implementations must not block
// for long; delivery is fire-and-forget from the cycle's point of view.
type Publisher interface {
	PublishReading(topic, payload string) error
}

// Logger is the logging interface used by the poller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CycleConfig configures a Cycle.
type CycleConfig struct {
	// Prefix is the topic prefix (no trailing slash).
	Prefix string

	Publisher Publisher
	Logger    Logger
	Metrics   *Metrics
}

// Cycle performs one read, transform and publish pass.
type Cycle struct {
	prefix    string
	publisher Publisher
	logger    Logger
	metrics   *Metrics
}

// Result summarises one successful cycle.
type Result struct {
	// Published is the number of readings handed to the publisher.
	Published int

	// PublishErrors is how many of those the publisher rejected.
	PublishErrors int

	Duration time.Duration
}

// Empty reports whether nothing was published.
func (r Result) Empty() bool {
	return r.Published == 0
}

// NewCycle creates a Cycle.
func NewCycle(cfg CycleConfig) *Cycle {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Cycle{
		prefix:    cfg.Prefix,
		publisher: cfg.Publisher,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
}

// Run reads one snapshot from session and publishes every reading present
// in it, in catalogue order.
//
// A failed read returns an error wrapping device.ErrRead and publishes
// nothing. Publisher errors are logged and counted but do not fail the
// cycle. A non-empty catalogue with no reading published is logged as a
// warning and still counts as success.
func (c *Cycle) Run(ctx context.Context, session device.Session) (Result, error) {
	start := time.Now()

	snapshot, err := session.ReadSnapshot(ctx)
	if err != nil {
		c.metrics.observeCycle(ResultReadError, time.Since(start))
		if !errors.Is(err, device.ErrRead) {
			err = fmt.Errorf("%w: %w", device.ErrRead, err)
		}
		return Result{Duration: time.Since(start)}, err
	}

	c.logger.Debug("data successfully read", "readings", len(snapshot))

	catalogue := session.Sensors()
	var res Result
	for _, sensor := range catalogue.All() {
		value, ok := snapshot[sensor.ID]
		if !ok {
			continue
		}

		payload := FormatValue(value)
		// Keyed on kind, not on the id: "timestamp_label" is free text and
		// keeps its spaces.
		if sensor.Kind.IsTemporal() {
			payload = NormalizeTimestamp(payload)
		}

		c.logger.Debug("reading",
			"id", sensor.ID,
			"name", sensor.Name,
			"value", payload,
			"unit", sensor.Unit,
		)

		res.Published++
		c.metrics.messagePublished()
		if err := c.publisher.PublishReading(Topic(c.prefix, sensor.ID), payload); err != nil {
			res.PublishErrors++
			c.metrics.publishFailed()
			c.logger.Warn("publish failed", "id", sensor.ID, "error", err)
		}
	}

	res.Duration = time.Since(start)

	result := ResultSuccess
	if res.Empty() && catalogue.Len() > 0 {
		result = ResultEmpty
		c.logger.Warn("no data in runtime snapshot, nothing published",
			"sensors", catalogue.Len(),
		)
	}
	c.metrics.observeCycle(result, res.Duration)

	return res, nil
}
