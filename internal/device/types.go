package device

import (
	"context"
	"strings"
)

// SensorKind is the display classification of a sensor.
type SensorKind int

// Sensor kinds. KindUnknown is the zero value and never produced by Classify.
const (
	KindUnknown SensorKind = iota
	KindMeasurement
	KindLabel
	KindTimestamp
	KindError
)

// String returns the lowercase name of the kind.
func (k SensorKind) String() string {
	switch k {
	case KindMeasurement:
		return "measurement"
	case KindLabel:
		return "label"
	case KindTimestamp:
		return "timestamp"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTextual reports whether readings of this kind are free text.
func (k SensorKind) IsTextual() bool {
	return k == KindLabel || k == KindError
}

// IsTemporal reports whether readings of this kind are date/time values.
func (k SensorKind) IsTemporal() bool {
	return k == KindTimestamp
}

// Classify derives the kind of a sensor from its id.
//
// Textual markers win over the timestamp marker, so "timestamp_label"
// is a label.
func Classify(id string) SensorKind {
	switch {
	case strings.Contains(id, "_label"):
		return KindLabel
	case strings.Contains(id, "errors"),
		strings.Contains(id, "_warning"),
		strings.Contains(id, "_error"):
		return KindError
	case strings.Contains(id, "timestamp"):
		return KindTimestamp
	default:
		return KindMeasurement
	}
}

// SensorDescriptor describes a single telemetry channel of a device.
// Descriptors are immutable once a catalogue has been built.
type SensorDescriptor struct {
	// ID is unique and stable for the life of a session (e.g. "ppv1").
	ID string

	// Name is the human-readable display name (e.g. "PV1 Power").
	Name string

	// Unit is the measurement unit, empty when dimensionless.
	Unit string

	// Group is the device-side category (PV, AC, UPS, BAT, GRID), or "NA".
	Group string

	// Kind is assigned by NewCatalogue.
	Kind SensorKind
}

// Catalogue is the ordered, read-only list of sensors exposed by a session.
type Catalogue struct {
	sensors []SensorDescriptor
	index   map[string]int
}

// NewCatalogue builds a catalogue from descriptors in device order.
// Kinds are classified here, once. Later duplicates of an id are dropped.
func NewCatalogue(sensors []SensorDescriptor) *Catalogue {
	c := &Catalogue{
		sensors: make([]SensorDescriptor, 0, len(sensors)),
		index:   make(map[string]int, len(sensors)),
	}
	for _, s := range sensors {
		if _, dup := c.index[s.ID]; dup {
			continue
		}
		s.Kind = Classify(s.ID)
		if s.Group == "" {
			s.Group = "NA"
		}
		c.index[s.ID] = len(c.sensors)
		c.sensors = append(c.sensors, s)
	}
	return c
}

// All returns the descriptors in catalogue order.
// The returned slice must not be modified.
func (c *Catalogue) All() []SensorDescriptor {
	if c == nil {
		return nil
	}
	return c.sensors
}

// Len returns the number of sensors.
func (c *Catalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.sensors)
}

// Lookup returns the descriptor with the given id.
func (c *Catalogue) Lookup(id string) (SensorDescriptor, bool) {
	if c == nil {
		return SensorDescriptor{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return SensorDescriptor{}, false
	}
	return c.sensors[i], true
}

// Snapshot maps sensor ids to their current values.
//
// Values are loosely typed: float64, int64, string or time.Time.
// A missing id means the sensor has no current reading.
type Snapshot map[string]any

// Info identifies the connected device.
type Info struct {
	Model  string
	Serial string
}

// Session is a live connection to a device.
//
// A session is owned by a single goroutine; implementations need not
// support concurrent reads.
type Session interface {
	// Info returns the identity read during connect.
	Info() Info

	// Sensors returns the device's sensor catalogue.
	Sensors() *Catalogue

	// ReadSnapshot reads all current sensor values.
	// Either a complete snapshot or an error wrapping ErrRead is returned.
	ReadSnapshot(ctx context.Context) (Snapshot, error)

	// Close releases the underlying connection.
	Close() error
}

// Connector establishes sessions with a device.
type Connector interface {
	// Connect opens a session with the device at address.
	// Failures wrap ErrConnection.
	Connect(ctx context.Context, address string) (Session, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, address string) (Session, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context, address string) (Session, error) {
	return f(ctx, address)
}
