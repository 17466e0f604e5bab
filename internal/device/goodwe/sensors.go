package goodwe

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/goodwe-gw/internal/device"
)

//go:embed sensors_et.yaml
var defaultTable []byte

// SensorType names how a sensor's raw bytes are decoded.
type SensorType string

// Supported sensor types.
const (
	TypeTimestamp SensorType = "timestamp" // 6 bytes: yy mm dd hh mm ss
	TypeVoltage   SensorType = "voltage"   // u16 / 10, V
	TypeCurrent   SensorType = "current"   // i16 / 10, A
	TypeFrequency SensorType = "frequency" // u16 / 100, Hz
	TypePower     SensorType = "power"     // i16, W
	TypePower4    SensorType = "power4"    // i32, W
	TypeEnergy    SensorType = "energy"    // u16 / 10, kWh
	TypeEnergy4   SensorType = "energy4"   // u32 / 10, kWh
	TypeTemp      SensorType = "temp"      // i16 / 10, C
	TypeInteger   SensorType = "integer"   // u16
	TypeLong      SensorType = "long"      // u32
	TypeEnum      SensorType = "enum"      // u16 mapped through Labels
	TypeBitmask   SensorType = "bitmask"   // u32, set bits mapped through Labels
)

// sizes is the number of raw bytes consumed by each type.
var sizes = map[SensorType]int{
	TypeTimestamp: 6,
	TypeVoltage:   2,
	TypeCurrent:   2,
	TypeFrequency: 2,
	TypePower:     2,
	TypePower4:    4,
	TypeEnergy:    2,
	TypeEnergy4:   4,
	TypeTemp:      2,
	TypeInteger:   2,
	TypeLong:      4,
	TypeEnum:      2,
	TypeBitmask:   4,
}

// SensorDef is one row of a sensor table.
type SensorDef struct {
	ID     string         `yaml:"id"`
	Name   string         `yaml:"name"`
	Unit   string         `yaml:"unit"`
	Group  string         `yaml:"group"`
	Offset int            `yaml:"offset"` // byte offset within the runtime block
	Type   SensorType     `yaml:"type"`
	Labels map[int]string `yaml:"labels"` // enum codes or bitmask bit numbers
}

// Table is an ordered sensor table for one inverter family.
type Table struct {
	Family  string      `yaml:"family"`
	Sensors []SensorDef `yaml:"sensors"`
}

// LoadTable reads a sensor table from path, or the embedded ET table when
// path is empty.
func LoadTable(path string) (*Table, error) {
	data := defaultTable
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading sensor table: %w", err)
		}
	}
	return ParseTable(data)
}

// ParseTable parses and validates a YAML sensor table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing sensor table: %w", err)
	}

	var errs []string
	seen := make(map[string]bool, len(t.Sensors))
	for i, s := range t.Sensors {
		switch {
		case s.ID == "":
			errs = append(errs, fmt.Sprintf("sensors[%d]: id is required", i))
		case seen[s.ID]:
			errs = append(errs, fmt.Sprintf("sensors[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true

		size, ok := sizes[s.Type]
		if !ok {
			errs = append(errs, fmt.Sprintf("sensors[%d] %s: %v %q", i, s.ID, ErrUnknownSensorType, s.Type))
			continue
		}
		if s.Offset < 0 || s.Offset+size > int(runtimeCount)*2 {
			errs = append(errs, fmt.Sprintf("sensors[%d] %s: offset %d outside runtime block", i, s.ID, s.Offset))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid sensor table: %s", strings.Join(errs, "; "))
	}

	return &t, nil
}

// Catalogue builds the device catalogue for this table.
func (t *Table) Catalogue() *device.Catalogue {
	descs := make([]device.SensorDescriptor, 0, len(t.Sensors))
	for _, s := range t.Sensors {
		descs = append(descs, device.SensorDescriptor{
			ID:    s.ID,
			Name:  s.Name,
			Unit:  s.Unit,
			Group: s.Group,
		})
	}
	return device.NewCatalogue(descs)
}

// Decode converts a runtime block into a snapshot.
// Sensors that fall outside data or hold no valid value are left out.
func (t *Table) Decode(data []byte) device.Snapshot {
	snap := make(device.Snapshot, len(t.Sensors))
	for _, s := range t.Sensors {
		if v, ok := s.decode(data); ok {
			snap[s.ID] = v
		}
	}
	return snap
}

// decode extracts this sensor's value from data.
func (s SensorDef) decode(data []byte) (any, bool) {
	size, ok := sizes[s.Type]
	if !ok || s.Offset < 0 || s.Offset+size > len(data) {
		return nil, false
	}
	b := data[s.Offset : s.Offset+size]

	switch s.Type {
	case TypeTimestamp:
		return decodeTimestamp(b)
	case TypeVoltage, TypeEnergy:
		return float64(binary.BigEndian.Uint16(b)) / 10, true
	case TypeCurrent, TypeTemp:
		return float64(int16(binary.BigEndian.Uint16(b))) / 10, true
	case TypeFrequency:
		return float64(binary.BigEndian.Uint16(b)) / 100, true
	case TypePower:
		return int64(int16(binary.BigEndian.Uint16(b))), true
	case TypePower4:
		return int64(int32(binary.BigEndian.Uint32(b))), true
	case TypeEnergy4:
		return float64(binary.BigEndian.Uint32(b)) / 10, true
	case TypeInteger:
		return int64(binary.BigEndian.Uint16(b)), true
	case TypeLong:
		return int64(binary.BigEndian.Uint32(b)), true
	case TypeEnum:
		code := int(binary.BigEndian.Uint16(b))
		if label, ok := s.Labels[code]; ok {
			return label, true
		}
		return fmt.Sprintf("Unknown (%d)", code), true
	case TypeBitmask:
		return s.decodeBitmask(binary.BigEndian.Uint32(b)), true
	}
	return nil, false
}

// decodeBitmask lists the labels of all set bits, lowest bit first.
func (s SensorDef) decodeBitmask(v uint32) string {
	bits := make([]int, 0, len(s.Labels))
	for bit := range s.Labels {
		if bit >= 0 && bit < 32 && v&(1<<uint(bit)) != 0 {
			bits = append(bits, bit)
		}
	}
	sort.Ints(bits)

	names := make([]string, 0, len(bits))
	for _, bit := range bits {
		names = append(names, s.Labels[bit])
	}
	return strings.Join(names, ", ")
}

// decodeTimestamp decodes the inverter clock. An unset or out-of-range
// clock yields no value.
func decodeTimestamp(b []byte) (any, bool) {
	year, month, day := int(b[0]), int(b[1]), int(b[2])
	hour, minute, second := int(b[3]), int(b[4]), int(b[5])

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return nil, false
	}

	ts := time.Date(2000+year, time.Month(month), day, hour, minute, second, 0, time.Local)
	if ts.Day() != day {
		return nil, false // e.g. 31 February
	}
	return ts, true
}
