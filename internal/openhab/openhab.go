package openhab

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/nerrad567/goodwe-gw/internal/device"
)

// Display patterns for item labels.
const (
	numberPattern = "%.1f"
	stampPattern  = "%1$ta %1$tR"
	energyIcon    = "<energy>"
)

// ItemsOptions controls WriteItems.
type ItemsOptions struct {
	// Groups is a comma-separated list of group names.
	Groups string

	// Prefix is prepended to the sensor id to form the item name.
	Prefix string

	// CamelCase title-cases the item name ("solar_vpv1" → "Solar_Vpv1").
	CamelCase bool

	// ThingUID is the thing whose channels the items bind to.
	ThingUID string
}

// ThingOptions controls WriteThing.
type ThingOptions struct {
	UID       string
	Label     string
	BrokerUID string
	Location  string

	// Topic is the reading topic prefix used for stateTopic.
	Topic string
}

// errWriter remembers the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

// ItemType returns the openHAB item type for a sensor kind.
func ItemType(kind device.SensorKind) string {
	switch {
	case kind.IsTextual():
		return "String"
	case kind.IsTemporal():
		return "DateTime"
	default:
		return "Number"
	}
}

// ChannelType returns the MQTT channel type for a sensor kind.
func ChannelType(kind device.SensorKind) string {
	return strings.ToLower(ItemType(kind))
}

// WriteItems writes the group declarations followed by one item line per
// sensor, in catalogue order.
func WriteItems(w io.Writer, catalogue *device.Catalogue, opts ItemsOptions) error {
	ew := &errWriter{w: w}

	for _, group := range strings.Split(opts.Groups, ",") {
		ew.printf("Group %s\n", group)
	}

	for _, s := range catalogue.All() {
		pattern := numberPattern
		if strings.HasSuffix(s.ID, "stamp") {
			pattern = stampPattern
		}

		icon := ""
		if s.Unit == "W" || s.Unit == "VA" {
			icon = energyIcon
		}

		name := opts.Prefix + s.ID
		if opts.CamelCase {
			name = TitleCase(name)
		}

		ew.printf("%s %s \"%s [%s%s]\" %s (%s) { channel=\"%s:%s\" }\n",
			ItemType(s.Kind), name, s.Name, pattern, itemUnit(s.Unit), icon, opts.Groups, opts.ThingUID, s.ID)
	}

	return ew.err
}

// WriteThing writes a thing definition with one channel per sensor, in
// catalogue order.
func WriteThing(w io.Writer, catalogue *device.Catalogue, opts ThingOptions) error {
	ew := &errWriter{w: w}

	ew.printf("\nThing %s \"%s\" (%s) @ \"%s\" {\n    Channels:\n\n", opts.UID, opts.Label, opts.BrokerUID, opts.Location)

	for _, s := range catalogue.All() {
		ew.printf("        Type %s : %s \"%s%s\" [ stateTopic=\"%s/%s\" ]\n",
			ChannelType(s.Kind), s.ID, s.Name, unitSuffix(s.Unit), opts.Topic, s.ID)
	}

	ew.printf("}\n")

	return ew.err
}

// unitSuffix renders " [unit]", or nothing for unitless sensors.
func unitSuffix(unit string) string {
	if unit == "" {
		return ""
	}
	return " [" + unit + "]"
}

// itemUnit is unitSuffix for item label patterns, where a literal percent
// sign must be doubled.
func itemUnit(unit string) string {
	return strings.ReplaceAll(unitSuffix(unit), "%", "%%")
}

// TitleCase upper-cases the first letter of every run of letters and
// lower-cases the rest; any non-letter (digit, underscore) ends a run.
//
//	TitleCase("solar_e_total") == "Solar_E_Total"
//	TitleCase("solar_ppv1x")   == "Solar_Ppv1X"
func TitleCase(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inWord := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if inWord {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			inWord = true
			continue
		}
		sb.WriteRune(r)
		inWord = false
	}

	return sb.String()
}
