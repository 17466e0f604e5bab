// Package device defines the contract between the gateway and an inverter.
//
// The gateway never talks to an inverter directly. It goes through a
// Connector, which hands out a Session. A Session exposes the device's
// sensor catalogue (fixed for the life of the session) and reads
// point-in-time snapshots of all current sensor values.
//
// # Key Types
//
//   - SensorDescriptor: one telemetry channel (id, display name, unit)
//   - SensorKind: display classification, assigned once per catalogue
//   - Catalogue: the ordered, read-only list of descriptors
//   - Snapshot: sensor id to value for a single read
//   - Session / Connector: the collaborator interfaces
//
// # Classification
//
// A sensor's kind is derived from naming conventions on its id:
//
//	"_label"                          → KindLabel
//	"errors", "_warning", "_error"    → KindError
//	contains "timestamp"              → KindTimestamp
//	anything else                     → KindMeasurement
//
// Kinds are computed by NewCatalogue, so consumers switch on the tagged
// value instead of re-matching strings on every poll.
//
// # Usage
//
//	session, err := connector.Connect(ctx, "192.168.2.92")
//	if err != nil {
//	    return err // wraps device.ErrConnection
//	}
//	defer session.Close()
//
//	snap, err := session.ReadSnapshot(ctx)
//	for _, s := range session.Sensors().All() {
//	    if v, ok := snap[s.ID]; ok {
//	        fmt.Println(s.ID, v, s.Unit)
//	    }
//	}
package device
