package mqtt

import "strings"

// statusSuffix is appended to the reading prefix to form the gateway's
// availability topic.
const statusSuffix = "bridge/status"

// Topics builds the client's own topics under the reading prefix. Reading
// topics themselves are chosen by the caller.
//
//	topics := mqtt.Topics{Prefix: "solar"}
//	topics.Status() // "solar/bridge/status"
type Topics struct {
	Prefix string
}

// Status returns the retained availability topic (online/offline and LWT).
//
// Example: solar/bridge/status
func (t Topics) Status() string {
	return t.Prefix + "/" + statusSuffix
}

// validPublishTopic reports whether topic can be published to.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
