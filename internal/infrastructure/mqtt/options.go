package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/goodwe-gw/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// willQoS is used for the LWT and status messages.
	willQoS = 1

	// clientSuffixLen is the number of uuid characters appended to the client ID.
	clientSuffixLen = 8

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// clientID returns the configured client ID with a random suffix, so that
// two gateways sharing a config do not kick each other off the broker.
func clientID(base string) string {
	if base == "" {
		base = "goodwe-gw"
	}
	return base + "-" + uuid.NewString()[:clientSuffixLen]
}

// buildClientOptions creates paho MQTT options from the gateway config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID with a random suffix
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff
//   - Keepalive from mqtt.keep_alive
//   - TLS configuration (if enabled)
func buildClientOptions(cfg config.MQTTConfig, id string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(id)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Readings are never queued for a later session.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// statusPayload is the retained message on the status topic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildStatusPayload(status, id, reason string) string {
	data, _ := json.Marshal(statusPayload{ //nolint:errcheck // plain strings always marshal
		Status:    status,
		ClientID:  id,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(data)
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes the will if the gateway disconnects without a
// clean Close (crash, network failure, power loss).
//
// QoS: 1, Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, topic, id string) {
	opts.SetWill(topic, buildStatusPayload("offline", id, "unexpected_disconnect"), willQoS, true)
}

// buildOnlinePayload creates the JSON payload for online status messages.
func buildOnlinePayload(id string) string {
	return buildStatusPayload("online", id, "")
}

// buildOfflinePayload creates the JSON payload for graceful offline status.
func buildOfflinePayload(id string) string {
	return buildStatusPayload("offline", id, "graceful_shutdown")
}
