//go:build integration

package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/goodwe-gw/internal/infrastructure/config"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig() config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = "gw-integration"
	return cfg
}

// subscribe opens a plain paho client collecting messages on pattern.
func subscribe(t *testing.T, pattern string) <-chan pahomqtt.Message {
	t.Helper()

	opts := pahomqtt.NewClientOptions().
		AddBroker("tcp://127.0.0.1:1883").
		SetClientID(clientID("gw-int-sub"))
	sub := pahomqtt.NewClient(opts)
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect failed: %v", token.Error())
	}
	t.Cleanup(func() { sub.Disconnect(100) })

	msgs := make(chan pahomqtt.Message, 64)
	token := sub.Subscribe(pattern, 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
		msgs <- m
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe failed: %v", token.Error())
	}
	return msgs
}

func TestIntegration_Connect(t *testing.T) {
	client, err := Connect(integrationConfig(), Topics{Prefix: "gwtest"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestIntegration_ConnectInvalidBroker(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg, Topics{Prefix: "gwtest"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_ReadingRoundtrip(t *testing.T) {
	topics := Topics{Prefix: "gwtest/roundtrip"}
	msgs := subscribe(t, topics.Prefix+"/+")

	client, err := Connect(integrationConfig(), topics)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.PublishReading(topics.Prefix+"/vpv1", "345.6"); err != nil {
		t.Fatalf("PublishReading() error = %v", err)
	}

	select {
	case m := <-msgs:
		if m.Topic() != "gwtest/roundtrip/vpv1" || string(m.Payload()) != "345.6" {
			t.Errorf("received %s = %q", m.Topic(), m.Payload())
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for reading")
	}
}

func TestIntegration_StatusOnlineOffline(t *testing.T) {
	topics := Topics{Prefix: "gwtest/status"}
	msgs := subscribe(t, topics.Status())

	client, err := Connect(integrationConfig(), topics)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	next := func() statusPayload {
		t.Helper()
		for {
			select {
			case m := <-msgs:
				if m.Retained() {
					continue // left over from an earlier run
				}
				var p statusPayload
				if err := json.Unmarshal(m.Payload(), &p); err != nil {
					t.Fatalf("status payload is not JSON: %v", err)
				}
				return p
			case <-time.After(5 * time.Second):
				t.Fatal("Timeout waiting for status")
			}
		}
	}

	if p := next(); p.Status != "online" || p.ClientID != client.ClientID() {
		t.Errorf("first status = %+v, want online from %s", p, client.ClientID())
	}

	_ = client.Close()

	if p := next(); p.Status != "offline" || p.Reason != "graceful_shutdown" {
		t.Errorf("second status = %+v, want graceful offline", p)
	}
}
