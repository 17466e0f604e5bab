// gw reads a GoodWe solar inverter over the local network and republishes
// its readings on an MQTT broker, one topic per sensor.
//
// Modes (first match wins):
//
//	gw --run      poll the inverter and publish until stopped
//	gw --items    print openHAB item definitions for every sensor
//	gw --thing    print an openHAB MQTT thing definition
//	gw            print one snapshot of current readings
//
// Configuration comes from an optional YAML file (--config or GW_CONFIG),
// then GW_* environment variables, then command-line flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/goodwe-gw/internal/api"
	"github.com/nerrad567/goodwe-gw/internal/device"
	"github.com/nerrad567/goodwe-gw/internal/device/goodwe"
	"github.com/nerrad567/goodwe-gw/internal/infrastructure/config"
	"github.com/nerrad567/goodwe-gw/internal/infrastructure/logging"
	"github.com/nerrad567/goodwe-gw/internal/infrastructure/mqtt"
	"github.com/nerrad567/goodwe-gw/internal/openhab"
	"github.com/nerrad567/goodwe-gw/internal/poller"
)

// Version information, set at build time via ldflags
// Example: go build -ldflags "-X main.version=0.0.4"
var version = "0.0.3"

// configEnv names the environment variable holding the config file path.
const configEnv = "GW_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err != nil && !errors.Is(err, flag.ErrHelp) && !isUsageError(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	cancel()
	os.Exit(exitCode(err))
}

// run is the application logic, separated from main for testability.
//
// Returns:
//   - nil: the mode completed, or --run was stopped by ctx
//   - error: anything that should end the process non-zero
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Logging, stdout, stderr)

	connector, err := newConnector(cfg.Device, log)
	if err != nil {
		return err
	}

	return execute(ctx, opts.mode, cfg, connector, dialMQTT(cfg, log), stdout, log)
}

// loadConfig loads the config file, applies flag overrides and validates
// the result.
func loadConfig(opts *cliOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	opts.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger on the writers run was given.
func newLogger(cfg config.LoggingConfig, stdout, stderr io.Writer) *logging.Logger {
	w := stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		w = stdout
	}
	return logging.NewWithWriter(cfg, version, w)
}

// newConnector builds the GoodWe connector from device settings.
func newConnector(cfg config.DeviceConfig, log *logging.Logger) (*goodwe.Connector, error) {
	table, err := goodwe.LoadTable(cfg.SensorTable)
	if err != nil {
		return nil, fmt.Errorf("loading sensor table: %w", err)
	}

	connector, err := goodwe.NewConnector(goodwe.Config{
		Port:     cfg.Port,
		Timeout:  cfg.Timeout,
		Retries:  cfg.Retries,
		CommAddr: byte(cfg.CommAddr),
		Table:    table,
	})
	if err != nil {
		return nil, fmt.Errorf("creating device connector: %w", err)
	}
	connector.SetLogger(log)
	return connector, nil
}

// dialMQTT returns a BusDialer connecting to the configured broker.
func dialMQTT(cfg *config.Config, log *logging.Logger) poller.BusDialer {
	return func(context.Context) (poller.Bus, error) {
		client, err := mqtt.Connect(cfg.MQTT, mqtt.Topics{Prefix: cfg.Poll.Topic})
		if err != nil {
			return nil, err
		}
		client.SetLogger(log)
		watchConnection(client, log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", client.ClientID(),
		)
		return client, nil
	}
}

// connWatcher is the part of the MQTT client reporting connection changes.
type connWatcher interface {
	SetOnConnect(func())
	SetOnDisconnect(func(error))
}

// watchConnection logs broker connection loss and recovery. It is installed
// after the first connect, so the connect callback only fires on reconnects.
func watchConnection(c connWatcher, log *logging.Logger) {
	c.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	c.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost, reconnecting", "error", err)
	})
}

// execute runs the selected mode.
func execute(ctx context.Context, m mode, cfg *config.Config, connector device.Connector,
	dial poller.BusDialer, stdout io.Writer, log *logging.Logger) error {
	if m == modeRun {
		return runPoller(ctx, cfg, connector, dial, log)
	}

	session, err := connector.Connect(ctx, cfg.Device.Host)
	if err != nil {
		return fmt.Errorf("connecting to inverter: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("closing device session", "error", closeErr)
		}
	}()

	switch m {
	case modeItems:
		return openhab.WriteItems(stdout, session.Sensors(), openhab.ItemsOptions{
			Groups:    cfg.OpenHAB.Groups,
			Prefix:    cfg.OpenHAB.ItemPrefix,
			CamelCase: cfg.OpenHAB.CamelCase,
			ThingUID:  cfg.OpenHAB.ThingUID,
		})
	case modeThing:
		return openhab.WriteThing(stdout, session.Sensors(), openhab.ThingOptions{
			UID:       cfg.OpenHAB.ThingUID,
			Label:     cfg.OpenHAB.ThingLabel,
			BrokerUID: cfg.OpenHAB.BrokerUID,
			Location:  cfg.OpenHAB.Location,
			Topic:     cfg.Poll.Topic,
		})
	default:
		snap, err := session.ReadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("reading inverter: %w", err)
		}
		return printSnapshot(stdout, session.Sensors(), snap)
	}
}

// printSnapshot writes one line per sensor present in snap, in catalogue
// order.
func printSnapshot(w io.Writer, catalogue *device.Catalogue, snap device.Snapshot) error {
	for _, s := range catalogue.All() {
		v, ok := snap[s.ID]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: \t\t %s = %s %s\n", s.ID, s.Name, poller.FormatValue(v), s.Unit); err != nil {
			return err
		}
	}
	return nil
}

// runPoller runs the supervisor, plus the status server when enabled,
// until ctx is cancelled or polling gives up.
func runPoller(ctx context.Context, cfg *config.Config, connector device.Connector,
	dial poller.BusDialer, log *logging.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sup, err := poller.NewSupervisor(poller.SupervisorOptions{
		Config: poller.Config{
			Address:           cfg.Device.Host,
			Topic:             cfg.Poll.Topic,
			Delay:             cfg.GetDelay(),
			Tries:             cfg.Poll.Tries,
			SettleDelay:       cfg.GetSettleDelay(),
			ConnectRetryDelay: cfg.GetConnectRetryDelay(),
			BackoffDivisor:    cfg.Poll.BackoffDivisor,
		},
		Connector: connector,
		DialBus:   dial,
		Logger:    log,
		Metrics:   poller.NewMetrics(reg),
	})
	if err != nil {
		return err
	}

	if cfg.Status.Enabled {
		srv, err := api.New(api.Deps{
			Config:   cfg.Status,
			Logger:   log,
			Source:   sup,
			Gatherer: reg,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating status server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	log.Info("starting poller",
		"version", version,
		"device", cfg.Device.Host,
		"topic", cfg.Poll.Topic,
		"delay", cfg.GetDelay(),
		"tries", cfg.Poll.Tries,
	)

	start := time.Now()
	err = sup.Run(ctx)
	log.Info("poller finished", "uptime", time.Since(start).Round(time.Second), "state", sup.State())
	return err
}

// exitCode maps run's result to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case isUsageError(err):
		return 2
	default:
		return 1
	}
}
