package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/nerrad567/goodwe-gw/internal/infrastructure/config"
)

// mode selects what a run does.
type mode int

const (
	modeSnapshot mode = iota
	modeThing
	modeItems
	modeRun
)

func (m mode) String() string {
	switch m {
	case modeRun:
		return "run"
	case modeItems:
		return "items"
	case modeThing:
		return "thing"
	default:
		return "snapshot"
	}
}

// cliOptions holds parsed flags. Only flags given on the command line
// override the loaded configuration.
type cliOptions struct {
	mode        mode
	showVersion bool
	configPath  string

	host      string
	broker    string
	topic     string
	delay     int
	tries     int
	groups    string
	prefix    string
	camelCase bool
	logLevel  string

	set map[string]bool
}

// usageError marks a command-line mistake.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}

// parseArgs parses the command line. Defaults shown in the help text are
// the built-in configuration defaults.
func parseArgs(args []string, stderr io.Writer) (*cliOptions, error) {
	def := config.Default()
	opts := &cliOptions{}

	fs := flag.NewFlagSet("gw", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var runMode, items, thing bool
	fs.BoolVar(&runMode, "run", false, "poll the inverter and publish readings continuously")
	fs.BoolVar(&runMode, "r", false, "shorthand for --run")
	fs.BoolVar(&items, "items", false, "print openHAB item definitions")
	fs.BoolVar(&items, "i", false, "shorthand for --items")
	fs.BoolVar(&thing, "thing", false, "print an openHAB MQTT thing definition")
	fs.BoolVar(&thing, "t", false, "shorthand for --thing")
	fs.BoolVar(&opts.showVersion, "version", false, "print the version and exit")

	fs.StringVar(&opts.configPath, "config", "", "config file path (default $"+configEnv+")")
	fs.StringVar(&opts.host, "host", def.Device.Host, "inverter address")
	fs.StringVar(&opts.broker, "mqtt", def.MQTT.Broker.Host, "MQTT broker host")
	fs.StringVar(&opts.topic, "topic", def.Poll.Topic, "MQTT topic prefix")
	fs.IntVar(&opts.delay, "delay", def.Poll.Delay, "seconds between polls")
	fs.IntVar(&opts.tries, "tries", def.Poll.Tries, "consecutive failed polls tolerated before exiting")
	fs.StringVar(&opts.groups, "groups", def.OpenHAB.Groups, "comma-separated openHAB groups for --items")
	fs.StringVar(&opts.prefix, "prefix", def.OpenHAB.ItemPrefix, "openHAB item name prefix for --items")
	fs.BoolVar(&opts.camelCase, "camel-case", def.OpenHAB.CamelCase, "title-case openHAB item names")
	fs.StringVar(&opts.logLevel, "log-level", def.Logging.Level, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, &usageError{err}
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %v", fs.Args())
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return nil, &usageError{err}
	}

	switch {
	case runMode:
		opts.mode = modeRun
	case items:
		opts.mode = modeItems
	case thing:
		opts.mode = modeThing
	default:
		opts.mode = modeSnapshot
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	return opts, nil
}

// apply copies explicitly given flags onto cfg.
func (o *cliOptions) apply(cfg *config.Config) {
	if o.set["host"] {
		cfg.Device.Host = o.host
	}
	if o.set["mqtt"] {
		cfg.MQTT.Broker.Host = o.broker
	}
	if o.set["topic"] {
		cfg.Poll.Topic = o.topic
	}
	if o.set["delay"] {
		cfg.Poll.Delay = o.delay
	}
	if o.set["tries"] {
		cfg.Poll.Tries = o.tries
	}
	if o.set["groups"] {
		cfg.OpenHAB.Groups = o.groups
	}
	if o.set["prefix"] {
		cfg.OpenHAB.ItemPrefix = o.prefix
	}
	if o.set["camel-case"] {
		cfg.OpenHAB.CamelCase = o.camelCase
	}
	if o.set["log-level"] {
		cfg.Logging.Level = o.logLevel
	}
}
