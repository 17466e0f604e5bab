package goodwe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/goodwe-gw/internal/device"
)

// Client defaults.
const (
	// DefaultPort is the UDP port GoodWe inverters listen on.
	DefaultPort = 8899

	// defaultTimeout is the per-datagram response timeout.
	defaultTimeout = time.Second

	// maxDatagram is large enough for the biggest response (5 + 250 + 2 bytes).
	maxDatagram = 512
)

// Logger is the logging interface used by the client.
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

// Config holds GoodWe client settings.
type Config struct {
	// Port is used when the address passed to Connect has no port.
	// Default: 8899
	Port int

	// Timeout bounds each request/response exchange.
	// Default: 1s
	Timeout time.Duration

	// Retries is how many times a request is resent after a timeout or a
	// malformed response. Zero sends each request once.
	Retries int

	// CommAddr is the Modbus slave address. Default: 0xF7
	CommAddr byte

	// Table is the sensor table. Default: embedded ET table.
	Table *Table
}

// Connector implements device.Connector over UDP.
type Connector struct {
	cfg    Config
	logger Logger
}

// Ensure Connector implements device.Connector.
var _ device.Connector = (*Connector)(nil)

// NewConnector creates a connector, filling zero config fields with defaults.
func NewConnector(cfg Config) (*Connector, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("goodwe: retries must not be negative, got %d", cfg.Retries)
	}
	if cfg.CommAddr == 0 {
		cfg.CommAddr = DefaultCommAddr
	}
	if cfg.Table == nil {
		t, err := LoadTable("")
		if err != nil {
			return nil, err
		}
		cfg.Table = t
	}

	return &Connector{cfg: cfg, logger: noopLogger{}}, nil
}

// SetLogger sets the logger used by the connector and its sessions.
func (c *Connector) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Connect opens a UDP session and reads the device info block to confirm
// the inverter answers.
//
// Parameters:
//   - ctx: Context for cancellation
//   - address: inverter host or host:port
//
// Returns:
//   - device.Session: the live session
//   - error: wraps device.ErrConnection
func (c *Connector) Connect(ctx context.Context, address string) (device.Session, error) {
	target := withDefaultPort(address, c.cfg.Port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", device.ErrConnection, target, err)
	}

	s := &Session{
		cfg:       c.cfg,
		conn:      conn,
		address:   target,
		catalogue: c.cfg.Table.Catalogue(),
		logger:    c.logger,
	}

	data, err := s.read(ctx, deviceInfoRegister, deviceInfoCount)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s: %w", device.ErrConnection, target, err)
	}
	s.info = decodeInfo(data)

	c.logger.Debug("goodwe session opened",
		"address", target,
		"model", s.info.Model,
		"serial", s.info.Serial,
		"sensors", s.catalogue.Len(),
	)

	return s, nil
}

// Session is a live UDP session with one inverter.
type Session struct {
	cfg       Config
	conn      net.Conn
	address   string
	info      device.Info
	catalogue *device.Catalogue
	logger    Logger

	mu     sync.Mutex
	closed bool
}

// Ensure Session implements device.Session.
var _ device.Session = (*Session)(nil)

// Info implements device.Session.
func (s *Session) Info() device.Info {
	return s.info
}

// Sensors implements device.Session.
func (s *Session) Sensors() *device.Catalogue {
	return s.catalogue
}

// ReadSnapshot implements device.Session.
func (s *Session) ReadSnapshot(ctx context.Context) (device.Snapshot, error) {
	data, err := s.read(ctx, runtimeRegister, runtimeCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", device.ErrRead, err)
	}
	return s.cfg.Table.Decode(data), nil
}

// Close implements device.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// read sends a register read and waits for a valid answer, resending up to
// cfg.Retries times.
func (s *Session) read(ctx context.Context, register, count uint16) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, device.ErrClosed
	}

	request := readRequest(s.cfg.CommAddr, register, count)
	buf := make([]byte, maxDatagram)

	var lastErr error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		deadline := time.Now().Add(s.cfg.Timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := s.conn.SetDeadline(deadline); err != nil {
			return nil, err
		}

		if _, err := s.conn.Write(request); err != nil {
			lastErr = err
			continue
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				lastErr = ErrTimeout
			} else {
				lastErr = err
			}
			s.logger.Debug("goodwe request failed",
				"address", s.address,
				"register", register,
				"attempt", attempt+1,
				"error", lastErr,
			)
			continue
		}

		data, err := parseReadResponse(buf[:n], count)
		if err != nil {
			lastErr = err
			s.logger.Debug("goodwe response rejected",
				"address", s.address,
				"register", register,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	return nil, lastErr
}

// decodeInfo extracts model name and serial number from the device info block.
//
//	bytes 6..21:  serial number (ASCII)
//	bytes 22..31: model name (ASCII)
func decodeInfo(data []byte) device.Info {
	var info device.Info
	if len(data) >= 22 { //nolint:mnd // serial end
		info.Serial = cleanASCII(data[6:22])
	}
	if len(data) >= 32 { //nolint:mnd // model end
		info.Model = cleanASCII(data[22:32])
	}
	return info
}

// cleanASCII trims padding and drops non-printable bytes.
func cleanASCII(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c < 0x7F {
			sb.WriteByte(c)
		}
	}
	return strings.TrimSpace(sb.String())
}

// withDefaultPort appends port to address when it has none.
func withDefaultPort(address string, port int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(strings.Trim(address, "[]"), strconv.Itoa(port))
}
