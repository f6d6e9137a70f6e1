// Package odrive talks to ODrive motor controllers over their ASCII protocol.
//
// An ODrive enumerates as a USB CDC serial port. Properties are read with
// "r <path>" and written with "w <path> <value>", one command per line.
package odrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/transports"
)

// Client is a session with a single ODrive.
type Client struct {
	transport  Transport
	port       string
	timeout    time.Duration
	writeCheck time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Config holds configuration for opening a Client.
type Config struct {
	// Transport is the underlying communication transport.
	// If nil, Port must be specified to open a serial connection.
	Transport Transport

	// Port is the serial port path (e.g., "/dev/ttyACM0").
	// Ignored if Transport is provided.
	Port string

	// BaudRate is ignored by the USB CDC interface but required to open
	// the port. Default is 115200.
	BaudRate int

	// Timeout for a single reply. Default is 1 second.
	Timeout time.Duration

	// WriteCheck is how long to listen for a rejection after a write.
	// Accepted writes are silent. Default is 10ms, negative disables.
	WriteCheck time.Duration

	// Logger receives protocol traffic at debug level. Default discards.
	Logger *slog.Logger
}

// Open opens a session with the given configuration.
func Open(cfg Config) (*Client, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.WriteCheck == 0 {
		cfg.WriteCheck = 10 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.Port == "" {
			return nil, errors.New("either Transport or Port must be specified")
		}
		var err error
		transport, err = transports.OpenSerial(transports.SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open serial port: %w", err)
		}
	}

	return &Client{
		transport:  transport,
		port:       cfg.Port,
		timeout:    cfg.Timeout,
		writeCheck: cfg.WriteCheck,
		logger:     cfg.Logger.With("port", cfg.Port),
	}, nil
}

// Port returns the serial port path, if the client was opened by path.
func (c *Client) Port() string {
	return c.port
}

// Close closes the session and releases the port.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	return c.transport.Close()
}

// Read reads a property and returns the raw reply.
func (c *Client) Read(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	op := "read " + path
	if err := c.sendLocked("r " + path); err != nil {
		return "", &CommError{Op: op, Err: err}
	}

	reply, err := c.readLineLocked(ctx, c.timeout)
	if err != nil {
		return "", &CommError{Op: op, Err: err}
	}
	if isRejection(reply) {
		return "", &PropertyError{Path: path, Reply: reply}
	}

	c.logger.Debug("odrive read", "path", path, "value", reply)
	return reply, nil
}

// Write writes a property. The firmware does not acknowledge writes, but it
// rejects unknown properties and bad values with a reply line, which is
// returned as a *PropertyError.
func (c *Client) Write(ctx context.Context, path, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	op := "write " + path
	if err := c.sendLocked("w " + path + " " + value); err != nil {
		return &CommError{Op: op, Err: err}
	}

	if c.writeCheck > 0 {
		reply, err := c.readLineLocked(ctx, c.writeCheck)
		switch {
		case errors.Is(err, ErrNoResponse):
			// accepted
		case err != nil:
			return &CommError{Op: op, Err: err}
		case isRejection(reply):
			return &PropertyError{Path: path, Reply: reply}
		default:
			c.logger.Warn("unexpected reply to write", "path", path, "reply", reply)
		}
	}

	c.logger.Debug("odrive write", "path", path, "value", value)
	return nil
}

// ReadFloat reads a floating point property.
func (c *Client) ReadFloat(ctx context.Context, path string) (float64, error) {
	reply, err := c.Read(ctx, path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// ReadInt reads an integer property.
func (c *Client) ReadInt(ctx context.Context, path string) (int64, error) {
	reply, err := c.Read(ctx, path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(reply, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// ReadUint reads an unsigned integer property.
func (c *Client) ReadUint(ctx context.Context, path string) (uint64, error) {
	reply, err := c.Read(ctx, path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(reply, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// WriteFloat writes a floating point property.
func (c *Client) WriteFloat(ctx context.Context, path string, v float64) error {
	return c.Write(ctx, path, strconv.FormatFloat(v, 'f', -1, 64))
}

// WriteInt writes an integer property.
func (c *Client) WriteInt(ctx context.Context, path string, v int64) error {
	return c.Write(ctx, path, strconv.FormatInt(v, 10))
}

// ClearErrors clears all error flags on the device.
func (c *Client) ClearErrors(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.sendLocked("sc"); err != nil {
		return &CommError{Op: "clear errors", Err: err}
	}
	return nil
}

// SerialNumber returns the device serial number in the hex form printed on
// the USB descriptor, e.g. "395634623331".
func (c *Client) SerialNumber(ctx context.Context) (string, error) {
	sn, err := c.ReadUint(ctx, "serial_number")
	if err != nil {
		return "", err
	}
	return FormatSerial(sn), nil
}

// FormatSerial formats a numeric serial number the way the USB descriptor does.
func FormatSerial(sn uint64) string {
	return fmt.Sprintf("%012X", sn)
}

// Version holds hardware and firmware versions.
type Version struct {
	HardwareMajor, HardwareMinor, HardwareVariant  int64
	FirmwareMajor, FirmwareMinor, FirmwareRevision int64
}

// Firmware returns the firmware version as "major.minor.revision".
func (v Version) Firmware() string {
	return fmt.Sprintf("%d.%d.%d", v.FirmwareMajor, v.FirmwareMinor, v.FirmwareRevision)
}

// Hardware returns the hardware version as "major.minor-variant".
func (v Version) Hardware() string {
	return fmt.Sprintf("%d.%d-%d", v.HardwareMajor, v.HardwareMinor, v.HardwareVariant)
}

// Version reads hardware and firmware versions.
func (c *Client) Version(ctx context.Context) (Version, error) {
	var v Version
	fields := []struct {
		path string
		dst  *int64
	}{
		{"hw_version_major", &v.HardwareMajor},
		{"hw_version_minor", &v.HardwareMinor},
		{"hw_version_variant", &v.HardwareVariant},
		{"fw_version_major", &v.FirmwareMajor},
		{"fw_version_minor", &v.FirmwareMinor},
		{"fw_version_revision", &v.FirmwareRevision},
	}
	for _, f := range fields {
		n, err := c.ReadInt(ctx, f.path)
		if err != nil {
			return Version{}, err
		}
		*f.dst = n
	}
	return v, nil
}

// VbusVoltage reads the DC bus voltage.
func (c *Client) VbusVoltage(ctx context.Context) (float64, error) {
	return c.ReadFloat(ctx, "vbus_voltage")
}

func (c *Client) sendLocked(cmd string) error {
	// Drop stale replies, e.g. a rejection of an earlier write
	c.transport.Flush()

	line := []byte(cmd + "\n")
	n, err := c.transport.Write(line)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(line) {
		return fmt.Errorf("incomplete write: %d of %d bytes", n, len(line))
	}
	return nil
}

func (c *Client) readLineLocked(ctx context.Context, timeout time.Duration) (string, error) {
	var line []byte
	buf := make([]byte, 64)
	deadline := time.Now().Add(timeout)

	for {
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			return strings.TrimSpace(string(line[:i])), nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			if len(line) == 0 {
				return "", ErrNoResponse
			}
			return "", fmt.Errorf("%w: partial reply %q", ErrTimeout, line)
		}

		remaining := max(time.Until(deadline), time.Millisecond)
		c.transport.SetReadTimeout(remaining)

		// A timed out read reports (0, nil) on a serial port and (0, io.EOF)
		// on in-memory transports
		n, err := c.transport.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read failed: %w", err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		line = append(line, buf[:n]...)
	}
}

func isRejection(reply string) bool {
	return strings.HasPrefix(reply, "invalid ") || strings.HasPrefix(reply, "Unknown command")
}
