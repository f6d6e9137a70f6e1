// Package odrivetest provides a simulated ODrive for tests.
package odrivetest

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gwillem/cubebot/pkg/odrive"
)

// DisarmReasonRefused is reported by a Sim that refuses closed loop control.
const DisarmReasonRefused = 0x1000

// Sim implements odrive.Transport and answers the ASCII protocol from an
// in-memory property table. Moves settle instantly.
type Sim struct {
	mu      sync.Mutex
	props   map[string]string
	in      []byte
	out     []byte
	closed  bool
	snaps   int
	targets []float64
	cmds    []string
	armAt   time.Time

	// RefuseClosedLoop keeps the axis idle when closed loop is requested.
	RefuseClosedLoop bool

	// ClosedLoopDelay is how long the axis takes to reach closed loop after
	// it is requested.
	ClosedLoopDelay time.Duration
}

// NewSim creates a simulated ODrive with the given hex serial number.
func NewSim(serial string) *Sim {
	sn, err := strconv.ParseUint(serial, 16, 64)
	if err != nil {
		panic(fmt.Sprintf("odrivetest: bad serial %q: %v", serial, err))
	}

	return &Sim{
		props: map[string]string{
			"serial_number":                        strconv.FormatUint(sn, 10),
			"vbus_voltage":                         "24.1",
			"hw_version_major":                     "3",
			"hw_version_minor":                     "6",
			"hw_version_variant":                   "56",
			"fw_version_major":                     "0",
			"fw_version_minor":                     "6",
			"fw_version_revision":                  "9",
			"axis0.pos_estimate":                   "0",
			"axis0.vel_estimate":                   "0",
			"axis0.controller.input_pos":           "0",
			"axis0.controller.config.control_mode": "3",
			"axis0.controller.config.input_mode":   "1",
			"axis0.trap_traj.config.vel_limit":     "2",
			"axis0.trap_traj.config.accel_limit":   "0.5",
			"axis0.trap_traj.config.decel_limit":   "0.5",
			"axis0.requested_state":                "0",
			"axis0.current_state":                  "1",
			"axis0.disarm_reason":                  "0",
			"axis0.active_errors":                  "0",
		},
	}
}

// Read returns pending reply bytes. It never blocks.
func (s *Sim) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// Write feeds command bytes to the simulated firmware.
func (s *Sim) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, odrive.ErrClosed
	}

	s.in = append(s.in, p...)
	for {
		i := bytes.IndexByte(s.in, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(s.in[:i]))
		s.in = s.in[i+1:]
		s.handle(line)
	}
	return len(p), nil
}

// Close marks the port closed.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetReadTimeout is a no-op.
func (s *Sim) SetReadTimeout(time.Duration) error {
	return nil
}

// Flush discards pending replies.
func (s *Sim) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = nil
	return nil
}

func (s *Sim) handle(line string) {
	s.cmds = append(s.cmds, line)
	s.advance()

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "r":
		if len(fields) != 2 {
			s.reply("invalid command format")
			return
		}
		v, ok := s.props[fields[1]]
		if !ok {
			s.reply("invalid property")
			return
		}
		s.reply(v)
	case "w":
		if len(fields) != 3 {
			s.reply("invalid command format")
			return
		}
		path, value := fields[1], fields[2]
		if _, ok := s.props[path]; !ok {
			s.reply("invalid property")
			return
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			s.reply("invalid value")
			return
		}
		s.props[path] = value
		s.onWrite(path, v)
	case "sc":
		s.props["axis0.disarm_reason"] = "0"
		s.props["axis0.active_errors"] = "0"
	default:
		s.reply("Unknown command")
	}
}

func (s *Sim) onWrite(path string, v float64) {
	switch path {
	case "axis0.requested_state":
		switch odrive.AxisState(v) {
		case odrive.AxisStateClosedLoopControl:
			if s.RefuseClosedLoop {
				s.props["axis0.disarm_reason"] = strconv.Itoa(DisarmReasonRefused)
				return
			}
			if math.Abs(s.float("axis0.controller.input_pos")-s.float("axis0.pos_estimate")) > 1e-9 {
				s.snaps++
			}
			if s.ClosedLoopDelay > 0 {
				s.armAt = time.Now().Add(s.ClosedLoopDelay)
				return
			}
			s.props["axis0.current_state"] = strconv.Itoa(int(odrive.AxisStateClosedLoopControl))
		case odrive.AxisStateIdle:
			s.armAt = time.Time{}
			s.props["axis0.current_state"] = strconv.Itoa(int(odrive.AxisStateIdle))
		}
	case "axis0.controller.input_pos":
		s.targets = append(s.targets, v)
		if s.props["axis0.current_state"] == strconv.Itoa(int(odrive.AxisStateClosedLoopControl)) {
			s.props["axis0.pos_estimate"] = s.props[path]
		}
	}
}

// advance completes a pending closed loop transition once its delay is over.
func (s *Sim) advance() {
	if s.armAt.IsZero() || time.Now().Before(s.armAt) {
		return
	}
	s.armAt = time.Time{}
	s.props["axis0.current_state"] = strconv.Itoa(int(odrive.AxisStateClosedLoopControl))
}

func (s *Sim) reply(line string) {
	s.out = append(s.out, line+"\r\n"...)
}

func (s *Sim) float(path string) float64 {
	v, _ := strconv.ParseFloat(s.props[path], 64)
	return v
}

// Float returns a numeric property.
func (s *Sim) Float(path string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.float(path)
}

// SetFloat sets a numeric property directly, bypassing write side effects.
func (s *Sim) SetFloat(path string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[path] = strconv.FormatFloat(v, 'f', -1, 64)
}

// Delete removes a property, as on firmware that does not have it.
func (s *Sim) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.props, path)
}

// State returns the current axis state.
func (s *Sim) State() odrive.AxisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return odrive.AxisState(s.float("axis0.current_state"))
}

// Snaps counts closed loop entries with input_pos away from pos_estimate.
func (s *Sim) Snaps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snaps
}

// Targets returns every input_pos written, in order.
func (s *Sim) Targets() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.targets...)
}

// Commands returns every command line received, in order.
func (s *Sim) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cmds...)
}

// Closed reports whether the port was closed.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dialer hands out sessions to simulated ODrives by serial number.
type Dialer struct {
	Sims map[string]*Sim

	mu     sync.Mutex
	dialed []string
}

// NewDialer creates a Dialer with one Sim per serial number.
func NewDialer(serials ...string) *Dialer {
	d := &Dialer{Sims: make(map[string]*Sim, len(serials))}
	for _, sn := range serials {
		d.Sims[sn] = NewSim(sn)
	}
	return d
}

// Dial opens a session with the Sim for serial.
func (d *Dialer) Dial(ctx context.Context, serial string) (*odrive.Client, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, serial)
	d.mu.Unlock()

	sim, ok := d.Sims[serial]
	if !ok {
		return nil, fmt.Errorf("%w: serial %s", odrive.ErrNotFound, serial)
	}
	return odrive.Open(odrive.Config{
		Transport:  sim,
		Port:       "sim:" + serial,
		Timeout:    100 * time.Millisecond,
		WriteCheck: 2 * time.Millisecond,
	})
}

// Dialed returns the serial numbers dialed so far, in order.
func (d *Dialer) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}
