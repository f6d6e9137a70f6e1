package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/odrive"
)

// Rig represents the cube rig with one motor per face.
type Rig struct {
	cfg    *Config
	logger *slog.Logger

	mu     sync.Mutex
	motors map[cube.Face]*Motor
}

// Options holds optional dependencies for Connect.
type Options struct {
	// Dialer opens controller sessions. Default is a USBDialer using the
	// configured connect timeout.
	Dialer Dialer

	// Logger receives diagnostics. Default discards.
	Logger *slog.Logger

	// OnConnect is called after each connection attempt.
	OnConnect func(face cube.Face, serial string, err error)
}

// NewRig creates a rig from already connected motors.
func NewRig(cfg *Config, logger *slog.Logger, motors ...*Motor) *Rig {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Rig{
		cfg:    cfg,
		logger: logger,
		motors: make(map[cube.Face]*Motor, len(motors)),
	}
	for _, m := range motors {
		r.motors[m.Face] = m
	}
	return r
}

// Connect opens a session with every face controller, in connection order.
// Either all faces connect or none stay open.
func Connect(ctx context.Context, cfg *Config, opts Options) (*Rig, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Dialer == nil {
		opts.Dialer = USBDialer{
			Timeout: time.Duration(cfg.Timing.ConnectTimeout),
			Logger:  opts.Logger,
		}
	}

	var motors []*Motor
	closeAll := func() {
		for _, m := range motors {
			m.Close()
		}
	}

	for _, face := range cube.AllFaces() {
		cal, ok := cfg.Faces[face]
		if !ok {
			closeAll()
			return nil, fmt.Errorf("face %s: not configured", face)
		}

		client, err := opts.Dialer.Dial(ctx, cal.Serial)
		if opts.OnConnect != nil {
			opts.OnConnect(face, cal.Serial, err)
		}
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connect face %s (%s): %w", face, cal.Serial, err)
		}

		opts.Logger.Debug("connected", "face", face, "serial", cal.Serial, "port", client.Port())
		motors = append(motors, NewMotor(face, cal, client))
	}

	return NewRig(cfg, opts.Logger, motors...), nil
}

// Close closes every controller session.
func (r *Rig) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, face := range cube.AllFaces() {
		m, ok := r.motors[face]
		if !ok {
			continue
		}
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("face %s: %w", face, err))
		}
	}
	return errors.Join(errs...)
}

// Faces returns the connected faces in connection order.
func (r *Rig) Faces() []cube.Face {
	r.mu.Lock()
	defer r.mu.Unlock()

	faces := make([]cube.Face, 0, len(r.motors))
	for _, face := range cube.AllFaces() {
		if _, ok := r.motors[face]; ok {
			faces = append(faces, face)
		}
	}
	return faces
}

// Motor returns the motor for a face.
func (r *Rig) Motor(face cube.Face) (*Motor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.motors[face]
	return m, ok
}

// MotorStatus is a snapshot of one face controller.
type MotorStatus struct {
	Face         cube.Face
	Serial       string
	Port         string
	State        odrive.AxisState
	Position     float64 // pos_estimate in turns
	InputPos     float64 // commanded position in turns
	DisarmReason uint64
	VbusVoltage  float64
}

// Ready reports whether the face is holding position in closed loop.
func (s MotorStatus) Ready() bool {
	return s.State == odrive.AxisStateClosedLoopControl
}

// Setup puts every motor into trapezoidal position control and closed loop,
// one face at a time. The commanded position is seeded from the estimate
// before closed loop is requested so the motor does not jump.
// A face that does not reach closed loop is reported in its status, not as an error.
func (r *Rig) Setup(ctx context.Context, fn func(MotorStatus)) ([]MotorStatus, error) {
	var statuses []MotorStatus
	for _, face := range r.Faces() {
		st, err := r.setupFace(ctx, face)
		if err != nil {
			return statuses, fmt.Errorf("setup face %s: %w", face, err)
		}
		if st.Ready() {
			r.logger.Info("face ready", "face", face, "pos", st.Position)
		} else {
			r.logger.Warn("face did not enter closed loop", "face", face, "state", st.State, "disarm_reason", st.DisarmReason)
		}
		if fn != nil {
			fn(st)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (r *Rig) setupFace(ctx context.Context, face cube.Face) (MotorStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.motors[face]
	axis := m.axis

	if err := m.client.ClearErrors(ctx); err != nil {
		return MotorStatus{}, err
	}
	if err := axis.SetControlMode(ctx, odrive.ControlModePosition); err != nil {
		return MotorStatus{}, err
	}
	if err := axis.SetInputMode(ctx, odrive.InputModeTrapTraj); err != nil {
		return MotorStatus{}, err
	}
	if err := axis.SetTrapTraj(ctx, r.cfg.Trajectory.TrapTraj()); err != nil {
		return MotorStatus{}, err
	}

	pos, err := axis.PosEstimate(ctx)
	if err != nil {
		return MotorStatus{}, err
	}
	if err := axis.SetInputPos(ctx, pos); err != nil {
		return MotorStatus{}, err
	}

	if err := axis.RequestState(ctx, odrive.AxisStateClosedLoopControl); err != nil {
		return MotorStatus{}, err
	}
	if err := sleep(ctx, time.Duration(r.cfg.Timing.StateWait)); err != nil {
		return MotorStatus{}, err
	}

	return r.statusLocked(ctx, m)
}

func (r *Rig) statusLocked(ctx context.Context, m *Motor) (MotorStatus, error) {
	st := MotorStatus{
		Face:   m.Face,
		Serial: m.Calibration.Serial,
		Port:   m.Port(),
	}

	var err error
	if st.State, err = m.axis.CurrentState(ctx); err != nil {
		return st, err
	}
	if st.Position, err = m.axis.PosEstimate(ctx); err != nil {
		return st, err
	}
	if st.InputPos, err = m.axis.InputPos(ctx); err != nil {
		return st, err
	}
	if !st.Ready() {
		// Older firmware has no disarm_reason; the state alone is enough to report
		st.DisarmReason, _ = m.axis.DisarmReason(ctx)
	}
	return st, nil
}

// Status reads a snapshot of every face controller, including bus voltage.
func (r *Rig) Status(ctx context.Context) ([]MotorStatus, error) {
	var statuses []MotorStatus
	for _, face := range r.Faces() {
		st, err := r.faceStatus(ctx, face)
		if err != nil {
			return statuses, fmt.Errorf("status face %s: %w", face, err)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (r *Rig) faceStatus(ctx context.Context, face cube.Face) (MotorStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.motors[face]
	st, err := r.statusLocked(ctx, m)
	if err != nil {
		return st, err
	}
	st.VbusVoltage, err = m.client.VbusVoltage(ctx)
	return st, err
}

// Version reads the firmware and hardware version of a face controller.
func (r *Rig) Version(ctx context.Context, face cube.Face) (odrive.Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.motors[face]
	if !ok {
		return odrive.Version{}, fmt.Errorf("face %s: %w", face, ErrNotConnected)
	}
	return m.client.Version(ctx)
}

// Rotate turns a face by quarterTurns (+1 clockwise, -1 counter-clockwise)
// relative to its last commanded position, then waits the settle time.
// It returns the new commanded position in motor turns.
func (r *Rig) Rotate(ctx context.Context, face cube.Face, quarterTurns int) (float64, error) {
	target, err := r.command(ctx, face, quarterTurns)
	if err != nil {
		return 0, err
	}
	if err := sleep(ctx, time.Duration(r.cfg.Timing.Settle)); err != nil {
		return target, err
	}
	return target, nil
}

func (r *Rig) command(ctx context.Context, face cube.Face, quarterTurns int) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.motors[face]
	if !ok {
		return 0, fmt.Errorf("face %s: %w", face, ErrNotConnected)
	}

	current, err := m.axis.InputPos(ctx)
	if err != nil {
		return 0, fmt.Errorf("face %s: %w", face, err)
	}
	target := current + m.Calibration.Turns(quarterTurns)
	if err := m.axis.SetInputPos(ctx, target); err != nil {
		return 0, fmt.Errorf("face %s: %w", face, err)
	}

	r.logger.Debug("rotate", "face", face, "quarter_turns", quarterTurns, "from", current, "to", target)
	return target, nil
}

// Positions reads the estimated position of every face in motor turns.
func (r *Rig) Positions(ctx context.Context) (map[cube.Face]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	positions := make(map[cube.Face]float64, len(r.motors))
	for face, m := range r.motors {
		pos, err := m.axis.PosEstimate(ctx)
		if err != nil {
			return nil, fmt.Errorf("face %s: %w", face, err)
		}
		positions[face] = pos
	}
	return positions, nil
}

// Angles reads the angle of every face in degrees, wrapped to [0, 360).
func (r *Rig) Angles(ctx context.Context) (map[cube.Face]float64, error) {
	positions, err := r.Positions(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	angles := make(map[cube.Face]float64, len(positions))
	for face, pos := range positions {
		angles[face] = r.motors[face].Calibration.Angle(pos)
	}
	return angles, nil
}

// Release puts every motor back into idle so the faces turn freely.
func (r *Rig) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, face := range cube.AllFaces() {
		m, ok := r.motors[face]
		if !ok {
			continue
		}
		if err := m.axis.RequestState(ctx, odrive.AxisStateIdle); err != nil {
			errs = append(errs, fmt.Errorf("face %s: %w", face, err))
		}
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
