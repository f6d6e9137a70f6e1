package odrive

import (
	"context"
	"fmt"
)

// Axis addresses one motor axis of an ODrive.
type Axis struct {
	client *Client
	name   string
}

// Axis returns the axis with the given index (axis0, axis1, ...).
func (c *Client) Axis(n int) *Axis {
	return &Axis{client: c, name: fmt.Sprintf("axis%d", n)}
}

// Name returns the axis property prefix, e.g. "axis0".
func (a *Axis) Name() string {
	return a.name
}

func (a *Axis) path(p string) string {
	return a.name + "." + p
}

// PosEstimate reads the estimated position in turns.
func (a *Axis) PosEstimate(ctx context.Context) (float64, error) {
	return a.client.ReadFloat(ctx, a.path("pos_estimate"))
}

// VelEstimate reads the estimated velocity in turns/s.
func (a *Axis) VelEstimate(ctx context.Context) (float64, error) {
	return a.client.ReadFloat(ctx, a.path("vel_estimate"))
}

// InputPos reads the commanded position in turns.
func (a *Axis) InputPos(ctx context.Context) (float64, error) {
	return a.client.ReadFloat(ctx, a.path("controller.input_pos"))
}

// SetInputPos commands a new position in turns.
func (a *Axis) SetInputPos(ctx context.Context, pos float64) error {
	return a.client.WriteFloat(ctx, a.path("controller.input_pos"), pos)
}

// ControlMode reads the controller mode.
func (a *Axis) ControlMode(ctx context.Context) (ControlMode, error) {
	v, err := a.client.ReadInt(ctx, a.path("controller.config.control_mode"))
	return ControlMode(v), err
}

// SetControlMode sets the controller mode.
func (a *Axis) SetControlMode(ctx context.Context, mode ControlMode) error {
	return a.client.WriteInt(ctx, a.path("controller.config.control_mode"), int64(mode))
}

// InputMode reads the input filter mode.
func (a *Axis) InputMode(ctx context.Context) (InputMode, error) {
	v, err := a.client.ReadInt(ctx, a.path("controller.config.input_mode"))
	return InputMode(v), err
}

// SetInputMode sets the input filter mode.
func (a *Axis) SetInputMode(ctx context.Context, mode InputMode) error {
	return a.client.WriteInt(ctx, a.path("controller.config.input_mode"), int64(mode))
}

// TrapTraj holds the trapezoidal trajectory planner limits.
type TrapTraj struct {
	VelLimit   float64 // turns/s
	AccelLimit float64 // turns/s²
	DecelLimit float64 // turns/s²
}

// SetTrapTraj writes the trajectory planner limits.
func (a *Axis) SetTrapTraj(ctx context.Context, tt TrapTraj) error {
	limits := []struct {
		path string
		v    float64
	}{
		{"trap_traj.config.vel_limit", tt.VelLimit},
		{"trap_traj.config.accel_limit", tt.AccelLimit},
		{"trap_traj.config.decel_limit", tt.DecelLimit},
	}
	for _, l := range limits {
		if err := a.client.WriteFloat(ctx, a.path(l.path), l.v); err != nil {
			return err
		}
	}
	return nil
}

// RequestState asks the axis to switch state.
func (a *Axis) RequestState(ctx context.Context, state AxisState) error {
	return a.client.WriteInt(ctx, a.path("requested_state"), int64(state))
}

// CurrentState reads the axis state.
func (a *Axis) CurrentState(ctx context.Context) (AxisState, error) {
	v, err := a.client.ReadInt(ctx, a.path("current_state"))
	return AxisState(v), err
}

// DisarmReason reads the error flags that caused the last disarm.
func (a *Axis) DisarmReason(ctx context.Context) (uint64, error) {
	return a.client.ReadUint(ctx, a.path("disarm_reason"))
}

// ActiveErrors reads the currently active error flags.
func (a *Axis) ActiveErrors(ctx context.Context) (uint64, error) {
	return a.client.ReadUint(ctx, a.path("active_errors"))
}
