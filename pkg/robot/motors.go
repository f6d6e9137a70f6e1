// Package robot provides the six-motor cube rig.
package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/odrive"
)

// Motor is the controller session that turns one face.
type Motor struct {
	Face        cube.Face
	Calibration FaceCalibration

	client *odrive.Client
	axis   *odrive.Axis
}

// NewMotor wraps an open controller session for a face. Faces are driven by axis0.
func NewMotor(face cube.Face, cal FaceCalibration, client *odrive.Client) *Motor {
	return &Motor{
		Face:        face,
		Calibration: cal,
		client:      client,
		axis:        client.Axis(0),
	}
}

// Port returns the serial port of the controller.
func (m *Motor) Port() string {
	return m.client.Port()
}

// Close closes the controller session.
func (m *Motor) Close() error {
	return m.client.Close()
}

// Dialer opens a session with the controller that has the given serial number.
type Dialer interface {
	Dial(ctx context.Context, serial string) (*odrive.Client, error)
}

// USBDialer finds controllers by USB serial number and opens their serial port.
type USBDialer struct {
	Timeout time.Duration // how long to wait for the device to enumerate
	Logger  *slog.Logger
}

// Dial waits for the controller to show up, opens it and checks its identity.
func (d USBDialer) Dial(ctx context.Context, serial string) (*odrive.Client, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	port, err := odrive.Find(ctx, serial, 100*time.Millisecond)
	if err != nil {
		return nil, err
	}

	client, err := odrive.Open(odrive.Config{
		Port:   port.Name,
		Logger: d.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port.Name, err)
	}

	sn, err := client.SerialNumber(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("read serial number on %s: %w", port.Name, err)
	}
	if sn != serial {
		client.Close()
		return nil, fmt.Errorf("%s reports serial %s, want %s", port.Name, sn, serial)
	}

	return client, nil
}

// Wiggle nudges the motor of an unassigned controller back and forth so the
// operator can see which face it drives, then leaves it idle.
func Wiggle(ctx context.Context, client *odrive.Client, amount float64, pause time.Duration) error {
	axis := client.Axis(0)

	if err := client.ClearErrors(ctx); err != nil {
		return err
	}
	if err := axis.SetControlMode(ctx, odrive.ControlModePosition); err != nil {
		return err
	}
	if err := axis.SetInputMode(ctx, odrive.InputModeTrapTraj); err != nil {
		return err
	}

	origin, err := axis.PosEstimate(ctx)
	if err != nil {
		return err
	}
	if err := axis.SetInputPos(ctx, origin); err != nil {
		return err
	}
	if err := axis.RequestState(ctx, odrive.AxisStateClosedLoopControl); err != nil {
		return err
	}

	var errs []error
	for _, pos := range []float64{origin + amount, origin - amount, origin} {
		if err := sleep(ctx, pause); err != nil {
			errs = append(errs, err)
			break
		}
		if err := axis.SetInputPos(ctx, pos); err != nil {
			errs = append(errs, err)
			break
		}
	}
	sleep(ctx, pause)

	// Always leave the motor free to turn by hand
	if err := axis.RequestState(context.Background(), odrive.AxisStateIdle); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
