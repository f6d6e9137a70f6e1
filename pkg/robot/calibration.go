package robot

import (
	"errors"
	"fmt"
	"math"

	"github.com/gwillem/cubebot/pkg/cube"
)

// DefaultTurnsPerQuarter is the motor travel for a 90° face turn with a direct drive.
const DefaultTurnsPerQuarter = 0.25

// FaceCalibration holds the controller identity and drive mapping for a single face.
type FaceCalibration struct {
	Serial          string  `json:"serial"`
	Direction       int     `json:"direction,omitempty"`         // -1 inverts, 0 or 1 is clockwise-positive
	TurnsPerQuarter float64 `json:"turns_per_quarter,omitempty"` // motor turns for 90°, 0 means 0.25
}

// Calibration holds calibration data for all faces.
type Calibration map[cube.Face]FaceCalibration

func (c FaceCalibration) sign() float64 {
	if c.Direction < 0 {
		return -1
	}
	return 1
}

func (c FaceCalibration) quarter() float64 {
	if c.TurnsPerQuarter == 0 {
		return DefaultTurnsPerQuarter
	}
	return c.TurnsPerQuarter
}

// Turns converts quarter turns of the face into motor turns.
func (c FaceCalibration) Turns(quarterTurns int) float64 {
	return float64(quarterTurns) * c.quarter() * c.sign()
}

// QuarterTurns converts motor turns into quarter turns of the face.
func (c FaceCalibration) QuarterTurns(turns float64) float64 {
	return turns / (c.quarter() * c.sign())
}

// Angle converts a motor position into the face angle in degrees, wrapped to [0, 360).
func (c FaceCalibration) Angle(turns float64) float64 {
	deg := math.Mod(c.QuarterTurns(turns)*90, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Serials returns the serial numbers for all faces, in connection order.
func (c Calibration) Serials() []string {
	serials := make([]string, 0, len(c))
	for _, face := range cube.AllFaces() {
		if fc, ok := c[face]; ok {
			serials = append(serials, fc.Serial)
		}
	}
	return serials
}

// BySerial returns the face and calibration for a given serial number.
func (c Calibration) BySerial(serial string) (cube.Face, FaceCalibration, bool) {
	for face, fc := range c {
		if fc.Serial == serial {
			return face, fc, true
		}
	}
	return "", FaceCalibration{}, false
}

// Validate checks that every face has a unique serial number.
func (c Calibration) Validate() error {
	var errs []error
	seen := make(map[string]cube.Face, len(c))
	for _, face := range cube.AllFaces() {
		fc, ok := c[face]
		if !ok || fc.Serial == "" {
			errs = append(errs, fmt.Errorf("face %s: no serial number", face))
			continue
		}
		if other, dup := seen[fc.Serial]; dup {
			errs = append(errs, fmt.Errorf("face %s: serial %s already used by face %s", face, fc.Serial, other))
		}
		seen[fc.Serial] = face
		if fc.TurnsPerQuarter < 0 {
			errs = append(errs, fmt.Errorf("face %s: negative turns_per_quarter", face))
		}
	}
	for face := range c {
		if !face.Valid() {
			errs = append(errs, fmt.Errorf("unknown face %q", face))
		}
	}
	return errors.Join(errs...)
}
