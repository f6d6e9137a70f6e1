package odrive

import "fmt"

// AxisState is the value of axis.current_state and axis.requested_state.
type AxisState int

// Axis states as numbered by the firmware.
const (
	AxisStateUndefined                      AxisState = 0
	AxisStateIdle                           AxisState = 1
	AxisStateStartupSequence                AxisState = 2
	AxisStateFullCalibrationSequence        AxisState = 3
	AxisStateMotorCalibration               AxisState = 4
	AxisStateEncoderIndexSearch             AxisState = 6
	AxisStateEncoderOffsetCalibration       AxisState = 7
	AxisStateClosedLoopControl              AxisState = 8
	AxisStateLockinSpin                     AxisState = 9
	AxisStateEncoderDirFind                 AxisState = 10
	AxisStateHoming                         AxisState = 11
	AxisStateEncoderHallPolarityCalibration AxisState = 12
	AxisStateEncoderHallPhaseCalibration    AxisState = 13
	AxisStateAnticoggingCalibration         AxisState = 14
)

var axisStateNames = map[AxisState]string{
	AxisStateUndefined:                      "UNDEFINED",
	AxisStateIdle:                           "IDLE",
	AxisStateStartupSequence:                "STARTUP_SEQUENCE",
	AxisStateFullCalibrationSequence:        "FULL_CALIBRATION_SEQUENCE",
	AxisStateMotorCalibration:               "MOTOR_CALIBRATION",
	AxisStateEncoderIndexSearch:             "ENCODER_INDEX_SEARCH",
	AxisStateEncoderOffsetCalibration:       "ENCODER_OFFSET_CALIBRATION",
	AxisStateClosedLoopControl:              "CLOSED_LOOP_CONTROL",
	AxisStateLockinSpin:                     "LOCKIN_SPIN",
	AxisStateEncoderDirFind:                 "ENCODER_DIR_FIND",
	AxisStateHoming:                         "HOMING",
	AxisStateEncoderHallPolarityCalibration: "ENCODER_HALL_POLARITY_CALIBRATION",
	AxisStateEncoderHallPhaseCalibration:    "ENCODER_HALL_PHASE_CALIBRATION",
	AxisStateAnticoggingCalibration:         "ANTICOGGING_CALIBRATION",
}

func (s AxisState) String() string {
	if name, ok := axisStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("AxisState(%d)", int(s))
}

// ControlMode is the value of axis.controller.config.control_mode.
type ControlMode int

const (
	ControlModeVoltage  ControlMode = 0
	ControlModeTorque   ControlMode = 1
	ControlModeVelocity ControlMode = 2
	ControlModePosition ControlMode = 3
)

func (m ControlMode) String() string {
	switch m {
	case ControlModeVoltage:
		return "VOLTAGE_CONTROL"
	case ControlModeTorque:
		return "TORQUE_CONTROL"
	case ControlModeVelocity:
		return "VELOCITY_CONTROL"
	case ControlModePosition:
		return "POSITION_CONTROL"
	}
	return fmt.Sprintf("ControlMode(%d)", int(m))
}

// InputMode is the value of axis.controller.config.input_mode.
type InputMode int

const (
	InputModeInactive    InputMode = 0
	InputModePassthrough InputMode = 1
	InputModeVelRamp     InputMode = 2
	InputModePosFilter   InputMode = 3
	InputModeMixChannels InputMode = 4
	InputModeTrapTraj    InputMode = 5
	InputModeTorqueRamp  InputMode = 6
	InputModeMirror      InputMode = 7
	InputModeTuning      InputMode = 8
)

func (m InputMode) String() string {
	switch m {
	case InputModeInactive:
		return "INACTIVE"
	case InputModePassthrough:
		return "PASSTHROUGH"
	case InputModeVelRamp:
		return "VEL_RAMP"
	case InputModePosFilter:
		return "POS_FILTER"
	case InputModeMixChannels:
		return "MIX_CHANNELS"
	case InputModeTrapTraj:
		return "TRAP_TRAJ"
	case InputModeTorqueRamp:
		return "TORQUE_RAMP"
	case InputModeMirror:
		return "MIRROR"
	case InputModeTuning:
		return "TUNING"
	}
	return fmt.Sprintf("InputMode(%d)", int(m))
}
