// Package cubebot drives a six-motor puzzle cube rig built from ODrive
// controllers, one per face.
//
// Every face is coupled to an ODrive running in trapezoidal position
// control. Moves in standard cube notation (R, U', F2, ...) are turned into
// relative position targets and sent one at a time.
//
// # Installation
//
//	go install github.com/gwillem/cubebot/cmd/cubebot@latest
//
// # Usage
//
// First, run setup to find the controllers and assign them to faces:
//
//	cubebot setup
//
// Then connect and use the interactive prompt:
//
//	cubebot run
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/cubebot: CLI with setup, run, exec, info and monitor commands
//   - pkg/cube: Faces, move notation and the built-in sequences
//   - pkg/odrive: ODrive ASCII protocol client and USB discovery
//   - pkg/odrive/odrivetest: Simulated ODrive for tests
//   - pkg/robot: The cube rig, its calibration and configuration
//   - pkg/monitor: Polling controller behind the monitor dashboard
package cubebot
