package robot

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/odrive"
	"github.com/gwillem/cubebot/pkg/odrive/odrivetest"
)

// testConfig returns the default config without waits.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Timing.StateWait = 0
	cfg.Timing.Settle = 0
	return cfg
}

func newTestRig(t *testing.T, cfg *Config) (*Rig, *odrivetest.Dialer) {
	t.Helper()

	dialer := odrivetest.NewDialer(cfg.Faces.Serials()...)
	rig, err := Connect(context.Background(), cfg, Options{Dialer: dialer})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { rig.Close() })
	return rig, dialer
}

func simFor(t *testing.T, cfg *Config, dialer *odrivetest.Dialer, face cube.Face) *odrivetest.Sim {
	t.Helper()
	sim, ok := dialer.Sims[cfg.Faces[face].Serial]
	if !ok {
		t.Fatalf("no sim for face %s", face)
	}
	return sim
}

func TestConnect_Order(t *testing.T) {
	cfg := testConfig()

	var connected []cube.Face
	dialer := odrivetest.NewDialer(cfg.Faces.Serials()...)
	rig, err := Connect(context.Background(), cfg, Options{
		Dialer: dialer,
		OnConnect: func(face cube.Face, serial string, err error) {
			if err != nil {
				t.Errorf("face %s: unexpected error %v", face, err)
			}
			connected = append(connected, face)
		},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer rig.Close()

	if diff := cmp.Diff(cube.AllFaces(), connected); diff != "" {
		t.Errorf("connect order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(cfg.Faces.Serials(), dialer.Dialed()); diff != "" {
		t.Errorf("dialed serials mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(cube.AllFaces(), rig.Faces()); diff != "" {
		t.Errorf("rig faces mismatch (-want +got):\n%s", diff)
	}
}

func TestConnect_AllOrNothing(t *testing.T) {
	cfg := testConfig()

	dialer := odrivetest.NewDialer(cfg.Faces.Serials()...)
	delete(dialer.Sims, cfg.Faces[cube.Back].Serial)

	_, err := Connect(context.Background(), cfg, Options{Dialer: dialer})
	if err == nil {
		t.Fatal("expected connect error")
	}
	if !errors.Is(err, odrive.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "face B (3971346B3331)") {
		t.Errorf("error should name face and serial, got %v", err)
	}

	// Faces before B were opened and must be closed again
	for _, face := range []cube.Face{cube.Down, cube.Up, cube.Left} {
		if !simFor(t, cfg, dialer, face).Closed() {
			t.Errorf("face %s left open", face)
		}
	}

	// Faces after B were never dialed
	for _, sn := range dialer.Dialed() {
		if sn == cfg.Faces[cube.Front].Serial || sn == cfg.Faces[cube.Right].Serial {
			t.Errorf("serial %s dialed after failure", sn)
		}
	}
}

func TestConnect_UnconfiguredFace(t *testing.T) {
	cfg := testConfig()
	delete(cfg.Faces, cube.Up)

	_, err := Connect(context.Background(), cfg, Options{Dialer: odrivetest.NewDialer(cfg.Faces.Serials()...)})
	if err == nil || !strings.Contains(err.Error(), "face U: not configured") {
		t.Fatalf("expected not configured error, got %v", err)
	}
}

func TestRig_Setup(t *testing.T) {
	cfg := testConfig()
	rig, dialer := newTestRig(t, cfg)

	// Motors start wherever they were left
	start := map[cube.Face]float64{
		cube.Down: 1.3, cube.Up: -0.7, cube.Left: 12.25,
		cube.Back: 0, cube.Front: 0.01, cube.Right: -3.5,
	}
	for face, pos := range start {
		simFor(t, cfg, dialer, face).SetFloat("axis0.pos_estimate", pos)
	}

	var reported []cube.Face
	statuses, err := rig.Setup(context.Background(), func(st MotorStatus) {
		reported = append(reported, st.Face)
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if len(statuses) != 6 {
		t.Fatalf("got %d statuses, want 6", len(statuses))
	}
	if diff := cmp.Diff(cube.AllFaces(), reported); diff != "" {
		t.Errorf("setup order mismatch (-want +got):\n%s", diff)
	}

	for _, st := range statuses {
		sim := simFor(t, cfg, dialer, st.Face)

		if !st.Ready() {
			t.Errorf("face %s not ready: %s", st.Face, st.State)
		}
		if sim.Snaps() != 0 {
			t.Errorf("face %s jumped when entering closed loop", st.Face)
		}
		if st.InputPos != start[st.Face] || st.Position != start[st.Face] {
			t.Errorf("face %s: input_pos %f, pos %f, want %f", st.Face, st.InputPos, st.Position, start[st.Face])
		}
		if got := sim.Float("axis0.controller.config.control_mode"); got != float64(odrive.ControlModePosition) {
			t.Errorf("face %s: control mode %v", st.Face, got)
		}
		if got := sim.Float("axis0.controller.config.input_mode"); got != float64(odrive.InputModeTrapTraj) {
			t.Errorf("face %s: input mode %v", st.Face, got)
		}
		if got := sim.Float("axis0.trap_traj.config.vel_limit"); got != 80 {
			t.Errorf("face %s: vel limit %v", st.Face, got)
		}
		if got := sim.Float("axis0.trap_traj.config.accel_limit"); got != 150 {
			t.Errorf("face %s: accel limit %v", st.Face, got)
		}
		if got := sim.Float("axis0.trap_traj.config.decel_limit"); got != 150 {
			t.Errorf("face %s: decel limit %v", st.Face, got)
		}
	}
}

func TestRig_SetupNotReadyIsAWarning(t *testing.T) {
	cfg := testConfig()
	rig, dialer := newTestRig(t, cfg)
	simFor(t, cfg, dialer, cube.Left).RefuseClosedLoop = true

	statuses, err := rig.Setup(context.Background(), nil)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if len(statuses) != 6 {
		t.Fatalf("got %d statuses, want 6", len(statuses))
	}

	for _, st := range statuses {
		if st.Face == cube.Left {
			if st.Ready() {
				t.Error("face L should not be ready")
			}
			if st.DisarmReason != odrivetest.DisarmReasonRefused {
				t.Errorf("disarm reason: got %#x", st.DisarmReason)
			}
			continue
		}
		if !st.Ready() {
			t.Errorf("face %s not ready", st.Face)
		}
	}
}

func TestRig_SetupRejectedWrite(t *testing.T) {
	cfg := testConfig()
	rig, dialer := newTestRig(t, cfg)
	simFor(t, cfg, dialer, cube.Back).Delete("axis0.controller.config.input_mode")

	var reported []cube.Face
	statuses, err := rig.Setup(context.Background(), func(st MotorStatus) {
		reported = append(reported, st.Face)
	})
	if err == nil {
		t.Fatal("expected setup error for a rejected write")
	}
	if !strings.Contains(err.Error(), "setup face B") {
		t.Errorf("error should name the face, got %v", err)
	}
	propErr, ok := odrive.GetPropertyError(err)
	if !ok || propErr.Path != "axis0.controller.config.input_mode" {
		t.Errorf("expected PropertyError for input_mode, got %v", err)
	}

	if diff := cmp.Diff([]cube.Face{cube.Down, cube.Up, cube.Left}, reported); diff != "" {
		t.Errorf("reported faces mismatch (-want +got):\n%s", diff)
	}
	if len(statuses) != 3 {
		t.Errorf("got %d statuses, want 3", len(statuses))
	}
	if st := simFor(t, cfg, dialer, cube.Back).State(); st != odrive.AxisStateIdle {
		t.Errorf("face B: state %s, want IDLE", st)
	}
}

func TestRig_SetupWaitsForClosedLoop(t *testing.T) {
	const delay = 30 * time.Millisecond

	tests := []struct {
		name      string
		stateWait time.Duration
		ready     bool
	}{
		{"wait covers transition", 3 * delay, true},
		{"no wait", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Timing.StateWait = Duration(tt.stateWait)
			rig, dialer := newTestRig(t, cfg)
			for _, face := range cube.AllFaces() {
				simFor(t, cfg, dialer, face).ClosedLoopDelay = delay
			}

			start := time.Now()
			statuses, err := rig.Setup(context.Background(), nil)
			if err != nil {
				t.Fatalf("Setup failed: %v", err)
			}
			if elapsed := time.Since(start); elapsed < 6*tt.stateWait {
				t.Errorf("setup took %v, want at least %v", elapsed, 6*tt.stateWait)
			}
			for _, st := range statuses {
				if st.Ready() != tt.ready {
					t.Errorf("face %s: ready %v, want %v (state %s)", st.Face, st.Ready(), tt.ready, st.State)
				}
			}
		})
	}
}

func TestRig_Rotate(t *testing.T) {
	cfg := testConfig()
	cfg.Faces[cube.Right] = FaceCalibration{Serial: cfg.Faces[cube.Right].Serial, Direction: -1}
	rig, dialer := newTestRig(t, cfg)

	ctx := context.Background()
	simFor(t, cfg, dialer, cube.Front).SetFloat("axis0.pos_estimate", 1.3)
	if _, err := rig.Setup(ctx, nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	target, err := rig.Rotate(ctx, cube.Front, -1)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if math.Abs(target-1.05) > 1e-9 {
		t.Errorf("target: got %f, want 1.05", target)
	}
	if got := simFor(t, cfg, dialer, cube.Front).Float("axis0.controller.input_pos"); math.Abs(got-1.05) > 1e-9 {
		t.Errorf("input_pos: got %f, want 1.05", got)
	}

	// Inverted face turns the motor the other way
	target, err = rig.Rotate(ctx, cube.Right, 1)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if target != -0.25 {
		t.Errorf("target: got %f, want -0.25", target)
	}
}

func TestRig_RotateFromCommandedPosition(t *testing.T) {
	cfg := testConfig()
	rig, dialer := newTestRig(t, cfg)

	ctx := context.Background()
	if _, err := rig.Setup(ctx, nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	// The estimate lags behind the command; the next target must build on the command
	sim := simFor(t, cfg, dialer, cube.Up)
	sim.SetFloat("axis0.controller.input_pos", 0.25)
	sim.SetFloat("axis0.pos_estimate", 0.2431)

	target, err := rig.Rotate(ctx, cube.Up, 1)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if target != 0.5 {
		t.Errorf("target: got %f, want 0.5", target)
	}
}

func TestRig_ExecuteScrambleAndUnscramble(t *testing.T) {
	cfg := testConfig()
	rig, dialer := newTestRig(t, cfg)

	ctx := context.Background()
	if _, err := rig.Setup(ctx, nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	var started, done []string
	res, err := rig.Execute(ctx, cube.Scramble, func(s Step) {
		switch s.Phase {
		case StepStarted:
			started = append(started, s.Move.String())
		case StepDone:
			done = append(done, s.Move.String())
		}
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Moves != 20 || res.Skipped != 0 {
		t.Errorf("result: %+v", res)
	}
	if strings.Join(done, " ") != cube.Scramble.String() {
		t.Errorf("moves played out of order: %v", done)
	}
	if len(started) != len(done) {
		t.Errorf("%d started, %d done", len(started), len(done))
	}

	// Net quarter turns per face in the scramble
	want := map[cube.Face]float64{}
	for _, mv := range cube.Scramble {
		want[mv.Face] += float64(mv.Turns) * DefaultTurnsPerQuarter
	}
	positions, err := rig.Positions(ctx)
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	for face, pos := range positions {
		if math.Abs(pos-want[face]) > 1e-9 {
			t.Errorf("face %s at %f, want %f", face, pos, want[face])
		}
	}

	if _, err := rig.Execute(ctx, cube.Unscramble, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	positions, _ = rig.Positions(ctx)
	for face, pos := range positions {
		if math.Abs(pos) > 1e-9 {
			t.Errorf("face %s not back home: %f", face, pos)
		}
	}

	// Each face controller saw exactly its own moves
	for _, face := range cube.AllFaces() {
		n := 0
		for _, seq := range []cube.Sequence{cube.Scramble, cube.Unscramble} {
			for _, mv := range seq {
				if mv.Face == face {
					n++
				}
			}
		}
		// One extra target for the setup seed
		if got := len(simFor(t, cfg, dialer, face).Targets()); got != n+1 {
			t.Errorf("face %s got %d targets, want %d", face, got, n+1)
		}
	}
}

func TestRig_ExecuteSkipsMissingFace(t *testing.T) {
	cfg := testConfig()

	sim := odrivetest.NewSim(cfg.Faces[cube.Right].Serial)
	client, err := odrive.Open(odrive.Config{Transport: sim})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rig := NewRig(cfg, nil, NewMotor(cube.Right, cfg.Faces[cube.Right], client))
	defer rig.Close()

	var skipped []string
	res, err := rig.Execute(context.Background(), cube.MustParseSequence("R U R'"), func(s Step) {
		if s.Phase == StepSkipped {
			skipped = append(skipped, s.Move.String())
		}
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Moves != 2 || res.Skipped != 1 {
		t.Errorf("result: %+v", res)
	}
	if diff := cmp.Diff([]string{"U"}, skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}

	if _, err := rig.Rotate(context.Background(), cube.Up, 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Rotate on missing face: got %v, want ErrNotConnected", err)
	}
}

func TestRig_ExecuteWaitsToSettle(t *testing.T) {
	const settle = 10 * time.Millisecond

	cfg := testConfig()
	cfg.Timing.Settle = Duration(settle)
	rig, _ := newTestRig(t, cfg)

	ctx := context.Background()
	if _, err := rig.Setup(ctx, nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	var done []time.Time
	res, err := rig.Execute(ctx, cube.Scramble, func(s Step) {
		if s.Phase == StepDone {
			done = append(done, time.Now())
		}
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Moves != len(cube.Scramble) {
		t.Fatalf("moves: got %d, want %d", res.Moves, len(cube.Scramble))
	}
	if want := time.Duration(len(cube.Scramble)) * settle; res.Elapsed < want {
		t.Errorf("elapsed %v, want at least %v", res.Elapsed, want)
	}
	for i := 1; i < len(done); i++ {
		if gap := done[i].Sub(done[i-1]); gap < settle {
			t.Errorf("move %d finished %v after move %d, want at least %v", i+1, gap, i, settle)
		}
	}
}

func TestRig_ExecuteStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	rig, _ := newTestRig(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := rig.Execute(ctx, cube.Scramble, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Moves != 0 {
		t.Errorf("moves: got %d, want 0", res.Moves)
	}
	if !strings.Contains(err.Error(), "move 1 (R)") {
		t.Errorf("error should name the move, got %v", err)
	}
}

func TestRig_AnglesAndStatus(t *testing.T) {
	cfg := testConfig()
	rig, _ := newTestRig(t, cfg)

	ctx := context.Background()
	if _, err := rig.Setup(ctx, nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if _, err := rig.Execute(ctx, cube.MustParseSequence("R U'"), nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	angles, err := rig.Angles(ctx)
	if err != nil {
		t.Fatalf("Angles failed: %v", err)
	}
	if angles[cube.Right] != 90 || angles[cube.Up] != 270 || angles[cube.Down] != 0 {
		t.Errorf("unexpected angles: %v", angles)
	}

	statuses, err := rig.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	for _, st := range statuses {
		if st.VbusVoltage != 24.1 {
			t.Errorf("face %s: vbus %f", st.Face, st.VbusVoltage)
		}
		if st.Port != "sim:"+st.Serial {
			t.Errorf("face %s: port %s", st.Face, st.Port)
		}
	}

	v, err := rig.Version(ctx, cube.Front)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if v.Firmware() != "0.6.9" || v.Hardware() != "3.6-56" {
		t.Errorf("unexpected version: fw %s hw %s", v.Firmware(), v.Hardware())
	}
}

func TestRig_ReleaseAndClose(t *testing.T) {
	cfg := testConfig()
	dialer := odrivetest.NewDialer(cfg.Faces.Serials()...)
	rig, err := Connect(context.Background(), cfg, Options{Dialer: dialer})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ctx := context.Background()
	if _, err := rig.Setup(ctx, nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := rig.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := rig.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for _, face := range cube.AllFaces() {
		sim := simFor(t, cfg, dialer, face)
		if sim.State() != odrive.AxisStateIdle {
			t.Errorf("face %s: state %s, want IDLE", face, sim.State())
		}
		if !sim.Closed() {
			t.Errorf("face %s not closed", face)
		}
	}
}

func TestPlan(t *testing.T) {
	cal := DefaultCalibration()
	cal[cube.Up] = FaceCalibration{Serial: cal[cube.Up].Serial, Direction: -1}

	plan, err := Plan(cal, cube.MustParseSequence("R U' F2"))
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	want := []PlannedMove{
		{Move: cube.Move{Face: cube.Right, Turns: 1}, Serial: "395934593331", Turns: 0.25},
		{Move: cube.Move{Face: cube.Up, Turns: -1}, Serial: "395134633331", Turns: 0.25},
		{Move: cube.Move{Face: cube.Front, Turns: 2}, Serial: "395134623331", Turns: 0.5},
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	delete(cal, cube.Front)
	if _, err := Plan(cal, cube.MustParseSequence("F")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}
