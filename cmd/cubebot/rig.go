package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/robot"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// connectRig connects every face, printing progress like:
//
//	Connecting to ODrives...
//	  Connected: D (395634623331)
func connectRig(ctx context.Context, cfg *robot.Config, out io.Writer) (*robot.Rig, error) {
	fmt.Fprintln(out, "Connecting to ODrives...")

	rig, err := robot.Connect(ctx, cfg, robot.Options{
		Logger: logger(),
		OnConnect: func(face cube.Face, serial string, err error) {
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("  FAILED: %s (%s) - %v", face, serial, err)))
				return
			}
			fmt.Fprintf(out, "  Connected: %s (%s)\n", face, serial)
		},
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out, successStyle.Render("All ODrives connected!"))
	fmt.Fprintln(out)
	return rig, nil
}

// setupRig puts every face into closed loop position control.
func setupRig(ctx context.Context, rig *robot.Rig, out io.Writer) error {
	fmt.Fprintln(out, "Setting up motors (one at a time)...")

	_, err := rig.Setup(ctx, func(st robot.MotorStatus) {
		if !st.Ready() {
			fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("  WARNING: %s did not enter closed loop (state=%s, disarm_reason=0x%X)",
				st.Face, st.State, st.DisarmReason)))
			return
		}
		fmt.Fprintf(out, "  %s: ready (pos = %.3f)\n", st.Face, st.Position)
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, successStyle.Render("All motors ready!"))
	fmt.Fprintln(out)
	return nil
}

// stepPrinter prints each move as "  R ... done".
func stepPrinter(out io.Writer) func(robot.Step) {
	return func(s robot.Step) {
		switch s.Phase {
		case robot.StepStarted:
			fmt.Fprintf(out, "  %s ... ", s.Move)
		case robot.StepDone:
			fmt.Fprintln(out, "done")
		case robot.StepSkipped:
			fmt.Fprintf(out, "  Face %s not connected!\n", s.Move.Face)
		}
	}
}

// playSequence runs a sequence on the rig with progress output.
func playSequence(ctx context.Context, rig *robot.Rig, name string, seq cube.Sequence, out io.Writer) error {
	fmt.Fprintln(out, progressive(name)+"...")

	res, err := rig.Execute(ctx, seq, stepPrinter(out))
	if err != nil {
		fmt.Fprintln(out, "failed")
		return err
	}

	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%s complete! (%.2fs)", title(name), res.Elapsed.Seconds())))
	fmt.Fprintln(out)
	return nil
}

// progressive turns a sequence name into the "-ing" form used in progress lines.
func progressive(name string) string {
	switch name {
	case cube.ScrambleName:
		return "Scrambling"
	case cube.UnscrambleName:
		return "Unscrambling"
	}
	return "Running " + name
}

func title(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// withRig sets up the rig and runs fn. Whatever happens, the motors are put
// back to IDLE unless hold is set, and every session is closed.
func withRig(ctx context.Context, rig *robot.Rig, hold bool, out, errOut io.Writer, fn func() error) error {
	defer shutdown(rig, hold, errOut)

	if err := setupRig(ctx, rig, out); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}
	return fn()
}

func shutdown(rig *robot.Rig, hold bool, errOut io.Writer) {
	if !hold {
		// ctx may already be cancelled by ctrl+c
		if err := rig.Release(context.Background()); err != nil {
			fmt.Fprintln(errOut, errorStyle.Render(fmt.Sprintf("Release failed: %v", err)))
		}
	}
	if err := rig.Close(); err != nil {
		fmt.Fprintln(errOut, errorStyle.Render(fmt.Sprintf("Close failed: %v", err)))
	}
}
