package robot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gwillem/cubebot/pkg/cube"
)

// ErrNotConnected is returned when a move addresses a face without a motor.
var ErrNotConnected = errors.New("face not connected")

// StepPhase tells an observer where a move is.
type StepPhase int

const (
	StepStarted StepPhase = iota
	StepDone
	StepSkipped
)

// Step reports progress through a sequence.
type Step struct {
	Index  int // zero-based position in the sequence
	Move   cube.Move
	Phase  StepPhase
	Target float64 // commanded position after the move, set when done
}

// Result summarizes an executed sequence.
type Result struct {
	Moves   int
	Skipped int
	Elapsed time.Duration
}

// Execute plays a sequence one move at a time, waiting for each move to
// settle before the next. Moves on faces without a motor are skipped.
func (r *Rig) Execute(ctx context.Context, seq cube.Sequence, fn func(Step)) (Result, error) {
	notify := func(s Step) {
		if fn != nil {
			fn(s)
		}
	}

	var res Result
	start := time.Now()

	for i, mv := range seq {
		step := Step{Index: i, Move: mv}

		if _, ok := r.Motor(mv.Face); !ok {
			r.logger.Warn("skipping move", "move", mv.String(), "err", ErrNotConnected)
			step.Phase = StepSkipped
			notify(step)
			res.Skipped++
			continue
		}

		step.Phase = StepStarted
		notify(step)

		target, err := r.Rotate(ctx, mv.Face, mv.Turns)
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("move %d (%s): %w", i+1, mv, err)
		}

		step.Phase = StepDone
		step.Target = target
		notify(step)
		res.Moves++
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// PlannedMove is a move resolved against the calibration, without hardware.
type PlannedMove struct {
	Move   cube.Move
	Serial string
	Turns  float64 // relative motor travel
}

// Plan resolves every move of a sequence to its controller and motor travel.
func Plan(cal Calibration, seq cube.Sequence) ([]PlannedMove, error) {
	plan := make([]PlannedMove, 0, len(seq))
	for i, mv := range seq {
		fc, ok := cal[mv.Face]
		if !ok {
			return nil, fmt.Errorf("move %d (%s): %w", i+1, mv, ErrNotConnected)
		}
		plan = append(plan, PlannedMove{
			Move:   mv,
			Serial: fc.Serial,
			Turns:  fc.Turns(mv.Turns),
		})
	}
	return plan, nil
}
