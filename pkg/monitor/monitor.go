// Package monitor provides the polling controller behind the live rig dashboard.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/robot"
)

// ErrBusy is returned when a sequence is started while another one runs.
var ErrBusy = errors.New("a sequence is already running")

// State represents the current state of the rig.
type State struct {
	Angles    map[cube.Face]float64 // degrees, [0, 360)
	Running   string                // name of the running sequence, if any
	Timestamp time.Time
	Error     error
}

// Controller polls the rig and runs sequences in the background.
type Controller struct {
	rig       *robot.Rig
	hz        int
	sequences map[string]cube.Sequence

	mu      sync.RWMutex
	running bool
	busy    string
	stateCh chan State
	logCh   chan string
}

// Config holds configuration for the controller.
type Config struct {
	Hz        int
	Sequences map[string]cube.Sequence
}

// NewController creates a new monitor controller for a set up rig.
func NewController(rig *robot.Rig, cfg Config) *Controller {
	if cfg.Hz <= 0 {
		cfg.Hz = 20
	}
	if cfg.Sequences == nil {
		cfg.Sequences = cube.Builtins()
	}

	return &Controller{
		rig:       rig,
		hz:        cfg.Hz,
		sequences: cfg.Sequences,
		stateCh:   make(chan State, 1),
		logCh:     make(chan string, 10),
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the polling frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Busy returns the name of the running sequence, or "".
func (c *Controller) Busy() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.busy
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start begins the polling loop. It blocks until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	c.log("Monitoring %d faces at %d Hz", len(c.rig.Faces()), c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	angles, err := c.rig.Angles(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log("Read error: %v", err)
		}
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}

	c.sendState(State{
		Angles:    angles,
		Running:   c.Busy(),
		Timestamp: time.Now(),
	})
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

// Execute starts a named sequence in the background. done, if not nil,
// receives the result and is closed when the sequence finishes. It must have
// room for one value or a reader.
func (c *Controller) Execute(ctx context.Context, name string, done chan<- robot.Result) error {
	seq, ok := c.sequences[name]
	if !ok {
		return fmt.Errorf("unknown sequence %q", name)
	}

	c.mu.Lock()
	if c.busy != "" {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = name
	c.mu.Unlock()

	c.log("Running %s (%d moves)", name, len(seq))

	go func() {
		res, err := c.rig.Execute(ctx, seq, nil)

		c.mu.Lock()
		c.busy = ""
		c.mu.Unlock()

		if err != nil {
			c.log("%s failed after %d moves: %v", name, res.Moves, err)
		} else {
			c.log("%s complete! (%.2fs)", name, res.Elapsed.Seconds())
		}
		if done != nil {
			done <- res
			close(done)
		}
	}()

	return nil
}
