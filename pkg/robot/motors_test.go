package robot

import (
	"context"
	"math"
	"testing"

	"github.com/gwillem/cubebot/pkg/odrive"
	"github.com/gwillem/cubebot/pkg/odrive/odrivetest"
)

func TestWiggle(t *testing.T) {
	dialer := odrivetest.NewDialer("395134623331")
	sim := dialer.Sims["395134623331"]
	sim.SetFloat("axis0.pos_estimate", 1.5)

	client, err := dialer.Dial(context.Background(), "395134623331")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	if err := Wiggle(context.Background(), client, 0.02, 0); err != nil {
		t.Fatalf("Wiggle failed: %v", err)
	}

	want := []float64{1.5, 1.52, 1.48, 1.5}
	got := sim.Targets()
	if len(got) != len(want) {
		t.Fatalf("targets: got %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("target %d: got %f, want %f", i, got[i], want[i])
		}
	}

	if sim.Snaps() != 0 {
		t.Errorf("motor snapped %d times", sim.Snaps())
	}
	if sim.State() != odrive.AxisStateIdle {
		t.Errorf("state: got %s, want IDLE", sim.State())
	}
}

func TestWiggle_Cancelled(t *testing.T) {
	dialer := odrivetest.NewDialer("395134623331")
	sim := dialer.Sims["395134623331"]

	client, err := dialer.Dial(context.Background(), "395134623331")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Wiggle(ctx, client, 0.02, 0); err == nil {
		t.Error("expected error for cancelled context")
	}
	if sim.State() != odrive.AxisStateIdle {
		t.Errorf("state: got %s, want IDLE", sim.State())
	}
}
