package cube

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMove(t *testing.T) {
	tests := []struct {
		token    string
		expected Move
	}{
		{"R", Move{Face: Right, Turns: 1}},
		{"R'", Move{Face: Right, Turns: -1}},
		{"U", Move{Face: Up, Turns: 1}},
		{"D'", Move{Face: Down, Turns: -1}},
		{"F2", Move{Face: Front, Turns: 2}},
		{"B2'", Move{Face: Back, Turns: 2}},
	}

	for _, tt := range tests {
		got, err := ParseMove(tt.token)
		if err != nil {
			t.Errorf("ParseMove(%q) failed: %v", tt.token, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseMove(%q) = %+v, want %+v", tt.token, got, tt.expected)
		}
	}
}

func TestParseMove_Invalid(t *testing.T) {
	for _, token := range []string{"", "X", "r", "R3", "R''", "M"} {
		_, err := ParseMove(token)
		if !errors.Is(err, ErrInvalidMove) {
			t.Errorf("ParseMove(%q) error = %v, want ErrInvalidMove", token, err)
		}
	}
}

func TestMove_String(t *testing.T) {
	for _, token := range []string{"R", "L'", "U2"} {
		m, err := ParseMove(token)
		if err != nil {
			t.Fatalf("ParseMove(%q) failed: %v", token, err)
		}
		if m.String() != token {
			t.Errorf("String() = %q, want %q", m.String(), token)
		}
	}
}

func TestParseSequence(t *testing.T) {
	seq, err := ParseSequence("  R U  R'\tU'\n")
	if err != nil {
		t.Fatalf("ParseSequence failed: %v", err)
	}

	want := Sequence{
		{Face: Right, Turns: 1},
		{Face: Up, Turns: 1},
		{Face: Right, Turns: -1},
		{Face: Up, Turns: -1},
	}
	if diff := cmp.Diff(want, seq); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}

	_, err = ParseSequence("R U Q")
	if !errors.Is(err, ErrInvalidMove) {
		t.Errorf("expected ErrInvalidMove, got %v", err)
	}
}

func TestSequence_Invert(t *testing.T) {
	seq := MustParseSequence("R U2 F'")
	got := seq.Invert().String()
	if got != "F U2 R'" {
		t.Errorf("Invert() = %q, want %q", got, "F U2 R'")
	}
}

func TestSequence_QuarterTurns(t *testing.T) {
	seq := MustParseSequence("R U2 F'")
	if n := seq.QuarterTurns(); n != 4 {
		t.Errorf("QuarterTurns() = %d, want 4", n)
	}
}

func TestUnscrambleUndoesScramble(t *testing.T) {
	if diff := cmp.Diff(Scramble.Invert(), Unscramble); diff != "" {
		t.Errorf("Unscramble is not the inverse of Scramble (-want +got):\n%s", diff)
	}
	if len(Scramble) != 20 {
		t.Errorf("Scramble has %d moves, want 20", len(Scramble))
	}
}

func TestAllFaces(t *testing.T) {
	faces := AllFaces()
	if len(faces) != 6 {
		t.Fatalf("AllFaces returned %d faces, want 6", len(faces))
	}

	seen := make(map[Face]bool)
	for _, f := range faces {
		if !f.Valid() {
			t.Errorf("face %q is not valid", f)
		}
		if seen[f] {
			t.Errorf("face %q listed twice", f)
		}
		seen[f] = true
	}
}
