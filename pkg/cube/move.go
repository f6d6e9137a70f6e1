package cube

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMove is returned for tokens that are not valid cube notation.
var ErrInvalidMove = errors.New("invalid move")

// Move is a single face turn. Turns counts quarter turns: +1 is clockwise,
// -1 counter-clockwise and +2 a half turn.
type Move struct {
	Face  Face
	Turns int
}

// ParseMove parses a token such as "R", "R'" or "R2".
func ParseMove(token string) (Move, error) {
	if token == "" {
		return Move{}, fmt.Errorf("%w: empty token", ErrInvalidMove)
	}

	face := Face(token[:1])
	if !face.Valid() {
		return Move{}, fmt.Errorf("%w: %q: unknown face %q", ErrInvalidMove, token, token[:1])
	}

	switch token[1:] {
	case "":
		return Move{Face: face, Turns: 1}, nil
	case "'":
		return Move{Face: face, Turns: -1}, nil
	case "2", "2'":
		// A half turn is the same either way round.
		return Move{Face: face, Turns: 2}, nil
	}
	return Move{}, fmt.Errorf("%w: %q: unknown suffix %q", ErrInvalidMove, token, token[1:])
}

// Inverse returns the move that undoes m.
func (m Move) Inverse() Move {
	if m.Turns == 2 || m.Turns == -2 {
		return m
	}
	return Move{Face: m.Face, Turns: -m.Turns}
}

// String returns the move in standard notation.
func (m Move) String() string {
	switch m.Turns {
	case 1:
		return string(m.Face)
	case -1:
		return string(m.Face) + "'"
	case 2, -2:
		return string(m.Face) + "2"
	}
	return fmt.Sprintf("%s(%d)", m.Face, m.Turns)
}

// Sequence is an ordered list of moves.
type Sequence []Move

// ParseSequence parses whitespace separated moves, e.g. "R U R' U'".
func ParseSequence(s string) (Sequence, error) {
	return ParseTokens(strings.Fields(s))
}

// ParseTokens parses a list of move tokens.
func ParseTokens(tokens []string) (Sequence, error) {
	seq := make(Sequence, 0, len(tokens))
	for i, tok := range tokens {
		m, err := ParseMove(tok)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		seq = append(seq, m)
	}
	return seq, nil
}

// MustParseSequence is like ParseSequence but panics on error.
func MustParseSequence(s string) Sequence {
	seq, err := ParseSequence(s)
	if err != nil {
		panic(err)
	}
	return seq
}

// Invert returns the sequence that undoes s: reversed order, each move inverted.
func (s Sequence) Invert() Sequence {
	inv := make(Sequence, len(s))
	for i, m := range s {
		inv[len(s)-1-i] = m.Inverse()
	}
	return inv
}

// QuarterTurns returns the total number of quarter turns in the sequence,
// counting a half turn as two.
func (s Sequence) QuarterTurns() int {
	n := 0
	for _, m := range s {
		if m.Turns < 0 {
			n -= m.Turns
		} else {
			n += m.Turns
		}
	}
	return n
}

// String returns the sequence in notation, separated by spaces.
func (s Sequence) String() string {
	tokens := make([]string, len(s))
	for i, m := range s {
		tokens[i] = m.String()
	}
	return strings.Join(tokens, " ")
}
