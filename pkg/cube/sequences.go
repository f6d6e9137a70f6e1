package cube

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Names of the built-in sequences.
const (
	ScrambleName   = "scramble"
	UnscrambleName = "unscramble"
)

var (
	// Scramble is the fixed scramble played by the rig.
	Scramble = MustParseSequence("R U F' L D' B R' F L' D U' B' R L F D' U B L' R'")

	// Unscramble restores the cube after Scramble.
	Unscramble = MustParseSequence("R L B' U' D F' L' R' B U D' L F' R B' D L' F U' R'")
)

// Builtins returns the built-in sequences by name.
func Builtins() map[string]Sequence {
	return map[string]Sequence{
		ScrambleName:   Scramble,
		UnscrambleName: Unscramble,
	}
}

// sequenceFile is the YAML layout of a sequence file:
//
//	sequences:
//	  sexy: "R U R' U'"
//	  tperm: [R, U, "R'", "U'", "R'", F, R2, "U'", "R'", "U'", R, U, "R'", "F'"]
type sequenceFile struct {
	Sequences map[string]moveList `yaml:"sequences"`
}

// moveList accepts either a notation string or a list of tokens.
type moveList []string

func (l *moveList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = moveList{s}
		return nil
	case yaml.SequenceNode:
		var tokens []string
		if err := node.Decode(&tokens); err != nil {
			return err
		}
		*l = tokens
		return nil
	}
	return fmt.Errorf("line %d: expected string or list of moves", node.Line)
}

// LoadSequences reads named sequences from a YAML file.
func LoadSequences(path string) (map[string]Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence file: %w", err)
	}
	return ParseSequences(data)
}

// ParseSequences parses named sequences from YAML data.
func ParseSequences(data []byte) (map[string]Sequence, error) {
	var file sequenceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sequence YAML: %w", err)
	}

	seqs := make(map[string]Sequence, len(file.Sequences))
	for name, list := range file.Sequences {
		seq := Sequence{}
		for _, part := range list {
			moves, err := ParseSequence(part)
			if err != nil {
				return nil, fmt.Errorf("sequence %q: %w", name, err)
			}
			seq = append(seq, moves...)
		}
		seqs[name] = seq
	}
	return seqs, nil
}

// Names returns the sequence names in sorted order.
func Names(seqs map[string]Sequence) []string {
	names := make([]string, 0, len(seqs))
	for name := range seqs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
