package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/robot"
)

type ExecCommand struct {
	DryRun bool `long:"dry-run" short:"n" description:"Print the motor plan without connecting"`
	Invert bool `long:"invert" description:"Play the inverse of the sequence"`
	List   bool `long:"list" description:"List the known sequences"`
	Hold   bool `long:"hold" description:"Keep the motors in closed loop on exit"`

	Args struct {
		Moves []string `positional-arg-name:"NAME|MOVES"`
	} `positional-args:"yes"`
}

// resolveSequence returns a named sequence, or parses the arguments as moves.
func resolveSequence(seqs map[string]cube.Sequence, args []string) (string, cube.Sequence, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("no sequence given")
	}
	if len(args) == 1 {
		if seq, ok := seqs[args[0]]; ok {
			return args[0], seq, nil
		}
	}

	seq, err := cube.ParseSequence(strings.Join(args, " "))
	if err != nil {
		return "", nil, err
	}
	if len(seq) == 0 {
		return "", nil, fmt.Errorf("no moves given")
	}
	return "sequence", seq, nil
}

func (c *ExecCommand) Execute(args []string) error {
	seqs, err := loadSequences()
	if err != nil {
		fatal("%v", err)
	}

	if c.List {
		for _, name := range cube.Names(seqs) {
			fmt.Printf("%-12s %s\n", name, dimStyle.Render(seqs[name].String()))
		}
		return nil
	}

	name, seq, err := resolveSequence(seqs, append(c.Args.Moves, args...))
	if err != nil {
		fatal("%v", err)
	}
	if c.Invert {
		seq = seq.Invert()
	}

	cfg, err := loadConfig()
	if err != nil {
		fatal("%v", err)
	}

	if c.DryRun {
		plan, err := robot.Plan(cfg.Faces, seq)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("%s: %d moves, %d quarter turns", title(name), len(seq), seq.QuarterTurns())))
		fmt.Println(renderPlan(plan))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rig, err := connectRig(ctx, cfg, os.Stdout)
	if err != nil {
		fatal("Failed to connect to all ODrives: %v", err)
	}

	err = withRig(ctx, rig, c.Hold, os.Stdout, os.Stderr, func() error {
		return playSequence(ctx, rig, name, seq, os.Stdout)
	})
	if err != nil {
		fatal("%v", err)
	}
	return nil
}

func renderPlan(plan []robot.PlannedMove) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	faceStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)

	rows := make([][]string, 0, len(plan))
	for i, p := range plan {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			p.Move.String(),
			p.Move.Face.Name(),
			p.Serial,
			fmt.Sprintf("%+.3f", p.Turns),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Move", "Face", "Serial", "Turns").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 2 {
				return faceStyle
			}
			return cellStyle
		})
	return t.Render()
}
