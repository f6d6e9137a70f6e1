package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/gwillem/cubebot/pkg/cube"
)

type RunCommand struct {
	Plain bool `long:"plain" description:"Line-based prompt instead of a menu"`
	Hold  bool `long:"hold" description:"Keep the motors in closed loop on exit"`
}

const quitChoice = "quit"

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fatal("%v", err)
	}
	seqs, err := loadSequences()
	if err != nil {
		fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rig, err := connectRig(ctx, cfg, os.Stdout)
	if err != nil {
		fatal("Failed to connect to all ODrives: %v", err)
	}

	err = withRig(ctx, rig, c.Hold, os.Stdout, os.Stderr, func() error {
		play := func(name string) error {
			return playSequence(ctx, rig, name, seqs[name], os.Stdout)
		}
		if c.Plain {
			return promptLoop(ctx, os.Stdin, os.Stdout, play)
		}
		return menuLoop(ctx, cube.Names(seqs), play)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal("%v", err)
	}
	return nil
}

// parseChoice maps prompt input to a sequence name or quitChoice.
func parseChoice(input string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "S":
		return cube.ScrambleName, true
	case "U":
		return cube.UnscrambleName, true
	case "Q":
		return quitChoice, true
	}
	return "", false
}

// promptLoop reads S/U/Q commands line by line until Q, EOF or cancel.
func promptLoop(ctx context.Context, in io.Reader, out io.Writer, play func(name string) error) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(out, "Enter command (S=scramble, U=unscramble, Q=quit): ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Exiting...")
				return <-scanErr
			}
			line = l
		}

		choice, ok := parseChoice(line)
		switch {
		case !ok:
			fmt.Fprintln(out, "Invalid choice!")
			fmt.Fprintln(out)
		case choice == quitChoice:
			fmt.Fprintln(out, "Exiting...")
			return nil
		default:
			if err := play(choice); err != nil {
				return err
			}
		}
	}
}

// menuLoop offers every known sequence in a select menu until quit.
func menuLoop(ctx context.Context, names []string, play func(name string) error) error {
	var options []huh.Option[string]
	for _, name := range names {
		options = append(options, huh.NewOption(title(name), name))
	}
	options = append(options, huh.NewOption("Quit", quitChoice))

	for {
		var choice string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("What should the robot do?").
					Options(options...).
					Value(&choice),
			),
		)

		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				choice = quitChoice
			} else {
				return err
			}
		}

		if choice == quitChoice {
			fmt.Println("Exiting...")
			return nil
		}
		if err := play(choice); err != nil {
			return err
		}
	}
}
