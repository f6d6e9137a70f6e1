package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/robot"
)

type Options struct {
	Config    string `long:"config" short:"c" default:"cubebot.json" description:"Configuration file"`
	LogLevel  string `long:"log-level" default:"warn" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Diagnostics level on stderr"`
	LogFormat string `long:"log-format" default:"text" choice:"text" choice:"json" description:"Diagnostics format"`
	Sequences string `long:"sequences" description:"YAML file with extra named sequences"`

	Run     RunCommand     `command:"run" description:"Connect all faces and scramble/unscramble interactively"`
	Exec    ExecCommand    `command:"exec" description:"Run a named sequence or literal moves"`
	Setup   SetupCommand   `command:"setup" description:"Identify the ODrive of each face and save the configuration"`
	Info    InfoCommand    `command:"info" description:"Show the state of every face controller"`
	Monitor MonitorCommand `command:"monitor" description:"Live chart of face angles"`
}

var opts Options
var parser = newParser(&opts)

// newParser builds the command line. Without a command, run is implied.
func newParser(o *Options) *flags.Parser {
	p := flags.NewParser(o, flags.Default)
	p.LongDescription = "cubebot - Rubik's cube robot driving one ODrive per face.\n\nWithout a command it behaves like 'cubebot run'."
	p.SubcommandsOptional = true
	return p
}

func main() {
	args, err := parser.Parse()
	if err == nil && parser.Active == nil {
		err = opts.Run.Execute(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(outW, handlerOpts))
}

func logger() *slog.Logger {
	return newLogger(opts.LogLevel, opts.LogFormat, os.Stderr)
}

// loadConfig reads the configuration file, falling back to the reference rig.
func loadConfig() (*robot.Config, error) {
	cfg, err := robot.LoadConfigOrDefault(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.Config, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", opts.Config, err)
	}
	return cfg, nil
}

// loadSequences returns the builtin sequences plus those from --sequences.
func loadSequences() (map[string]cube.Sequence, error) {
	seqs := cube.Builtins()
	if opts.Sequences == "" {
		return seqs, nil
	}

	extra, err := cube.LoadSequences(opts.Sequences)
	if err != nil {
		return nil, err
	}
	for name, seq := range extra {
		seqs[name] = seq
	}
	return seqs, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
