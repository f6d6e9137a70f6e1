package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/odrive"
	"github.com/gwillem/cubebot/pkg/robot"
)

type SetupCommand struct {
	NoWiggle bool    `long:"no-wiggle" description:"Do not move the motors while identifying them"`
	Amount   float64 `long:"amount" default:"0.02" description:"Wiggle amplitude in motor turns"`
}

const skipChoice = "skip"

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("cubebot Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := robot.LoadConfigOrDefault(opts.Config)
	if err != nil {
		fatal("Error loading %s: %v", opts.Config, err)
	}

	fmt.Println("Scanning for ODrives...")
	ports, err := odrive.ListPorts()
	if err != nil {
		fatal("Error listing ports: %v", err)
	}
	if len(ports) == 0 {
		fmt.Println("No ODrives found.")
		fmt.Println("Make sure the controllers are connected and powered on.")
		os.Exit(1)
	}
	for _, p := range ports {
		fmt.Printf("  Found ODrive %s on %s\n", p.SerialNumber, p.Name)
	}
	fmt.Printf("\nFound %d ODrive(s). Let's identify them...\n", len(ports))

	found := make(map[cube.Face]string)
	for _, p := range ports {
		face := c.identify(p, found)
		if face != "" {
			found[face] = p.SerialNumber
		}
		if len(found) == len(cube.AllFaces()) {
			break
		}
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))

	cfg.Faces = mergeFaces(cfg.Faces, found)
	for _, face := range cube.AllFaces() {
		fc, ok := cfg.Faces[face]
		switch {
		case !ok:
			fmt.Printf("  %s: %s\n", face, warnStyle.Render("(not found)"))
		case found[face] != "":
			fmt.Printf("  %s: %s\n", face, successStyle.Render(fc.Serial))
		default:
			fmt.Printf("  %s: %s\n", face, dimStyle.Render(fc.Serial+" (unchanged)"))
		}
	}
	fmt.Println()

	if err := cfg.Faces.Validate(); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Configuration is incomplete: %v", err)))
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		fatal("Error saving config: %v", err)
	}

	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the robot with: " + headerStyle.Render("cubebot run"))
	return nil
}

// identify wiggles the motor on a port and asks which face it turns.
func (c *SetupCommand) identify(p odrive.PortInfo, found map[cube.Face]string) cube.Face {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !c.NoWiggle {
		client, err := odrive.Open(odrive.Config{Port: p.Name, Logger: logger()})
		if err != nil {
			fmt.Printf("  Error opening %s: %v\n", p.Name, err)
			return ""
		}

		fmt.Printf("\n  Wiggling ODrive %s on %s...\n", p.SerialNumber, p.Name)
		err = robot.Wiggle(ctx, client, c.Amount, 300*time.Millisecond)
		client.Close()
		if err != nil {
			fmt.Printf("  Error wiggling motor: %v\n", err)
		}
	}

	var options []huh.Option[string]
	for _, face := range cube.AllFaces() {
		if _, ok := found[face]; ok {
			continue
		}
		label := fmt.Sprintf("%s - %s (%s center)", face, face.Name(), face.Color())
		options = append(options, huh.NewOption(label, string(face)))
	}
	options = append(options, huh.NewOption("Skip this controller", skipChoice))

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which face does %s turn?", p.SerialNumber)).
				Description("The face that just wiggled").
				Options(options...).
				Value(&choice),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	if choice == skipChoice {
		return ""
	}
	return cube.Face(choice)
}

// mergeFaces assigns newly identified serials to faces. Faces that were not
// identified keep their old controller unless it now belongs to another face.
// Direction and gearing of a face survive a new controller.
func mergeFaces(old robot.Calibration, found map[cube.Face]string) robot.Calibration {
	assigned := make(map[string]bool, len(found))
	for _, serial := range found {
		assigned[serial] = true
	}

	merged := make(robot.Calibration, len(cube.AllFaces()))
	for _, face := range cube.AllFaces() {
		fc, had := old[face]
		if serial, ok := found[face]; ok {
			fc.Serial = serial
			merged[face] = fc
			continue
		}
		if had && !assigned[fc.Serial] {
			merged[face] = fc
		}
	}
	return merged
}
