package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/cubebot/pkg/robot"
)

type InfoCommand struct{}

func (c *InfoCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fatal("%v", err)
	}

	ctx := context.Background()

	rig, err := connectRig(ctx, cfg, os.Stdout)
	if err != nil {
		fatal("Failed to connect to all ODrives: %v", err)
	}
	defer rig.Close()

	statuses, err := rig.Status(ctx)
	if err != nil {
		fatal("Error reading status: %v", err)
	}

	versions := make([]string, len(statuses))
	for i, st := range statuses {
		v, err := rig.Version(ctx, st.Face)
		if err != nil {
			versions[i] = "?"
			continue
		}
		versions[i] = fmt.Sprintf("fw %s / hw %s", v.Firmware(), v.Hardware())
	}

	fmt.Println(headerStyle.Render("Face controllers"))
	fmt.Println(renderStatus(statuses, versions))
	return nil
}

func renderStatus(statuses []robot.MotorStatus, versions []string) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	faceStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	readyStyle := successStyle.Padding(0, 1)
	notReadyStyle := errorStyle.Padding(0, 1)

	rows := make([][]string, 0, len(statuses))
	for i, st := range statuses {
		rows = append(rows, []string{
			fmt.Sprintf("%s (%s)", st.Face, st.Face.Color()),
			st.Serial,
			st.Port,
			st.State.String(),
			fmt.Sprintf("%.3f", st.Position),
			fmt.Sprintf("%.1f V", st.VbusVoltage),
			versions[i],
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Face", "Serial", "Port", "State", "Position", "Vbus", "Version").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			switch col {
			case 0:
				return faceStyle
			case 3:
				if row >= 0 && row < len(statuses) && statuses[row].Ready() {
					return readyStyle
				}
				return notReadyStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}
