package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/monitor"
)

type MonitorCommand struct {
	Hz   int  `long:"hz" default:"20" description:"Polling frequency"`
	Hold bool `long:"hold" description:"Keep the motors in closed loop on exit"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Face colors follow the center stickers; white is drawn light grey.
var faceColors = map[cube.Face]string{
	cube.Up:    "252", // white
	cube.Down:  "226", // yellow
	cube.Left:  "33",  // blue
	cube.Right: "46",  // green
	cube.Front: "208", // orange
	cube.Back:  "196", // red
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type monitorModel struct {
	ctx        context.Context
	ctrl       *monitor.Controller
	chart      *streamlinechart.Model
	width      int      // terminal width
	height     int      // terminal height
	logs       []string // last N log messages
	running    string
	quitting   bool
	lastAngles map[cube.Face]float64
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if any face angle has changed since the last state
func (m *monitorModel) hasMovement(angles map[cube.Face]float64) bool {
	if m.lastAngles == nil {
		return true
	}
	for face, a := range angles {
		if last, ok := m.lastAngles[face]; !ok || a != last {
			return true
		}
	}
	return false
}

// Messages from the controller
type stateMsg monitor.State
type logMsg string

func waitForState(ctrl *monitor.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *monitor.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialMonitorModel(ctx context.Context, ctrl *monitor.Controller) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, 360),
	)

	for _, face := range cube.AllFaces() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(faceColors[face]))
		chart.SetDataSetStyles(string(face), runes.ThinLineStyle, style)
	}

	return monitorModel{
		ctx:   ctx,
		ctrl:  ctrl,
		chart: &chart,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "s":
			m.start(cube.ScrambleName)
		case "u":
			m.start(cube.UnscrambleName)
		}

	case stateMsg:
		state := monitor.State(msg)
		m.running = state.Running
		if state.Angles != nil && m.hasMovement(state.Angles) {
			for face, a := range state.Angles {
				m.chart.PushDataSet(string(face), a)
			}
			m.chart.DrawAll()
			m.lastAngles = state.Angles
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m *monitorModel) start(name string) {
	if err := m.ctrl.Execute(m.ctx, name, nil); err != nil {
		m.addLog(err.Error())
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("cubebot Monitor"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
	if m.running != "" {
		sb.WriteString(warnStyle.Render("  " + progressive(m.running) + "..."))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend(m.lastAngles))
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 's' to scramble, 'u' to unscramble, 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend(angles map[cube.Face]float64) string {
	var items []string
	for _, face := range cube.AllFaces() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(faceColors[face])).Bold(true)
		item := colorStyle.Render("━━") + " " + string(face)
		if a, ok := angles[face]; ok {
			item += statusStyle.Render(fmt.Sprintf(" %5.1f°", a))
		}
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func (c *MonitorCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fatal("%v", err)
	}
	seqs, err := loadSequences()
	if err != nil {
		fatal("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rig, err := connectRig(ctx, cfg, os.Stdout)
	if err != nil {
		fatal("Failed to connect to all ODrives: %v", err)
	}

	err = withRig(ctx, rig, c.Hold, os.Stdout, os.Stderr, func() error {
		ctrl := monitor.NewController(rig, monitor.Config{
			Hz:        c.Hz,
			Sequences: seqs,
		})

		go func() {
			if err := ctrl.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger().Error("monitor stopped", "err", err)
			}
		}()

		p := tea.NewProgram(initialMonitorModel(ctx, ctrl), tea.WithAltScreen())
		_, err := p.Run()
		// Stop polling and any running sequence before the motors are released
		cancel()
		return err
	})
	if err != nil {
		fatal("Error running monitor: %v", err)
	}
	return nil
}
