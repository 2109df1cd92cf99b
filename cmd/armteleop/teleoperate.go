package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	chartrunes "github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/armteleop/pkg/journal"
	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
	"github.com/gwillem/armteleop/pkg/teleop"
)

type TeleoperateCommand struct {
	Hz      int    `long:"hz" description:"Snapshot poll rate (overrides the configuration)"`
	Journal string `long:"journal" description:"Journal database (overrides the configuration)"`
}

const (
	headerHeight = 2  // title + blank line
	tableHeight  = 16 // state table
	legendHeight = 2  // legend row + blank
	footerHeight = 9  // help + log box
	maxLogs      = 5  // number of log messages to show
	borderSize   = 2  // chart border
	deltaRange   = 30 // chart y range, degrees
)

// Joint colors - distinct colors for each joint
var jointColors = map[robot.JointName]string{
	robot.Base:     "196", // red
	robot.Shoulder: "208", // orange
	robot.Elbow:    "226", // yellow
	robot.Wrist1:   "46",  // green
	robot.Wrist2:   "51",  // cyan
	robot.Wrist3:   "201", // magenta
}

var jogScales = []float64{0.1, 1, 10}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	phaseStyles   = map[teleop.Phase]lipgloss.Style{
		teleop.PhaseIdleClean: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		teleop.PhaseIdleDirty: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		teleop.PhaseMoving:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	}
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type editView int

const (
	viewJoints editView = iota
	viewPose
)

type teleopModel struct {
	ctx      context.Context
	ctrl     *teleop.Controller
	backend  robot.Backend
	keys     keyMap
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	quitting bool

	state     teleop.State
	readErr   error
	view      editView
	selected  int // 0-5, joint or pose axis
	scale     int // index into jogScales
	lastDelta robot.JointVector
	charted   bool
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type updateMsg teleop.Update
type logMsg string

func waitForUpdate(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return updateMsg(<-ctrl.Updates())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 10 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-tableHeight-legendHeight-footerHeight-borderSize, 5)
	return width, height
}

func (m *teleopModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialTeleopModel(ctx context.Context, ctrl *teleop.Controller, backend robot.Backend) teleopModel {
	chart := streamlinechart.New(80, 10,
		streamlinechart.WithYRange(-deltaRange, deltaRange),
	)
	for _, name := range robot.AllJoints() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[name]))
		chart.SetDataSetStyles(string(name), chartrunes.ThinLineStyle, style)
	}

	view := viewJoints
	if ctrl.Store().State().Mode == robot.ModeTCP {
		view = viewPose
	}
	return teleopModel{
		ctx:     ctx,
		ctrl:    ctrl,
		backend: backend,
		keys:    defaultKeyMap(),
		chart:   &chart,
		view:    view,
		scale:   1,
		state:   ctrl.Store().State(),
	}
}

func (m teleopModel) Init() tea.Cmd {
	return tea.Batch(
		waitForUpdate(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case updateMsg:
		m.state = msg.State
		m.readErr = msg.Err
		m.pushDeltas()
		return m, waitForUpdate(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

// actionDoneMsg ends a controller call run off the UI goroutine. Outcomes
// reach the operator through the controller log.
type actionDoneMsg struct{}

func (m teleopModel) run(fn func() error) tea.Cmd {
	return func() tea.Msg {
		_ = fn()
		return actionDoneMsg{}
	}
}

func (m teleopModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, k.Select):
		m.selected = int(msg.String()[0] - '1')

	case key.Matches(msg, k.Up):
		m.jog(1)
	case key.Matches(msg, k.Down):
		m.jog(-1)

	case key.Matches(msg, k.Finer):
		m.scale = max(m.scale-1, 0)
	case key.Matches(msg, k.Coarser):
		m.scale = min(m.scale+1, len(jogScales)-1)

	case key.Matches(msg, k.View):
		m.view = 1 - m.view
	case key.Matches(msg, k.Frame):
		mode := m.ctrl.Builder().ToggleCoordinateMode()
		m.addLog(fmt.Sprintf("Editing in %s coordinates", mode))

	case key.Matches(msg, k.Apply):
		return m, m.run(func() error {
			_, err := m.ctrl.Apply(m.ctx)
			return err
		})
	case key.Matches(msg, k.Reset):
		_ = m.ctrl.Reset()
	case key.Matches(msg, k.Stop):
		return m, m.run(func() error { return m.ctrl.EmergencyStop(m.ctx) })
	case key.Matches(msg, k.Play):
		return m, m.run(func() error { return m.ctrl.PlayProgram(m.ctx) })
	case key.Matches(msg, k.Pause):
		return m, m.run(func() error { return m.ctrl.StopProgram(m.ctx) })
	case key.Matches(msg, k.SpeedUp), key.Matches(msg, k.SpeedDown):
		step := 0.1
		if key.Matches(msg, k.SpeedDown) {
			step = -0.1
		}
		fraction := math.Round(m.state.SpeedPercent/10)/10 + step
		return m, m.run(func() error { return m.ctrl.SetSpeed(m.ctx, fraction) })
	}

	m.state = m.ctrl.Store().State()
	return m, nil
}

// jog moves the selected joint or pose axis by one scaled step.
func (m *teleopModel) jog(dir float64) {
	b := m.ctrl.Builder()
	steps := dir * jogScales[m.scale]

	var err error
	if m.view == viewJoints {
		err = b.JogJoint(m.selected+1, steps)
	} else {
		axis := pose.Axes()[m.selected]
		if axis.IsRotation() {
			err = b.JogRotation(axis, steps)
		} else {
			err = b.JogTranslation(axis, steps)
		}
	}
	if err != nil {
		m.addLog(fmt.Sprintf("Jog rejected: %v", err))
	}
}

// pushDeltas charts target minus actual per joint, freezing when nothing changes.
func (m *teleopModel) pushDeltas() {
	delta := m.state.JointDelta()
	if m.charted && delta == m.lastDelta {
		return
	}
	for i, name := range robot.AllJoints() {
		m.chart.PushDataSet(string(name), math.Max(-deltaRange, math.Min(deltaRange, delta[i])))
	}
	m.chart.DrawAll()
	m.lastDelta, m.charted = delta, true
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("armteleop"))
	sb.WriteString(fmt.Sprintf(" - %s - %d Hz  ", m.backend, m.ctrl.Hz()))
	sb.WriteString(m.statusLine())
	sb.WriteString("\n\n")

	sb.WriteString(m.stateTable())
	sb.WriteString("\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	sb.WriteString(m.helpLine())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))
	logLines := statusStyle.Render("Press 'q' to quit")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m teleopModel) statusLine() string {
	s := m.state
	phase := s.Phase()
	label := strings.ToUpper(string(phase))
	if phase == teleop.PhaseMoving {
		label = fmt.Sprintf("%s %3.0f%%", label, s.Progress*100)
	}
	parts := []string{phaseStyles[phase].Render(label)}

	switch {
	case m.readErr != nil && errors.Is(m.readErr, teleop.ErrInvalidInput):
		parts = append(parts, alertStyle.Render("bad snapshot"))
	case !s.Connected:
		parts = append(parts, alertStyle.Render("DISCONNECTED"))
	}
	if s.Safety.Stopped() {
		parts = append(parts, alertStyle.Render(strings.ToUpper(s.Safety.String())))
	}
	parts = append(parts, statusStyle.Render(fmt.Sprintf("mode %s  frame %s  step ×%g  speed %.0f%%",
		s.Mode, m.ctrl.Builder().CoordinateMode(), jogScales[m.scale], s.SpeedPercent)))
	return strings.Join(parts, "  ")
}

// stateTable shows actual and target values for joints and pose.
func (m teleopModel) stateTable() string {
	s := m.state
	display := m.ctrl.Builder().DisplayPoseOf(s)

	var rows [][]string
	for i, name := range robot.AllJoints() {
		rows = append(rows, []string{
			fmt.Sprintf("%d %s", i+1, name),
			fmt.Sprintf("%8.2f°", s.ActualJoints[i]),
			fmt.Sprintf("%8.2f°", s.TargetJoints[i]),
			fmt.Sprintf("%+7.2f", s.TargetJoints[i]-s.ActualJoints[i]),
		})
	}
	for i, axis := range pose.Axes() {
		rows = append(rows, []string{
			fmt.Sprintf("%d %s", i+1, axis),
			formatAxis(axis, s.ActualPose.Get(axis)),
			formatAxis(axis, display.Get(axis)),
			"",
		})
	}

	selectedRow := m.selected
	if m.view == viewPose {
		selectedRow += robot.NumJoints
	}
	target := "Target"
	if m.ctrl.Builder().CoordinateMode() == teleop.CoordinateTool {
		target = "Target (tool)"
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Axis", "Actual", target, "Δ").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return titleStyle.Padding(0, 1)
			case row == selectedRow:
				return selectedStyle
			}
			return cellStyle
		}).
		Render()
}

// formatAxis shows translations in millimetres and rotations in degrees.
func formatAxis(axis pose.Axis, v float64) string {
	if axis.IsRotation() {
		return fmt.Sprintf("%8.2f°", v*180/math.Pi)
	}
	return fmt.Sprintf("%8.1fmm", v*1000)
}

func (m teleopModel) helpLine() string {
	var items []string
	for _, b := range m.keys.help() {
		h := b.Help()
		items = append(items, h.Key+" "+statusStyle.Render(h.Desc))
	}
	return strings.Join(items, statusStyle.Render(" • "))
}

func renderLegend() string {
	var items []string
	for _, name := range robot.AllJoints() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(name))
	}
	return strings.Join(items, "  ") + statusStyle.Render("  (target - actual, degrees)")
}

func (c *TeleoperateCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Hz > 0 {
		cfg.Hz = c.Hz
	}
	if c.Journal != "" {
		cfg.Journal = c.Journal
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("starting teleoperation", zap.String("backend", string(cfg.Backend)), zap.Int("hz", cfg.Hz))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, cleanup, err := newController(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	go func() {
		if err := ctrl.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("controller stopped", zap.Error(err))
		}
	}()

	p := tea.NewProgram(initialTeleopModel(ctx, ctrl, cfg.Backend), tea.WithAltScreen())
	_, err = p.Run()
	cancel()
	if err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

// newController opens the journal and then the backend and wires them into
// a controller. cleanup closes everything that was opened.
func newController(ctx context.Context, cfg *robot.Config, logger *zap.Logger) (*teleop.Controller, func(), error) {
	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, nil, err
	}

	source, dispatcher, err := connect(ctx, cfg, logger)
	if err != nil {
		j.Close()
		return nil, nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}

	ctrl, err := teleop.NewController(teleop.Config{
		Source:     source,
		Dispatcher: dispatcher,
		Store:      teleop.NewStoreFromConfig(cfg, teleop.WithStoreLogger(logger.Named("store"))),
		Joints:     cfg.Joints,
		Journal:    j,
		Hz:         cfg.Hz,
		Logger:     logger.Named("controller"),
	})
	if err != nil {
		j.Close()
		return nil, nil, fmt.Errorf("create controller: %w", err)
	}

	cleanup := func() {
		if err := ctrl.Close(); err != nil {
			logger.Warn("close backend", zap.Error(err))
		}
		if err := j.Close(); err != nil {
			logger.Warn("close journal", zap.Error(err))
		}
	}
	return ctrl, cleanup, nil
}
