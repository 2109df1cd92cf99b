package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/armteleop/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armteleop setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if robot.ConfigExists(opts.Config) {
		existing, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return fmt.Errorf("existing configuration is unreadable, fix or remove it: %w", err)
		}
		fmt.Println(dimStyle.Render("Starting from " + opts.Config))
		cfg = existing
	}

	if err := chooseBackend(cfg); err != nil {
		return err
	}

	switch cfg.Backend {
	case robot.BackendUR:
		if err := askHost(cfg); err != nil {
			return err
		}
	case robot.BackendFeetech:
		port, err := chooseSerialPort()
		if err != nil {
			return err
		}
		cfg.Arm.Port = port
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Calibrating arm ━━━"))
		fmt.Println()
		if err := calibrateArm(&cfg.Arm); err != nil {
			return err
		}
	}

	if err := askTolerances(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(configTable(cfg))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start teleoperation with: " + headerStyle.Render("armteleop teleoperate"))
	return nil
}

func chooseBackend(cfg *robot.Config) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[robot.Backend]().
				Title("Which arm do you want to drive?").
				Options(
					huh.NewOption("Universal Robots controller (TCP)", robot.BackendUR),
					huh.NewOption("Feetech servo arm (serial)", robot.BackendFeetech),
					huh.NewOption("Simulator", robot.BackendSim),
				).
				Value(&cfg.Backend),
			huh.NewSelect[robot.ControlMode]().
				Title("Default control mode").
				Options(
					huh.NewOption("Joint (movej)", robot.ModeJoint),
					huh.NewOption("TCP (movel)", robot.ModeTCP),
				).
				Value(&cfg.Mode),
		),
	)
	return form.Run()
}

func askHost(cfg *robot.Config) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Controller address").
				Placeholder("192.168.1.10").
				Value(&cfg.UR.Host).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("address is required")
					}
					return nil
				}),
		),
	)
	return form.Run()
}

func askTolerances(cfg *robot.Config) error {
	pos := strconv.FormatFloat(cfg.Tolerance.PositionM*1000, 'f', -1, 64)
	rot := strconv.FormatFloat(cfg.Tolerance.RotationDeg, 'f', -1, 64)
	joint := strconv.FormatFloat(cfg.Tolerance.JointDeg, 'f', -1, 64)
	journalPath := cfg.Journal

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Position tolerance (mm)").Value(&pos).Validate(validTolerance),
			huh.NewInput().Title("Rotation tolerance (deg)").Value(&rot).Validate(validTolerance),
			huh.NewInput().Title("Joint tolerance (deg)").Value(&joint).Validate(validTolerance),
			huh.NewInput().Title("Journal database").Value(&journalPath).Validate(validPath),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	// Validated above.
	mm, _ := strconv.ParseFloat(pos, 64)
	cfg.Tolerance.PositionM = mm / 1000
	cfg.Tolerance.RotationDeg, _ = strconv.ParseFloat(rot, 64)
	cfg.Tolerance.JointDeg, _ = strconv.ParseFloat(joint, 64)
	cfg.Journal = journalPath
	return nil
}

func validTolerance(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.New("not a number")
	}
	if v <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func validPath(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

// chooseSerialPort lists ports that answer with six servos and lets the
// operator pick one.
func chooseSerialPort() (string, error) {
	fmt.Println("Scanning serial ports...")
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("list ports: %w", err)
	}

	var options []huh.Option[string]
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		if bus, _, err := connectToArm(port); err == nil {
			bus.Close()
			fmt.Printf("  Found arm on %s\n", port)
			options = append(options, huh.NewOption(port, port))
		}
	}
	if len(options) == 0 {
		return "", errors.New("no servo arm found, check that it is connected and powered on")
	}

	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the arm on?").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return port, nil
}

func connectToArm(port string) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	servos, err := bus.Scan(ctx, 1, robot.NumJoints)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	if !isSixAxis(servos) {
		bus.Close()
		return nil, nil, fmt.Errorf("expected %d servos with IDs 1-%d, found %d", robot.NumJoints, robot.NumJoints, len(servos))
	}
	return bus, servos, nil
}

func isSixAxis(servos []feetech.FoundServo) bool {
	if len(servos) != robot.NumJoints {
		return false
	}
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= robot.NumJoints; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

func calibrateArm(armConfig *robot.ArmConfig) error {
	bus, servos, err := connectToArm(armConfig.Port)
	if err != nil {
		return fmt.Errorf("connect to arm: %w", err)
	}
	defer bus.Close()

	ctx := context.Background()
	servoMap := make(map[int]*feetech.Servo)
	for _, s := range servos {
		servoMap[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
		// Torque off so the operator can move the arm by hand
		servoMap[s.ID].Disable(ctx)
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move every joint to its minimum AND maximum position.")
	fmt.Println()

	model := newCalibrationModel(servoMap)
	for id, servo := range servoMap {
		if pos, err := servo.Position(ctx); err == nil {
			model.cur[id], model.min[id], model.max[id] = pos, pos, pos
		}
	}

	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)
	if cm.aborted {
		return errors.New("calibration aborted")
	}

	cal := make(robot.Calibration)
	for i, name := range robot.AllJoints() {
		id := i + 1
		cal[name] = robot.MotorCalibration{
			ID:       id,
			RangeMin: cm.min[id],
			RangeMax: cm.max[id],
		}
	}
	armConfig.Calibration = cal
	fmt.Println("Arm calibrated.")
	return nil
}

// calibrationModel tracks servo ranges while the operator moves the arm.
type calibrationModel struct {
	servos        map[int]*feetech.Servo
	cur, min, max map[int]int
	done, aborted bool
}

type calibrationTickMsg time.Time

func newCalibrationModel(servos map[int]*feetech.Servo) calibrationModel {
	return calibrationModel{
		servos: servos,
		cur:    make(map[int]int),
		min:    make(map[int]int),
		max:    make(map[int]int),
	}
}

func calibrationTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return calibrationTickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return calibrationTick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "q", "ctrl+c":
			m.done, m.aborted = true, true
			return m, tea.Quit
		}

	case calibrationTickMsg:
		ctx := context.Background()
		for id, servo := range m.servos {
			pos, err := servo.Position(ctx)
			if err != nil {
				continue
			}
			m.cur[id] = pos
			m.min[id] = min(m.min[id], pos)
			m.max[id] = max(m.max[id], pos)
		}
		return m, calibrationTick()
	}
	return m, nil
}

func (m calibrationModel) View() string {
	if m.done {
		return ""
	}

	headStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	goodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	lowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	joints := robot.AllJoints()
	rows := make([][]string, 0, len(joints))
	ranges := make([]int, 0, len(joints))
	for i, name := range joints {
		id := i + 1
		span := m.max[id] - m.min[id]
		ranges = append(ranges, span)
		rows = append(rows, []string{
			string(name),
			strconv.Itoa(m.cur[id]),
			strconv.Itoa(m.min[id]),
			strconv.Itoa(m.max[id]),
			strconv.Itoa(span),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headStyle
			case col == 0:
				return nameStyle
			case col == 4 && row >= 0 && row < len(ranges) && ranges[row] > 500:
				return goodStyle
			case col == 4:
				return lowStyle
			}
			return cellStyle
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when done, q to abort")
}

// configTable summarises a configuration.
func configTable(cfg *robot.Config) string {
	rows := [][]string{
		{"backend", string(cfg.Backend)},
		{"control mode", string(cfg.Mode)},
		{"poll rate", fmt.Sprintf("%d Hz", cfg.Hz)},
		{"position tolerance", fmt.Sprintf("%g mm", cfg.Tolerance.PositionM*1000)},
		{"rotation tolerance", fmt.Sprintf("%g°", cfg.Tolerance.RotationDeg)},
		{"joint tolerance", fmt.Sprintf("%g°", cfg.Tolerance.JointDeg)},
	}
	switch cfg.Backend {
	case robot.BackendUR:
		rows = append(rows, []string{"controller", fmt.Sprintf("%s (script %d, dashboard %d, realtime %d)",
			cfg.UR.Host, cfg.UR.ScriptPort, cfg.UR.DashboardPort, cfg.UR.RealtimePort)})
	case robot.BackendFeetech:
		rows = append(rows, []string{"serial port", cfg.Arm.Port})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return subHeaderStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}
