package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

type InfoCommand struct {
	Wait time.Duration `long:"wait" default:"500ms" description:"Time to wait for the first snapshot"`
}

func (c *InfoCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	source, dispatcher, err := connect(ctx, cfg, zap.NewNop())
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	if cl, ok := source.(io.Closer); ok {
		defer cl.Close()
	}
	if cl, ok := dispatcher.(io.Closer); ok && any(dispatcher) != any(source) {
		defer cl.Close()
	}

	// Streaming sources need a moment before the first frame.
	var snap robot.Snapshot
	deadline := time.Now().Add(c.Wait)
	for {
		snap, err = source.ReadState(ctx)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%s arm", cfg.Backend)))
	fmt.Println(snapshotTable(snap))
	return nil
}

func snapshotTable(snap robot.Snapshot) string {
	rows := [][]string{
		{"connected", fmt.Sprint(snap.Connected)},
		{"safety", snap.Safety.String()},
		{"program", snap.Program.String()},
		{"speed", fmt.Sprintf("%.0f%%", snap.SpeedPercent)},
	}
	for i, name := range robot.AllJoints() {
		rows = append(rows, []string{string(name), fmt.Sprintf("%.2f°", snap.Joints[i])})
	}
	for _, axis := range pose.Axes() {
		v := snap.Pose.Get(axis)
		if axis.IsRotation() {
			rows = append(rows, []string{axis.String(), fmt.Sprintf("%.2f°", v*180/math.Pi)})
		} else {
			rows = append(rows, []string{axis.String(), fmt.Sprintf("%.1f mm", v*1000)})
		}
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
