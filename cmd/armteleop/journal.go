package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/armteleop/pkg/journal"
	"github.com/gwillem/armteleop/pkg/robot"
)

type JournalCommand struct {
	Limit int    `short:"n" long:"limit" default:"20" description:"Number of entries to show"`
	Path  string `long:"path" description:"Journal database (defaults to the configured one)"`
}

func (c *JournalCommand) Execute(args []string) error {
	path := c.Path
	if path == "" {
		path = robot.DefaultJournalFile
		if cfg, err := robot.LoadConfigFrom(opts.Config); err == nil {
			path = cfg.Journal
		}
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println(dimStyle.Render("Journal is empty."))
		return nil
	}
	fmt.Println(journalTable(entries))
	return nil
}

func journalTable(entries []journal.Entry) string {
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = "failed"
		}
		rows = append(rows, []string{e.Time.Format("2006-01-02 15:04:05"), e.Action, result, e.Detail})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Time", "Action", "Result", "Detail").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case col == 2 && entries[row].Success:
				return okStyle
			case col == 2:
				return failStyle
			}
			return cell
		}).
		Render()
}
