package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"armteleop.json" description:"Configuration file"`
	LogFile string `long:"log-file" default:"armteleop.log" description:"Log file (the terminal belongs to the TUI)"`
	Verbose bool   `short:"v" long:"verbose" description:"Debug logging"`

	Setup       SetupCommand       `command:"setup" description:"Choose a backend and write the configuration file"`
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Jog and apply targets from the terminal"`
	Info        InfoCommand        `command:"info" description:"Print one snapshot of the arm"`
	Journal     JournalCommand     `command:"journal" description:"Show recent operator actions"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "armteleop - teleoperation for 6-axis robot arms"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// newLogger builds a JSON file logger.
func newLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{opts.LogFile}
	config.ErrorOutputPaths = []string{opts.LogFile}
	if opts.Verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
