// Package teleop reconciles the actual and target state of a robot arm and
// turns operator edits into motion commands.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/armteleop/pkg/robot"
)

// StateSource produces actual-state snapshots.
type StateSource interface {
	ReadState(ctx context.Context) (robot.Snapshot, error)
}

// SpeedSetter is implemented by dispatchers that can scale robot speed.
type SpeedSetter interface {
	SetSpeed(ctx context.Context, fraction float64) error
}

// ProgramRunner is implemented by dispatchers that can start and stop the
// program loaded on the controller.
type ProgramRunner interface {
	PlayProgram(ctx context.Context) error
	StopProgram(ctx context.Context) error
}

// Disabler is implemented by arms that hold their joints under torque.
// The controller releases them on Close.
type Disabler interface {
	Disable(ctx context.Context) error
}

// Recorder keeps an audit trail of operator actions.
type Recorder interface {
	Record(ctx context.Context, action, detail string, success bool) error
}

// Update is published after every control loop step.
type Update struct {
	State
	Transition Transition
	Err        error
}

// Controller runs the snapshot loop and funnels operator actions into the store.
type Controller struct {
	source     StateSource
	dispatcher Dispatcher
	store      *Store
	builder    *Builder
	journal    Recorder
	hz         int
	logger     *zap.Logger

	mu       sync.RWMutex
	running  bool
	updateCh chan Update
	logCh    chan string
}

// Config holds configuration for the controller.
type Config struct {
	Source     StateSource
	Dispatcher Dispatcher
	Store      *Store           // optional, NewStore() when nil
	Joints     robot.JointTable // optional, robot.DefaultJoints() when empty
	Journal    Recorder         // optional
	Hz         int              // snapshot poll rate, default 10
	Logger     *zap.Logger      // optional
}

// NewController creates a new teleoperation controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Source == nil {
		return nil, errors.New("controller needs a state source")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("controller needs a dispatcher")
	}
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	if cfg.Hz <= 0 {
		cfg.Hz = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Controller{
		source:     cfg.Source,
		dispatcher: cfg.Dispatcher,
		store:      cfg.Store,
		builder:    NewBuilder(cfg.Store, cfg.Joints),
		journal:    cfg.Journal,
		hz:         cfg.Hz,
		logger:     cfg.Logger,
		updateCh:   make(chan Update, 1),
		logCh:      make(chan string, 10),
	}, nil
}

// Close releases servo torque and closes the source and dispatcher if they
// hold resources.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	var errs []error
	if d, ok := c.dispatcher.(Disabler); ok {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := d.Disable(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disable torque: %w", err))
		}
		cancel()
	}
	if cl, ok := c.source.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if cl, ok := c.dispatcher.(io.Closer); ok && any(c.dispatcher) != any(c.source) {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// Updates returns a channel that receives the latest state after each step.
func (c *Controller) Updates() <-chan Update {
	return c.updateCh
}

// Logs returns a channel that receives operator log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the snapshot poll rate.
func (c *Controller) Hz() int {
	return c.hz
}

// Store returns the controller's state store.
func (c *Controller) Store() *Store {
	return c.store
}

// Builder returns the command builder bound to the store.
func (c *Controller) Builder() *Builder {
	return c.builder
}

// Running reports whether the control loop is active.
func (c *Controller) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Controller) log(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	c.logger.Info(text)
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), text)
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start polls the state source until ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	c.log("Teleoperation started at %d Hz", c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.Step(ctx)
		}
	}
}

// Step reads one snapshot and ingests it.
func (c *Controller) Step(ctx context.Context) {
	snap, err := c.source.ReadState(ctx)
	if err != nil {
		if c.store.State().Connected {
			c.log("Read error: %v", err)
		}
		c.store.SetConnected(false)
		c.sendUpdate(Update{State: c.store.State(), Err: err})
		return
	}

	tr, err := c.store.IngestSnapshot(snap)
	if err != nil {
		c.log("Rejected snapshot: %v", err)
		c.sendUpdate(Update{State: c.store.State(), Err: err})
		return
	}

	switch tr {
	case TransitionComplete:
		c.log("Motion complete")
		c.record(ctx, "motion complete", "", true)
	case TransitionSafetyStop:
		c.log("Motion stopped by controller (%s)", snap.Safety)
		c.record(ctx, "safety stop", snap.Safety.String(), false)
	}

	c.sendUpdate(Update{State: c.store.State(), Transition: tr})
}

// Apply commits the current target. It returns false when there is nothing
// to apply or a motion is already running.
func (c *Controller) Apply(ctx context.Context) (bool, error) {
	cmd, ok, err := c.store.Commit(ctx, c.dispatcher)
	switch {
	case err != nil:
		c.log("Apply failed: %v", err)
		c.record(ctx, "apply", describe(cmd), false)
	case ok:
		c.log("Applying %s target", cmd.Mode)
		c.record(ctx, "apply", describe(cmd), true)
	default:
		c.log("Nothing to apply (%s)", c.store.Phase())
	}
	return ok, err
}

// Reset discards target edits. It is refused while a motion is running.
func (c *Controller) Reset() error {
	if err := c.store.ResetIfIdle(); err != nil {
		c.log("Reset refused while moving")
		return err
	}
	c.log("Target reset to actual")
	return nil
}

// EmergencyStop leaves the moving state and tells the dispatcher to stop.
// The store is stopped even when the dispatcher fails.
func (c *Controller) EmergencyStop(ctx context.Context) error {
	c.store.EmergencyStop()
	err := c.dispatcher.Stop(ctx)
	if err != nil {
		c.log("Emergency stop dispatch failed: %v", err)
	} else {
		c.log("Emergency stop")
	}
	c.record(ctx, "emergency stop", "", err == nil)
	return err
}

// SetSpeed sets the speed slider to fraction, clamped to [0, 1].
func (c *Controller) SetSpeed(ctx context.Context, fraction float64) error {
	s, ok := c.dispatcher.(SpeedSetter)
	if !ok {
		c.log("Speed control not supported by this arm")
		return ErrSpeedUnsupported
	}
	fraction = math.Max(0, math.Min(1, fraction))
	err := s.SetSpeed(ctx, fraction)
	c.record(ctx, "speed", fmt.Sprintf("%.0f%%", fraction*100), err == nil)
	if err != nil {
		c.log("Set speed failed: %v", err)
		return err
	}
	c.log("Speed set to %.0f%%", fraction*100)
	return nil
}

// PlayProgram starts the controller's loaded program.
func (c *Controller) PlayProgram(ctx context.Context) error {
	return c.program(ctx, "start", ProgramRunner.PlayProgram)
}

// StopProgram stops the controller's running program.
func (c *Controller) StopProgram(ctx context.Context) error {
	return c.program(ctx, "stop", ProgramRunner.StopProgram)
}

func (c *Controller) program(ctx context.Context, verb string, fn func(ProgramRunner, context.Context) error) error {
	r, ok := c.dispatcher.(ProgramRunner)
	if !ok {
		c.log("Program control not supported by this arm")
		return ErrProgramUnsupported
	}
	err := fn(r, ctx)
	c.record(ctx, "program "+verb, "", err == nil)
	if err != nil {
		c.log("Program %s failed: %v", verb, err)
		return err
	}
	c.log("Program %s sent", verb)
	return nil
}

func (c *Controller) record(ctx context.Context, action, detail string, success bool) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(ctx, action, detail, success); err != nil {
		c.logger.Warn("journal write failed", zap.String("action", action), zap.Error(err))
	}
}

func (c *Controller) sendUpdate(u Update) {
	select {
	case c.updateCh <- u:
	default:
		// Drop old update if channel full, replace with new
		select {
		case <-c.updateCh:
		default:
		}
		select {
		case c.updateCh <- u:
		default:
		}
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.log("Teleoperation stopped")
}

func describe(cmd robot.Command) string {
	if cmd.Mode == robot.ModeTCP {
		return fmt.Sprintf("tcp %v v=%g a=%g", cmd.Pose, cmd.Speed, cmd.Acceleration)
	}
	return fmt.Sprintf("joints %.2f v=%g a=%g", cmd.Joints[:], cmd.Speed, cmd.Acceleration)
}
