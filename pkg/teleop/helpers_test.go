package teleop

import (
	"context"
	"sync"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	commands []robot.Command
	err      error
	stopErr  error
	stops    int
	speeds   []float64
	programs []string
}

func (d *fakeDispatcher) Dispatch(_ context.Context, cmd robot.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, cmd)
	return d.err
}

func (d *fakeDispatcher) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return d.stopErr
}

func (d *fakeDispatcher) SetSpeed(_ context.Context, f float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speeds = append(d.speeds, f)
	return nil
}

func (d *fakeDispatcher) PlayProgram(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.programs = append(d.programs, "play")
	return d.err
}

func (d *fakeDispatcher) StopProgram(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.programs = append(d.programs, "stop")
	return d.err
}

func (d *fakeDispatcher) sent() []robot.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]robot.Command(nil), d.commands...)
}

// noSpeed hides SetSpeed and program control from the controller.
type noSpeed struct{ d *fakeDispatcher }

func (n noSpeed) Dispatch(ctx context.Context, cmd robot.Command) error {
	return n.d.Dispatch(ctx, cmd)
}
func (n noSpeed) Stop(ctx context.Context) error { return n.d.Stop(ctx) }

// torqueArm records the order in which it is released and closed.
type torqueArm struct {
	*fakeDispatcher
	calls      []string
	disableErr error
}

func (a *torqueArm) ReadState(context.Context) (robot.Snapshot, error) {
	return snapshot(robot.JointVector{}, pose.Identity), nil
}

func (a *torqueArm) Disable(context.Context) error {
	a.calls = append(a.calls, "disable")
	return a.disableErr
}

func (a *torqueArm) Close() error {
	a.calls = append(a.calls, "close")
	return nil
}

type fakeSource struct {
	mu    sync.Mutex
	snaps []robot.Snapshot
	err   error
	reads int
}

func (s *fakeSource) ReadState(context.Context) (robot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return robot.Snapshot{}, s.err
	}
	if len(s.snaps) == 0 {
		return snapshot(robot.JointVector{}, pose.Identity), nil
	}
	snap := s.snaps[0]
	if len(s.snaps) > 1 {
		s.snaps = s.snaps[1:]
	}
	return snap, nil
}

type memJournal struct {
	mu      sync.Mutex
	actions []string
	details []string
	success []bool
}

func (j *memJournal) Record(_ context.Context, action, detail string, success bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.actions = append(j.actions, action)
	j.details = append(j.details, detail)
	j.success = append(j.success, success)
	return nil
}

func snapshot(joints robot.JointVector, p pose.Pose) robot.Snapshot {
	return robot.Snapshot{
		Joints:       joints,
		Pose:         p,
		SpeedPercent: 100,
		Connected:    true,
		Safety:       robot.SafetyNormal,
		Program:      robot.ProgramStopped,
	}
}
