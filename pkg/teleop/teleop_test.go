package teleop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

func newTestController(t *testing.T, src *fakeSource, d Dispatcher, j Recorder) *Controller {
	t.Helper()
	ctrl, err := NewController(Config{
		Source:     src,
		Dispatcher: d,
		Journal:    j,
		Hz:         200,
	})
	require.NoError(t, err)
	return ctrl
}

func drainLogs(ctrl *Controller) []string {
	var logs []string
	for {
		select {
		case l := <-ctrl.Logs():
			logs = append(logs, l)
		default:
			return logs
		}
	}
}

func TestNewController_Validation(t *testing.T) {
	_, err := NewController(Config{Dispatcher: &fakeDispatcher{}})
	assert.Error(t, err)
	_, err = NewController(Config{Source: &fakeSource{}})
	assert.Error(t, err)

	ctrl, err := NewController(Config{Source: &fakeSource{}, Dispatcher: &fakeDispatcher{}})
	require.NoError(t, err)
	assert.Equal(t, 10, ctrl.Hz())
	assert.NotNil(t, ctrl.Store())
	assert.NotNil(t, ctrl.Builder())
}

func TestController_Step(t *testing.T) {
	joints := robot.JointVector{1, 2, 3, 4, 5, 6}
	src := &fakeSource{snaps: []robot.Snapshot{snapshot(joints, pose.Identity)}}
	ctrl := newTestController(t, src, &fakeDispatcher{}, nil)

	ctrl.Step(context.Background())

	u := <-ctrl.Updates()
	require.NoError(t, u.Err)
	assert.Equal(t, TransitionGhostFollow, u.Transition)
	assert.Equal(t, joints, u.TargetJoints)
	assert.True(t, u.Connected)
}

func TestController_StepReadError(t *testing.T) {
	src := &fakeSource{}
	ctrl := newTestController(t, src, &fakeDispatcher{}, nil)
	ctrl.Step(context.Background())
	<-ctrl.Updates()

	src.err = errors.New("timeout")
	ctrl.Step(context.Background())

	u := <-ctrl.Updates()
	assert.Error(t, u.Err)
	assert.False(t, u.Connected)
	assert.Len(t, drainLogs(ctrl), 1)
}

func TestController_ApplyAndComplete(t *testing.T) {
	target := robot.JointVector{0, 0, 90, 0, 0, 0}
	src := &fakeSource{snaps: []robot.Snapshot{snapshot(target, pose.New(0.3, 0, 0.2, 0, 0, 0))}}
	d := &fakeDispatcher{}
	j := &memJournal{}
	ctrl := newTestController(t, src, d, j)
	ctx := context.Background()

	require.NoError(t, ctrl.Builder().SetJoint(3, 90))
	ok, err := ctrl.Apply(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, PhaseMoving, ctrl.Store().Phase())

	ok, err = ctrl.Apply(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ctrl.Step(ctx)
	u := <-ctrl.Updates()
	assert.Equal(t, TransitionComplete, u.Transition)
	assert.Equal(t, PhaseIdleClean, u.Phase())
	assert.Equal(t, pose.New(0.3, 0, 0.2, 0, 0, 0), u.TargetPose)

	assert.Equal(t, []string{"apply", "motion complete"}, j.actions)
	assert.Equal(t, []bool{true, true}, j.success)
}

func TestController_ApplyJournalsDispatched(t *testing.T) {
	d := &fakeDispatcher{}
	j := &memJournal{}
	ctrl := newTestController(t, &fakeSource{}, d, j)

	require.NoError(t, ctrl.Builder().SetJoint(2, -30))
	ok, err := ctrl.Apply(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// An edit after the commit must not change what was journaled
	require.NoError(t, ctrl.Builder().SetJoint(2, 60))

	require.Len(t, d.sent(), 1)
	require.Len(t, j.details, 1)
	assert.Equal(t, describe(d.sent()[0]), j.details[0])
	assert.Contains(t, j.details[0], "-30.00")
}

func TestController_ApplyFailure(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("not connected")}
	j := &memJournal{}
	ctrl := newTestController(t, &fakeSource{}, d, j)

	require.NoError(t, ctrl.Builder().JogJoint(1, 5))
	ok, err := ctrl.Apply(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrDispatchFailure)
	assert.Equal(t, PhaseIdleDirty, ctrl.Store().Phase())
	assert.Equal(t, []bool{false}, j.success)
}

func TestController_Reset(t *testing.T) {
	ctrl := newTestController(t, &fakeSource{}, &fakeDispatcher{}, nil)

	require.NoError(t, ctrl.Builder().JogJoint(2, 1))
	require.NoError(t, ctrl.Reset())
	assert.Equal(t, PhaseIdleClean, ctrl.Store().Phase())

	require.NoError(t, ctrl.Builder().JogJoint(2, 1))
	_, err := ctrl.Apply(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, ctrl.Reset(), ErrMoving)
}

func TestController_EmergencyStop(t *testing.T) {
	d := &fakeDispatcher{stopErr: errors.New("dashboard unreachable")}
	j := &memJournal{}
	ctrl := newTestController(t, &fakeSource{}, d, j)

	require.NoError(t, ctrl.Builder().JogJoint(2, 10))
	_, err := ctrl.Apply(context.Background())
	require.NoError(t, err)

	err = ctrl.EmergencyStop(context.Background())
	assert.Error(t, err)
	assert.False(t, ctrl.Store().State().Moving, "store stops even if dispatch fails")
	assert.Equal(t, 1, d.stops)
	assert.Equal(t, []string{"apply", "emergency stop"}, j.actions)
	assert.Equal(t, []bool{true, false}, j.success)
}

func TestController_SetSpeed(t *testing.T) {
	d := &fakeDispatcher{}
	ctrl := newTestController(t, &fakeSource{}, d, nil)

	require.NoError(t, ctrl.SetSpeed(context.Background(), 1.7))
	require.NoError(t, ctrl.SetSpeed(context.Background(), 0.25))
	assert.Equal(t, []float64{1, 0.25}, d.speeds)

	ctrl = newTestController(t, &fakeSource{}, noSpeed{d: d}, nil)
	assert.ErrorIs(t, ctrl.SetSpeed(context.Background(), 0.5), ErrSpeedUnsupported)
}

func TestController_Program(t *testing.T) {
	d := &fakeDispatcher{}
	j := &memJournal{}
	ctrl := newTestController(t, &fakeSource{}, d, j)
	ctx := context.Background()

	require.NoError(t, ctrl.PlayProgram(ctx))
	require.NoError(t, ctrl.StopProgram(ctx))
	assert.Equal(t, []string{"play", "stop"}, d.programs)
	assert.Equal(t, []string{"program start", "program stop"}, j.actions)
	assert.Equal(t, []bool{true, true}, j.success)
	assert.Len(t, drainLogs(ctrl), 2)

	d.err = errors.New("dashboard refused")
	assert.Error(t, ctrl.PlayProgram(ctx))
	assert.Equal(t, false, j.success[2])

	ctrl = newTestController(t, &fakeSource{}, noSpeed{d: d}, nil)
	assert.ErrorIs(t, ctrl.PlayProgram(ctx), ErrProgramUnsupported)
	assert.ErrorIs(t, ctrl.StopProgram(ctx), ErrProgramUnsupported)
}

func TestController_CloseReleasesTorque(t *testing.T) {
	arm := &torqueArm{fakeDispatcher: &fakeDispatcher{}}
	ctrl, err := NewController(Config{Source: arm, Dispatcher: arm})
	require.NoError(t, err)

	require.NoError(t, ctrl.Close())
	assert.Equal(t, []string{"disable", "close"}, arm.calls)

	arm = &torqueArm{fakeDispatcher: &fakeDispatcher{}, disableErr: errors.New("bus timeout")}
	ctrl, err = NewController(Config{Source: arm, Dispatcher: arm})
	require.NoError(t, err)

	assert.Error(t, ctrl.Close())
	assert.Equal(t, []string{"disable", "close"}, arm.calls, "bus is closed even when release fails")
}

func TestController_Start(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{}
	ctrl := newTestController(t, src, &fakeDispatcher{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ctrl.Start(ctx)
	}()

	select {
	case u := <-ctrl.Updates():
		assert.NoError(t, u.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("no update from control loop")
	}
	assert.True(t, ctrl.Running())
	assert.ErrorIs(t, ctrl.Start(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("control loop did not stop")
	}
	assert.False(t, ctrl.Running())
	require.NoError(t, ctrl.Close())
}
