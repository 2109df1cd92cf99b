package urscript

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

// Offsets of realtime interface fields, counted in doubles after the
// leading message length.
const (
	offJointsActual = 31
	offToolActual   = 55
	offSafetyMode   = 101
	offSpeedScaling = 117
	offProgramState = 131

	// A frame must at least carry the actual tool vector.
	minFrameDoubles = offToolActual + 6
	maxFrameBytes   = 1 << 16
)

// ErrNoState is returned before the first realtime frame arrives.
var ErrNoState = errors.New("no realtime state received")

// ErrStale is returned when the newest frame is older than the stale limit.
var ErrStale = errors.New("realtime state is stale")

// Realtime reads the controller's realtime stream in the background and
// serves the newest frame as a snapshot. It implements teleop.StateSource.
type Realtime struct {
	conn   net.Conn
	stale  time.Duration
	logger *zap.Logger
	done   chan struct{}

	mu   sync.Mutex
	snap robot.Snapshot
	at   time.Time
	err  error
}

// DialRealtime connects to the realtime port and starts reading frames.
func DialRealtime(ctx context.Context, cfg robot.URConfig, logger *zap.Logger) (*Realtime, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.RealtimePort))
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return NewRealtime(conn, logger), nil
}

// NewRealtime starts reading frames from conn. A nil logger discards logs.
func NewRealtime(conn net.Conn, logger *zap.Logger) *Realtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Realtime{
		conn:   conn,
		stale:  time.Second,
		logger: logger,
		done:   make(chan struct{}),
	}
	go rt.run()
	return rt
}

// Close stops the reader and closes the connection.
func (rt *Realtime) Close() error {
	err := rt.conn.Close()
	<-rt.done
	return err
}

// ReadState returns the newest snapshot.
func (rt *Realtime) ReadState(context.Context) (robot.Snapshot, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	switch {
	case rt.err != nil:
		return robot.Snapshot{}, rt.err
	case rt.at.IsZero():
		return robot.Snapshot{}, ErrNoState
	case time.Since(rt.at) > rt.stale:
		return robot.Snapshot{}, fmt.Errorf("%w: last frame %s ago", ErrStale, time.Since(rt.at).Round(time.Millisecond))
	}
	return rt.snap, nil
}

func (rt *Realtime) run() {
	defer close(rt.done)
	for {
		snap, err := ReadFrame(rt.conn)
		rt.mu.Lock()
		if err != nil {
			rt.err = fmt.Errorf("realtime stream: %w", err)
			rt.mu.Unlock()
			if !errors.Is(err, net.ErrClosed) {
				rt.logger.Warn("realtime reader stopped", zap.Error(err))
			}
			return
		}
		snap.Time = time.Now()
		rt.snap, rt.at = snap, snap.Time
		rt.mu.Unlock()
	}
}

// ReadFrame reads one length-prefixed realtime frame and decodes it.
func ReadFrame(r io.Reader) (robot.Snapshot, error) {
	var size int32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return robot.Snapshot{}, err
	}
	if size < 4 || size > maxFrameBytes {
		return robot.Snapshot{}, fmt.Errorf("bad frame length %d", size)
	}
	buf := make([]byte, size-4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return robot.Snapshot{}, err
	}
	return DecodeFrame(buf)
}

// DecodeFrame decodes a realtime frame body (without the length prefix).
// Joint angles are converted to degrees. Fields newer than the frame's
// software version are reported as unknown.
func DecodeFrame(body []byte) (robot.Snapshot, error) {
	n := len(body) / 8
	if n < minFrameDoubles {
		return robot.Snapshot{}, fmt.Errorf("frame too short: %d bytes", len(body))
	}
	at := func(i int) float64 {
		return math.Float64frombits(binary.BigEndian.Uint64(body[i*8:]))
	}

	snap := robot.Snapshot{
		Connected:    true,
		ToolOffset:   pose.Identity,
		SpeedPercent: 100,
	}
	for i := range robot.NumJoints {
		snap.Joints[i] = at(offJointsActual+i) * 180 / math.Pi
	}
	var tool [6]float64
	for i := range tool {
		tool[i] = at(offToolActual + i)
	}
	snap.Pose = pose.FromArray(tool)

	if n > offSafetyMode {
		snap.Safety = safetyMode(at(offSafetyMode))
	}
	if n > offSpeedScaling {
		snap.SpeedPercent = at(offSpeedScaling) * 100
	}
	if n > offProgramState {
		snap.Program = programState(at(offProgramState))
	}
	return snap, nil
}

func safetyMode(v float64) robot.SafetyState {
	m := robot.SafetyState(v)
	if m < robot.SafetyNormal || m > robot.SafetyFault {
		return robot.SafetyUnknown
	}
	return m
}

func programState(v float64) robot.ProgramState {
	switch int(v) {
	case 1:
		return robot.ProgramStopped
	case 2:
		return robot.ProgramRunning
	case 4:
		return robot.ProgramPaused
	}
	return robot.ProgramUnknown
}
