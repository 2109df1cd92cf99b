package urscript

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/armteleop/pkg/robot"
)

// DefaultTimeout bounds dialing and single request/response exchanges when
// the caller's context has no deadline.
const DefaultTimeout = 2 * time.Second

// Client sends URScript lines to the controller and runs dashboard commands.
// It implements the teleop Dispatcher and SpeedSetter interfaces.
type Client struct {
	host          string
	scriptPort    int
	dashboardPort int
	timeout       time.Duration
	dialer        net.Dialer
	logger        *zap.Logger

	mu   sync.Mutex
	conn net.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a client for the controller described by cfg. The
// script connection is opened lazily and re-opened after a write failure.
func NewClient(cfg robot.URConfig, opts ...Option) *Client {
	c := &Client{
		host:          cfg.Host,
		scriptPort:    cfg.ScriptPort,
		dashboardPort: cfg.DashboardPort,
		timeout:       DefaultTimeout,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the script connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Dispatch sends cmd as movej or movel.
func (c *Client) Dispatch(ctx context.Context, cmd robot.Command) error {
	line, err := Script(cmd)
	if err != nil {
		return err
	}
	return c.Send(ctx, line)
}

// Stop sends stopj and asks the dashboard server to stop the running
// program. It succeeds if either path reached the controller.
func (c *Client) Stop(ctx context.Context) error {
	scriptErr := c.Send(ctx, StopJ())
	dashErr := c.StopProgram(ctx)
	if scriptErr != nil && dashErr != nil {
		return fmt.Errorf("stop: %w", errors.Join(scriptErr, dashErr))
	}
	if scriptErr != nil {
		c.logger.Warn("stopj failed, dashboard stop sent", zap.Error(scriptErr))
	}
	if dashErr != nil {
		c.logger.Warn("dashboard stop failed, stopj sent", zap.Error(dashErr))
	}
	return nil
}

// PlayProgram starts the program loaded on the controller.
func (c *Client) PlayProgram(ctx context.Context) error {
	_, err := c.Dashboard(ctx, "play")
	return err
}

// StopProgram stops the running program through the dashboard server.
func (c *Client) StopProgram(ctx context.Context) error {
	_, err := c.Dashboard(ctx, "stop")
	return err
}

// SetSpeed sets the speed slider.
func (c *Client) SetSpeed(ctx context.Context, fraction float64) error {
	return c.Send(ctx, SpeedSlider(fraction))
}

// Send writes one URScript line to the script port.
func (c *Client) Send(ctx context.Context, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := c.dial(ctx, c.scriptPort)
		if err != nil {
			return err
		}
		c.conn = conn
	}

	_ = c.conn.SetWriteDeadline(c.deadline(ctx))
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("send script: %w", err)
	}
	c.logger.Debug("script sent", zap.String("line", line))
	return nil
}

// Dashboard runs one dashboard server command and returns its reply.
func (c *Client) Dashboard(ctx context.Context, command string) (string, error) {
	conn, err := c.dial(ctx, c.dashboardPort)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(c.deadline(ctx))

	r := bufio.NewReader(conn)
	if _, err := r.ReadString('\n'); err != nil {
		return "", fmt.Errorf("read dashboard greeting: %w", err)
	}
	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("send dashboard command: %w", err)
	}
	reply, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read dashboard reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "Failed") {
		return reply, fmt.Errorf("dashboard %q: %s", command, reply)
	}
	c.logger.Debug("dashboard", zap.String("command", command), zap.String("reply", reply))
	return reply, nil
}

func (c *Client) dial(ctx context.Context, port int) (net.Conn, error) {
	addr := net.JoinHostPort(c.host, strconv.Itoa(port))
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return conn, nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(c.timeout)
}
