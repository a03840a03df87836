package peer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Role decides which side listens and which dials, and with it who owns
// obstacle authority. The values match the handoff message.
type Role string

const (
	RoleHost Role = "server"
	RoleDial Role = "client"
)

const (
	// sendInterval is the fixed frame cadence, roughly 33 frames/s.
	sendInterval = 30 * time.Millisecond

	// settleDelay gives the host time to bind before the dialer connects.
	settleDelay = 1 * time.Second

	// outboxCap bounds the host's pending obstacle events. The queue
	// drains one event per frame; on overflow the oldest event is
	// dropped, since any later event for the same obstacle supersedes it.
	outboxCap = 64

	// closeWait bounds how long Close waits for the two loops to exit.
	closeWait = 1 * time.Second
)

// Host binds the fixed peer port and waits for the opponent to connect.
// The listener is closed once the single connection is accepted, or
// when ctx is cancelled.
func Host(ctx context.Context, port int) (net.Conn, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind peer port %d: %w", port, err)
	}
	defer ln.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-done:
		}
	}()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

// Dial connects to the host's advertised endpoint after the settle
// delay, so the host has had time to start listening.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to reach peer %s: %w", addr, err)
	}
	return conn, nil
}

// Channel exchanges state frames with the opponent over an established
// connection. The local game loop pushes its state with SetLocal and
// reads the opponent through Remote and Obstacles; two internal loops
// do the actual I/O.
type Channel struct {
	conn net.Conn
	role Role
	log  *zap.Logger

	mu        sync.Mutex
	local     State
	remote    State
	obstacles []Obstacle
	outbox    []ObstacleEvent

	closed atomic.Bool
	wg     sync.WaitGroup
}

func NewChannel(conn net.Conn, role Role, log *zap.Logger) *Channel {
	return &Channel{
		conn: conn,
		role: role,
		log:  log,
	}
}

func (c *Channel) Role() Role { return c.role }

// Start launches the send and receive loops.
func (c *Channel) Start() {
	c.wg.Add(2)
	go c.sendLoop()
	go c.receiveLoop()
}

// SetLocal publishes the local car's state for the next outgoing frame.
func (c *Channel) SetLocal(x, y, health int) {
	c.mu.Lock()
	c.local = State{X: x, Y: y, Health: health}
	c.mu.Unlock()
}

// Remote returns the opponent's last received state.
func (c *Channel) Remote() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// Obstacles returns a copy of the synced obstacle set.
func (c *Channel) Obstacles() []Obstacle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Obstacle, len(c.obstacles))
	copy(out, c.obstacles)
	return out
}

// QueueEvent enqueues an obstacle event for the peer. Only the host has
// obstacle authority; on the dialing side this is a no-op.
func (c *Channel) QueueEvent(evt ObstacleEvent) {
	if c.role != RoleHost {
		c.log.Debug("obstacle event dropped, not the host")
		return
	}
	c.mu.Lock()
	if len(c.outbox) >= outboxCap {
		c.outbox = c.outbox[1:]
	}
	c.outbox = append(c.outbox, evt)
	c.mu.Unlock()
}

// Close tears the channel down: flag the loops, close the socket to
// unblock them, and wait a bounded time so an unresponsive peer cannot
// hang the race's cleanup.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.conn.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeWait):
		c.log.Warn("peer channel loops did not exit in time")
	}
	return err
}

// sendLoop emits one frame per tick: local state plus at most one
// queued obstacle event when hosting, the explicit no-event marker
// otherwise.
func (c *Channel) sendLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(sendInterval)
	defer ticker.Stop()

	for range ticker.C {
		if c.closed.Load() {
			return
		}

		c.mu.Lock()
		frame := Frame{State: c.local}
		if c.role == RoleHost && len(c.outbox) > 0 {
			evt := c.outbox[0]
			c.outbox = c.outbox[1:]
			frame.Event = &evt
		}
		c.mu.Unlock()

		c.conn.SetWriteDeadline(time.Now().Add(sendInterval * 10))
		if _, err := io.WriteString(c.conn, frame.Encode()+"\n"); err != nil {
			if !c.closed.Load() {
				c.log.Debug("peer send failed", zap.Error(err))
			}
			return
		}
	}
}

// receiveLoop reassembles newline-terminated frames and applies each as
// the opponent's authoritative state, last writer wins. Malformed
// frames are skipped silently.
func (c *Channel) receiveLoop() {
	defer c.wg.Done()

	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		if c.closed.Load() {
			return
		}
		frame, ok := ParseFrame(scanner.Text())
		if !ok {
			continue
		}

		c.mu.Lock()
		c.remote = frame.State
		if frame.Event != nil {
			c.applyEvent(*frame.Event)
		}
		c.mu.Unlock()
	}
	if err := scanner.Err(); err != nil && !c.closed.Load() {
		c.log.Debug("peer receive failed", zap.Error(err))
	}
}

// applyEvent applies a host correction: replace the obstacle in place,
// or append when the index is past the known set. Called with mu held.
func (c *Channel) applyEvent(evt ObstacleEvent) {
	if evt.Index >= 0 && evt.Index < len(c.obstacles) {
		c.obstacles[evt.Index] = Obstacle{X: evt.X, Y: evt.Y, Variant: evt.Variant}
		return
	}
	c.obstacles = append(c.obstacles, Obstacle{X: evt.X, Y: evt.Y, Variant: evt.Variant})
}
