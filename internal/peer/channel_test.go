package peer

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startChannelPair(t *testing.T) (host, dial *Channel) {
	t.Helper()
	hostConn, dialConn := net.Pipe()

	host = NewChannel(hostConn, RoleHost, zap.NewNop())
	dial = NewChannel(dialConn, RoleDial, zap.NewNop())
	host.Start()
	dial.Start()
	t.Cleanup(func() {
		host.Close()
		dial.Close()
	})
	return host, dial
}

func TestChannel_StatePropagatesBothWays(t *testing.T) {
	host, dial := startChannelPair(t)

	host.SetLocal(100, 200, 5)
	dial.SetLocal(300, 400, 3)

	require.Eventually(t, func() bool {
		return dial.Remote() == State{X: 100, Y: 200, Health: 5}
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return host.Remote() == State{X: 300, Y: 400, Health: 3}
	}, 2*time.Second, 10*time.Millisecond)

	// Last writer wins: a newer local state replaces the old one.
	host.SetLocal(110, 210, 4)
	require.Eventually(t, func() bool {
		return dial.Remote() == State{X: 110, Y: 210, Health: 4}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChannel_ObstacleSpawnAndCorrection(t *testing.T) {
	host, dial := startChannelPair(t)

	// Spawn: index past the known set appends.
	host.QueueEvent(ObstacleEvent{Index: 0, X: 50, Y: -60, Variant: 2})
	require.Eventually(t, func() bool {
		obs := dial.Obstacles()
		return len(obs) == 1 && obs[0] == Obstacle{X: 50, Y: -60, Variant: 2}
	}, 2*time.Second, 10*time.Millisecond)

	// Correction: same index replaces in place.
	host.QueueEvent(ObstacleEvent{Index: 0, X: 80, Y: 10, Variant: 1})
	require.Eventually(t, func() bool {
		obs := dial.Obstacles()
		return len(obs) == 1 && obs[0] == Obstacle{X: 80, Y: 10, Variant: 1}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChannel_NonHostNeverEmitsEvents(t *testing.T) {
	host, dial := startChannelPair(t)

	dial.QueueEvent(ObstacleEvent{Index: 0, X: 50, Y: 60, Variant: 2})
	dial.SetLocal(1, 2, 3)

	// Wait until frames are demonstrably flowing, then check no
	// obstacle ever arrived at the host.
	require.Eventually(t, func() bool {
		return host.Remote() == State{X: 1, Y: 2, Health: 3}
	}, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, host.Obstacles())
}

func TestChannel_MalformedFramesSkipped(t *testing.T) {
	local, remote := net.Pipe()
	ch := NewChannel(local, RoleDial, zap.NewNop())
	ch.Start()
	t.Cleanup(func() {
		ch.Close()
		remote.Close()
	})

	// Drain the channel's outgoing frames so its send loop isn't
	// blocked on the synchronous pipe.
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := remote.Read(buf); err != nil {
				return
			}
		}
	}()

	_, err := remote.Write([]byte("garbage\n120,oops,4,-1\n120,430,4,-1\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return ch.Remote() == State{X: 120, Y: 430, Health: 4}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChannel_OutboxDropsOldestOnOverflow(t *testing.T) {
	conn, other := net.Pipe()
	t.Cleanup(func() {
		conn.Close()
		other.Close()
	})
	ch := NewChannel(conn, RoleHost, zap.NewNop()) // not started: outbox fills

	for i := 0; i < outboxCap+6; i++ {
		ch.QueueEvent(ObstacleEvent{Index: i})
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	require.Len(t, ch.outbox, outboxCap)
	require.Equal(t, 6, ch.outbox[0].Index)
}

func TestChannel_CloseJoinsLoops(t *testing.T) {
	host, dial := startChannelPair(t)

	done := make(chan struct{})
	go func() {
		host.Close()
		dial.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return in time")
	}
}

func TestHostAndDialConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	type hostResult struct {
		conn net.Conn
		err  error
	}
	hostCh := make(chan hostResult, 1)
	go func() {
		conn, err := Host(context.Background(), port)
		hostCh <- hostResult{conn, err}
	}()

	dialConn, err := Dial(context.Background(), net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer dialConn.Close()

	res := <-hostCh
	require.NoError(t, res.err)
	defer res.conn.Close()

	// Frames flow across the established pair.
	host := NewChannel(res.conn, RoleHost, zap.NewNop())
	dial := NewChannel(dialConn, RoleDial, zap.NewNop())
	host.Start()
	dial.Start()
	defer host.Close()
	defer dial.Close()

	host.SetLocal(7, 8, 9)
	require.Eventually(t, func() bool {
		return dial.Remote() == State{X: 7, Y: 8, Health: 9}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHostCancelledByContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Host(ctx, port)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Host did not return after cancellation")
	}
}
