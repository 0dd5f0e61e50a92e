package relay

import (
	"sync/atomic"
	"testing"
	"time"
)

func testHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 20 * time.Millisecond,
		Timeout:  10 * time.Millisecond,
	}
}

// TestPongKeepsConnectionAlive verifies the ALIVE -> AWAITING_PONG -> ALIVE
// cycle: a peer that answers every ping is never reaped.
func TestPongKeepsConnectionAlive(t *testing.T) {
	conn := &mockConn{}
	var deaths int32

	m := NewMonitor(conn, testHeartbeatConfig(), func() {
		atomic.AddInt32(&deaths, 1)
	}, testLogger())
	conn.onPing = m.Pong // peer answers immediately

	go m.Run()
	defer m.Stop()

	time.Sleep(150 * time.Millisecond) // several full cycles

	if atomic.LoadInt32(&deaths) != 0 {
		t.Fatal("responsive connection was reaped")
	}
	if m.Dead() {
		t.Fatal("responsive connection marked dead")
	}
	if conn.isClosed() {
		t.Fatal("responsive connection was closed")
	}
}

// TestSilentConnectionIsReaped verifies a peer that stops answering is
// force-closed and reported dead within one interval plus one timeout.
func TestSilentConnectionIsReaped(t *testing.T) {
	conn := &mockConn{}
	cfg := testHeartbeatConfig()
	dead := make(chan struct{})

	m := NewMonitor(conn, cfg, func() { close(dead) }, testLogger())

	start := time.Now()
	go m.Run()

	select {
	case <-dead:
	case <-time.After(2 * time.Second):
		t.Fatal("silent connection was never reaped")
	}

	if elapsed := time.Since(start); elapsed > cfg.Interval+cfg.Timeout+100*time.Millisecond {
		t.Errorf("reaping took %v, want at most interval+timeout plus slack", elapsed)
	}
	if !m.Dead() {
		t.Error("monitor should report dead")
	}
	if !conn.isClosed() {
		t.Error("transport should be force-closed on death")
	}
}

// TestLatePongDoesNotResurrect verifies a pong observed after the
// connection is dead is ignored.
func TestLatePongDoesNotResurrect(t *testing.T) {
	conn := &mockConn{}
	var deaths int32
	dead := make(chan struct{})

	m := NewMonitor(conn, testHeartbeatConfig(), func() {
		atomic.AddInt32(&deaths, 1)
		close(dead)
	}, testLogger())

	go m.Run()
	<-dead

	m.Pong()
	m.Pong()
	time.Sleep(60 * time.Millisecond)

	if !m.Dead() {
		t.Error("late pong must not resurrect a dead connection")
	}
	if n := atomic.LoadInt32(&deaths); n != 1 {
		t.Errorf("onDead ran %d times, want exactly once", n)
	}
}

// TestStopCancelsWithoutDeath verifies a normal teardown never counts
// as a heartbeat death.
func TestStopCancelsWithoutDeath(t *testing.T) {
	conn := &mockConn{}
	var deaths int32

	m := NewMonitor(conn, testHeartbeatConfig(), func() {
		atomic.AddInt32(&deaths, 1)
	}, testLogger())
	conn.onPing = m.Pong

	go m.Run()
	time.Sleep(50 * time.Millisecond)
	m.Stop()
	m.Stop() // repeated stop is safe
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&deaths) != 0 {
		t.Error("stopped monitor must not report death")
	}
	if m.Dead() {
		t.Error("stopped monitor must not be dead")
	}
}
