package relay

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	textMessage = websocket.TextMessage
	pingMessage = websocket.PingMessage

	// Time allowed to flush a ping control frame to the peer
	pingWriteWait = 10 * time.Second
)

// HeartbeatConfig holds the liveness probe timings.
type HeartbeatConfig struct {
	// Interval between pings
	Interval time.Duration

	// How long to wait for a pong before declaring the connection dead
	Timeout time.Duration
}

func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 5 * time.Second,
		Timeout:  1 * time.Second,
	}
}

// Heartbeat states. A connection cycles ALIVE -> AWAITING_PONG -> ALIVE
// until it either stops (normal close) or misses a pong, which is the
// terminal DEAD state.
const (
	stateAlive int32 = iota
	stateAwaitingPong
	stateDead
)

// Monitor drives the ping/pong liveness cycle for one connection.
// Transport-level close events are not always delivered promptly, so the
// monitor bounds presence staleness to one interval plus one timeout.
type Monitor struct {
	conn     Conn
	cfg      HeartbeatConfig
	state    int32
	pong     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	onDead   func()
	logger   *slog.Logger
}

// NewMonitor creates a monitor for conn. onDead runs exactly once, after
// the transport has been force-closed, when the pong timeout fires.
func NewMonitor(conn Conn, cfg HeartbeatConfig, onDead func(), logger *slog.Logger) *Monitor {
	return &Monitor{
		conn:   conn,
		cfg:    cfg,
		pong:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		onDead: onDead,
		logger: logger,
	}
}

// Run executes the heartbeat state machine until Stop is called or the
// connection is declared dead. Meant to run on its own goroutine.
func (m *Monitor) Run() {
	interval := time.NewTicker(m.cfg.Interval)
	defer interval.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-interval.C:
		}

		// Discard any pong that arrived outside a probe window.
		select {
		case <-m.pong:
		default:
		}

		atomic.StoreInt32(&m.state, stateAwaitingPong)
		if err := m.conn.WriteControl(pingMessage, nil, time.Now().Add(pingWriteWait)); err != nil {
			m.die()
			return
		}

		timeout := time.NewTimer(m.cfg.Timeout)
		select {
		case <-m.pong:
			timeout.Stop()
			atomic.StoreInt32(&m.state, stateAlive)
		case <-timeout.C:
			m.die()
			return
		case <-m.stop:
			timeout.Stop()
			return
		}
	}
}

// Pong records a liveness response from the peer. Pongs observed after
// the connection is already dead are ignored; there is no resurrection.
func (m *Monitor) Pong() {
	if atomic.LoadInt32(&m.state) == stateDead {
		return
	}
	select {
	case m.pong <- struct{}{}:
	default:
	}
}

// Stop cancels the heartbeat cycle without marking the connection dead.
// Called on normal connection teardown.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Dead reports whether the monitor has reaped the connection.
func (m *Monitor) Dead() bool {
	return atomic.LoadInt32(&m.state) == stateDead
}

func (m *Monitor) die() {
	atomic.StoreInt32(&m.state, stateDead)
	m.conn.Close()
	m.logger.Info("connection missed pong, reaping")
	if m.onDead != nil {
		m.onDead()
	}
}
