package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chat-relay/internal/models"

	"github.com/google/uuid"
)

const sendQueueSize = 64

// Conn is the outbound half of a live transport channel. *websocket.Conn
// satisfies it; tests substitute a mock.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Handle identifies one registered connection.
type Handle string

// Identity is the (userId, displayName) pair bound to a connection
// after successful credential verification.
type Identity struct {
	UserID   string
	Username string
}

// PresenceSink mirrors online/offline transitions to an external system.
// The registry remains the single source of truth; sink failures are logged
// and otherwise ignored.
type PresenceSink interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// connection is the registry's record of one live channel. It is owned
// exclusively by the registry and never handed out.
type connection struct {
	handle   Handle
	conn     Conn
	identity *Identity
	send     chan []byte
	done     chan struct{}
}

// Registry tracks every live connection and its identity binding.
// All mutation runs under one mutex so presence snapshots are always
// consistent; actual writes to peers happen on per-connection queues
// so one slow peer never stalls the others.
type Registry struct {
	mu     sync.Mutex
	conns  map[Handle]*connection
	sink   PresenceSink
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger, sink PresenceSink) *Registry {
	return &Registry{
		conns:  make(map[Handle]*connection),
		sink:   sink,
		logger: logger,
	}
}

// Register adds an unbound connection and starts its write pump.
// No presence broadcast happens here; the identity is not known yet.
func (r *Registry) Register(conn Conn) Handle {
	c := &connection{
		handle: Handle(uuid.NewString()),
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.conns[c.handle] = c
	r.mu.Unlock()

	go r.writePump(c)

	r.logger.Debug("connection registered", "handle", c.handle)
	return c.handle
}

// Bind attaches an identity to a connection and broadcasts the updated
// presence set. Binding the same identity twice is a no-op.
func (r *Registry) Bind(h Handle, id Identity) {
	r.mu.Lock()
	c, ok := r.conns[h]
	if !ok {
		r.mu.Unlock()
		return
	}
	if c.identity != nil && c.identity.UserID == id.UserID {
		c.identity = &id // refresh display name
		r.mu.Unlock()
		return
	}
	var replaced string
	if c.identity != nil {
		replaced = c.identity.UserID
	}
	c.identity = &id
	wentOffline := replaced != "" && r.bindCountLocked(replaced) == 0
	wasOffline := r.bindCountLocked(id.UserID) == 1
	r.broadcastPresenceLocked()
	r.mu.Unlock()

	r.logger.Info("identity bound", "handle", h, "userID", id.UserID, "username", id.Username)

	if wentOffline {
		r.notifySink(replaced, false)
	}
	if wasOffline {
		r.notifySink(id.UserID, true)
	}
}

// Unregister removes a connection regardless of bind state and broadcasts
// the updated presence set. Safe to call more than once.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	c, ok := r.conns[h]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, h)
	close(c.done)

	var offlineUser string
	if c.identity != nil && r.bindCountLocked(c.identity.UserID) == 0 {
		offlineUser = c.identity.UserID
	}
	r.broadcastPresenceLocked()
	r.mu.Unlock()

	c.conn.Close()
	r.logger.Debug("connection unregistered", "handle", h)

	if offlineUser != "" {
		r.notifySink(offlineUser, false)
	}
}

// Broadcast sends a JSON-serializable payload to every registered
// connection, bound or not. A full queue on one connection drops the
// frame for that connection only.
func (r *Registry) Broadcast(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("broadcast marshal failed", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		r.enqueueLocked(c, data)
	}
}

// SendTo sends a payload to every connection currently bound to userID
// and reports how many connections it was queued for. Zero means the
// recipient is offline, which is not an error.
func (r *Registry) SendTo(userID string, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("send marshal failed", "userID", userID, "error", err)
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.conns {
		if c.identity != nil && c.identity.UserID == userID {
			if r.enqueueLocked(c, data) {
				n++
			}
		}
	}
	return n
}

// Reply sends a payload to one specific connection, used to surface
// delivery failures to the sender itself.
func (r *Registry) Reply(h Handle, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("reply marshal failed", "handle", h, "error", err)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[h]
	if !ok {
		return false
	}
	return r.enqueueLocked(c, data)
}

// IdentityOf reports the identity bound to a connection, if any.
func (r *Registry) IdentityOf(h Handle) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[h]
	if !ok || c.identity == nil {
		return Identity{}, false
	}
	return *c.identity, true
}

// Online returns the deduplicated presence set.
func (r *Registry) Online() []models.PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presenceLocked()
}

// Stop closes every registered connection. Used during shutdown.
func (r *Registry) Stop() {
	r.mu.Lock()
	conns := make([]*connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[Handle]*connection)
	for _, c := range conns {
		close(c.done)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

// presenceLocked computes the deduplicated (userId, username) set.
// Callers must hold r.mu.
func (r *Registry) presenceLocked() []models.PresenceEntry {
	seen := make(map[string]bool, len(r.conns))
	online := make([]models.PresenceEntry, 0, len(r.conns))
	for _, c := range r.conns {
		if c.identity == nil || seen[c.identity.UserID] {
			continue
		}
		seen[c.identity.UserID] = true
		online = append(online, models.PresenceEntry{
			UserID:   c.identity.UserID,
			Username: c.identity.Username,
		})
	}
	sort.Slice(online, func(i, j int) bool { return online[i].UserID < online[j].UserID })
	return online
}

// broadcastPresenceLocked snapshots the presence set and queues it for
// every connection. Running under r.mu guarantees the snapshot and the
// recipient set match the same instant.
func (r *Registry) broadcastPresenceLocked() {
	frame := models.PresenceFrame{Online: r.presenceLocked()}
	data, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error("presence marshal failed", "error", err)
		return
	}
	for _, c := range r.conns {
		r.enqueueLocked(c, data)
	}
}

// bindCountLocked counts connections bound to userID. Callers must hold r.mu.
func (r *Registry) bindCountLocked(userID string) int {
	n := 0
	for _, c := range r.conns {
		if c.identity != nil && c.identity.UserID == userID {
			n++
		}
	}
	return n
}

// notifySink reports an online/offline transition to the presence
// mirror. Mirror failures never affect the registry.
func (r *Registry) notifySink(userID string, online bool) {
	if r.sink == nil {
		return
	}
	ctx := context.Background()
	var err error
	if online {
		err = r.sink.SetOnline(ctx, userID)
	} else {
		err = r.sink.SetOffline(ctx, userID)
	}
	if err != nil {
		r.logger.Warn("presence mirror update failed", "userID", userID, "online", online, "error", err)
	}
}

// enqueueLocked queues data on a connection without blocking. A full
// queue means the peer is too slow; the frame is dropped for that peer.
func (r *Registry) enqueueLocked(c *connection, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		r.logger.Warn("send queue full, dropping frame", "handle", c.handle)
		return false
	}
}

// writePump drains one connection's queue onto the transport. It is the
// only goroutine writing data frames to this connection.
func (r *Registry) writePump(c *connection) {
	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(textMessage, data); err != nil {
				r.logger.Debug("write failed", "handle", c.handle, "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}
