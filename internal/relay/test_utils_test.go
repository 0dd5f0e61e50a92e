package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"chat-relay/internal/models"
)

// mockConn implements the Conn interface for testing.
type mockConn struct {
	mu       sync.Mutex
	messages [][]byte
	pings    int
	closed   bool

	// onPing, when set, runs on every ping control frame (no lock held)
	onPing func()
}

var errClosedConn = errors.New("connection closed")

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errClosedConn
	}
	m.messages = append(m.messages, data)
	m.mu.Unlock()
	return nil
}

func (m *mockConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errClosedConn
	}
	var hook func()
	if messageType == pingMessage {
		m.pings++
		hook = m.onPing
	}
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConn) getMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.messages))
	copy(result, m.messages)
	return result
}

// lastPresence returns the most recent presence frame written to the
// connection, or nil if none arrived yet.
func (m *mockConn) lastPresence() *models.PresenceFrame {
	msgs := m.getMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		var frame models.PresenceFrame
		if err := json.Unmarshal(msgs[i], &frame); err == nil && frame.Online != nil {
			return &frame
		}
	}
	return nil
}

// waitFor polls cond until it holds or the deadline passes. The write
// pumps are asynchronous, so assertions on delivered frames need this.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry() *Registry {
	return NewRegistry(testLogger(), nil)
}

// fakeStore records persisted messages and can be forced to fail.
type fakeStore struct {
	mu       sync.Mutex
	messages []*models.Message
	failNext bool
	seq      int
}

func (s *fakeStore) Create(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("store unavailable")
	}
	s.seq++
	msg.ID = "msg-" + strconv.Itoa(s.seq)
	msg.CreatedAt = time.Now()
	stored := *msg
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *fakeStore) stored() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*models.Message, len(s.messages))
	copy(result, s.messages)
	return result
}

// fakeSink records presence mirror transitions and can be forced to
// fail while still recording.
type fakeSink struct {
	mu      sync.Mutex
	online  []string
	offline []string
	fail    bool
}

func (s *fakeSink) SetOnline(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = append(s.online, userID)
	if s.fail {
		return errors.New("mirror unavailable")
	}
	return nil
}

func (s *fakeSink) SetOffline(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = append(s.offline, userID)
	if s.fail {
		return errors.New("mirror unavailable")
	}
	return nil
}

func (s *fakeSink) transitions() (online, offline []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.online...), append([]string(nil), s.offline...)
}

// fakePublisher records published messages and can be forced to fail.
type fakePublisher struct {
	mu        sync.Mutex
	published []*models.Message
	fail      bool
}

func (p *fakePublisher) Publish(msg *models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	stored := *msg
	p.published = append(p.published, &stored)
	return nil
}

func (p *fakePublisher) events() []*models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]*models.Message, len(p.published))
	copy(result, p.published)
	return result
}

// fakeBlobStore keeps blobs in memory and can be forced to fail.
type fakeBlobStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	failNext bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (s *fakeBlobStore) Write(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("blob store unavailable")
	}
	s.blobs[name] = data
	return nil
}

func (s *fakeBlobStore) Read(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[name]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return data, nil
}
