package relay

import (
	"testing"

	"chat-relay/internal/models"
)

// TestPresenceDeduplication verifies that the broadcast presence set
// contains exactly one entry per bound identity no matter how many
// connections share it.
func TestPresenceDeduplication(t *testing.T) {
	r := newTestRegistry()
	alice := Identity{UserID: "u1", Username: "alice"}
	bob := Identity{UserID: "u2", Username: "bob"}

	tab1 := &mockConn{}
	tab2 := &mockConn{}
	observer := &mockConn{}

	h1 := r.Register(tab1)
	h2 := r.Register(tab2)
	r.Register(observer)

	r.Bind(h1, alice)
	r.Bind(h2, alice) // second tab, same identity

	waitFor(t, func() bool { return observer.lastPresence() != nil })
	frame := observer.lastPresence()
	if len(frame.Online) != 1 {
		t.Fatalf("expected 1 presence entry for duplicated identity, got %d", len(frame.Online))
	}
	if frame.Online[0].UserID != "u1" || frame.Online[0].Username != "alice" {
		t.Errorf("unexpected presence entry: %+v", frame.Online[0])
	}

	h3 := r.Register(&mockConn{})
	r.Bind(h3, bob)

	waitFor(t, func() bool {
		f := observer.lastPresence()
		return f != nil && len(f.Online) == 2
	})

	// Dropping one of alice's tabs must not remove her from presence.
	r.Unregister(h1)
	waitFor(t, func() bool {
		f := observer.lastPresence()
		return f != nil && len(f.Online) == 2
	})

	// Dropping the last one must.
	r.Unregister(h2)
	waitFor(t, func() bool {
		f := observer.lastPresence()
		if f == nil || len(f.Online) != 1 {
			return false
		}
		return f.Online[0].UserID == "u2"
	})
}

// TestUnboundConnectionsExcludedFromPresence verifies unauthenticated
// connections receive broadcasts but never appear in the presence set.
func TestUnboundConnectionsExcludedFromPresence(t *testing.T) {
	r := newTestRegistry()

	unbound := &mockConn{}
	r.Register(unbound)

	h := r.Register(&mockConn{})
	r.Bind(h, Identity{UserID: "u1", Username: "alice"})

	waitFor(t, func() bool { return unbound.lastPresence() != nil })
	frame := unbound.lastPresence()
	if len(frame.Online) != 1 {
		t.Fatalf("expected only the bound identity, got %d entries", len(frame.Online))
	}
}

func TestBindIdempotent(t *testing.T) {
	r := newTestRegistry()
	c := &mockConn{}
	h := r.Register(c)

	r.Bind(h, Identity{UserID: "u1", Username: "alice"})
	waitFor(t, func() bool { return len(c.getMessages()) == 1 })

	// Re-binding the same identity must not trigger another broadcast.
	r.Bind(h, Identity{UserID: "u1", Username: "alice"})
	if n := len(c.getMessages()); n != 1 {
		t.Errorf("expected no extra broadcast on idempotent bind, got %d frames", n)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	r := newTestRegistry()
	observer := &mockConn{}
	r.Register(observer)

	c := &mockConn{}
	h := r.Register(c)
	r.Bind(h, Identity{UserID: "u1", Username: "alice"})

	r.Unregister(h)
	waitFor(t, func() bool {
		f := observer.lastPresence()
		return f != nil && len(f.Online) == 0
	})
	got := len(observer.getMessages())

	// Second unregister is a no-op, no extra broadcast.
	r.Unregister(h)
	if n := len(observer.getMessages()); n != got {
		t.Errorf("expected no broadcast on repeated unregister, got %d -> %d frames", got, n)
	}

	if !c.isClosed() {
		t.Error("unregistered connection should be closed")
	}
}

func TestSendToFanOut(t *testing.T) {
	r := newTestRegistry()
	bob := Identity{UserID: "u2", Username: "bob"}

	tab1 := &mockConn{}
	tab2 := &mockConn{}
	other := &mockConn{}

	h1 := r.Register(tab1)
	h2 := r.Register(tab2)
	h3 := r.Register(other)
	r.Bind(h1, bob)
	r.Bind(h2, bob)
	r.Bind(h3, Identity{UserID: "u3", Username: "carol"})

	t.Run("DeliversToEveryBoundConnection", func(t *testing.T) {
		n := r.SendTo("u2", models.OutboundFrame{Text: "hi", Sender: "u1", Recipient: "u2", ID: "m1"})
		if n != 2 {
			t.Fatalf("expected delivery to 2 connections, got %d", n)
		}
	})

	t.Run("OfflineRecipientIsZeroNotError", func(t *testing.T) {
		if n := r.SendTo("nobody", models.OutboundFrame{Text: "hi"}); n != 0 {
			t.Fatalf("expected 0 deliveries for offline recipient, got %d", n)
		}
	})
}

// TestBroadcastIsolation verifies a dead transport on one connection
// does not prevent delivery to the others.
func TestBroadcastIsolation(t *testing.T) {
	r := newTestRegistry()

	dead := &mockConn{}
	dead.Close() // writes will fail from now on
	healthy := &mockConn{}

	r.Register(dead)
	r.Register(healthy)

	r.Broadcast(map[string]string{"hello": "world"})

	waitFor(t, func() bool { return len(healthy.getMessages()) == 1 })
}

// TestPresenceMirrorTransitions verifies the sink hears exactly one
// SetOnline on an identity's first bind and exactly one SetOffline when
// its last connection goes away, regardless of tab count.
func TestPresenceMirrorTransitions(t *testing.T) {
	sink := &fakeSink{}
	r := NewRegistry(testLogger(), sink)
	alice := Identity{UserID: "u1", Username: "alice"}

	h1 := r.Register(&mockConn{})
	h2 := r.Register(&mockConn{})

	r.Bind(h1, alice)
	r.Bind(h2, alice) // second tab

	online, offline := sink.transitions()
	if len(online) != 1 || online[0] != "u1" {
		t.Fatalf("expected one SetOnline for u1, got %v", online)
	}
	if len(offline) != 0 {
		t.Fatalf("no SetOffline expected yet, got %v", offline)
	}

	r.Unregister(h1) // one tab left
	if _, offline = sink.transitions(); len(offline) != 0 {
		t.Fatalf("SetOffline fired while a connection remained: %v", offline)
	}

	r.Unregister(h2)
	online, offline = sink.transitions()
	if len(online) != 1 {
		t.Errorf("extra SetOnline calls: %v", online)
	}
	if len(offline) != 1 || offline[0] != "u1" {
		t.Fatalf("expected one SetOffline for u1, got %v", offline)
	}
}

// TestPresenceMirrorFailureIgnored verifies a failing mirror never
// affects the registry's own presence handling.
func TestPresenceMirrorFailureIgnored(t *testing.T) {
	sink := &fakeSink{fail: true}
	r := NewRegistry(testLogger(), sink)

	observer := &mockConn{}
	r.Register(observer)

	h := r.Register(&mockConn{})
	r.Bind(h, Identity{UserID: "u1", Username: "alice"})

	waitFor(t, func() bool {
		f := observer.lastPresence()
		return f != nil && len(f.Online) == 1
	})

	r.Unregister(h)
	waitFor(t, func() bool {
		f := observer.lastPresence()
		return f != nil && len(f.Online) == 0
	})
}

// TestRebindReleasesReplacedIdentity verifies rebinding a connection to
// a different identity takes the replaced identity offline when that
// was its last connection.
func TestRebindReleasesReplacedIdentity(t *testing.T) {
	sink := &fakeSink{}
	r := NewRegistry(testLogger(), sink)

	observer := &mockConn{}
	r.Register(observer)

	h := r.Register(&mockConn{})
	r.Bind(h, Identity{UserID: "u1", Username: "alice"})
	r.Bind(h, Identity{UserID: "u2", Username: "bob"})

	waitFor(t, func() bool {
		f := observer.lastPresence()
		return f != nil && len(f.Online) == 1 && f.Online[0].UserID == "u2"
	})

	online, offline := sink.transitions()
	if len(offline) != 1 || offline[0] != "u1" {
		t.Fatalf("expected SetOffline for replaced identity u1, got %v", offline)
	}
	if len(online) != 2 || online[1] != "u2" {
		t.Fatalf("expected SetOnline for u1 then u2, got %v", online)
	}
}

// TestClosedConnectionNeverInSnapshot verifies removal and the presence
// snapshot are atomic: once unregistered, a connection cannot appear in
// any subsequent payload.
func TestClosedConnectionNeverInSnapshot(t *testing.T) {
	r := newTestRegistry()

	observer := &mockConn{}
	r.Register(observer)

	for i := 0; i < 20; i++ {
		c := &mockConn{}
		h := r.Register(c)
		r.Bind(h, Identity{UserID: "ephemeral", Username: "ghost"})
		r.Unregister(h)
	}

	waitFor(t, func() bool {
		f := observer.lastPresence()
		return f != nil && len(f.Online) == 0
	})
}
