package relay

import "testing"

func TestRegistry_RegisterConnector_ReplacesExisting(t *testing.T) {
	r := NewRegistry()
	p1 := newFakePeer()
	p2 := newFakePeer()

	s1 := r.RegisterConnector("conn-1", "alice", p1, "BrokerOne")
	s2 := r.RegisterConnector("conn-1", "alice", p2, "BrokerOne")

	if s1 == s2 {
		t.Fatal("replacement returned the same session")
	}

	code, closed := p1.closedWith()
	if !closed {
		t.Error("evicted session's channel was not closed")
	}
	if code != CloseSuperseded {
		t.Errorf("close code = %d, want %d", code, CloseSuperseded)
	}

	got, ok := r.LookupConnector("conn-1")
	if !ok {
		t.Fatal("connector not found after replacement")
	}
	if got != s2 {
		t.Error("lookup did not return the replacement session")
	}

	stats := r.Stats()
	if stats.Connectors != 1 {
		t.Errorf("Stats().Connectors = %d, want 1", stats.Connectors)
	}
}

func TestRegistry_UnregisterConnector_Idempotent(t *testing.T) {
	r := NewRegistry()
	s := r.RegisterConnector("conn-1", "alice", newFakePeer(), "")

	if !r.UnregisterConnector("conn-1", s) {
		t.Error("first unregister should report removal")
	}
	if r.UnregisterConnector("conn-1", s) {
		t.Error("second unregister should be a no-op")
	}
	if r.IsOnline("conn-1") {
		t.Error("connector still online after unregister")
	}
}

func TestRegistry_UnregisterConnector_StaleSessionIgnored(t *testing.T) {
	r := NewRegistry()
	old := r.RegisterConnector("conn-1", "alice", newFakePeer(), "")
	r.RegisterConnector("conn-1", "alice", newFakePeer(), "")

	// The evicted session's deferred cleanup must not remove the
	// replacement.
	if r.UnregisterConnector("conn-1", old) {
		t.Error("stale unregister should be a no-op")
	}
	if !r.IsOnline("conn-1") {
		t.Error("replacement session was removed by stale cleanup")
	}

	status := r.OwnerStatus("alice")
	if len(status) != 1 {
		t.Errorf("len(OwnerStatus) = %d, want 1", len(status))
	}
}

func TestRegistry_OwnerStatus_RegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.RegisterConnector("conn-3", "alice", newFakePeer(), "")
	r.RegisterConnector("conn-1", "alice", newFakePeer(), "")
	r.RegisterConnector("conn-2", "alice", newFakePeer(), "")
	r.RegisterConnector("conn-9", "bob", newFakePeer(), "")

	// Reconnect keeps position.
	r.RegisterConnector("conn-1", "alice", newFakePeer(), "")

	status := r.OwnerStatus("alice")
	want := []string{"conn-3", "conn-1", "conn-2"}
	if len(status) != len(want) {
		t.Fatalf("len(OwnerStatus) = %d, want %d", len(status), len(want))
	}
	for i, w := range want {
		if status[i].ConnectionID != w {
			t.Errorf("OwnerStatus[%d] = %q, want %q", i, status[i].ConnectionID, w)
		}
	}
}

func TestRegistry_SetTerminalLink(t *testing.T) {
	r := NewRegistry()
	s := r.RegisterConnector("conn-1", "alice", newFakePeer(), "BrokerOne")

	if got := r.OwnerStatus("alice")[0].MT5Connected; got {
		t.Error("mt5_connected should default to false")
	}

	if !r.SetTerminalLink(s, true) {
		t.Error("first transition should report a change")
	}
	if r.SetTerminalLink(s, true) {
		t.Error("repeated value should not report a change")
	}
	if got := r.OwnerStatus("alice")[0].MT5Connected; !got {
		t.Error("mt5_connected should be true after update")
	}
}

func TestRegistry_TouchConnector(t *testing.T) {
	r := NewRegistry()
	s := r.RegisterConnector("conn-1", "alice", newFakePeer(), "")

	before := r.OwnerStatus("alice")[0].LastSeen
	r.TouchConnector(s)
	after := r.OwnerStatus("alice")[0].LastSeen

	if after.Before(before) {
		t.Errorf("LastSeen went backwards: %v -> %v", before, after)
	}
}

func TestRegistry_Clients(t *testing.T) {
	r := NewRegistry()
	c1 := r.RegisterClient("alice", newFakePeer())
	c2 := r.RegisterClient("alice", newFakePeer())
	c3 := r.RegisterClient("bob", newFakePeer())

	if c1.ClientID == c2.ClientID {
		t.Error("client ids must be unique per connection")
	}

	if got := len(r.ClientsByOwner("alice")); got != 2 {
		t.Errorf("len(ClientsByOwner(alice)) = %d, want 2", got)
	}

	stats := r.Stats()
	if stats.Clients != 3 {
		t.Errorf("Stats().Clients = %d, want 3", stats.Clients)
	}
	if stats.Users != 2 {
		t.Errorf("Stats().Users = %d, want 2", stats.Users)
	}

	r.UnregisterClient(c1)
	r.UnregisterClient(c1) // safe to repeat
	if got := len(r.ClientsByOwner("alice")); got != 1 {
		t.Errorf("len(ClientsByOwner(alice)) = %d, want 1", got)
	}

	r.UnregisterClient(c2)
	r.UnregisterClient(c3)
	stats = r.Stats()
	if stats.Users != 0 {
		t.Errorf("Stats().Users = %d after all clients left, want 0", stats.Users)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	cp := newFakePeer()
	kp := newFakePeer()
	r.RegisterConnector("conn-1", "alice", cp, "")
	r.RegisterClient("alice", kp)

	r.CloseAll()

	if _, closed := cp.closedWith(); !closed {
		t.Error("connector peer not closed")
	}
	if _, closed := kp.closedWith(); !closed {
		t.Error("client peer not closed")
	}
}
