package relay

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tradedeck/relay/internal/auth"
)

// fakePeer is an in-memory Peer for driving the engine without a network.
type fakePeer struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	mu          sync.Mutex
	sent        [][]byte
	failSends   bool
	closed      bool
	closeCode   int
	closeReason string
}

func newFakePeer() *fakePeer {
	return &fakePeer{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (p *fakePeer) ReadMessage() ([]byte, error) {
	// Drain queued frames before reporting closure.
	select {
	case data := <-p.inbound:
		return data, nil
	default:
	}
	select {
	case data := <-p.inbound:
		return data, nil
	case <-p.done:
		return nil, net.ErrClosed
	}
}

func (p *fakePeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSends {
		return errors.New("peer gone")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	p.sent = append(p.sent, cp)
	return nil
}

func (p *fakePeer) Close(code int, reason string) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.closeCode = code
		p.closeReason = reason
		p.mu.Unlock()
		close(p.done)
	})
	return nil
}

func (p *fakePeer) push(t *testing.T, frame string) {
	t.Helper()
	select {
	case p.inbound <- []byte(frame):
	case <-time.After(time.Second):
		t.Fatal("push timed out")
	}
}

func (p *fakePeer) setFailSends(fail bool) {
	p.mu.Lock()
	p.failSends = fail
	p.mu.Unlock()
}

func (p *fakePeer) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *fakePeer) sentFrames() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.sent))
	copy(out, p.sent)
	return out
}

func (p *fakePeer) closedWith() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCode, p.closed
}

// newTestEngine builds an engine over static auth collaborators.
func newTestEngine() *Engine {
	verifier := auth.StaticVerifier{
		"alice-token": {UserID: "alice"},
		"bob-token":   {UserID: "bob"},
	}
	ownership := auth.StaticOwnership{
		"conn-a":  "alice",
		"conn-a2": "alice",
		"conn-b":  "bob",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(DefaultConfig(), verifier, ownership, logger)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

// decodeFrame unmarshals a sent frame for assertions.
func decodeFrame(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return m
}
