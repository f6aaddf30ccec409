package overlay

import (
	"sync"
	"time"

	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/jcelaya/stars-sub002/pkg/wire"
)

// fakeTimer is a manually-fired Timer for deterministic tests: no real
// clock is involved, and firing/stopping is driven entirely by the test.
type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) fire() {
	if !t.stopped {
		t.fn()
	}
}

// fakeTransport is an in-memory, synchronous overlay.Transport: Send
// dispatches directly into the addressed node's Handle, and AfterFunc
// returns a fakeTimer the test fires explicitly instead of sleeping.
type fakeTransport struct {
	mu     sync.Mutex
	nodes  map[types.Address]*Node
	sent   []sentMsg
	timers []*fakeTimer
}

type sentMsg struct {
	To  types.Address
	Msg wire.Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nodes: make(map[types.Address]*Node)}
}

func (t *fakeTransport) register(n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[n.Self] = n
}

func (t *fakeTransport) sendFrom(from, to types.Address, msg wire.Message) error {
	t.mu.Lock()
	t.sent = append(t.sent, sentMsg{To: to, Msg: msg})
	n := t.nodes[to]
	t.mu.Unlock()
	if n != nil {
		n.Handle(from, msg)
	}
	return nil
}

func (t *fakeTransport) AfterFunc(d time.Duration, fn func()) Timer {
	ft := &fakeTimer{fn: fn}
	t.mu.Lock()
	t.timers = append(t.timers, ft)
	t.mu.Unlock()
	return ft
}

// nodeTransport is the per-node view of a shared fakeTransport: it knows
// its own address so the shared transport can stamp the From field of
// every Handle call, the way a real network layer would.
type nodeTransport struct {
	self   types.Address
	shared *fakeTransport
}

func (nt nodeTransport) Send(to types.Address, msg wire.Message) error {
	return nt.shared.sendFrom(nt.self, to, msg)
}

func (nt nodeTransport) AfterFunc(d time.Duration, fn func()) Timer {
	return nt.shared.AfterFunc(d, fn)
}

func addr(ip uint32) types.Address {
	return types.NewAddress(ip, 0)
}

// newTestNode builds a Node wired to shared via a self-stamping
// nodeTransport, registers it for delivery, and returns it.
func newTestNode(shared *fakeTransport, self types.Address, fanout uint32) *Node {
	n := NewNode(self, nodeTransport{self: self, shared: shared}, fanout)
	shared.register(n)
	return n
}
