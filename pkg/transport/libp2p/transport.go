// Package libp2p adapts a libp2p host into an overlay.Transport: every
// Send opens its own stream to the destination, writes one message
// framed with the wire package's msgp codec and closes the stream;
// streams are not pooled or kept open between sends. Grounded on the teacher's pkg/p2p/host (RegisterProtocol
// / GetPooledStream) for the stream lifecycle and pkg/p2p/node.go for
// the dial-timeout/context plumbing around NewStream.
package libp2p

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"

	"github.com/jcelaya/stars-sub002/pkg/overlay"
	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/jcelaya/stars-sub002/pkg/wire"
)

// ProtocolID is the single libp2p stream protocol every stars node
// speaks; message framing and dispatch happen above it, in Encode/Decode
// and Node.Handle.
const ProtocolID = protocol.ID("/stars/osp/1.0.0")

// AddressResolver maps an overlay types.Address to the libp2p peer and
// multiaddr that own it. DHTResolver is the production implementation;
// a static map is enough for tests and small fixed deployments.
type AddressResolver interface {
	Resolve(a types.Address) (peer.ID, multiaddr.Multiaddr, error)
}

// StaticResolver is an AddressResolver backed by a fixed table, used in
// tests and single-process simulations.
type StaticResolver struct {
	mu    sync.RWMutex
	peers map[types.Address]peerInfo
}

type peerInfo struct {
	id   peer.ID
	addr multiaddr.Multiaddr
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{peers: make(map[types.Address]peerInfo)}
}

func (r *StaticResolver) Add(a types.Address, id peer.ID, addr multiaddr.Multiaddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[a] = peerInfo{id: id, addr: addr}
}

func (r *StaticResolver) Resolve(a types.Address) (peer.ID, multiaddr.Multiaddr, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[a]
	if !ok {
		return "", nil, fmt.Errorf("libp2p: no peer registered for %s", a)
	}
	return p.id, p.addr, nil
}

// Reverse maps a libp2p peer.ID back to the overlay Address it was
// Add-ed under, the lookup New's resolveAddr callback needs to turn an
// inbound stream's remote peer into a types.Address.
func (r *StaticResolver) Reverse(id peer.ID) (types.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for addr, p := range r.peers {
		if p.id == id {
			return addr, true
		}
	}
	return types.Address{}, false
}

// Transport implements overlay.Transport over a libp2p host.
type Transport struct {
	host     host.Host
	resolver AddressResolver
	dialTO   time.Duration
	logger   *slog.Logger

	onMessage   func(from types.Address, msg wire.Message)
	resolveAddr func(peer.ID) (types.Address, bool)
}

// New wraps h as an overlay.Transport, registering ProtocolID's stream
// handler. onMessage is invoked for every inbound frame, once reverse
// lookup (resolveAddr) maps the remote peer.ID back to a types.Address —
// this is the same redelivery the in-memory test transport performs
// directly, here crossing a real network boundary.
func New(h host.Host, resolver AddressResolver, resolveAddr func(peer.ID) (types.Address, bool), dialTimeout time.Duration, logger *slog.Logger) *Transport {
	t := &Transport{
		host:        h,
		resolver:    resolver,
		dialTO:      dialTimeout,
		logger:      logger,
		resolveAddr: resolveAddr,
	}
	h.SetStreamHandler(ProtocolID, t.handleStream)
	return t
}

// OnMessage registers the dispatch callback (typically overlay.Node.Handle).
func (t *Transport) OnMessage(fn func(from types.Address, msg wire.Message)) {
	t.onMessage = fn
}

func (t *Transport) handleStream(s network.Stream) {
	defer s.Close()
	remote, ok := t.resolveAddr(s.Conn().RemotePeer())
	if !ok {
		t.logf(slog.LevelWarn, "dropping stream from unresolvable peer", "peer", s.Conn().RemotePeer().String())
		return
	}
	r := bufio.NewReader(s)
	for {
		msg, err := wire.Decode(r)
		if err != nil {
			return
		}
		if t.onMessage != nil {
			t.onMessage(remote, msg)
		}
	}
}

// Send implements overlay.Transport: it opens a new stream to the peer
// owning `to` (over an existing connection to that peer where the host
// has one), writes one framed message and closes the stream.
func (t *Transport) Send(to types.Address, msg wire.Message) error {
	id, addr, err := t.resolver.Resolve(to)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.dialTO)
	defer cancel()

	if addr != nil {
		t.host.Peerstore().AddAddr(id, addr, t.dialTO*10)
	}
	s, err := t.host.NewStream(ctx, id, ProtocolID)
	if err != nil {
		return fmt.Errorf("libp2p: opening stream to %s: %w", to, err)
	}
	defer s.Close()
	return wire.Encode(s, msg)
}

// timer wraps time.AfterFunc to satisfy overlay.Timer.
type timer struct{ t *time.Timer }

func (tm *timer) Stop() bool { return tm.t.Stop() }

// AfterFunc implements overlay.Transport's timer hook over the real clock.
func (t *Transport) AfterFunc(d time.Duration, fn func()) overlay.Timer {
	return &timer{t: time.AfterFunc(d, fn)}
}

func (t *Transport) logf(level slog.Level, msg string, args ...any) {
	if t.logger == nil {
		return
	}
	t.logger.Log(context.Background(), level, msg, args...)
}

var _ overlay.Transport = (*Transport)(nil)
