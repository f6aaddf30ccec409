package libp2p

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-multihash"

	"github.com/jcelaya/stars-sub002/pkg/types"
)

// DHTResolver is the production AddressResolver: each node announces
// itself as the provider of a content id derived from its overlay
// address, and lookups walk the Kademlia DHT for that provider. Peers
// learned either way are cached, which also backs the Reverse lookup
// the inbound-stream handler needs (a peer that no Announce or Resolve
// on this node has cached, bootstrap peers included, cannot be
// reverse-mapped, and its streams are dropped until a forward
// resolution caches it).
type DHTResolver struct {
	host    host.Host
	dht     *dht.IpfsDHT
	queryTO time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	forward map[types.Address]peer.ID
	reverse map[peer.ID]types.Address
}

// NewDHTResolver creates the DHT, connects to the configured bootstrap
// multiaddrs, and starts the routing-table refresh.
func NewDHTResolver(ctx context.Context, h host.Host, bootstrap []string, queryTimeout time.Duration, logger *slog.Logger) (*DHTResolver, error) {
	kadDHT, err := dht.New(ctx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		return nil, fmt.Errorf("libp2p: creating DHT: %w", err)
	}

	r := &DHTResolver{
		host:    h,
		dht:     kadDHT,
		queryTO: queryTimeout,
		logger:  logger,
		forward: make(map[types.Address]peer.ID),
		reverse: make(map[peer.ID]types.Address),
	}

	for _, s := range bootstrap {
		ma, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			r.logf(slog.LevelWarn, "skipping malformed bootstrap peer", "addr", s, "error", err)
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			r.logf(slog.LevelWarn, "skipping bootstrap peer without peer id", "addr", s, "error", err)
			continue
		}
		go func(p peer.AddrInfo) {
			cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := h.Connect(cctx, p); err != nil {
				r.logf(slog.LevelWarn, "bootstrap connect failed", "peer", p.ID.String(), "error", err)
			}
		}(*info)
	}

	if err := kadDHT.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("libp2p: bootstrapping DHT: %w", err)
	}
	return r, nil
}

// addrCid derives the content id a node provides under: a raw-codec cid
// of the hashed overlay address.
func addrCid(a types.Address) (cid.Cid, error) {
	mh, err := multihash.Sum([]byte("stars/addr/"+a.String()), multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Announce publishes this host as the provider for a, so other nodes'
// Resolve calls can find it.
func (r *DHTResolver) Announce(ctx context.Context, a types.Address) error {
	c, err := addrCid(a)
	if err != nil {
		return fmt.Errorf("libp2p: deriving cid for %s: %w", a, err)
	}
	r.mu.Lock()
	r.forward[a] = r.host.ID()
	r.reverse[r.host.ID()] = a
	r.mu.Unlock()
	if err := r.dht.Provide(ctx, c, true); err != nil {
		return fmt.Errorf("libp2p: announcing %s: %w", a, err)
	}
	return nil
}

// Resolve implements AddressResolver over the DHT, consulting the local
// cache first.
func (r *DHTResolver) Resolve(a types.Address) (peer.ID, multiaddr.Multiaddr, error) {
	r.mu.RLock()
	id, ok := r.forward[a]
	r.mu.RUnlock()
	if ok {
		return id, nil, nil
	}

	c, err := addrCid(a)
	if err != nil {
		return "", nil, fmt.Errorf("libp2p: deriving cid for %s: %w", a, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.queryTO)
	defer cancel()
	for info := range r.dht.FindProvidersAsync(ctx, c, 1) {
		if info.ID == "" {
			continue
		}
		r.mu.Lock()
		r.forward[a] = info.ID
		r.reverse[info.ID] = a
		r.mu.Unlock()
		var ma multiaddr.Multiaddr
		if len(info.Addrs) > 0 {
			ma = info.Addrs[0]
		}
		return info.ID, ma, nil
	}
	return "", nil, fmt.Errorf("libp2p: no provider found for %s", a)
}

// Reverse maps a peer back to the overlay address cached by a prior
// Announce or Resolve.
func (r *DHTResolver) Reverse(id peer.ID) (types.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.reverse[id]
	return a, ok
}

// Close shuts the DHT down.
func (r *DHTResolver) Close() error {
	return r.dht.Close()
}

func (r *DHTResolver) logf(level slog.Level, msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Log(context.Background(), level, msg, args...)
}

var _ AddressResolver = (*DHTResolver)(nil)
