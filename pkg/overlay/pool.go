package overlay

import (
	"sync"

	"github.com/jcelaya/stars-sub002/pkg/types"
)

// SparePool is a small idle-node directory the split/leave/merge driver
// consults as a last resort when no live child (and no father, i.e. we
// are the root) can offer spare structural capacity. §9 leaves the
// exact discovery mechanism for "a node with an offline sub-node" as an
// open, extension-worthy area rather than a fully specified algorithm;
// this models it as an explicit out-of-band pool instead of inventing an
// unspecified bottom-up discovery protocol.
type SparePool struct {
	mu    sync.Mutex
	addrs []types.Address
}

// NewSparePool seeds a pool with the given idle addresses.
func NewSparePool(addrs ...types.Address) *SparePool {
	return &SparePool{addrs: append([]types.Address(nil), addrs...)}
}

// Take removes and returns one address from the pool, if any remain.
func (p *SparePool) Take() (types.Address, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.addrs) == 0 {
		return types.Address{}, false
	}
	addr := p.addrs[0]
	p.addrs = p.addrs[1:]
	return addr, true
}

// Return puts an address back into the pool (e.g. after a rolled-back
// transaction that never ended up using the offer).
func (p *SparePool) Return(addr types.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addrs = append(p.addrs, addr)
}

// Len reports how many spares remain.
func (p *SparePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.addrs)
}
