package overlay

import "github.com/jcelaya/stars-sub002/pkg/types"

// NodeSnapshot is one node's checkpointed state (§6: "an optional
// checkpoint of the tree state may be serialized by iterating nodes in
// BFS order and emitting each endpoint's {state, father, children, txId,
// delayedQueue}"). No persistence backend is specified or required;
// this is a pure in-memory serialization exercised by tests only — no
// background persistence job is started by cmd/starsd.
type NodeSnapshot struct {
	Addr          types.Address
	InteriorState InteriorState
	Level         uint32
	Father        *types.Address
	Children      []types.Address
	TxID          uint64
	DelayedCount  int
}

// Checkpoint walks the overlay tree from root in BFS order (following
// Interior.Children links) and snapshots every reachable node via
// lookup.
func Checkpoint(root types.Address, lookup func(types.Address) *Node) []NodeSnapshot {
	var out []NodeSnapshot
	seen := map[types.Address]bool{}
	queue := []types.Address{root}
	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		if seen[addr] {
			continue
		}
		seen[addr] = true
		n := lookup(addr)
		if n == nil {
			continue
		}
		snap := NodeSnapshot{
			Addr:          addr,
			InteriorState: n.Interior.State,
			Level:         n.Interior.Level,
			Father:        n.Interior.Father,
			TxID:          n.Interior.TxID,
			DelayedCount:  len(n.Interior.delayed),
		}
		for _, c := range n.Interior.liveChildren() {
			if c.Added {
				// Admitted by the open transaction: not part of the
				// pre-transaction tree a restore reproduces.
				continue
			}
			snap.Children = append(snap.Children, c.Link)
			queue = append(queue, c.Link)
		}
		out = append(out, snap)
	}
	return out
}

// Restore applies a BFS checkpoint back onto a set of freshly built
// nodes: each snapshot's interior state, level, father and (unpopulated)
// child list are reinstated, ready for the children's next UpdateZone
// round to repopulate the zones. Transactions do not survive a restore;
// a snapshot taken mid-transaction comes back with its pre-transaction
// children and txId zero, which is exactly the state a rollback would
// have produced.
func Restore(snapshots []NodeSnapshot, lookup func(types.Address) *Node) {
	for _, snap := range snapshots {
		n := lookup(snap.Addr)
		if n == nil {
			continue
		}
		in := n.Interior
		in.State = snap.InteriorState
		if in.State != StateOffline && in.State != StateOnline {
			in.State = StateOnline
		}
		in.Level = snap.Level
		if snap.InteriorState == StateInit {
			// Same outcome as HandleRollbackSn for a node still in Init.
			in.State = StateOffline
			in.Father = nil
			in.Children = nil
			in.TxID = 0
			continue
		}
		if snap.Father != nil {
			f := *snap.Father
			in.Father = &f
		} else {
			in.Father = nil
		}
		in.TxID = 0
		in.Children = make([]*Zone, 0, len(snap.Children))
		for _, c := range snap.Children {
			in.Children = append(in.Children, &Zone{Link: c})
		}
		in.sortChildren()
	}
}
