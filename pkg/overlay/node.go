// Package overlay implements OSP (§4.6-4.9): the two-valued transaction
// cell (C6 support), the 2PC transaction coordinator (C7), the resource
// endpoint/leaf role (C8) and the structure endpoint/interior role (C9)
// that together maintain the routing tree. A Node carries both roles
// simultaneously, as §3 describes ("a node carries both a leaf role and
// an interior role; both may be simultaneously active").
package overlay

import (
	"log/slog"

	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/jcelaya/stars-sub002/pkg/wire"
)

// delayedMsg is one message held in a `delayed` queue (§4.7/§7's NotReady
// policy: append to delayed, replay on commit/rollback).
type delayedMsg struct {
	From types.Address
	Msg  wire.Message
}

// Node wires a Leaf and an Interior together behind one dispatch table,
// and hands each one a `redeliver` closure (itself) so that draining a
// delayed queue replays a message through the same routing a fresh
// arrival would get.
type Node struct {
	Self      types.Address
	Leaf      *Leaf
	Interior  *Interior
	Transport Transport
	Events    *Broker
}

// NewNode builds a dual-role node at self with interior fanout target m.
// The interior's offerSelf hook is wired to the paired leaf's
// AvailableStrNodes flag, and both roles' delayed queues replay through
// Node.Handle.
func NewNode(self types.Address, t Transport, fanout uint32) *Node {
	events := NewBroker()
	n := &Node{
		Self:      self,
		Leaf:      NewLeaf(self, t, events),
		Interior:  NewInterior(self, t, fanout),
		Transport: t,
		Events:    events,
	}
	n.Leaf.redeliver = n.Handle
	n.Interior.redeliver = n.Handle
	n.Interior.offerSelf = func() bool {
		if !n.Leaf.AvailableStrNodes {
			return false
		}
		// Only a node whose own interior role is not yet in use can be
		// volunteered as a fresh structure sub-node: an already-active
		// root (or any other live interior) offering itself would be
		// nonsensical, since it can't simultaneously be the new child
		// being migrated in and the node driving the split.
		if n.Interior.State != StateOffline {
			return false
		}
		n.Leaf.SetAvailableStrNodes(false)
		return true
	}
	return n
}

// SetLogger attaches a structured logger to the interior role (the leaf
// role's activity is narrated entirely through the observer broker).
func (n *Node) SetLogger(l *slog.Logger) { n.Interior.Logger = l }

// SetSpares attaches the out-of-band idle-node directory consulted as a
// last resort by the interior role's StrNodeNeeded handler.
func (n *Node) SetSpares(p *SparePool) { n.Interior.Spares = p }

// InsertCommand is the local trigger that kicks off this node's
// attachment to the tree (§6's InsertCommand).
func (n *Node) InsertCommand(where types.Address) error {
	return n.Leaf.HandleInsertCommand(where)
}

// LeaveCmd is the local trigger that starts this node's leave
// transaction (§6's LeaveCmd).
func (n *Node) LeaveCmd() {
	n.Interior.HandleLeaveCmd()
}

// Handle dispatches an inbound message to the correct role's handler,
// the closed-sum-type redesign §9 calls for in place of the source's
// typeid ladder.
func (n *Node) Handle(from types.Address, msg wire.Message) {
	switch m := msg.(type) {
	case wire.InsertCommand:
		_ = n.Leaf.HandleInsertCommand(m.Where)
	case wire.Insert:
		if m.ForRN {
			n.Leaf.HandleInsert(from, m)
		} else {
			n.Interior.HandleInsert(from, m)
		}
	case wire.InitStructNode:
		n.Interior.HandleInitStructNode(from, m)
	case wire.NewChild:
		n.Interior.HandleNewChild(from, m)
	case wire.NewFather:
		if m.ForRN {
			n.Leaf.HandleNewFather(from, m.Father, m.TxID)
		} else {
			n.Interior.HandleNewFatherSn(from, m)
		}
	case wire.NewStrNode:
		n.Interior.HandleNewStrNode(m)
	case wire.StrNodeNeeded:
		n.Interior.HandleStrNodeNeeded(from, m)
	case wire.UpdateZone:
		n.Interior.HandleUpdateZone(from, m)
	case wire.Ack:
		if m.ForRN {
			n.Leaf.HandleAck(from, m.TxID)
		} else {
			n.Interior.HandleAck(from, m)
		}
	case wire.Nack:
		if m.ForRN {
			n.Leaf.HandleNackOrRollback(m.TxID)
		} else {
			n.Interior.HandleNackOrRollback(m.TxID)
		}
	case wire.Commit:
		if m.ForRN {
			n.Leaf.HandleCommit(m.TxID)
		} else {
			n.Interior.HandleCommitSn(m)
		}
	case wire.Rollback:
		if m.ForRN {
			n.Leaf.HandleNackOrRollback(m.TxID)
		} else {
			n.Interior.HandleRollbackSn(m)
		}
	case wire.LeaveCmd:
		n.Interior.HandleLeaveCmd()
	case wire.Leave:
		n.Interior.HandleLeave(from, m)
	}
}
