package overlay

import (
	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/jcelaya/stars-sub002/pkg/wire"
)

// LeafState is the small state set §4.8 derives from (father, newFather,
// txId): Offline (no father yet), Online (stable), StartIn (we initiated
// the insert and are waiting on the accepting router's Ack), StartOut is
// folded into StartIn here (the source distinguishes the direction of
// the very first handshake but the local state machine is identical),
// and ChangeFather (a father-initiated migration is in flight). The
// source's InitFather state has no counterpart here.
type LeafState int

const (
	LeafOffline LeafState = iota
	LeafStartIn
	LeafChangeFather
	LeafOnline
)

func (s LeafState) String() string {
	switch s {
	case LeafOffline:
		return "Offline"
	case LeafStartIn:
		return "StartIn"
	case LeafChangeFather:
		return "ChangeFather"
	case LeafOnline:
		return "Online"
	default:
		return "Unknown"
	}
}

// Leaf is C8, the resource-endpoint role every overlay node carries: it
// tracks the current father, participates in insert/father-change
// transactions, and forwards local availability upward via UpdateZone.
type Leaf struct {
	Self      types.Address
	Transport Transport
	Events    *Broker

	Father    *types.Address
	NewFather *types.Address
	Seq       uint64
	TxID      uint64

	// AvailableStrNodes is this leaf's current willingness to host an
	// offline structure sub-node (answers StrNodeNeeded); toggling it
	// publishes TopicAvailabilityChange.
	AvailableStrNodes bool

	delayed   []delayedMsg
	redeliver func(from types.Address, msg wire.Message)
}

// NewLeaf builds a leaf role bound to self, ready to receive
// InsertCommand. A freshly created leaf starts out willing to host an
// offline structure sub-node (AvailableStrNodes=true): it has no role of
// its own yet, so it is idle capacity until either it's drafted into a
// split/merge/leave offer or it inserts itself as the seed of a new
// tree (§8 scenario 1), at which point checkFanout's own bookkeeping
// takes over from there.
func NewLeaf(self types.Address, t Transport, events *Broker) *Leaf {
	return &Leaf{Self: self, Transport: t, Events: events, AvailableStrNodes: true}
}

// State derives the small state enum from (father, newFather, txId), as
// §4.8 specifies rather than storing it redundantly.
func (l *Leaf) State() LeafState {
	switch {
	case l.Father == nil && l.TxID != 0:
		return LeafStartIn
	case l.Father == nil:
		return LeafOffline
	case l.TxID != 0 && l.NewFather != nil:
		return LeafChangeFather
	default:
		return LeafOnline
	}
}

func (l *Leaf) delay(from types.Address, msg wire.Message) {
	l.delayed = append(l.delayed, delayedMsg{From: from, Msg: msg})
}

func (l *Leaf) drainDelayed() {
	pending := l.delayed
	l.delayed = nil
	for _, d := range pending {
		if l.redeliver != nil {
			l.redeliver(d.From, d.Msg)
		}
	}
}

// HandleInsertCommand implements §4.8's InsertCommand handler: if this
// leaf has no father yet, it generates a fresh transaction id and sends
// an Insert naming itself toward where, kicking off tree attachment.
func (l *Leaf) HandleInsertCommand(where types.Address) error {
	if l.Father != nil {
		return nil
	}
	txID := NewTransactionID()
	l.TxID = txID
	forRN := !where.Equal(l.Self)
	return l.Transport.Send(where, wire.Insert{TxID: txID, Who: l.Self, ForRN: forRN})
}

// HandleInsert implements the leaf-role Insert handler: an Insert
// addressed to our resource role while we already have a father simply
// continues the search by relaying to our father (we are not ourselves
// authoritative over placement); with no father we have nothing to
// relay to and drop it; with a transaction already open we delay it.
func (l *Leaf) HandleInsert(from types.Address, msg wire.Insert) {
	if l.TxID != 0 && msg.TxID != l.TxID {
		l.delay(from, msg)
		return
	}
	if l.Father == nil {
		return
	}
	_ = l.Transport.Send(*l.Father, wire.Insert{TxID: msg.TxID, Who: msg.Who, ForRN: false})
}

// HandleNewFather implements §4.8's NewFather handler: a father-driven
// migration request (sent by the structure endpoint during a split,
// merge, or leave, §4.9.4/4.9.5). Foreign senders (not our current
// father) are ignored; a concurrent transaction delays it; otherwise we
// fire fatherChanging, latch the pending father/txId, and ack.
func (l *Leaf) HandleNewFather(src, newFather types.Address, txID uint64) {
	if l.Father == nil || !src.Equal(*l.Father) {
		return
	}
	if l.TxID != 0 {
		l.delay(src, wire.NewFather{TxID: txID, FatherValid: true, Father: newFather, ForRN: true})
		return
	}
	l.Events.Publish(TopicFatherChanging, nil)
	nf := newFather
	l.NewFather = &nf
	l.TxID = txID
	_ = l.Transport.Send(src, wire.Ack{TxID: txID, FromRN: true})
}

// HandleAck implements §4.8's Ack handler for the leaf-initiated
// insertion flow: the accepting router's Ack both confirms and commits
// in one step (a single-participant 2PC round from the leaf's point of
// view), after which we notify the new father with an explicit Commit.
func (l *Leaf) HandleAck(src types.Address, txID uint64) {
	if txID != l.TxID {
		return
	}
	nf := src
	l.NewFather = &nf
	l.commitFatherChange()
	_ = l.Transport.Send(*l.Father, wire.Commit{TxID: txID, ForRN: false})
}

// HandleCommit implements the participant side of a father-initiated
// migration: once the driver (our prior father, or whichever node
// orchestrated the split/merge) broadcasts Commit, we apply the pending
// father change exactly as HandleAck does for the self-initiated case.
func (l *Leaf) HandleCommit(txID uint64) {
	if txID != l.TxID || l.NewFather == nil {
		return
	}
	l.commitFatherChange()
}

// HandleNackOrRollback implements §4.8's Nack/Rollback handler: revert
// the pending father change and resume normal operation.
func (l *Leaf) HandleNackOrRollback(txID uint64) {
	if txID != l.TxID {
		return
	}
	l.NewFather = nil
	l.TxID = 0
	l.Events.Publish(TopicFatherChanged, FatherChangedEvent{OK: false})
	l.drainDelayed()
}

// commitFatherChange applies the pending father change: §4.8's
// post-commit steps in order — replace father, reset seq, push the
// current leaf zone upward, notify observers, then drain delayed
// messages.
func (l *Leaf) commitFatherChange() {
	invariant(l.NewFather != nil, "commitFatherChange with no pending father")
	l.Father = l.NewFather
	l.NewFather = nil
	l.Seq = 1
	l.TxID = 0

	zone := types.Singleton(l.Self, availableStrNodesCount(l.AvailableStrNodes))
	_ = l.Transport.Send(*l.Father, wire.UpdateZone{TxID: 0, Zone: zone, Seq: l.Seq})

	l.Events.Publish(TopicFatherChanged, FatherChangedEvent{OK: true})
	l.drainDelayed()
}

func availableStrNodesCount(available bool) uint32 {
	if available {
		return 1
	}
	return 0
}

// SetAvailableStrNodes toggles whether this leaf currently offers to
// host an offline structure sub-node, publishing
// TopicAvailabilityChange when the value actually changes.
func (l *Leaf) SetAvailableStrNodes(available bool) {
	if l.AvailableStrNodes == available {
		return
	}
	l.AvailableStrNodes = available
	l.Events.Publish(TopicAvailabilityChange, AvailabilityChangedEvent{Available: available})
}
