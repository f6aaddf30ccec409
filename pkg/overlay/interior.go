package overlay

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jcelaya/stars-sub002/pkg/logging"
	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/jcelaya/stars-sub002/pkg/wire"
)

// InteriorState is the state set §3's "Overlay node state" assigns the
// structure-endpoint role.
type InteriorState int

const (
	StateOffline InteriorState = iota
	StateStartIn
	StateInit
	StateOnline
	StateAddChild
	StateChangeFather
	StateWaitStr
	StateSplitting
	StateWaitOffers
	StateMerging
	StateLeavingWsn
	StateLeaving
)

func (s InteriorState) String() string {
	names := [...]string{"Offline", "StartIn", "Init", "Online", "AddChild",
		"ChangeFather", "WaitStr", "Splitting", "WaitOffers", "Merging",
		"LeavingWsn", "Leaving"}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// DefaultStrNodeTimeout is the mandatory §5 timeout: the split/leave
// driver waits this long for a StrNodeNeeded offer before rolling back.
const DefaultStrNodeTimeout = 60 * time.Second

// Interior is C9, the structure-endpoint role: it owns a set of child
// zones, runs the insert-routing and update-aggregation rules, and
// drives split/merge/leave as 2PC transactions.
type Interior struct {
	Self      types.Address
	Transport Transport

	State  InteriorState
	Level  uint32
	Fanout uint32 // m; split threshold is 2m, merge threshold is m

	// StrNodeTimeout bounds the wait for a StrNodeNeeded offer before
	// the driver rolls its transaction back.
	StrNodeTimeout time.Duration

	Father    *types.Address
	NewFather *types.Address
	Seq       uint64

	// fatherChangePending is set while a NewFather from an ancestor's
	// transaction is latched but not yet committed; it disambiguates
	// "NewFather == nil because nothing is changing" from "NewFather ==
	// nil because we are becoming the new root".
	fatherChangePending bool

	Children []*Zone
	AggZone  types.Zone

	lastSent      types.Zone
	lastSentValid bool

	TxID        uint64
	coordinator Coordinator

	delayed   []delayedMsg
	redeliver func(from types.Address, msg wire.Message)

	// offerSelf reports (and, if accepted, toggles off) this physical
	// node's willingness to be offered as a fresh structure sub-node —
	// wired by Node to the paired Leaf.AvailableStrNodes. nil means this
	// node never offers itself (e.g. a pure simulation stub).
	offerSelf func() bool

	// Spares is the root's last-resort source of offline sub-nodes when
	// no live child advertises spare capacity: a small idle-node
	// directory (§9 leaves the exact discovery mechanism as an open,
	// extension-worthy area; this models it as an explicit out-of-band
	// pool rather than inventing a bottom-up discovery backbone the
	// spec doesn't specify). nil means this node never consults one.
	Spares *SparePool

	Logger *slog.Logger
}

// NewInterior builds an offline interior role bound to self with the
// given fanout target m.
func NewInterior(self types.Address, t Transport, fanout uint32) *Interior {
	return &Interior{Self: self, Transport: t, Fanout: fanout, State: StateOffline,
		StrNodeTimeout: DefaultStrNodeTimeout}
}

func (in *Interior) logf(level slog.Level, msg string, args ...any) {
	if in.Logger == nil {
		return
	}
	in.Logger.Log(context.Background(), level, msg, args...)
}

func (in *Interior) delay(from types.Address, msg wire.Message) {
	in.delayed = append(in.delayed, delayedMsg{From: from, Msg: msg})
}

func (in *Interior) drainDelayed() {
	pending := in.delayed
	in.delayed = nil
	for _, d := range pending {
		if in.redeliver != nil {
			in.redeliver(d.From, d.Msg)
		}
	}
}

func (in *Interior) findChild(link types.Address) *Zone {
	for _, c := range in.Children {
		if !c.Deleted && c.Link.Equal(link) {
			return c
		}
	}
	return nil
}

// liveChildren returns children not yet purged by a committed deletion.
func (in *Interior) liveChildren() []*Zone {
	out := make([]*Zone, 0, len(in.Children))
	for _, c := range in.Children {
		if !c.Deleted {
			out = append(out, c)
		}
	}
	return out
}

// sortChildren keeps the list stable by (populated-last-wins, minAddr),
// the "nulls-first during in-progress updates" rule of §4.6: children
// whose zone hasn't arrived yet sort before populated ones, and among
// populated children the order is by advertised MinAddr, with Link as a
// deterministic tie-breaker.
func (in *Interior) sortChildren() {
	sort.SliceStable(in.Children, func(i, j int) bool {
		a, b := in.Children[i], in.Children[j]
		if a.Populated != b.Populated {
			return !a.Populated
		}
		if !a.Populated {
			return a.Link.Less(b.Link)
		}
		if !a.Zone.MinAddr.Equal(b.Zone.MinAddr) {
			return a.Zone.MinAddr.Less(b.Zone.MinAddr)
		}
		return a.Link.Less(b.Link)
	})
}

func (in *Interior) allChildrenPopulated() bool {
	for _, c := range in.liveChildren() {
		if !c.Populated {
			return false
		}
	}
	return len(in.Children) > 0
}

// recomputeZone rebuilds AggZone from every populated live child, per
// §4.6's aggregation rule.
func (in *Interior) recomputeZone() {
	var z types.Zone
	first := true
	for _, c := range in.liveChildren() {
		if !c.Populated {
			continue
		}
		if first {
			z = c.Zone
			first = false
			continue
		}
		z = z.Aggregate(c.Zone)
	}
	invariant(z.Empty() || !z.MaxAddr.Less(z.MinAddr), "aggregated zone has minAddr > maxAddr")
	in.AggZone = z
}

// closestChild picks the child whose zone minimizes distance to who,
// ties broken by iteration (list) order, per §4.9.1.
func (in *Interior) closestChild(who types.Address) *Zone {
	var best *Zone
	var bestDist uint32
	for _, c := range in.liveChildren() {
		d := c.Zone.Distance(who)
		if best == nil || d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

// ---- §4.9.1 Insert routing ----

// HandleInsert implements §4.9.1: route an Insert downward toward the
// child closest to who, upward to our father if we've been asked but
// don't cover who, or admit who as a brand-new child if we're a leaf
// router (level 0).
func (in *Interior) HandleInsert(from types.Address, msg wire.Insert) {
	if in.TxID != 0 {
		in.delay(from, msg)
		return
	}
	if in.State == StateOnline && in.Father != nil && !from.Equal(*in.Father) && !in.AggZone.Contains(msg.Who) {
		_ = in.Transport.Send(*in.Father, wire.Insert{TxID: msg.TxID, Who: msg.Who, ForRN: false})
		return
	}
	if in.Level > 0 {
		child := in.closestChild(msg.Who)
		if child == nil || !child.Populated {
			in.delay(from, msg)
			return
		}
		_ = in.Transport.Send(child.Link, wire.Insert{TxID: msg.TxID, Who: msg.Who, ForRN: false})
		return
	}

	// level == 0: leaf router, admit who as a new child. The cell stays
	// a pending addition until the new leaf's Commit arrives; until then
	// other structural requests are delayed behind in.TxID.
	in.Children = append(in.Children, &Zone{Link: msg.Who, Added: true})
	in.sortChildren()
	in.TxID = msg.TxID
	in.State = StateAddChild
	_ = in.Transport.Send(msg.Who, wire.Ack{TxID: msg.TxID, ForRN: true})
}

// ---- §4.9.2 Update aggregation ----

// HandleUpdateZone implements §4.9.2: apply a seq-gated zone update from
// one child, recompute our own aggregated zone, forward it upward when
// appropriate, then drain delayed messages and re-check our fanout.
func (in *Interior) HandleUpdateZone(from types.Address, msg wire.UpdateZone) {
	child := in.findChild(from)
	if child == nil {
		return
	}
	if !child.UpdateZone(msg.Zone, msg.Seq) {
		return // StaleMessage: silently dropped
	}
	in.sortChildren()
	in.recomputeZone()

	if msg.TxID == 0 {
		in.maybeSendUpdate()
	}

	in.drainDelayed()
	in.checkFanout()
}

// maybeSendUpdate forwards our aggregated zone to the father once every
// child has reported one, unless it is identical to the last zone sent.
func (in *Interior) maybeSendUpdate() {
	if in.Father == nil || !in.allChildrenPopulated() {
		return
	}
	if in.lastSentValid && sameZone(in.lastSent, in.AggZone) {
		return
	}
	in.Seq++
	in.lastSent = in.AggZone
	in.lastSentValid = true
	_ = in.Transport.Send(*in.Father, wire.UpdateZone{TxID: 0, Zone: in.AggZone, Seq: in.Seq})
}

func sameZone(a, b types.Zone) bool {
	return a.MinAddr.Equal(b.MinAddr) && a.MaxAddr.Equal(b.MaxAddr) && a.AvailableStrNodes == b.AvailableStrNodes
}

// ---- §4.9.3 Fanout maintenance ----

// checkFanout implements §4.9.3: called after any structural change
// while idle (txId == 0) and every child has reported a zone.
func (in *Interior) checkFanout() {
	if in.TxID != 0 {
		return
	}
	if !in.allChildrenPopulated() {
		return
	}
	n := uint32(len(in.liveChildren()))
	switch {
	case n >= 2*in.Fanout:
		in.beginSplit()
	case in.Father != nil && n < in.Fanout:
		in.logf(slog.LevelInfo, "checkFanout: underloaded, merge not driven", "children", n, "fanout", in.Fanout)
	case in.Father == nil && n == 1 && in.Level > 0:
		in.beginRootCollapse()
	}
}

func (in *Interior) beginRootCollapse() {
	only := in.liveChildren()[0]
	txID := NewTransactionID()
	in.TxID = txID
	in.State = StateLeaving
	// A collapsing root always has level > 0, so its single child is an
	// interior role.
	in.coordinator.Begin(txID, []Participant{{Addr: only.Link, Role: RoleSn}})
	_ = in.Transport.Send(only.Link, wire.NewFather{TxID: txID, FatherValid: false, ForRN: false})
}

func roleFor(forRN bool) Role {
	if forRN {
		return RoleRn
	}
	return RoleSn
}

// ---- §4.9.4 Split protocol (driver side) ----

func (in *Interior) beginSplit() {
	txID := NewTransactionID()
	in.TxID = txID
	in.State = StateWaitStr
	if in.Logger != nil {
		logging.WithTransactionID(in.Logger, txID).Info("split begun", "children", len(in.liveChildren()), "fanout", in.Fanout)
	}
	in.armStrNodeTimer(txID)
	in.HandleStrNodeNeeded(in.Self, wire.StrNodeNeeded{TxID: txID, WhoNeeds: in.Self})
}

func (in *Interior) armStrNodeTimer(txID uint64) {
	in.coordinator.Timer = in.Transport.AfterFunc(in.StrNodeTimeout, func() {
		in.handleStrNodeTimeout(txID)
	})
}

func (in *Interior) handleStrNodeTimeout(txID uint64) {
	if in.TxID != txID {
		return
	}
	in.logf(slog.LevelWarn, "StrNodeNeeded timed out, rolling back", "txId", txID)
	in.rollbackTransaction()
}

// HandleStrNodeNeeded propagates a request for a fresh structure
// sub-node: first offer this physical node itself (via offerSelf, wired
// to the paired leaf's AvailableStrNodes), then a live child whose
// advertised subtree still has reserve capacity, then our own father.
func (in *Interior) HandleStrNodeNeeded(from types.Address, msg wire.StrNodeNeeded) {
	if in.Level == 0 && in.offerSelf != nil && in.offerSelf() {
		_ = in.Transport.Send(msg.WhoNeeds, wire.NewStrNode{TxID: msg.TxID, WhoOffers: in.Self})
		return
	}
	for _, c := range in.liveChildren() {
		if c.Populated && c.Zone.AvailableStrNodes > 0 {
			c.Zone.AvailableStrNodes-- // provisional local reservation
			_ = in.Transport.Send(c.Link, wire.StrNodeNeeded{TxID: msg.TxID, WhoNeeds: msg.WhoNeeds})
			return
		}
	}
	if in.Father != nil {
		_ = in.Transport.Send(*in.Father, wire.StrNodeNeeded{TxID: msg.TxID, WhoNeeds: msg.WhoNeeds})
		return
	}
	if in.Spares != nil {
		if addr, ok := in.Spares.Take(); ok {
			_ = in.Transport.Send(msg.WhoNeeds, wire.NewStrNode{TxID: msg.TxID, WhoOffers: addr})
			return
		}
	}
	// Nowhere to route it: whoNeeds will time out and roll back.
}

// HandleNewStrNode is the split/leave driver's reaction to an offer. For
// a root split, the first offer becomes the new root and a second offer
// is requested for the actual sibling; otherwise the split proceeds.
func (in *Interior) HandleNewStrNode(msg wire.NewStrNode) {
	if in.TxID != msg.TxID {
		return
	}
	if in.coordinator.Timer != nil {
		in.coordinator.Timer.Stop()
	}
	switch in.State {
	case StateWaitStr:
		if in.Father == nil && in.NewFather == nil {
			nf := msg.WhoOffers
			in.NewFather = &nf
			in.armStrNodeTimer(msg.TxID)
			in.HandleStrNodeNeeded(in.Self, wire.StrNodeNeeded{TxID: msg.TxID, WhoNeeds: in.Self})
			return
		}
		in.doSplit(msg.WhoOffers)
	case StateWaitOffers:
		in.doLeave(msg.WhoOffers)
	}
}

// doSplit implements §4.9.4 step 2: farthest-pair seeding partitions the
// children into two halves, each sized >= m; the offered node takes the
// upper half.
func (in *Interior) doSplit(whoOffers types.Address) {
	lower, upper, ok := partitionByFarthestPair(in.liveChildren(), in.Fanout)
	if !ok {
		in.logf(slog.LevelWarn, "split aborted: partition below fanout", "txId", in.TxID)
		in.rollbackTransaction()
		return
	}

	upperAddrs := make([]types.Address, 0, len(upper))
	for _, c := range upper {
		upperAddrs = append(upperAddrs, c.Link)
	}

	rootSplit := in.Father == nil && in.NewFather != nil
	childFather := in.Father
	if rootSplit {
		childFather = in.NewFather
	}
	var fv bool
	var fa types.Address
	if childFather != nil {
		fv, fa = true, *childFather
	}

	// Assemble every participant and open the coordinator round before
	// the first request goes out: on a fast (or in-process) transport an
	// Ack can arrive during Send, and it must find the round open.
	forRN := in.Level == 0
	participants := []Participant{{Addr: whoOffers, Role: RoleSn}}
	for _, c := range upper {
		participants = append(participants, Participant{Addr: c.Link, Role: roleFor(forRN)})
	}
	if rootSplit {
		participants = append(participants, Participant{Addr: *in.NewFather, Role: RoleSn})
	} else {
		participants = append(participants, Participant{Addr: *in.Father, Role: RoleSn})
	}
	in.coordinator.Begin(in.TxID, participants)
	in.State = StateSplitting

	// The migrated-away upper half stays in in.Children with a pending
	// deletion opened by BeginDelete, until commitTransaction's per-cell
	// Commit() pass marks them Deleted and drops them — so a rollback (§8 scenario 6) simply clears
	// their Pending side and they're still there, instead of having been
	// unconditionally discarded before the transaction was known to
	// succeed.
	_ = lower
	for _, c := range upper {
		c.BeginDelete()
	}

	_ = in.Transport.Send(whoOffers, wire.InitStructNode{
		TxID: in.TxID, FatherValid: fv, Father: fa, Level: in.Level, Children: upperAddrs,
	})
	for _, addr := range upperAddrs {
		_ = in.Transport.Send(addr, wire.NewFather{TxID: in.TxID, FatherValid: true, Father: whoOffers, ForRN: forRN})
	}
	if rootSplit {
		selfAndSibling := []types.Address{in.Self, whoOffers}
		_ = in.Transport.Send(*in.NewFather, wire.InitStructNode{
			TxID: in.TxID, FatherValid: false, Level: in.Level + 1, Children: selfAndSibling,
		})
	} else {
		in.Seq++
		_ = in.Transport.Send(*in.Father, wire.NewChild{TxID: in.TxID, Child: whoOffers, Seq: in.Seq, Replace: false})
	}
}

// partitionByFarthestPair picks the pair of children with maximal
// pairwise zone distance, sorts every child by distance to one of them,
// and splits the sorted order in half. Both halves must meet the fanout
// floor m.
func partitionByFarthestPair(children []*Zone, m uint32) (lower, upper []*Zone, ok bool) {
	n := len(children)
	if uint32(n) < 2*m {
		return nil, nil, false
	}
	var seedI, seedJ int
	var maxDist uint32
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := children[i].Zone.Distance(children[j].Zone.MinAddr)
			if d2 := children[i].Zone.Distance(children[j].Zone.MaxAddr); d2 > d {
				d = d2
			}
			if d >= maxDist {
				maxDist = d
				seedI, seedJ = i, j
			}
		}
	}
	seed := children[seedI].Zone.MinAddr
	_ = seedJ
	ordered := make([]*Zone, n)
	copy(ordered, children)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Zone.Distance(seed) < ordered[j].Zone.Distance(seed)
	})
	half := n / 2
	if uint32(half) < m {
		half = int(m)
	}
	if uint32(n-half) < m {
		half = n - int(m)
	}
	lower = append([]*Zone{}, ordered[:half]...)
	upper = append([]*Zone{}, ordered[half:]...)
	if uint32(len(lower)) < m || uint32(len(upper)) < m {
		return nil, nil, false
	}
	return lower, upper, true
}

// ---- §4.9.5 Merge and leave ----

// HandleLeaveCmd is the local trigger that starts this node's leave
// transaction: it asks for a replacement structure sub-node via the same
// StrNodeNeeded mechanism split uses.
func (in *Interior) HandleLeaveCmd() {
	if in.TxID != 0 {
		return
	}
	txID := NewTransactionID()
	in.TxID = txID
	in.State = StateWaitOffers
	if in.Father != nil {
		_ = in.Transport.Send(*in.Father, wire.Leave{TxID: txID})
	}
	in.armStrNodeTimer(txID)
	in.HandleStrNodeNeeded(in.Self, wire.StrNodeNeeded{TxID: txID, WhoNeeds: in.Self})
}

// HandleLeave is the father-side notice that a child intends to leave;
// it is purely informational until the NewChild(replace=true) at the
// end of the leave transaction actually swaps the child out, so the
// father takes no action beyond logging it.
func (in *Interior) HandleLeave(from types.Address, msg wire.Leave) {
	in.logf(slog.LevelInfo, "child announced leave", "child", from.String(), "txId", msg.TxID)
}

// doLeave hands the entire child list over to the offered replacement
// and tells the father about the whole-list substitution (NewChild with
// Replace=true), per §4.9.5.
func (in *Interior) doLeave(whoOffers types.Address) {
	live := in.liveChildren()
	addrs := make([]types.Address, 0, len(live))
	for _, c := range live {
		addrs = append(addrs, c.Link)
	}

	var fv bool
	var fa types.Address
	if in.Father != nil {
		fv, fa = true, *in.Father
	}

	forRN := in.Level == 0
	participants := []Participant{{Addr: whoOffers, Role: RoleSn}}
	for _, c := range live {
		participants = append(participants, Participant{Addr: c.Link, Role: roleFor(forRN)})
	}
	if in.Father != nil {
		participants = append(participants, Participant{Addr: *in.Father, Role: RoleSn})
	}
	in.coordinator.Begin(in.TxID, participants)
	in.State = StateLeavingWsn

	for _, c := range live {
		c.BeginDelete()
	}

	_ = in.Transport.Send(whoOffers, wire.InitStructNode{
		TxID: in.TxID, FatherValid: fv, Father: fa, Level: in.Level, Children: addrs,
	})
	for _, addr := range addrs {
		_ = in.Transport.Send(addr, wire.NewFather{TxID: in.TxID, FatherValid: true, Father: whoOffers, ForRN: forRN})
	}
	if in.Father != nil {
		in.Seq++
		_ = in.Transport.Send(*in.Father, wire.NewChild{TxID: in.TxID, Child: whoOffers, Seq: in.Seq, Replace: true})
	}
}

// ---- Generic 2PC driver replies (Ack/Nack/Rollback) ----

// HandleAck is the driver-side reply handler shared by split, leave, and
// root-collapse transactions: once every participant has acked, commit.
// An ack bearing some other transaction's id while we are driving one is
// §7's WrongTransaction case: reply with a Rollback carrying their id.
func (in *Interior) HandleAck(from types.Address, msg wire.Ack) {
	if in.coordinator.Active() && msg.TxID != in.TxID {
		_ = in.Transport.Send(from, wire.Rollback{TxID: msg.TxID, ForRN: msg.FromRN})
		return
	}
	if msg.TxID != in.TxID || !in.coordinator.Active() {
		return
	}
	role := roleFor(msg.FromRN)
	if in.coordinator.Ack(Participant{Addr: from, Role: role}) {
		in.commitTransaction()
	}
}

// HandleNackOrRollback is the driver-side handler for a participant's
// refusal or an externally-initiated rollback: revert to the pre-
// transaction state and re-check our fanout (§8 scenario 6).
func (in *Interior) HandleNackOrRollback(txID uint64) {
	if txID != in.TxID {
		return
	}
	in.rollbackTransaction()
}

func (in *Interior) commitTransaction() {
	for _, p := range in.coordinator.Participants() {
		_ = in.Transport.Send(p.Addr, wire.Commit{TxID: in.TxID, ForRN: p.Role == RoleRn})
	}

	kept := in.Children[:0]
	for _, c := range in.Children {
		if deleted := c.Commit(); !deleted {
			kept = append(kept, c)
		}
	}
	in.Children = kept

	if in.NewFather != nil {
		in.Father = in.NewFather
		in.NewFather = nil
		in.Seq = 0
		in.lastSentValid = false
	}

	wasLeaving := in.State == StateLeavingWsn || in.State == StateLeaving
	in.coordinator.Reset()
	in.TxID = 0

	if wasLeaving {
		in.State = StateOffline
		in.Children = nil
		in.Father = nil
		return
	}

	in.State = StateOnline
	in.recomputeZone()
	in.maybeSendUpdate()
	in.drainDelayed()
	in.checkFanout()
}

func (in *Interior) rollbackTransaction() {
	for _, p := range in.coordinator.Participants() {
		_ = in.Transport.Send(p.Addr, wire.Rollback{TxID: in.TxID, ForRN: p.Role == RoleRn})
	}
	kept := in.Children[:0]
	for _, c := range in.Children {
		if added := c.Rollback(); !added {
			kept = append(kept, c)
		}
	}
	in.Children = kept
	in.NewFather = nil
	in.coordinator.Reset()
	in.TxID = 0
	in.State = StateOnline
	in.recomputeZone()
	in.drainDelayed()
	in.checkFanout()
}

// ---- Participant-side handlers (this node is not the transaction driver) ----

// HandleInitStructNode adopts an interior role freshly assigned by a
// split or leave driver: father, level, and initial (unpopulated)
// children.
func (in *Interior) HandleInitStructNode(from types.Address, msg wire.InitStructNode) {
	in.Level = msg.Level
	if msg.FatherValid {
		f := msg.Father
		in.Father = &f
	} else {
		in.Father = nil
	}
	in.Children = make([]*Zone, 0, len(msg.Children))
	for _, addr := range msg.Children {
		in.Children = append(in.Children, &Zone{Link: addr})
	}
	in.sortChildren()
	in.Seq = 0
	in.lastSentValid = false
	in.TxID = msg.TxID
	in.State = StateInit
	_ = in.Transport.Send(from, wire.Ack{TxID: msg.TxID, FromRN: false})
}

// HandleNewChild is the father-side reply to a migrated/replaced child
// set: §4.9.4/4.9.5 send this to announce a new child (Replace=false) or
// a whole-list substitution from a leaving node (Replace=true). The
// change is buffered in the children cells' pending sides until the
// driver's Commit or Rollback arrives.
func (in *Interior) HandleNewChild(from types.Address, msg wire.NewChild) {
	if in.TxID != 0 && in.TxID != msg.TxID {
		in.delay(from, msg)
		return
	}
	if !msg.Replace && uint32(len(in.liveChildren())) >= 2*in.Fanout {
		// CapacityBreach: accepting would immediately overflow again;
		// hold the announcement until our own split has gone through.
		in.delay(from, msg)
		return
	}
	if msg.Replace {
		for _, c := range in.Children {
			if c.Link.Equal(from) {
				c.BeginDelete()
			}
		}
	}
	in.Children = append(in.Children, &Zone{Link: msg.Child, Added: true})
	in.sortChildren()
	in.TxID = msg.TxID
	_ = in.Transport.Send(from, wire.Ack{TxID: msg.TxID, FromRN: false})
}

// HandleNewFatherSn is the interior-role half of §4.8's NewFather
// handler (ForRN == false): our father is changing, driven by some
// ancestor's split/merge/leave/root-collapse.
func (in *Interior) HandleNewFatherSn(from types.Address, msg wire.NewFather) {
	if in.TxID != 0 {
		in.delay(from, msg)
		return
	}
	in.TxID = msg.TxID
	in.fatherChangePending = true
	if msg.FatherValid {
		f := msg.Father
		in.NewFather = &f
	} else {
		in.NewFather = nil // becoming the new root
	}
	_ = in.Transport.Send(from, wire.Ack{TxID: msg.TxID, FromRN: false})
}

// HandleCommitSn makes a pending participant-side change permanent once
// the driver broadcasts Commit: an adopted interior role (Init), an
// admitted or replaced child (AddChild / NewChild cells), or a latched
// father change.
func (in *Interior) HandleCommitSn(msg wire.Commit) {
	if msg.TxID != in.TxID {
		return
	}
	if in.State == StateInit || in.State == StateAddChild {
		in.State = StateOnline
	}
	kept := in.Children[:0]
	for _, c := range in.Children {
		if deleted := c.Commit(); !deleted {
			kept = append(kept, c)
		}
	}
	in.Children = kept
	if in.fatherChangePending {
		in.Father = in.NewFather
		in.NewFather = nil
		in.fatherChangePending = false
		in.Seq = 0
		in.lastSentValid = false
	}
	in.TxID = 0
	in.recomputeZone()
	in.maybeSendUpdate()
	in.drainDelayed()
	in.checkFanout()
}

// HandleRollbackSn discards a pending participant-side change. For a
// freshly-InitStructNode'd node with nothing to revert to, this returns
// it to Offline.
func (in *Interior) HandleRollbackSn(msg wire.Rollback) {
	if msg.TxID != in.TxID {
		return
	}
	wasInit := in.State == StateInit
	in.NewFather = nil
	in.fatherChangePending = false
	in.TxID = 0
	if wasInit {
		in.State = StateOffline
		in.Children = nil
		in.Father = nil
		return
	}
	kept := in.Children[:0]
	for _, c := range in.Children {
		if added := c.Rollback(); !added {
			kept = append(kept, c)
		}
	}
	in.Children = kept
	if in.State == StateAddChild {
		in.State = StateOnline
	}
	in.recomputeZone()
	in.drainDelayed()
	in.checkFanout()
}
