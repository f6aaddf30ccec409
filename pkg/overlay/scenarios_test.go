package overlay

import (
	"testing"

	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioSingletonInsert exercises §8 scenario 1: a lone node
// inserting itself becomes a one-child root whose aggregated zone
// reports the bootstrapped leaf's available structure-node count.
func TestScenarioSingletonInsert(t *testing.T) {
	shared := newFakeTransport()
	a := newTestNode(shared, addr(1), 2)

	require.NoError(t, a.InsertCommand(addr(1)))

	assert.Equal(t, StateOnline, a.Interior.State)
	assert.Equal(t, LeafOnline, a.Leaf.State())
	assert.True(t, a.Leaf.Father.Equal(addr(1)))
	require.Len(t, a.Interior.liveChildren(), 1)
	assert.Equal(t, uint32(1), a.Interior.AggZone.AvailableStrNodes)
	assert.True(t, a.Interior.AggZone.Contains(addr(1)))
}

// TestScenarioSecondLeafJoinsExistingRoot walks a second node through
// Insert routing into an already-bootstrapped single-node tree, short of
// triggering a split (fanout m=2, so the 2-child tree stays put).
func TestScenarioSecondLeafJoinsExistingRoot(t *testing.T) {
	shared := newFakeTransport()
	a := newTestNode(shared, addr(1), 2)
	b := newTestNode(shared, addr(2), 2)

	require.NoError(t, a.InsertCommand(addr(1)))
	require.NoError(t, b.InsertCommand(addr(1)))

	assert.True(t, b.Leaf.Father.Equal(addr(1)))
	assert.Equal(t, LeafOnline, b.Leaf.State())
	require.Len(t, a.Interior.liveChildren(), 2)
	assert.Equal(t, StateOnline, a.Interior.State)
	assert.Equal(t, uint32(2), a.Interior.AggZone.AvailableStrNodes)
}

// TestScenarioRootSplitOnFanoutOverflow drives §8 scenario 2: with
// fanout m=2, a fourth leaf joining an already-3-child root pushes
// liveChildren to 2*m and a split must occur, producing two interior
// nodes under a fresh root.
func TestScenarioRootSplitOnFanoutOverflow(t *testing.T) {
	shared := newFakeTransport()
	root := newTestNode(shared, addr(1), 2)
	spare := newTestNode(shared, addr(100), 2)
	root.SetSpares(NewSparePool(spare.Self))

	require.NoError(t, root.InsertCommand(addr(1)))
	for _, ip := range []uint32{2, 3} {
		leaf := newTestNode(shared, addr(ip), 2)
		require.NoError(t, leaf.InsertCommand(addr(1)))
	}
	require.Len(t, root.Interior.liveChildren(), 3)

	fourth := newTestNode(shared, addr(4), 2)
	require.NoError(t, fourth.InsertCommand(addr(1)))

	// The fourth child pushes the root to 2*m children. The split drafts
	// two idle leaves as fresh structure nodes: one becomes the new root
	// at level 1, the other takes over the upper half of the children.
	assert.Equal(t, StateOnline, root.Interior.State)
	assert.Equal(t, uint32(0), root.Interior.Level)
	require.NotNil(t, root.Interior.Father)

	newRoot := shared.nodes[*root.Interior.Father]
	require.NotNil(t, newRoot)
	assert.Equal(t, StateOnline, newRoot.Interior.State)
	assert.Equal(t, uint32(1), newRoot.Interior.Level)
	assert.Nil(t, newRoot.Interior.Father)
	require.Len(t, newRoot.Interior.liveChildren(), 2)

	var sibling *Node
	for _, c := range newRoot.Interior.liveChildren() {
		if !c.Link.Equal(root.Self) {
			sibling = shared.nodes[c.Link]
		}
	}
	require.NotNil(t, sibling)
	assert.Equal(t, StateOnline, sibling.Interior.State)
	assert.Equal(t, uint32(0), sibling.Interior.Level)
	require.NotNil(t, sibling.Interior.Father)
	assert.True(t, sibling.Interior.Father.Equal(newRoot.Self))

	// Every leaf's father is the interior that actually lists it as a
	// live child.
	for _, ip := range []uint32{1, 2, 3, 4} {
		leaf := shared.nodes[addr(ip)].Leaf
		require.NotNil(t, leaf.Father, "leaf %d has no father", ip)
		father := shared.nodes[*leaf.Father]
		found := false
		for _, c := range father.Interior.liveChildren() {
			if c.Link.Equal(leaf.Self) {
				found = true
			}
		}
		assert.True(t, found, "leaf %d not listed by its father", ip)
		assert.Equal(t, LeafOnline, leaf.State())
	}
}

// TestScenarioRollbackOnNack exercises §8 scenario 6: a driver-side
// split that is NACKed by a participant rolls every touched child cell
// back to its pre-transaction state rather than leaving it half-applied.
func TestScenarioRollbackOnNack(t *testing.T) {
	shared := newFakeTransport()
	root := newTestNode(shared, addr(1), 2)
	require.NoError(t, root.InsertCommand(addr(1)))

	txID := NewTransactionID()
	root.Interior.TxID = txID
	c1 := root.Interior.Children[0]
	c1.BeginDelete()
	root.Interior.coordinator.Begin(txID, []Participant{{Addr: c1.Link, Role: RoleRn}})
	root.Interior.coordinator.Acked[Participant{Addr: c1.Link, Role: RoleRn}] = struct{}{}
	root.Interior.State = StateSplitting

	root.Interior.HandleNackOrRollback(txID)

	assert.Equal(t, StateOnline, root.Interior.State)
	assert.False(t, c1.Changing())
	assert.False(t, c1.Deleted)
	assert.Zero(t, root.Interior.TxID)
}

// TestScenarioLeaveHandsChildrenToReplacement drives §4.9.5: an interior
// node leaving the tree drafts a replacement structure node, hands over
// its entire child list, and tells its father about the substitution
// via NewChild(replace=true).
func TestScenarioLeaveHandsChildrenToReplacement(t *testing.T) {
	shared := newFakeTransport()
	root := newTestNode(shared, addr(1), 2)
	require.NoError(t, root.InsertCommand(addr(1)))
	for _, ip := range []uint32{2, 3, 4} {
		leaf := newTestNode(shared, addr(ip), 2)
		require.NoError(t, leaf.InsertCommand(addr(1)))
	}
	// The fourth insert split the root; spare capacity for the leave's
	// replacement comes from whichever leaf never got drafted.
	require.NotNil(t, root.Interior.Father)
	father := shared.nodes[*root.Interior.Father]

	leaving := root.Interior
	childrenBefore := make(map[uint32]bool)
	for _, c := range leaving.liveChildren() {
		childrenBefore[c.Link.IP] = true
	}

	root.LeaveCmd()

	require.Equal(t, StateOffline, leaving.State)
	assert.Nil(t, leaving.Father)
	assert.Empty(t, leaving.Children)

	// The father's child list no longer names the leaving node; its
	// replacement inherited the whole child list.
	var replacement *Node
	for _, c := range father.Interior.liveChildren() {
		assert.False(t, c.Link.Equal(root.Self))
	}
	for _, c := range leavingReplacementCandidates(shared, father) {
		taken := true
		for ip := range childrenBefore {
			if !hasLiveChild(c.Interior, addr(ip)) {
				taken = false
			}
		}
		if taken {
			replacement = c
		}
	}
	require.NotNil(t, replacement, "no node inherited the leaving node's children")
	for ip := range childrenBefore {
		leaf := shared.nodes[addr(ip)].Leaf
		require.NotNil(t, leaf.Father)
		assert.True(t, leaf.Father.Equal(replacement.Self))
	}
}

func leavingReplacementCandidates(shared *fakeTransport, father *Node) []*Node {
	var out []*Node
	for _, c := range father.Interior.liveChildren() {
		if n := shared.nodes[c.Link]; n != nil {
			out = append(out, n)
		}
	}
	return out
}

func hasLiveChild(in *Interior, a types.Address) bool {
	for _, c := range in.liveChildren() {
		if c.Link.Equal(a) {
			return true
		}
	}
	return false
}
