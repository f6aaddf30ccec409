package overlay

import (
	"testing"

	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointWalksTreeBFS(t *testing.T) {
	shared := newFakeTransport()
	root := newTestNode(shared, addr(1), 2)
	require.NoError(t, root.InsertCommand(addr(1)))
	for _, ip := range []uint32{2, 3} {
		leaf := newTestNode(shared, addr(ip), 2)
		require.NoError(t, leaf.InsertCommand(addr(1)))
	}

	lookup := func(a types.Address) *Node { return shared.nodes[a] }
	snaps := Checkpoint(addr(1), lookup)

	require.NotEmpty(t, snaps)
	assert.Equal(t, addr(1), snaps[0].Addr)
	assert.Equal(t, StateOnline, snaps[0].InteriorState)
	assert.Len(t, snaps[0].Children, 3)
}

func TestRestoreReinstatesStructure(t *testing.T) {
	shared := newFakeTransport()
	root := newTestNode(shared, addr(1), 2)
	require.NoError(t, root.InsertCommand(addr(1)))
	for _, ip := range []uint32{2, 3} {
		leaf := newTestNode(shared, addr(ip), 2)
		require.NoError(t, leaf.InsertCommand(addr(1)))
	}
	lookup := func(a types.Address) *Node { return shared.nodes[a] }
	snaps := Checkpoint(addr(1), lookup)

	// Rebuild the root from scratch and restore the snapshot onto it.
	fresh := newFakeTransport()
	restored := newTestNode(fresh, addr(1), 2)
	Restore(snaps[:1], func(a types.Address) *Node {
		if a.Equal(addr(1)) {
			return restored
		}
		return nil
	})

	assert.Equal(t, StateOnline, restored.Interior.State)
	assert.Len(t, restored.Interior.Children, 3)
	assert.Zero(t, restored.Interior.TxID)
	for _, c := range restored.Interior.Children {
		assert.False(t, c.Populated)
	}
}
