package overlay

import (
	"testing"

	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestZoneUpdateZoneFirstUpdateAlwaysApplies(t *testing.T) {
	var z Zone
	z.Link = addr(1)
	ok := z.UpdateZone(types.Singleton(addr(1), 1), 0)
	assert.True(t, ok)
	assert.True(t, z.Populated)
	assert.Equal(t, uint64(0), z.Seq)
}

func TestZoneUpdateZoneRejectsStale(t *testing.T) {
	var z Zone
	assert.True(t, z.UpdateZone(types.Singleton(addr(1), 1), 5))
	assert.False(t, z.UpdateZone(types.Singleton(addr(1), 2), 5))
	assert.False(t, z.UpdateZone(types.Singleton(addr(1), 2), 3))
	assert.True(t, z.UpdateZone(types.Singleton(addr(1), 2), 6))
}

func TestZoneBeginDeleteCommit(t *testing.T) {
	var z Zone
	z.UpdateZone(types.Singleton(addr(1), 0), 0)
	z.BeginDelete()
	assert.True(t, z.Changing())
	deleted := z.Commit()
	assert.True(t, deleted)
	assert.True(t, z.Deleted)
	assert.False(t, z.Changing())
}

func TestZoneBeginDeleteRollback(t *testing.T) {
	var z Zone
	z.UpdateZone(types.Singleton(addr(1), 0), 0)
	z.BeginDelete()
	z.Rollback()
	assert.False(t, z.Changing())
	assert.False(t, z.Deleted)
}

func TestZoneBeginLinkChangeCommit(t *testing.T) {
	var z Zone
	z.Link = addr(1)
	z.BeginLinkChange(addr(2))
	deleted := z.Commit()
	assert.False(t, deleted)
	assert.Equal(t, addr(2), z.Link)
}
