package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressOrderingAndDistance(t *testing.T) {
	a := NewAddress(10, 4001)
	b := NewAddress(20, 4001)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, uint32(10), a.Distance(b))
	assert.Equal(t, uint32(10), b.Distance(a))

	samePortless := NewAddress(10, 4002)
	assert.True(t, a.Less(samePortless))
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("10.0.0.1:4001")
	require.NoError(t, err)
	assert.Equal(t, uint16(4001), a.Port)
	assert.Equal(t, "10.0.0.1:4001", a.String())

	_, err = ParseAddress("not-an-address")
	assert.Error(t, err)
	_, err = ParseAddress("::1:4001")
	assert.Error(t, err)
}

func TestZoneContainsAndDistance(t *testing.T) {
	z := Zone{MinAddr: NewAddress(10, 0), MaxAddr: NewAddress(20, 0)}
	assert.True(t, z.Contains(NewAddress(10, 0)))
	assert.True(t, z.Contains(NewAddress(15, 9999)))
	assert.False(t, z.Contains(NewAddress(21, 0)))
	assert.Equal(t, uint32(0), z.Distance(NewAddress(15, 0)))
	assert.Equal(t, uint32(5), z.Distance(NewAddress(25, 0)))
	assert.Equal(t, uint32(3), z.Distance(NewAddress(7, 0)))
}

func TestZoneAggregateCoversBothAndSumsCapacity(t *testing.T) {
	a := Zone{MinAddr: NewAddress(10, 0), MaxAddr: NewAddress(20, 0), AvailableStrNodes: 1}
	b := Zone{MinAddr: NewAddress(30, 0), MaxAddr: NewAddress(40, 0), AvailableStrNodes: 2}
	agg := a.Aggregate(b)
	assert.Equal(t, uint32(10), agg.MinAddr.IP)
	assert.Equal(t, uint32(40), agg.MaxAddr.IP)
	assert.Equal(t, uint32(3), agg.AvailableStrNodes)
}

func TestIntervalExtendAndBucket(t *testing.T) {
	iv := NewInterval(10.0, 5.0) // starts empty
	require.True(t, iv.Empty())
	iv = iv.Extend(7.0)
	iv = iv.Extend(3.0)
	assert.Equal(t, 3.0, iv.Min)
	assert.Equal(t, 7.0, iv.Max)
	assert.Equal(t, 4.0, iv.Extent())

	assert.Equal(t, uint32(0), iv.Bucket(3.0, 4))
	assert.Equal(t, uint32(3), iv.Bucket(7.0, 4))
	assert.Equal(t, uint32(3), iv.Bucket(100.0, 4)) // clamped
}

func TestTaskBagNumTasks(t *testing.T) {
	bag := TaskBag{FirstTaskID: 5, LastTaskID: 9}
	assert.Equal(t, uint32(5), bag.NumTasks())
	assert.Zero(t, TaskBag{FirstTaskID: 9, LastTaskID: 5}.NumTasks())
}
