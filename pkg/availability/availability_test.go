package availability

import (
	"testing"
	"time"

	"github.com/jcelaya/stars-sub002/pkg/cluster"
	"github.com/jcelaya/stars-sub002/pkg/piecewise"
	"github.com/jcelaya/stars-sub002/pkg/scalar"
	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/stretchr/testify/require"
)

func testCtx() *cluster.Context {
	return &cluster.Context{
		MemRange:   types.NewInterval[uint32](0, 8192),
		DiskRange:  types.NewInterval[uint32](0, 100000),
		NumBuckets: 4,
	}
}

func TestGetAvailabilityIB(t *testing.T) {
	ctx := testCtx()
	s := NewSummary(ctx, 16, 10)
	s.SetAvailability(&cluster.IBRecord{
		Ctx:   ctx,
		Value: 5,
		MinM:  scalar.New[uint32](1024, scalar.Min),
		MinD:  scalar.New[uint32](30000, scalar.Min),
	})

	req := Request{
		Task:      types.TaskDescription{MaxMemory: 512, MaxDisk: 10000},
		Instances: 3,
	}
	got := s.GetAvailabilityIB(req)
	require.Len(t, got, 1)
	require.Equal(t, uint32(3), got[0].Fits)
}

func TestGetAvailabilityIBRejectsTooBig(t *testing.T) {
	ctx := testCtx()
	s := NewSummary(ctx, 16, 10)
	s.SetAvailability(&cluster.IBRecord{
		Ctx:   ctx,
		Value: 5,
		MinM:  scalar.New[uint32](1024, scalar.Min),
		MinD:  scalar.New[uint32](30000, scalar.Min),
	})

	req := Request{
		Task:      types.TaskDescription{MaxMemory: 99999, MaxDisk: 10000},
		Instances: 3,
	}
	require.Empty(t, s.GetAvailabilityIB(req))
}

func TestUpdateDecrementsSourceCluster(t *testing.T) {
	ctx := testCtx()
	s := NewSummary(ctx, 16, 10)
	s.SetAvailability(&cluster.IBRecord{
		Ctx:   ctx,
		Value: 5,
		MinM:  scalar.New[uint32](1024, scalar.Min),
		MinD:  scalar.New[uint32](30000, scalar.Min),
	})
	req := Request{Task: types.TaskDescription{MaxMemory: 512, MaxDisk: 10000}, Instances: 2}
	s.Update([]AssignmentInfo{{ClusterIndex: 0, Fits: 2}}, req)

	rec := s.Clusters[0].(*cluster.IBRecord)
	require.Equal(t, uint32(3), rec.Value)
}

func TestJoinConcatenatesClusters(t *testing.T) {
	ctx := testCtx()
	a := NewSummary(ctx, 16, 10)
	a.SetAvailability(&cluster.IBRecord{Ctx: ctx, Value: 1, MinM: scalar.New[uint32](100, scalar.Min), MinD: scalar.New[uint32](100, scalar.Min)})
	b := NewSummary(ctx, 16, 10)
	b.SetAvailability(&cluster.IBRecord{Ctx: ctx, Value: 1, MinM: scalar.New[uint32](200, scalar.Min), MinD: scalar.New[uint32](200, scalar.Min)})

	a.Join(b)
	require.Len(t, a.Clusters, 2)
	require.WithinDuration(t, time.Now(), a.Modified, time.Second)
}

func TestGetAvailabilityMMPBinarySearch(t *testing.T) {
	ctx := testCtx()
	s := NewSummary(ctx, 16, 10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Two clusters: one finishing its queue in 100s, one in 10,000s.
	fast := &cluster.MMPRecord{
		Ctx:   ctx,
		Value: 2,
		MinM:  scalar.New[uint32](1024, scalar.Min),
		MinD:  scalar.New[uint32](30000, scalar.Min),
		MinP:  scalar.New[uint32](1000, scalar.Min),
		MaxT:  scalar.New(float64(now.Unix()+100), scalar.Max),
	}
	slow := &cluster.MMPRecord{
		Ctx:   ctx,
		Value: 2,
		MinM:  scalar.New[uint32](1024, scalar.Min),
		MinD:  scalar.New[uint32](30000, scalar.Min),
		MinP:  scalar.New[uint32](1000, scalar.Min),
		MaxT:  scalar.New(float64(now.Unix()+10000), scalar.Max),
	}
	s.Clusters = []cluster.Record{fast, slow}

	req := Request{Task: types.TaskDescription{MaxMemory: 512, MaxDisk: 10000}, Instances: 4}
	got := s.GetAvailabilityMMP(req, now)

	var total uint32
	for _, a := range got {
		total += a.Fits
	}
	require.Equal(t, uint32(4), total)
}

func TestGetAvailabilityMSPRespectsDeadline(t *testing.T) {
	ctx := testCtx()
	ctx.Horizon = 1e6
	s := NewSummary(ctx, 16, 10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rec := &cluster.MSPRecord{
		Ctx:   ctx,
		Value: 3,
		MinM:  scalar.New[uint32](1024, scalar.Min),
		MinD:  scalar.New[uint32](30000, scalar.Min),
		MaxL:  piecewise.Constant(0.001), // 1s per 1000 units of length
	}
	s.Clusters = []cluster.Record{rec}

	req := Request{
		Task: types.TaskDescription{
			Length:    1000,
			NumTasks:  2,
			MaxMemory: 512,
			MaxDisk:   10000,
			Deadline:  now.Add(time.Hour),
		},
		Instances: 2,
	}
	got := s.GetAvailabilityMSP(req, now)
	require.Len(t, got, 1)
	require.Equal(t, uint32(2), got[0].Fits)

	// An impossible deadline filters the cluster out entirely.
	req.Task.Deadline = now.Add(time.Millisecond)
	require.Empty(t, s.GetAvailabilityMSP(req, now))
}

func TestReduceBoundsClusterList(t *testing.T) {
	ctx := testCtx()
	s := NewSummary(ctx, 4, 10)
	for i := 0; i < 20; i++ {
		s.Join(&Summary{Clusters: []cluster.Record{&cluster.IBRecord{
			Ctx:   ctx,
			Value: 1,
			MinM:  scalar.New(uint32(256+i*100), scalar.Min),
			MinD:  scalar.New(uint32(500+i*50), scalar.Min),
		}}})
	}
	s.Reduce()
	require.LessOrEqual(t, len(s.Clusters), 4)
	var total uint32
	for _, c := range s.Clusters {
		total += c.Population()
	}
	require.Equal(t, uint32(20), total)
}

func TestUpdateSplitsDPCluster(t *testing.T) {
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := testCtx()
	ctx.TimeRef = ref
	s := NewSummary(ctx, 16, 10)
	s.SetAvailability(&cluster.DPRecord{
		Ctx:   ctx,
		Value: 3,
		MinM:  scalar.New[uint32](1024, scalar.Min),
		MinD:  scalar.New[uint32](30000, scalar.Min),
		MinA:  piecewise.ATF{Slope: 1000},
		MaxA:  piecewise.ATF{Slope: 1000},
	})

	deadline := ref.Add(100 * time.Second)
	req := Request{
		Task: types.TaskDescription{
			Length:    10000,
			NumTasks:  1,
			MaxMemory: 512,
			MaxDisk:   10000,
			Deadline:  deadline,
		},
		Instances: 1,
	}
	s.Update([]AssignmentInfo{{ClusterIndex: 0, Fits: 1}}, req)

	require.Len(t, s.Clusters, 2)
	src := s.Clusters[0].(*cluster.DPRecord)
	split := s.Clusters[1].(*cluster.DPRecord)
	require.Equal(t, uint32(2), src.Value)
	require.Equal(t, uint32(1), split.Value)

	// The split cluster's envelope reflects the consumed work: 10,000
	// units are gone from what it can promise by the deadline.
	require.InDelta(t, 90000.0, split.MinA.Value(ref, deadline), 1e-6)
	require.Less(t, split.MinA.Value(ref, deadline), src.MinA.Value(ref, deadline))
}
