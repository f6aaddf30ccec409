package piecewise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestATFFreeValueGrowsAtSlope(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	f := ATF{Slope: 2.0}
	require.True(t, f.Free())
	require.InDelta(t, 20.0, f.Value(ref, ref.Add(10*time.Second)), 1e-9)
}

func TestATFValueAtRecordedPoints(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	f := NewATF(1.0, []time.Time{ref, ref.Add(10 * time.Second)})
	require.InDelta(t, 0.0, f.Value(ref, ref), 1e-9)
	require.InDelta(t, 10.0, f.Value(ref, ref.Add(10*time.Second)), 1e-9)
	// Past the last point the function keeps growing at its slope.
	require.InDelta(t, 20.0, f.Value(ref, ref.Add(20*time.Second)), 1e-9)
}

func TestMaxATFDominatesEverywhere(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	a := ATF{Slope: 1.0}
	b := ATF{Slope: 3.0}
	m := MaxATF(a, b)
	require.Equal(t, 3.0, m.Slope)
	require.InDelta(t, 30.0, m.Value(ref, ref.Add(10*time.Second)), 1e-9)
}

func TestMinATFDominatedEverywhere(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	a := ATF{Slope: 1.0}
	b := ATF{Slope: 3.0}
	m := MinATF(a, b)
	require.Equal(t, 1.0, m.Slope)
	require.InDelta(t, 10.0, m.Value(ref, ref.Add(10*time.Second)), 1e-9)
}

func TestATFSqDiffZeroForIdenticalFunctions(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	f := NewATF(2.0, []time.Time{ref, ref.Add(5 * time.Second)})
	horizon := ref.Add(time.Hour)
	require.InDelta(t, 0.0, f.SqDiff(f, ref, horizon), 1e-6)
}

func TestATFSqDiffNonNegative(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	a := ATF{Slope: 1.0}
	b := ATF{Slope: 4.0}
	horizon := ref.Add(time.Hour)
	require.GreaterOrEqual(t, a.SqDiff(b, ref, horizon), 0.0)
}

func TestATFReduceMaxStaysAboveOriginal(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	boundaries := []time.Time{
		ref, ref.Add(10 * time.Second),
		ref.Add(20 * time.Second), ref.Add(30 * time.Second),
		ref.Add(45 * time.Second), ref.Add(60 * time.Second),
	}
	f := NewATF(100, boundaries)
	require.Greater(t, len(f.Points), 4)

	reduced, loss := f.ReduceMax(1, 4, 10)
	require.LessOrEqual(t, len(reduced.Points), 4)
	require.GreaterOrEqual(t, loss, 0.0)
	for s := 0; s <= 70; s += 5 {
		at := ref.Add(time.Duration(s) * time.Second)
		require.GreaterOrEqual(t, reduced.Value(ref, at)+1e-6, f.Value(ref, at))
	}
}

func TestATFReduceMinStaysBelowOriginal(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	boundaries := []time.Time{
		ref, ref.Add(10 * time.Second),
		ref.Add(20 * time.Second), ref.Add(30 * time.Second),
		ref.Add(45 * time.Second), ref.Add(60 * time.Second),
	}
	f := NewATF(100, boundaries)

	reduced, loss := f.ReduceMin(1, 4, 10)
	require.LessOrEqual(t, len(reduced.Points), 4)
	require.GreaterOrEqual(t, loss, 0.0)
	for s := 0; s <= 70; s += 5 {
		at := ref.Add(time.Duration(s) * time.Second)
		require.LessOrEqual(t, reduced.Value(ref, at), f.Value(ref, at)+1e-6)
	}
}

func TestATFUpdateFreeFunctionDelaysStart(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	f := ATF{Slope: 1000}

	u := f.Update(ref, 10000, ref.Add(100*time.Second))

	// 10,000 units at slope 1000 keep the machine busy for 10s; no
	// availability accumulates before then.
	require.InDelta(t, 0.0, u.Value(ref, ref.Add(10*time.Second)), 1e-6)
	require.InDelta(t, 90000.0, u.Value(ref, ref.Add(100*time.Second)), 1e-6)
}

func TestATFUpdateConsumesBeforeDeadline(t *testing.T) {
	ref := mustTime("2026-01-01T00:00:00Z")
	f := NewATF(1.0, []time.Time{ref, ref.Add(10 * time.Second)})
	deadline := ref.Add(10 * time.Second)

	u := f.Update(ref, 4, deadline)

	// Availability at the deadline drops from 10 to 6, the assignment's
	// span holds flat, and growth resumes at the original slope after.
	require.InDelta(t, 6.0, u.Value(ref, deadline), 1e-6)
	require.InDelta(t, 10.0, u.Value(ref, ref.Add(14*time.Second)), 1e-6)
	// The function never promises more than before the assignment.
	for s := 0; s <= 20; s++ {
		at := ref.Add(time.Duration(s) * time.Second)
		require.LessOrEqual(t, u.Value(ref, at), f.Value(ref, at)+1e-6)
	}
}
