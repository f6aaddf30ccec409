package piecewise

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(z2 float64) LAF {
	return Constant(z2)
}

func TestLAFGetSlownessConstant(t *testing.T) {
	f := flat(2.5)
	require.Equal(t, 2.5, f.GetSlowness(10, 1))
	require.Equal(t, 2.5, f.GetSlowness(1000, 7))
}

func TestLAFMaxPicksLargerEverywhere(t *testing.T) {
	a := flat(1.0)
	b := flat(3.0)
	m := Max(a, b)
	for _, x := range []float64{1, 10, 1000, 1e6} {
		require.InDelta(t, 3.0, m.GetSlowness(x, 1), 1e-9)
	}
}

func TestLAFMinPicksSmallerEverywhere(t *testing.T) {
	a := flat(1.0)
	b := flat(3.0)
	m := Min(a, b)
	for _, x := range []float64{1, 10, 1000, 1e6} {
		require.InDelta(t, 1.0, m.GetSlowness(x, 1), 1e-9)
	}
}

func TestLAFMaxWithCrossingSubfunctions(t *testing.T) {
	// f0 decreases with a (large x term), f1 is flat: they must cross.
	f0 := NewLAF(1, []Piece{{Start: 1, Fn: SubFunction{X: 100}}})
	f1 := flat(1.0)
	m := Max(f0, f1)

	// Near a=1 the x/a term dominates (100), far away it decays below 1.
	require.Greater(t, m.GetSlowness(1, 1), f1.GetSlowness(1, 1))
	require.InDelta(t, 1.0, m.GetSlowness(1000, 1), 1e-6)
}

func TestSqDiffNonNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("sqdiff of any two constant LAFs is non-negative", prop.ForAll(
		func(x, y float64) bool {
			a := flat(x)
			b := flat(y)
			return SqDiff(a, b, 1e6) >= -1e-6
		},
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(0.01, 1000),
	))

	properties.TestingRun(t)
}

func TestSqDiffZeroForIdenticalFunctions(t *testing.T) {
	a := flat(5.0)
	assert.InDelta(t, 0.0, SqDiff(a, a, 1e6), 1e-6)
}

func TestMaxAndMinAreOrderIndependent(t *testing.T) {
	a := NewLAF(1, []Piece{{Start: 1, Fn: SubFunction{X: 50, Z2: 0.5}}})
	b := NewLAF(1, []Piece{{Start: 1, Fn: SubFunction{Y: 0.01, Z2: 2}}})

	for _, x := range []float64{1, 5, 100, 10000} {
		m1 := Max(a, b).GetSlowness(x, 1)
		m2 := Max(b, a).GetSlowness(x, 1)
		require.InDelta(t, m1, m2, 1e-6)
	}
}

func TestReduceMaxShrinksPieceCount(t *testing.T) {
	f := NewLAF(1, []Piece{
		{Start: 1, Fn: SubFunction{Z2: 1}},
		{Start: 10, Fn: SubFunction{Z2: 2}},
		{Start: 20, Fn: SubFunction{Z2: 3}},
		{Start: 30, Fn: SubFunction{Z2: 4}},
		{Start: 40, Fn: SubFunction{Z2: 5}},
	})
	reduced, loss := ReduceMax(f, 1, 1000, 2, 10)
	require.LessOrEqual(t, len(reduced.Pieces), 2)
	require.GreaterOrEqual(t, loss, 0.0)
}

func TestReduceMaxNoopWhenAlreadySmall(t *testing.T) {
	f := flat(1.0)
	reduced, loss := ReduceMax(f, 1, 1000, 5, 10)
	require.Equal(t, 0.0, loss)
	require.Equal(t, f.Pieces, reduced.Pieces)
}

func TestUpdateInvalidates(t *testing.T) {
	f := flat(1.0)
	u := f.Update(100, 1)
	require.True(t, math.IsInf(u.Pieces[0].Fn.Y, 1))
}

func TestGetSlowestMachine(t *testing.T) {
	f := NewLAF(1, []Piece{
		{Start: 1, Fn: SubFunction{Z1: 2}},
		{Start: 10, Fn: SubFunction{Z1: 7}},
		{Start: 20, Fn: SubFunction{Z1: 3}},
	})
	require.Equal(t, 7.0, f.GetSlowestMachine())
}

func TestReduceMaxStaysAboveOriginal(t *testing.T) {
	f := NewLAF(1, []Piece{
		{Start: 1, Fn: SubFunction{X: 20, Z2: 0.5}},
		{Start: 10, Fn: SubFunction{Z2: 2}},
		{Start: 50, Fn: SubFunction{Y: 0.001, Z2: 1}},
		{Start: 200, Fn: SubFunction{Z2: 3}},
		{Start: 800, Fn: SubFunction{Z1: 0.5, Z2: 1}},
	})
	reduced, loss := ReduceMax(f, 2, 1000, 3, 10)
	require.LessOrEqual(t, len(reduced.Pieces), 3)
	require.GreaterOrEqual(t, loss, 0.0)
	for a := 1.0; a <= 1000; a *= 1.3 {
		require.GreaterOrEqual(t, reduced.GetSlowness(a, 1)+1e-9, f.GetSlowness(a, 1),
			"reduced function dipped below the original at a=%v", a)
	}
}
