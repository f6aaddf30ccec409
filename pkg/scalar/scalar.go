// Package scalar implements C1: a scalar parameter that tracks a
// reduced value (min, max or mean) of a population of observations along
// with the accumulated-error moments needed to fold further observations
// in without revisiting the originals.
package scalar

import "github.com/jcelaya/stars-sub002/pkg/types"

// Kind selects which reduction a Parameter performs when two populations
// are aggregated.
type Kind int

const (
	Min Kind = iota
	Max
	Mean
)

// Parameter is C1: value plus the mean-square-error and linear-error
// accumulators described in spec §4.1. T is the scalar's own type (u32 for
// memory/disk, float64 for time-like quantities); all arithmetic is done
// in float64 and converted back at the boundary, since T² would overflow
// for integer T and the original's MSGPACK_DEFINE(parameter, mse,
// linearTerm) layout only cares about the three fields' wire shape, not
// their Go type.
type Parameter[T types.Number] struct {
	Value  T
	MSE    float64
	Linear float64
	Kind   Kind
}

// New builds a Parameter representing a single observation v.
func New[T types.Number](v T, kind Kind) Parameter[T] {
	return Parameter[T]{Value: v, Kind: kind}
}

func reduce[T types.Number](kind Kind, value T, count uint64, rvalue T, rcount uint64) T {
	switch kind {
	case Min:
		if value < rvalue {
			return value
		}
		return rvalue
	case Max:
		if value > rvalue {
			return value
		}
		return rvalue
	default: // Mean
		if count+rcount == 0 {
			return value
		}
		return T((float64(value)*float64(count) + float64(rvalue)*float64(rcount)) / float64(count+rcount))
	}
}

// Aggregate folds other (representing otherCount original observations)
// into self (representing selfCount), returning the combined parameter.
// The update order mirrors ScalarParameter::aggregate in the original
// source exactly: mse is updated from the *old* linear terms before
// linear itself is updated, then value is replaced last.
func (p Parameter[T]) Aggregate(selfCount uint64, other Parameter[T], otherCount uint64) Parameter[T] {
	newValue := reduce(p.Kind, p.Value, selfCount, other.Value, otherCount)
	dL := float64(newValue) - float64(p.Value)
	dR := float64(newValue) - float64(other.Value)

	mse := p.MSE + float64(selfCount)*dL*dL + 2*dL*p.Linear +
		other.MSE + float64(otherCount)*dR*dR + 2*dR*other.Linear
	linear := p.Linear + float64(selfCount)*dL + other.Linear + float64(otherCount)*dR

	return Parameter[T]{Value: newValue, MSE: mse, Linear: linear, Kind: p.Kind}
}

// Norm returns the normalized loss mse / (count * extent(range)^2), the
// quantity the clustering distance is driven by. Returns 0 when the range
// has zero extent (no basis for normalization).
func (p Parameter[T]) Norm(rng types.Interval[T], count uint64) float64 {
	extent := rng.Extent()
	if extent == 0 || count == 0 {
		return 0
	}
	return p.MSE / (float64(count) * extent * extent)
}

// Far reports whether self and other fall in different buckets of rng
// when binned into numBuckets equal-width pieces — the coarse rejection
// test clustering uses before computing an exact distance.
func (p Parameter[T]) Far(other Parameter[T], rng types.Interval[T], numBuckets uint32) bool {
	if rng.Empty() || numBuckets == 0 {
		return false
	}
	return rng.Bucket(p.Value, numBuckets) != rng.Bucket(other.Value, numBuckets)
}
