package types

import "math"

// Number is the set of scalar types Interval and ScalarParameter operate
// over: the unsigned counters (memory, disk) and signed/float quantities
// (time deltas, slowness).
type Number interface {
	~int64 | ~uint32 | ~uint64 | ~float64
}

// Interval is a closed [Min, Max] range over a numeric type. It powers the
// "far apart" bucketization test used by clustering (§3, §4.1).
type Interval[T Number] struct {
	Min T
	Max T
}

// NewInterval builds an Interval, which may start out empty (min > max);
// Extend widens it from there.
func NewInterval[T Number](min, max T) Interval[T] {
	return Interval[T]{Min: min, Max: max}
}

// Empty reports whether the interval has never been extended to a valid
// range (min > max).
func (iv Interval[T]) Empty() bool {
	return iv.Min > iv.Max
}

// Extent returns Max - Min, or 0 for an empty interval.
func (iv Interval[T]) Extent() float64 {
	if iv.Empty() {
		return 0
	}
	return float64(iv.Max) - float64(iv.Min)
}

// Extend widens the interval's endpoints so that v falls inside it.
func (iv Interval[T]) Extend(v T) Interval[T] {
	if iv.Empty() {
		return Interval[T]{Min: v, Max: v}
	}
	out := iv
	if v < out.Min {
		out.Min = v
	}
	if v > out.Max {
		out.Max = v
	}
	return out
}

// Bucket returns the index, in [0, numBuckets), of the equal-width bin of
// this interval that v falls into. Values are clamped to the interval
// first so out-of-range inputs still yield a valid bucket.
func (iv Interval[T]) Bucket(v T, numBuckets uint32) uint32 {
	if iv.Empty() || numBuckets == 0 {
		return 0
	}
	extent := iv.Extent()
	if extent == 0 {
		return 0
	}
	fv := float64(v) - float64(iv.Min)
	b := int(math.Floor(fv * float64(numBuckets) / extent))
	if b < 0 {
		b = 0
	}
	if b >= int(numBuckets) {
		b = int(numBuckets) - 1
	}
	return uint32(b)
}
