package cluster

import (
	"time"

	"github.com/jcelaya/stars-sub002/pkg/piecewise"
	"github.com/jcelaya/stars-sub002/pkg/scalar"
	"github.com/jcelaya/stars-sub002/pkg/types"
)

// Context is the normalization range every cluster-record variant needs
// to turn a raw moment into a distance: the spec's §9 redesign of the
// original's transient `reference` back-pointer into an explicit
// parameter, re-established once per reduce() rather than stashed as a
// pointer into a summary that may be freely copied or moved.
type Context struct {
	MemRange   types.Interval[uint32]
	DiskRange  types.Interval[uint32]
	PowerRange types.Interval[uint32]
	NumBuckets uint32

	// SlownessRange/AvailRange are the sqdiff(maxFn, minFn, horizon)
	// normalizers computed once per reduce() for MSP/FSP and DP records
	// respectively.
	SlownessRange float64
	AvailRange    float64
	Horizon       float64
	TimeRef       time.Time
	TimeHorizon   time.Time

	// NumPieces bounds the piece/point count of a record's piecewise
	// functions after Reduce; ReduceQuality is the beam width of the
	// reduction search (0 means the default of 10). NumPieces of 0
	// disables the reduction entirely (scalar-only policies never need
	// it).
	NumPieces     int
	ReduceQuality int
}

func (c *Context) reduceQuality() int {
	if c.ReduceQuality <= 0 {
		return 10
	}
	return c.ReduceQuality
}

// ---- IB: immediate policy -------------------------------------------------

// IBRecord is the immediate-assignment cluster record: population plus
// conservative (minimum) memory and disk bounds.
type IBRecord struct {
	Ctx   *Context
	Value uint32
	MinM  scalar.Parameter[uint32]
	MinD  scalar.Parameter[uint32]
}

func (r *IBRecord) Population() uint32 { return r.Value }

func (r *IBRecord) Far(other Record) bool {
	o := other.(*IBRecord)
	return r.MinM.Far(o.MinM, r.Ctx.MemRange, r.Ctx.NumBuckets) ||
		r.MinD.Far(o.MinD, r.Ctx.DiskRange, r.Ctx.NumBuckets)
}

func (r *IBRecord) Distance(other Record) (float64, Record) {
	o := other.(*IBRecord)
	merged := &IBRecord{
		Ctx:   r.Ctx,
		Value: r.Value + o.Value,
		MinM:  r.MinM.Aggregate(uint64(r.Value), o.MinM, uint64(o.Value)),
		MinD:  r.MinD.Aggregate(uint64(r.Value), o.MinD, uint64(o.Value)),
	}
	d := merged.MinM.Norm(r.Ctx.MemRange, uint64(merged.Value)) +
		merged.MinD.Norm(r.Ctx.DiskRange, uint64(merged.Value))
	return d, merged
}

// Reduce is a no-op for IB: there is no piecewise function to shrink.
func (r *IBRecord) Reduce() Record { return r }

// ---- MMP: makespan policy --------------------------------------------------

// MMPRecord adds a minimum free-processor count and a worst-case
// completion time to IB's memory/disk bounds.
type MMPRecord struct {
	Ctx   *Context
	Value uint32
	MinM  scalar.Parameter[uint32]
	MinD  scalar.Parameter[uint32]
	MinP  scalar.Parameter[uint32]
	MaxT  scalar.Parameter[float64] // unix seconds
}

func (r *MMPRecord) Population() uint32 { return r.Value }

func (r *MMPRecord) Far(other Record) bool {
	o := other.(*MMPRecord)
	return r.MinM.Far(o.MinM, r.Ctx.MemRange, r.Ctx.NumBuckets) ||
		r.MinD.Far(o.MinD, r.Ctx.DiskRange, r.Ctx.NumBuckets) ||
		r.MinP.Far(o.MinP, r.Ctx.PowerRange, r.Ctx.NumBuckets)
}

func (r *MMPRecord) Distance(other Record) (float64, Record) {
	o := other.(*MMPRecord)
	n := uint64(r.Value + o.Value)
	merged := &MMPRecord{
		Ctx:   r.Ctx,
		Value: r.Value + o.Value,
		MinM:  r.MinM.Aggregate(uint64(r.Value), o.MinM, uint64(o.Value)),
		MinD:  r.MinD.Aggregate(uint64(r.Value), o.MinD, uint64(o.Value)),
		MinP:  r.MinP.Aggregate(uint64(r.Value), o.MinP, uint64(o.Value)),
		MaxT:  r.MaxT.Aggregate(uint64(r.Value), o.MaxT, uint64(o.Value)),
	}
	d := merged.MinM.Norm(r.Ctx.MemRange, n) +
		merged.MinD.Norm(r.Ctx.DiskRange, n) +
		merged.MinP.Norm(r.Ctx.PowerRange, n)
	return d, merged
}

// Reduce is a no-op for MMP: all of its fields are scalars.
func (r *MMPRecord) Reduce() Record { return r }

// ---- DP: deadline policy ----------------------------------------------------

// DPRecord tracks the conservative lower envelope of subtree availability
// (minA) and the upward-biased accumulator used to charge clustering loss
// (maxA), plus the moments of the approximation error.
type DPRecord struct {
	Ctx      *Context
	Value    uint32
	MinM     scalar.Parameter[uint32]
	MinD     scalar.Parameter[uint32]
	MinA     piecewise.ATF
	MaxA     piecewise.ATF
	AccumMsq float64
	AccumDsq float64
	AccumMln float64
	AccumDln float64
	AccumAsq float64
}

func (r *DPRecord) Population() uint32 { return r.Value }

func (r *DPRecord) Far(other Record) bool {
	o := other.(*DPRecord)
	return r.MinM.Far(o.MinM, r.Ctx.MemRange, r.Ctx.NumBuckets) ||
		r.MinD.Far(o.MinD, r.Ctx.DiskRange, r.Ctx.NumBuckets)
}

func (r *DPRecord) Distance(other Record) (float64, Record) {
	o := other.(*DPRecord)
	n := uint64(r.Value + o.Value)
	minA := piecewise.MinATF(r.MinA, o.MinA)
	maxA := piecewise.MaxATF(r.MaxA, o.MaxA)

	ref := r.Ctx.TimeRef
	aLoss := r.MinA.SqDiff(minA, ref, r.Ctx.TimeHorizon) + o.MinA.SqDiff(minA, ref, r.Ctx.TimeHorizon)

	merged := &DPRecord{
		Ctx:      r.Ctx,
		Value:    r.Value + o.Value,
		MinM:     r.MinM.Aggregate(uint64(r.Value), o.MinM, uint64(o.Value)),
		MinD:     r.MinD.Aggregate(uint64(r.Value), o.MinD, uint64(o.Value)),
		MinA:     minA,
		MaxA:     maxA,
		AccumMsq: r.AccumMsq + o.AccumMsq,
		AccumDsq: r.AccumDsq + o.AccumDsq,
		AccumMln: r.AccumMln + o.AccumMln,
		AccumDln: r.AccumDln + o.AccumDln,
		AccumAsq: r.AccumAsq + o.AccumAsq + aLoss,
	}

	d := merged.MinM.Norm(r.Ctx.MemRange, n) +
		merged.MinD.Norm(r.Ctx.DiskRange, n)
	if r.Ctx.AvailRange > 0 {
		d += aLoss / (float64(n) * r.Ctx.AvailRange * r.Ctx.AvailRange)
	}
	return d, merged
}

// Reduce shrinks both availability envelopes back to the configured
// point budget: minA downward-conservatively, maxA upward, charging the
// dropped detail to accumAsq.
func (r *DPRecord) Reduce() Record {
	if r.Ctx.NumPieces <= 0 {
		return r
	}
	minA, lossMin := r.MinA.ReduceMin(r.Value, r.Ctx.NumPieces, r.Ctx.reduceQuality())
	maxA, lossMax := r.MaxA.ReduceMax(r.Value, r.Ctx.NumPieces, r.Ctx.reduceQuality())
	r.MinA = minA
	r.MaxA = maxA
	r.AccumAsq += lossMin + lossMax
	return r
}

// ---- MSP/FSP: fair-slowness policy -----------------------------------------

// MSPRecord tracks the upper envelope of worst-case slowness (maxL) and
// the accumulated approximation loss the same way DPRecord does for
// availability.
type MSPRecord struct {
	Ctx       *Context
	Value     uint32
	MinM      scalar.Parameter[uint32]
	MinD      scalar.Parameter[uint32]
	MaxL      piecewise.LAF
	AccumMaxL piecewise.LAF
	AccumMsq  float64
	AccumDsq  float64
	AccumMln  float64
	AccumDln  float64
	AccumLsq  float64
}

func (r *MSPRecord) Population() uint32 { return r.Value }

func (r *MSPRecord) Far(other Record) bool {
	o := other.(*MSPRecord)
	return r.MinM.Far(o.MinM, r.Ctx.MemRange, r.Ctx.NumBuckets) ||
		r.MinD.Far(o.MinD, r.Ctx.DiskRange, r.Ctx.NumBuckets)
}

func (r *MSPRecord) Distance(other Record) (float64, Record) {
	o := other.(*MSPRecord)
	n := uint64(r.Value + o.Value)
	horizon := r.Ctx.Horizon

	maxLV, loss := piecewise.MaxAndLoss(r.MaxL, o.MaxL, r.Value, o.Value, r.AccumMaxL, o.AccumMaxL, horizon)

	merged := &MSPRecord{
		Ctx:       r.Ctx,
		Value:     r.Value + o.Value,
		MinM:      r.MinM.Aggregate(uint64(r.Value), o.MinM, uint64(o.Value)),
		MinD:      r.MinD.Aggregate(uint64(r.Value), o.MinD, uint64(o.Value)),
		MaxL:      maxLV,
		AccumMaxL: piecewise.MaxDiff(r.MaxL, o.MaxL, r.Value, o.Value, r.AccumMaxL, o.AccumMaxL),
		AccumMsq:  r.AccumMsq + o.AccumMsq,
		AccumDsq:  r.AccumDsq + o.AccumDsq,
		AccumMln:  r.AccumMln + o.AccumMln,
		AccumDln:  r.AccumDln + o.AccumDln,
		AccumLsq:  r.AccumLsq + o.AccumLsq + loss,
	}

	d := merged.MinM.Norm(r.Ctx.MemRange, n) +
		merged.MinD.Norm(r.Ctx.DiskRange, n)
	if r.Ctx.SlownessRange > 0 {
		d += loss / (float64(n) * r.Ctx.SlownessRange * r.Ctx.SlownessRange)
	}
	return d, merged
}

// Reduce shrinks the slowness envelope and its deviation accumulator
// back to the configured piece budget, charging the dropped detail to
// accumLsq.
func (r *MSPRecord) Reduce() Record {
	if r.Ctx.NumPieces <= 0 {
		return r
	}
	maxL, loss := piecewise.ReduceMax(r.MaxL, r.Value, r.Ctx.Horizon, r.Ctx.NumPieces, r.Ctx.reduceQuality())
	accum, _ := piecewise.ReduceMax(r.AccumMaxL, r.Value, r.Ctx.Horizon, r.Ctx.NumPieces, r.Ctx.reduceQuality())
	r.MaxL = maxL
	r.AccumMaxL = accum
	r.AccumLsq += loss
	return r
}
