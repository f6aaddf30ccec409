// Package piecewise implements C2: the two piecewise function families
// STaRS passes around as availability and slowness summaries.
//
// LAF (slowness-as-a-function-of-task-length) is represented as an
// ordered list of pieces, each holding the start of its domain and a
// closed-form subfunction valid until the next piece's start; ATF
// (availability-as-a-function-of-time) is an ordered list of points
// joined linearly, growing at a fixed slope after the last one. LAF
// supports Min, Max, SqDiff, MaxDiff, MaxAndLoss and ReduceMax; ATF
// supports MinATF, MaxATF, SqDiff, ReduceMax and ReduceMin. Both walk
// the two functions in lockstep and, where they can cross strictly
// inside a joint interval, solve for the crossing point in closed form
// rather than sampling.
package piecewise

import (
	"math"
	"sort"
)

// DefaultMinTaskLength is the smallest task length an LAF is defined for;
// below it a machine isn't considered assignable at all (the original's
// minTaskLength constant, 1 machine-instruction here rather than 1000 since
// nothing in this port depends on its absolute scale).
const DefaultMinTaskLength = 1.0

// SubFunction is a single piece's closed form: value(a, n) = x/a + y*a*n +
// z1*n + z2, where a is task length and n is the number of tasks of that
// length assigned to the machine. lafSubFunction.
type SubFunction struct {
	X, Y, Z1, Z2 float64
}

// Value evaluates the subfunction for task length a and task count n.
func (s SubFunction) Value(a float64, n int) float64 {
	return s.X/a + s.Y*a*float64(n) + s.Z1*float64(n) + s.Z2
}

func (s SubFunction) equal(o SubFunction) bool {
	return s.X == o.X && s.Y == o.Y && s.Z1 == o.Z1 && s.Z2 == o.Z2
}

// Piece is a subfunction together with the task length at which it starts
// applying; it is in force until the next piece's Start (or +Inf for the
// last piece).
type Piece struct {
	Start float64
	Fn    SubFunction
}

// LAF is C2's slowness function: a non-increasing-in-spirit piecewise
// rational function of task length, pieces ordered by ascending Start.
type LAF struct {
	MinTaskLength float64
	Pieces        []Piece
}

// NewLAF builds an LAF from already-ordered pieces, defaulting
// MinTaskLength to DefaultMinTaskLength when unset.
func NewLAF(minTaskLength float64, pieces []Piece) LAF {
	if minTaskLength <= 0 {
		minTaskLength = DefaultMinTaskLength
	}
	return LAF{MinTaskLength: minTaskLength, Pieces: pieces}
}

// Constant returns a single-piece LAF with the given constant slowness,
// the shape used for a brand-new machine with no queued tasks.
func Constant(value float64) LAF {
	return LAF{
		MinTaskLength: DefaultMinTaskLength,
		Pieces:        []Piece{{Start: DefaultMinTaskLength, Fn: SubFunction{Z2: value}}},
	}
}

// GetSlowness evaluates the function at task length a for n tasks of that
// length. a below MinTaskLength is clamped up to it, mirroring the
// original's treatment of unrepresentable lengths.
func (f LAF) GetSlowness(a float64, n int) float64 {
	if len(f.Pieces) == 0 {
		return 0
	}
	if a < f.MinTaskLength {
		a = f.MinTaskLength
	}
	return f.pieceAt(a).Fn.Value(a, n)
}

func (f LAF) pieceAt(a float64) Piece {
	idx := 0
	for i := range f.Pieces {
		if f.Pieces[i].Start <= a {
			idx = i
		} else {
			break
		}
	}
	return f.Pieces[idx]
}

// NewLAFFromQueue builds an LAF from a task queue the way the original
// LAFunction(TaskProxy::List, switchValues, power) constructor does
// (§4.2): append a synthetic probe task at MinTaskLength, repeatedly
// reorder the queue (§4.3's SortMinSlowness) to minimize the worst-case
// slowness a probe of the current length would see, emit a piece
// describing whichever task sets that worst case, then grow the probe
// length to the nearest point where the ordering or the identity of the
// worst-case task would change, until no such point remains.
//
// tasks holds every currently queued task; switchValues is the result of
// GetSwitchValues(tasks), computed by the caller once up front (the same
// split the original keeps between TaskProxy::List::getSwitchValues and
// the constructor, since the former is also used on its own to answer
// getSwitchValues queries against the live, unprobed queue).
func NewLAFFromQueue(tasks []TaskProxy, switchValues []float64, power float64) LAF {
	if len(tasks) == 0 {
		return NewLAF(DefaultMinTaskLength, []Piece{
			{Start: DefaultMinTaskLength, Fn: SubFunction{Z1: 1.0 / power}},
		})
	}

	queue := make([]TaskProxy, len(tasks), len(tasks)+1)
	copy(queue, tasks)
	queue = append(queue, newSentinelTask(DefaultMinTaskLength, power))

	var pieces []Piece
	for {
		sentinel := queue[len(queue)-1]
		svCur := append([]float64(nil), switchValues...)
		if len(svCur) > 0 {
			for i := 1; i < len(queue); i++ {
				if queue[i].A != sentinel.A {
					l := queue[i].R / (sentinel.A - queue[i].A)
					if l > svCur[0] {
						svCur = append(svCur, l)
					}
				}
			}
			sort.Float64s(svCur)
			svCur = dedupeSorted(svCur)
			SortMinSlowness(queue, svCur)
		}

		// Recompute cumulative finish times in the (possibly just
		// reordered) queue and find tm, the task that sets the current
		// worst-case slowness, and tn, the probe task.
		tnIdx := -1
		tmIdx := 0
		e := queue[0].T
		maxSlowness := (e - queue[0].R) / queue[0].A
		maxTendency := 0.0
		queue[0].TSum = queue[0].T
		beforeNewTask := true
		minBeforeNew := true
		for i := 1; i < len(queue); i++ {
			tendency := 0.0
			if !beforeNewTask {
				tendency = 1.0 / queue[i].A
			}
			if queue[i].ID == sentinelID {
				tnIdx = i
				tendency = -1.0
				queue[i].TSum = queue[i-1].TSum
				beforeNewTask = false
			} else {
				queue[i].TSum = queue[i-1].TSum + queue[i].T
			}
			e += queue[i].T
			slowness := (e - queue[i].R) / queue[i].A
			if slowness > maxSlowness || (slowness == maxSlowness && tendency > maxTendency) {
				maxSlowness = slowness
				tmIdx = i
				minBeforeNew = beforeNewTask
				maxTendency = tendency
			}
		}

		tm := queue[tmIdx]
		tn := queue[tnIdx]
		var tn1 *TaskProxy
		if tnIdx+1 < len(queue) {
			tn1 = &queue[tnIdx+1]
		}

		curA := tn.A
		minA := math.Inf(1)
		consider := func(a float64) {
			if a > curA && a < minA {
				minA = a
			}
		}

		switch {
		case tmIdx == tnIdx:
			pieces = appendPiece(pieces, tn.A, SubFunction{X: tm.TSum, Z1: 1.0 / power})

			for i := 0; i < tnIdx; i++ {
				ti := queue[i]
				consider(ti.A * tm.TSum / (ti.TSum - ti.A/power - ti.R))
			}
			for i := tnIdx + 1; i < len(queue); i++ {
				ti := queue[i]
				c := tm.TSum * ti.A * power
				b := (ti.TSum-ti.R)*power - ti.A
				if d := b*b + 4*c; d >= 0 {
					consider((-b + math.Sqrt(d)) / 2.0)
				}
			}
			if tn1 != nil {
				c := tm.TSum * tn1.A * power
				b := (tm.TSum-tn1.R)*power - tn1.A
				if d := b*b + 4*c; d >= 0 {
					consider((-b + math.Sqrt(d)) / 2.0)
				}
			}
			if len(svCur) > 0 && svCur[0] < maxSlowness {
				i := len(svCur) - 1
				for svCur[i] >= maxSlowness {
					i--
				}
				consider(tm.TSum / (svCur[i] - 1.0/power))
			}

		case minBeforeNew:
			pieces = appendPiece(pieces, tn.A, SubFunction{Z2: (tm.TSum - tm.R) / tm.A})

			consider(tm.A * tn.TSum / (tm.TSum - tm.A/power - tm.R))
			for i := tnIdx + 1; i < len(queue); i++ {
				ti := queue[i]
				consider((ti.A*(tm.TSum-tm.R)/tm.A - ti.TSum + ti.R) * power)
			}
			if tn1 != nil {
				consider(tn1.A - tm.A*tn1.R/(tm.TSum-tm.R))
			}

		default:
			pieces = appendPiece(pieces, tn.A, SubFunction{Y: 1.0 / (tm.A * power), Z2: (tm.TSum - tm.R) / tm.A})

			for i := 0; i < tnIdx; i++ {
				ti := queue[i]
				consider((tm.A*(ti.TSum-ti.R)/ti.A - tm.TSum + tm.R) * power)
			}
			c := tn.TSum * tm.A * power
			b := (tm.TSum-tm.R)*power - tm.A
			if d := b*b + 4*c; d >= 0 {
				consider((-b + math.Sqrt(d)) / 2.0)
			}
			for i := tnIdx + 1; i < len(queue); i++ {
				ti := queue[i]
				consider(((tm.TSum-tm.R)*ti.A - (ti.TSum-ti.R)*tm.A) * power / (tm.A - ti.A))
			}
			if tn1 != nil {
				c := (tm.A*tn1.R + tn1.A*(tm.TSum-tm.R)) * power
				b := (tm.TSum-tm.R)*power - tn1.A
				if d := b*b + 4*c; d >= 0 {
					consider((-b + math.Sqrt(d)) / 2.0)
				}
			}
			if len(svCur) > 0 && svCur[len(svCur)-1] > maxSlowness {
				i := 0
				for svCur[i] <= maxSlowness {
					i++
				}
				consider((svCur[i]*tm.A - tm.TSum + tm.R) * power)
			}
		}

		if math.IsInf(minA, 1) {
			break
		}

		queue[tnIdx].A = minA + 1.0
		queue[tnIdx].T = queue[tnIdx].A / power
		if tn1 != nil {
			probe := queue[tnIdx]
			queue = append(queue[:tnIdx], queue[tnIdx+1:]...)
			queue = append(queue, probe)
		}
	}

	return NewLAF(DefaultMinTaskLength, pieces)
}

// cursor walks one function's pieces alongside its peers during a step.
type lafCursor struct {
	fn  *LAF
	idx int
}

func (c *lafCursor) piece() Piece {
	if len(c.fn.Pieces) == 0 {
		// A function with no pieces (e.g. a fresh accumulator) is zero.
		return Piece{Start: c.fn.MinTaskLength}
	}
	return c.fn.Pieces[c.idx]
}

func (c *lafCursor) nextStart() float64 {
	if c.idx+1 < len(c.fn.Pieces) {
		return c.fn.Pieces[c.idx+1].Start
	}
	return math.Inf(1)
}

// stepInfo describes one maximal sub-interval over which every function's
// active piece is fixed, handed to stepper callers for each step.
type stepInfo struct {
	start, end float64
	pieces     []Piece // one per function, in the order passed to stepper
	// max is the index (0 or 1) of whichever of functions[0], functions[1]
	// has the larger value at the interval's midpoint.
	max int
}

// stepper walks the pieces of the given functions in lockstep over
// (start, horizon), emitting one stepInfo per maximal sub-interval over
// which every function's active piece (and, between functions[0] and
// functions[1], which of the two is larger) is constant. Only the first
// two functions are compared for crossings and ordering; any further
// functions are just sliced along the same boundaries so callers building
// combined subfunctions (maxDiff, maxAndLoss) can read their pieces too.
func stepper(horizon float64, functions []*LAF, visit func(stepInfo)) {
	if len(functions) < 2 {
		return
	}
	start := functions[0].MinTaskLength
	cursors := make([]lafCursor, len(functions))
	for i := range functions {
		cursors[i] = lafCursor{fn: functions[i], idx: 0}
	}

	for start < horizon {
		end := horizon
		advance := -1
		for i := range cursors {
			if ns := cursors[i].nextStart(); ns < end {
				end = ns
				advance = i
			}
		}
		if end > start {
			f0 := cursors[0].piece().Fn
			f1 := cursors[1].piece().Fn
			edges := crossingPoints(f0, f1, start, end)

			prev := start
			for _, e := range append(edges, end) {
				if e <= prev {
					continue
				}
				mid := prev + 1
				if e < math.Inf(1) {
					mid = (prev + e) / 2
				}
				winner := 0
				if f1.Value(mid, 1) > f0.Value(mid, 1) {
					winner = 1
				}
				pieces := make([]Piece, len(cursors))
				for i := range cursors {
					pieces[i] = cursors[i].piece()
				}
				visit(stepInfo{start: prev, end: e, pieces: pieces, max: winner})
				prev = e
			}
		}
		start = end
		if advance < 0 {
			break
		}
		cursors[advance].idx++
	}
}

// crossingPoints solves f0(a) - f1(a) = 0 for a in (lo, hi), where the
// difference is c/a + coefA*a + b (coefA = y0-y1, b = (z1+z2 diffs),
// c = x0-x1). Multiplying through by a turns this into the quadratic
// coefA*a^2 + b*a + c = 0, matching the original stepper's crossing-point
// derivation exactly.
func crossingPoints(f0, f1 SubFunction, lo, hi float64) []float64 {
	coefA := f0.Y - f1.Y
	b := (f0.Z1 + f0.Z2) - (f1.Z1 + f1.Z2)
	c := f0.X - f1.X

	var roots []float64
	switch {
	case coefA == 0 && b == 0:
		// constant difference: either never crosses, or identical
		// everywhere, neither of which needs an edge.
	case coefA == 0:
		roots = append(roots, -c/b)
	default:
		disc := b*b - 4*coefA*c
		if disc >= 0 {
			sq := math.Sqrt(disc)
			r1 := (-b + sq) / (2 * coefA)
			r2 := (-b - sq) / (2 * coefA)
			if r1 > r2 {
				r1, r2 = r2, r1
			}
			roots = append(roots, r1, r2)
		}
	}

	out := make([]float64, 0, len(roots))
	for _, r := range roots {
		if r > lo && r < hi {
			out = append(out, r)
		}
	}
	return out
}

func appendPiece(pieces []Piece, start float64, fn SubFunction) []Piece {
	if len(pieces) > 0 && pieces[len(pieces)-1].Fn.equal(fn) {
		return pieces
	}
	return append(pieces, Piece{Start: start, Fn: fn})
}

// Max returns the pointwise maximum of f and o.
func Max(f, o LAF) LAF {
	var out []Piece
	stepper(math.Inf(1), []*LAF{&f, &o}, func(si stepInfo) {
		out = appendPiece(out, si.start, si.pieces[si.max].Fn)
	})
	return NewLAF(f.MinTaskLength, out)
}

// Min returns the pointwise minimum of f and o.
func Min(f, o LAF) LAF {
	var out []Piece
	stepper(math.Inf(1), []*LAF{&f, &o}, func(si stepInfo) {
		out = appendPiece(out, si.start, si.pieces[si.max^1].Fn)
	})
	return NewLAF(f.MinTaskLength, out)
}

// MaxDiff computes the slowness loss a clustering merge of l (weighted lv)
// and r (weighted rv) into a single cluster with pointwise maxima maxL,
// maxR would incur: the weighted pointwise difference between the
// winning original function and the other original function, offset by
// the already-aggregated maxL/maxR, mirroring LAFunction::maxDiff.
func MaxDiff(l, r LAF, lv, rv uint32, maxL, maxR LAF) LAF {
	val := [2]uint32{lv, rv}
	fs := []*LAF{&l, &r, &maxL, &maxR}
	var out []Piece
	stepper(math.Inf(1), fs, func(si stepInfo) {
		winner := si.pieces[si.max].Fn
		loser := si.pieces[si.max^1].Fn
		w := float64(val[si.max^1])
		sf := SubFunction{
			X:  si.pieces[2].Fn.X + si.pieces[3].Fn.X + w*(winner.X-loser.X),
			Y:  si.pieces[2].Fn.Y + si.pieces[3].Fn.Y + w*(winner.Y-loser.Y),
			Z1: si.pieces[2].Fn.Z1 + si.pieces[3].Fn.Z1 + w*(winner.Z1-loser.Z1),
			Z2: si.pieces[2].Fn.Z2 + si.pieces[3].Fn.Z2 + w*(winner.Z2-loser.Z2),
		}
		out = appendPiece(out, si.start, sf)
	})
	return NewLAF(l.MinTaskLength, out)
}

// sqdiffAccum integrates val * (winner - loser)^2 over [lo, hi), closed
// form, matching the original's sqdiffStep exactly (u,v,w are the
// winner-loser coefficient differences; ab/ba/ba2/ba3/fracba are the
// antiderivative building blocks for 1/a^2, constant, a and a^2 terms and
// the cross log term).
func sqdiffAccum(winner, loser SubFunction, lo, hi, ah, val float64) float64 {
	b := hi
	if math.IsInf(hi, 1) {
		b = ah
	}
	u := winner.X - loser.X
	v := winner.Y - loser.Y
	w := (winner.Z1 + winner.Z2) - (loser.Z1 + loser.Z2)
	ab := lo * b
	ba := b - lo
	ba2 := b*b - lo*lo
	ba3 := b*b*b - lo*lo*lo
	fracba := b / lo

	tmp := (u*u/ab+2*u*v+w*w)*ba + w*v*ba2 + v*v*ba3/3 + 2*u*w*math.Log(fracba)
	return val * tmp
}

// SqDiff returns the integral, out to horizon ah, of the squared pointwise
// difference between f and o — the clustering error a merge of two
// otherwise-identical-looking functions would add.
func SqDiff(f, o LAF, ah float64) float64 {
	var result float64
	stepper(math.Inf(1), []*LAF{&f, &o}, func(si stepInfo) {
		winner := si.pieces[si.max].Fn
		loser := si.pieces[si.max^1].Fn
		result += sqdiffAccum(winner, loser, si.start, si.end, ah, 1)
	})
	return result
}

// MaxAndLoss computes MaxDiff's pointwise maximum (returned as the first
// result, the function the caller should keep) together with the clustering
// loss that merge would incur, in one pass. It mirrors
// LAFunction::maxAndLoss: the loss is the weighted squared deviation of
// each original from the winner, plus twice the cross term against the
// already-aggregated maxL/maxR for the losing side.
func MaxAndLoss(l, r LAF, lv, rv uint32, maxL, maxR LAF, ah float64) (LAF, float64) {
	val := [2]float64{float64(lv), float64(rv)}
	fs := []*LAF{&l, &r, &maxL, &maxR}
	var out []Piece
	var loss float64
	stepper(math.Inf(1), fs, func(si stepInfo) {
		winner := si.pieces[si.max].Fn
		out = appendPiece(out, si.start, winner)

		loser := si.pieces[si.max^1].Fn
		loss += sqdiffAccum(winner, loser, si.start, si.end, ah, val[si.max^1])

		// cross term against the other original function's already-
		// aggregated maximum (index 3-si.max among fs[2], fs[3]).
		lin := si.pieces[3-si.max]
		u, v, w := winner.X-loser.X, winner.Y-loser.Y, (winner.Z1+winner.Z2)-(loser.Z1+loser.Z2)
		u2, v2, w2 := lin.Fn.X, lin.Fn.Y, lin.Fn.Z1+lin.Fn.Z2
		b := si.end
		if math.IsInf(b, 1) {
			b = ah
		}
		ab := si.start * b
		ba := b - si.start
		ba2 := b*b - si.start*si.start
		ba3 := b*b*b - si.start*si.start*si.start
		fracba := b / si.start
		tmp := (u*u2/ab+u2*v+u*v2+w*w2)*ba + (w*v2+v*w2)*ba2/2 + v*v2*ba3/3 + (u2*w+u*w2)*math.Log(fracba)
		loss += 2 * tmp
	})
	return NewLAF(l.MinTaskLength, out), loss
}

// resultCost is one candidate in the reduceMax beam search: a reduced
// function and the sqdiff cost (against the original) it would add.
type resultCost struct {
	result LAF
	cost   float64
}

// ReduceMax reduces f to at most numPieces pieces by repeatedly merging
// the pair of adjacent pieces whose dominating replacement adds the
// least squared error (out to horizon ah), keeping only the quality best
// candidates at each step to bound the search — the beam-search shape of
// LAFunction::reduceMax. The replacement piece dominates both originals,
// so the reduced function stays pointwise at or above f everywhere. It
// returns the reduced function and the weighted loss (v * cost)
// incurred, leaving f itself untouched.
func ReduceMax(f LAF, v uint32, ah float64, numPieces, quality int) (LAF, float64) {
	if len(f.Pieces) <= numPieces {
		return f, 0
	}

	candidates := []resultCost{{result: f, cost: 0}}
	for len(candidates[0].result.Pieces) > numPieces {
		best := candidates[0].result.Pieces
		candidates = candidates[1:]

		var next []resultCost
		for i := 1; i < len(best); i++ {
			prev, cur := best[i-1], best[i]
			// Coefficient-wise maximum: every term of the subfunction has
			// a non-negative multiplier for a > 0, n >= 0, so this
			// dominates both replaced pieces pointwise and the reduced
			// function stays an upper bound of the original.
			join := SubFunction{
				X:  math.Max(prev.Fn.X, cur.Fn.X),
				Y:  math.Max(prev.Fn.Y, cur.Fn.Y),
				Z1: math.Max(prev.Fn.Z1, cur.Fn.Z1),
				Z2: math.Max(prev.Fn.Z2, cur.Fn.Z2),
			}

			merged := make([]Piece, 0, len(best)-1)
			merged = append(merged, best[:i-1]...)
			merged = append(merged, Piece{Start: prev.Start, Fn: join})
			if i+1 < len(best) {
				merged = append(merged, best[i+1:]...)
			}
			candidate := NewLAF(f.MinTaskLength, merged)

			cost := SqDiff(candidate, f, ah)
			next = append(next, resultCost{result: candidate, cost: cost})
		}

		candidates = append(candidates, next...)
		sortByCost(candidates)
		if len(candidates) > quality {
			candidates = candidates[:quality]
		}
		if len(candidates) == 0 {
			break
		}
	}
	if len(candidates) == 0 {
		return f, 0
	}
	return candidates[0].result, float64(v) * candidates[0].cost
}

func sortByCost(cs []resultCost) {
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0 && cs[j].cost < cs[j-1].cost; j-- {
			cs[j], cs[j-1] = cs[j-1], cs[j]
		}
	}
}

// EstimateSlowness evaluates the function at task length a for n tasks,
// without clamping a up to MinTaskLength first (callers that already know
// a is valid use this to skip the branch getSlowness takes).
func (f LAF) EstimateSlowness(a float64, n int) float64 {
	return f.pieceAt(a).Fn.Value(a, n)
}

// Update invalidates the function in response to a new task of the given
// length being queued on n machines: the original leaves recomputing the
// exact post-update shape as a TODO and instead collapses to a
// maximally-pessimistic single piece (y = +Inf), and this port reproduces
// that behavior rather than inventing a different one.
func (f LAF) Update(length uint64, n int) LAF {
	return LAF{
		MinTaskLength: f.MinTaskLength,
		Pieces:        []Piece{{Start: f.MinTaskLength, Fn: SubFunction{Y: math.Inf(1)}}},
	}
}

// GetSlowestMachine returns the largest per-task fixed overhead (z1) among
// the function's pieces, the original's proxy for "how bad is the worst
// machine this summary folds in".
func (f LAF) GetSlowestMachine() float64 {
	var result float64
	for _, p := range f.Pieces {
		if p.Fn.Z1 > result {
			result = p.Fn.Z1
		}
	}
	return result
}
