// Package cluster implements C3 (policy-specific cluster records) and C4
// (the generic bounded-cardinality clustering engine): repeatedly joining
// the globally closest pair of records until the list size is at or below
// a target, preserving conservative bounds and the population total.
package cluster

// Record is anything C4's engine can merge: a population counter plus
// the pairwise operations a policy-specific cluster variant (IB, MMP, DP,
// MSP/FSP) must supply. Distance also returns the precomputed merge
// result, mirroring ClusteringList's DistanceTo caching so a chosen merge
// never needs to redo the aggregation it already paid for to rank it.
type Record interface {
	Population() uint32
	// Far is the coarse bucketized rejection test; true means distance
	// need not be computed at all.
	Far(other Record) bool
	// Distance returns the merge cost and the record that would result
	// from aggregating self with other.
	Distance(other Record) (float64, Record)
	// Reduce shrinks the record's piecewise functions back to their
	// configured piece budget, charging whatever it drops to the
	// record's own loss accumulators. Called once per surviving record
	// after every merge pass, per C4 §4.4 step 5; variants with nothing
	// to shrink just return themselves.
	Reduce() Record
}

// candidate is one cluster's live state during a Cluster() run: the
// record itself, and the best known neighbor (by index into records) it
// would merge with next, recomputed lazily as neighbors get merged away.
type candidate struct {
	rec       Record
	alive     bool
	neighbor  int
	bestDist  float64
	bestMerge Record
}

// Cluster compacts records to at most limit entries by repeatedly
// aggregating the globally closest surviving pair, as C4 §4.4 describes.
// beamWidth bounds the distance pre-scan per candidate but (unlike the
// original's precomputed DistanceList/heap) this port simply rescans
// remaining neighbors directly each time a candidate's best neighbor is
// invalidated by a merge — distance caching is a performance optimization
// orthogonal to the observable merge order and output, so dropping it
// keeps the algorithm's essential behavior (closest-pair-first, K'
// truncation of candidate neighbors) without its bookkeeping structures.
func Cluster(records []Record, limit int, beamWidth int) []Record {
	n := len(records)
	if n <= limit {
		out := make([]Record, n)
		for i, r := range records {
			out[i] = r.Reduce()
		}
		return out
	}

	cands := make([]*candidate, n)
	for i, r := range records {
		cands[i] = &candidate{rec: r, alive: true}
	}
	for i := range cands {
		refreshNeighbor(cands, i, beamWidth)
	}

	alive := n
	for alive > limit {
		best := -1
		for i, c := range cands {
			if !c.alive || c.neighbor < 0 {
				continue
			}
			if best < 0 || c.bestDist < cands[best].bestDist {
				best = i
			}
		}
		if best < 0 {
			break // every remaining candidate is infinitely far (all far())
		}

		c := cands[best]
		target := c.neighbor
		c.rec = c.bestMerge
		cands[target].alive = false
		alive--

		// Anyone whose best neighbor was the merged-away target (or the
		// merge winner itself) needs its distance recomputed.
		for i, other := range cands {
			if !other.alive || i == best {
				continue
			}
			if other.neighbor == target || other.neighbor == best {
				refreshNeighbor(cands, i, beamWidth)
			}
		}
		refreshNeighbor(cands, best, beamWidth)
	}

	out := make([]Record, 0, limit)
	for _, c := range cands {
		if c.alive {
			out = append(out, c.rec.Reduce())
		}
	}
	return out
}

// refreshNeighbor recomputes candidate i's best surviving, non-far
// neighbor among up to beamWidth alive peers, mirroring the K'-nearest
// truncation the original's DistanceList enforces.
func refreshNeighbor(cands []*candidate, i int, beamWidth int) {
	c := cands[i]
	if !c.alive {
		c.neighbor = -1
		return
	}
	c.neighbor = -1
	c.bestDist = 0
	scanned := 0
	for j, other := range cands {
		if j == i || !other.alive {
			continue
		}
		if c.rec.Far(other.rec) {
			continue
		}
		d, merged := c.rec.Distance(other.rec)
		if c.neighbor < 0 || d < c.bestDist {
			c.neighbor = j
			c.bestDist = d
			c.bestMerge = merged
		}
		scanned++
		if scanned >= beamWidth {
			break
		}
	}
}
