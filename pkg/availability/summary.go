// Package availability implements C5: the per-policy summary that wraps
// a bounded cluster-record list (C3, C4) with the operations a subtree
// exposes upward — setAvailability, join, reduce, getFunctions,
// getAvailability and update.
package availability

import (
	"time"

	"github.com/jcelaya/stars-sub002/pkg/cluster"
	"github.com/jcelaya/stars-sub002/pkg/piecewise"
	"github.com/jcelaya/stars-sub002/pkg/types"
)

// Request bundles the task description a query is evaluated against
// with the number of instances the caller wants placed.
type Request struct {
	Task      types.TaskDescription
	Instances uint32
}

// AssignmentInfo describes one cluster's offer against a Request: how
// many instances it can accommodate and what slack remains before the
// deadline.
type AssignmentInfo struct {
	ClusterIndex int
	Fits         uint32
	Slack        time.Duration
}

// Summary is the bounded-size AAI a subtree advertises: a cluster-record
// list plus the policy's scalar ranges and watermarks, matching the Data
// Model's Availability summary definition. Policy variants differ only
// in what lives in Clusters and the ctx ranges; the housekeeping here is
// shared.
type Summary struct {
	Clusters []cluster.Record
	Ctx      *cluster.Context

	NumClusters int // target bound on cluster-list size after reduce
	BeamWidth   int // distVectorSize, K'

	Modified time.Time // watermark: last time join/update touched this summary
}

// NewSummary builds an empty summary ready for setAvailability or join.
func NewSummary(ctx *cluster.Context, numClusters, beamWidth int) *Summary {
	return &Summary{Ctx: ctx, NumClusters: numClusters, BeamWidth: beamWidth}
}

// SetAvailability initializes a singleton summary at a leaf: exactly one
// cluster record describing that single resource.
func (s *Summary) SetAvailability(rec cluster.Record) {
	s.Clusters = []cluster.Record{rec}
	s.Modified = time.Now()
}

// Join concatenates another summary's cluster list into self — the
// structure endpoint's update-aggregation step folds each child's
// summary in this way before reduce() compacts the result.
func (s *Summary) Join(other *Summary) {
	s.Clusters = append(s.Clusters, other.Clusters...)
	s.Modified = time.Now()
}

// Reduce re-establishes the normalization context (the reference
// back-pointer redesign: ctx is passed explicitly rather than stashed on
// each record), recomputes the per-attribute range normalizers, and runs
// C4 clustering down to NumClusters.
func (s *Summary) Reduce() {
	s.refreshContext()
	s.Clusters = cluster.Cluster(s.Clusters, s.NumClusters, s.BeamWidth)
	s.Modified = time.Now()
}

// refreshContext rebuilds Ctx's scalar ranges and function-distance
// normalizers from the current cluster list. Summaries are freely
// copied, joined and moved, so this relation is transient and must be
// recomputed at the start of every Reduce rather than cached.
func (s *Summary) refreshContext() {
	if len(s.Clusters) == 0 {
		return
	}
	memRange := s.Ctx.MemRange
	diskRange := s.Ctx.DiskRange
	powerRange := s.Ctx.PowerRange

	var minL, maxL *piecewise.LAF
	var minA, maxA *piecewise.ATF

	for _, c := range s.Clusters {
		switch r := c.(type) {
		case *cluster.IBRecord:
			memRange = memRange.Extend(r.MinM.Value)
			diskRange = diskRange.Extend(r.MinD.Value)
		case *cluster.MMPRecord:
			memRange = memRange.Extend(r.MinM.Value)
			diskRange = diskRange.Extend(r.MinD.Value)
			powerRange = powerRange.Extend(r.MinP.Value)
		case *cluster.DPRecord:
			memRange = memRange.Extend(r.MinM.Value)
			diskRange = diskRange.Extend(r.MinD.Value)
			if minA == nil {
				lo, hi := r.MinA, r.MaxA
				minA, maxA = &lo, &hi
			} else {
				lo := piecewise.MinATF(*minA, r.MinA)
				hi := piecewise.MaxATF(*maxA, r.MaxA)
				minA, maxA = &lo, &hi
			}
		case *cluster.MSPRecord:
			memRange = memRange.Extend(r.MinM.Value)
			diskRange = diskRange.Extend(r.MinD.Value)
			if minL == nil {
				lo, hi := r.MaxL, r.MaxL
				minL, maxL = &lo, &hi
			} else {
				lo := piecewise.Min(*minL, r.MaxL)
				hi := piecewise.Max(*maxL, r.MaxL)
				minL, maxL = &lo, &hi
			}
		}
	}

	s.Ctx.MemRange = memRange
	s.Ctx.DiskRange = diskRange
	s.Ctx.PowerRange = powerRange
	if minL != nil && s.Ctx.Horizon > 0 {
		s.Ctx.SlownessRange = piecewise.SqDiff(*maxL, *minL, s.Ctx.Horizon)
	}
	if minA != nil && s.Ctx.TimeHorizon.After(s.Ctx.TimeRef) {
		s.Ctx.AvailRange = maxA.SqDiff(*minA, s.Ctx.TimeRef, s.Ctx.TimeHorizon)
	}
	for _, c := range s.Clusters {
		setCtx(c, s.Ctx)
	}
}

func setCtx(rec cluster.Record, ctx *cluster.Context) {
	switch r := rec.(type) {
	case *cluster.IBRecord:
		r.Ctx = ctx
	case *cluster.MMPRecord:
		r.Ctx = ctx
	case *cluster.DPRecord:
		r.Ctx = ctx
	case *cluster.MSPRecord:
		r.Ctx = ctx
	}
}

// fulfills reports whether a cluster record's resource bounds can
// possibly satisfy req, via the common minM/minD fields every policy
// variant carries. Policy-specific feasibility (power, deadline) layers
// on top in getAvailability.
func fulfills(rec cluster.Record, req Request) bool {
	switch r := rec.(type) {
	case *cluster.IBRecord:
		return req.Task.MaxMemory <= r.MinM.Value && req.Task.MaxDisk <= r.MinD.Value
	case *cluster.MMPRecord:
		return req.Task.MaxMemory <= r.MinM.Value && req.Task.MaxDisk <= r.MinD.Value
	case *cluster.DPRecord:
		return req.Task.MaxMemory <= r.MinM.Value && req.Task.MaxDisk <= r.MinD.Value
	case *cluster.MSPRecord:
		return req.Task.MaxMemory <= r.MinM.Value && req.Task.MaxDisk <= r.MinD.Value
	default:
		return false
	}
}

// GetFunctions returns the (index, population) of every cluster whose
// bounds satisfy req, the candidate set getAvailability evaluates.
func (s *Summary) GetFunctions(req Request) []AssignmentInfo {
	var out []AssignmentInfo
	for i, c := range s.Clusters {
		if fulfills(c, req) {
			out = append(out, AssignmentInfo{ClusterIndex: i, Fits: c.Population()})
		}
	}
	return out
}
