package availability

import (
	"time"

	"github.com/jcelaya/stars-sub002/pkg/cluster"
)

// minMakespanStep/maxMakespanStep bound the binary search in
// GetAvailabilityMMP, matching §4.5's "start d=300e6; while found<N and
// d<10^18: double d" growth phase.
const (
	minMakespanStep = 300e6
	maxMakespanStep = 1e18
)

// GetAvailabilityIB evaluates the immediate-assignment policy: a cluster
// fulfills immediately or not at all, so slack is always zero and the
// count offered is simply however many instances its population can
// cover.
func (s *Summary) GetAvailabilityIB(req Request) []AssignmentInfo {
	var out []AssignmentInfo
	remaining := req.Instances
	for _, ai := range s.GetFunctions(req) {
		if remaining == 0 {
			break
		}
		fits := ai.Fits
		if fits > remaining {
			fits = remaining
		}
		out = append(out, AssignmentInfo{ClusterIndex: ai.ClusterIndex, Fits: fits, Slack: 0})
		remaining -= fits
	}
	return out
}

// countFittingByDeadline is the query GetAvailabilityMMP's binary search
// repeats at each candidate deadline: how many total instances could be
// placed if every fulfilling cluster's maxT (worst-case completion time)
// were at or before deadline.
func (s *Summary) countFittingByDeadline(req Request, deadline time.Time) uint32 {
	var found uint32
	for _, c := range s.Clusters {
		mmp, ok := c.(*cluster.MMPRecord)
		if !ok || !fulfills(c, req) {
			continue
		}
		completion := time.Unix(0, int64(mmp.MaxT.Value*float64(time.Second)))
		if !completion.After(deadline) {
			found += mmp.Value
		}
	}
	return found
}

// GetAvailabilityMMP implements the makespan binary search: grow a
// candidate window exponentially from minMakespanStep until at least
// req.Instances fit or the window exceeds maxMakespanStep, then bisect
// between the last too-small and first big-enough deadlines.
func (s *Summary) GetAvailabilityMMP(req Request, now time.Time) []AssignmentInfo {
	d := minMakespanStep
	var lo, hi time.Duration
	found := uint32(0)
	for found < req.Instances && d < maxMakespanStep {
		candidate := now.Add(time.Duration(d) * time.Second)
		found = s.countFittingByDeadline(req, candidate)
		if found < req.Instances {
			lo = time.Duration(d) * time.Second
			d *= 2
		} else {
			hi = time.Duration(d) * time.Second
		}
	}
	if hi == 0 {
		hi = time.Duration(d) * time.Second
	}

	for hi-lo > time.Second {
		mid := lo + (hi-lo)/2
		if s.countFittingByDeadline(req, now.Add(mid)) >= req.Instances {
			hi = mid
		} else {
			lo = mid
		}
	}

	deadline := now.Add(hi)
	var out []AssignmentInfo
	remaining := req.Instances
	for i, c := range s.Clusters {
		if remaining == 0 {
			break
		}
		mmp, ok := c.(*cluster.MMPRecord)
		if !ok || !fulfills(c, req) {
			continue
		}
		completion := time.Unix(0, int64(mmp.MaxT.Value*float64(time.Second)))
		if completion.After(deadline) {
			continue
		}
		fits := mmp.Value
		if fits > remaining {
			fits = remaining
		}
		out = append(out, AssignmentInfo{ClusterIndex: i, Fits: fits, Slack: deadline.Sub(completion)})
		remaining -= fits
	}
	return out
}

// GetAvailabilityDP evaluates the deadline policy: a cluster offers
// instances up to the amount of availability its conservative envelope
// (MinA) has accumulated by req.Task.Deadline, divided by the work one
// instance requires.
func (s *Summary) GetAvailabilityDP(req Request, ref time.Time) []AssignmentInfo {
	var out []AssignmentInfo
	remaining := req.Instances
	workPerTask := float64(req.Task.AppLength())
	if workPerTask <= 0 {
		workPerTask = 1
	}
	for i, c := range s.Clusters {
		if remaining == 0 {
			break
		}
		dp, ok := c.(*cluster.DPRecord)
		if !ok || !fulfills(c, req) {
			continue
		}
		avail := dp.MinA.Value(ref, req.Task.Deadline)
		fits := uint32(avail / workPerTask)
		if fits > dp.Value {
			fits = dp.Value
		}
		if fits > remaining {
			fits = remaining
		}
		if fits == 0 {
			continue
		}
		out = append(out, AssignmentInfo{ClusterIndex: i, Fits: fits})
		remaining -= fits
	}
	return out
}

// GetAvailabilityMSP evaluates the fair-slowness policy: a cluster
// offers instances so long as the resulting worst-case slowness
// (MaxL.EstimateSlowness) keeps every task within its deadline.
func (s *Summary) GetAvailabilityMSP(req Request, now time.Time) []AssignmentInfo {
	var out []AssignmentInfo
	remaining := req.Instances
	length := float64(req.Task.Length)
	if length <= 0 {
		length = 1
	}
	for i, c := range s.Clusters {
		if remaining == 0 {
			break
		}
		msp, ok := c.(*cluster.MSPRecord)
		if !ok || !fulfills(c, req) {
			continue
		}
		slowness := msp.MaxL.EstimateSlowness(length, int(req.Task.NumTasks))
		finish := now.Add(time.Duration(slowness * length * float64(time.Second)))
		if finish.After(req.Task.Deadline) {
			continue
		}
		fits := msp.Value
		if fits > remaining {
			fits = remaining
		}
		out = append(out, AssignmentInfo{ClusterIndex: i, Fits: fits, Slack: req.Task.Deadline.Sub(finish)})
		remaining -= fits
	}
	return out
}

// Update subtracts each assignment's Fits from the population of the
// cluster it names. For DP and MSP records that population is appended
// as a new cluster entry whose function is advanced to reflect the
// assignment (MinA through ATF.Update, MaxL through LAF.Update); IB and
// MMP records only have their population reduced, and no entry is
// appended for them. Callers typically Reduce() afterward to re-bound
// the list.
func (s *Summary) Update(assignments []AssignmentInfo, req Request) {
	for _, a := range assignments {
		if a.ClusterIndex < 0 || a.ClusterIndex >= len(s.Clusters) {
			continue
		}
		switch c := s.Clusters[a.ClusterIndex].(type) {
		case *cluster.IBRecord:
			c.Value -= a.Fits
		case *cluster.MMPRecord:
			c.Value -= a.Fits
		case *cluster.DPRecord:
			updated := c.MinA.Update(s.Ctx.TimeRef, float64(req.Task.AppLength()), req.Task.Deadline)
			c.Value -= a.Fits
			s.Clusters = append(s.Clusters, &cluster.DPRecord{
				Ctx:   c.Ctx,
				Value: a.Fits,
				MinM:  c.MinM,
				MinD:  c.MinD,
				MinA:  updated,
				MaxA:  c.MaxA,
			})
		case *cluster.MSPRecord:
			updated := c.MaxL.Update(req.Task.Length, int(req.Task.NumTasks))
			c.Value -= a.Fits
			s.Clusters = append(s.Clusters, &cluster.MSPRecord{
				Ctx:   c.Ctx,
				Value: a.Fits,
				MinM:  c.MinM,
				MinD:  c.MinD,
				MaxL:  updated,
			})
		}
	}
	s.Modified = time.Now()
}
