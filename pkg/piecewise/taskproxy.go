package piecewise

import "sort"

// sentinelID marks the synthetic probe task NewLAFFromQueue appends to
// the queue while searching for the next piece boundary; it never
// corresponds to a real queued task.
const sentinelID = -1

// TaskProxy is one task as the min-slowness ordering (§4.3, a port of
// TaskProxy.cpp/TaskProxy.hpp) sees it: A is the task length, R is how
// many seconds before the construction reference time ("now") the task
// was released (zero or negative), T is its estimated run time, TSum is
// its finish time assuming sequential execution in the queue's current
// order, and D is the deadline SortBySlowness last computed for it.
type TaskProxy struct {
	ID   int
	A    float64
	R    float64
	T    float64
	TSum float64
	D    float64
}

// NewTaskProxy builds a TaskProxy for a real queued task: length a,
// estimated duration t, released releasedAgo seconds before the
// construction reference time.
func NewTaskProxy(a, t, releasedAgo float64) TaskProxy {
	return TaskProxy{A: a, R: -releasedAgo, T: t, TSum: t}
}

func newSentinelTask(a, power float64) TaskProxy {
	t := a / power
	return TaskProxy{ID: sentinelID, A: a, T: t, TSum: t}
}

// deadline is rabs + L*a translated into seconds relative to the
// construction reference time, i.e. R + slowness*A.
func (t TaskProxy) deadline(slowness float64) float64 {
	return t.R + slowness*t.A
}

func (t *TaskProxy) setSlowness(slowness float64) {
	t.D = t.deadline(slowness)
}

func taskProxyLess(a, b TaskProxy) bool {
	return a.D < b.D || (a.D == b.D && a.A < b.A)
}

// SortBySlowness orders list by the deadline a uniform slowness value
// would assign every task, leaving the first task in place — a direct
// port of TaskProxy::List::sortBySlowness.
func SortBySlowness(list []TaskProxy, slowness float64) {
	if len(list) <= 1 {
		return
	}
	rest := list[1:]
	for i := range rest {
		rest[i].setSlowness(slowness)
	}
	sort.SliceStable(rest, func(i, j int) bool { return taskProxyLess(rest[i], rest[j]) })
}

// MeetDeadlines reports whether executing list sequentially starting at
// relative time e, at the given slowness, lets every task finish by its
// deadline — a direct port of TaskProxy::List::meetDeadlines.
func MeetDeadlines(list []TaskProxy, slowness, e float64) bool {
	for _, t := range list {
		e += t.T
		if e > t.deadline(slowness) {
			return false
		}
	}
	return true
}

// SortMinSlowness orders list to (approximately) minimize its worst-case
// slowness, binary-searching switchValues for the smallest candidate
// slowness whose resulting order still meets every deadline — a direct
// port of TaskProxy::List::sortMinSlowness.
func SortMinSlowness(list []TaskProxy, switchValues []float64) {
	if len(switchValues) == 0 {
		return
	}
	if len(switchValues) == 1 {
		SortBySlowness(list, switchValues[0]+1.0)
		return
	}
	minLi, maxLi := 0, len(switchValues)-1
	for maxLi > minLi+1 {
		medLi := (minLi + maxLi) >> 1
		SortBySlowness(list, (switchValues[medLi]+switchValues[medLi+1])/2.0)
		if MeetDeadlines(list, switchValues[medLi], 0) {
			maxLi = medLi
		} else {
			minLi = medLi
		}
	}
	SortBySlowness(list, (switchValues[minLi]+switchValues[maxLi])/2.0)
	if maxLi == len(switchValues)-1 && !MeetDeadlines(list, switchValues[len(switchValues)-1], 0) {
		SortBySlowness(list, switchValues[len(switchValues)-1]+1.0)
	}
}

// GetSwitchValues computes the task-length values at which two queued
// tasks swap relative order under SortBySlowness, the candidate set
// SortMinSlowness searches over — a direct port of
// TaskProxy::List::getSwitchValues.
func GetSwitchValues(list []TaskProxy) []float64 {
	if len(list) == 0 {
		return nil
	}
	values := []float64{(list[0].T - list[0].R) / list[0].A}
	for i := 1; i < len(list); i++ {
		for j := i; j < len(list); j++ {
			if list[i].A != list[j].A {
				l := (list[j].R - list[i].R) / (list[i].A - list[j].A)
				if l > values[0] {
					values = append(values, l)
				}
			}
		}
	}
	sort.Float64s(values)
	return dedupeSorted(values)
}

func dedupeSorted(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
