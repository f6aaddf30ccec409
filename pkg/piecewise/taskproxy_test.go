package piecewise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// maxSlowness runs list sequentially from time 0 and returns the largest
// per-task slowness (finish - release) / length observed.
func maxSlowness(list []TaskProxy) float64 {
	e := 0.0
	worst := 0.0
	for _, t := range list {
		e += t.T
		if s := (e - t.R) / t.A; s > worst {
			worst = s
		}
	}
	return worst
}

// permutations yields every ordering of list[1:], keeping the running
// task fixed at index 0.
func permutations(list []TaskProxy) [][]TaskProxy {
	rest := list[1:]
	var out [][]TaskProxy
	var recurse func(cur, remaining []TaskProxy)
	recurse = func(cur, remaining []TaskProxy) {
		if len(remaining) == 0 {
			perm := make([]TaskProxy, 0, len(list))
			perm = append(perm, list[0])
			perm = append(perm, cur...)
			out = append(out, perm)
			return
		}
		for i := range remaining {
			next := make([]TaskProxy, 0, len(remaining)-1)
			next = append(next, remaining[:i]...)
			next = append(next, remaining[i+1:]...)
			recurse(append(append([]TaskProxy{}, cur...), remaining[i]), next)
		}
	}
	recurse(nil, rest)
	return out
}

func TestSortBySlownessKeepsRunningTaskFirst(t *testing.T) {
	list := []TaskProxy{
		{ID: 0, A: 1000, T: 5, TSum: 5},
		{ID: 1, A: 100, T: 2, TSum: 2},
		{ID: 2, A: 1000, T: 10, TSum: 10},
	}
	SortBySlowness(list, 1.0)
	require.Equal(t, 0, list[0].ID)
}

func TestMeetDeadlinesSequentialCheck(t *testing.T) {
	list := []TaskProxy{
		{A: 1000, T: 5},
		{A: 100, T: 2},
	}
	// Slowness 1.0 gives each task a deadline of R + A, far beyond the
	// 7s it takes to run both.
	require.True(t, MeetDeadlines(list, 1.0, 0))
	// Slowness 1e-4 demands finishing within a fraction of a second.
	require.False(t, MeetDeadlines(list, 1e-4, 0))
}

// TestSortMinSlownessIsOptimal checks the §4.3 contract against brute
// force: no permutation that fixes the running task yields a strictly
// smaller maximum slowness than the order SortMinSlowness picks.
func TestSortMinSlownessIsOptimal(t *testing.T) {
	queues := [][]TaskProxy{
		{
			{ID: 0, A: 1000, R: 0, T: 5, TSum: 5},
			{ID: 1, A: 100, R: 0, T: 2, TSum: 2},
			{ID: 2, A: 1000, R: 0, T: 10, TSum: 10},
		},
		{
			{ID: 0, A: 500, R: 0, T: 3, TSum: 3},
			{ID: 1, A: 2000, R: -4, T: 6, TSum: 6},
			{ID: 2, A: 100, R: -1, T: 1, TSum: 1},
			{ID: 3, A: 700, R: -2, T: 2, TSum: 2},
		},
		{
			{ID: 0, A: 10000, R: -5, T: 5, TSum: 5},
			{ID: 1, A: 10000, R: 0, T: 10, TSum: 10},
		},
	}

	for qi, queue := range queues {
		best := maxSlowness(queue)
		for _, perm := range permutations(queue) {
			if s := maxSlowness(perm); s < best {
				best = s
			}
		}

		sorted := make([]TaskProxy, len(queue))
		copy(sorted, queue)
		SortMinSlowness(sorted, GetSwitchValues(queue))

		require.InDelta(t, best, maxSlowness(sorted), 1e-9,
			"queue %d: SortMinSlowness not optimal", qi)
	}
}
