package types

// Zone is the address range and reserve-capacity count a subtree
// advertises to its parent (§3, §4.6). A zone is empty when MaxAddr <
// MinAddr, and Contains/Distance treat an empty zone as covering no
// address. The zero value is not empty: it is the singleton zone of
// address 0.0.0.0:0.
type Zone struct {
	MinAddr           Address
	MaxAddr           Address
	AvailableStrNodes uint32
}

// Empty reports whether the zone covers no address (MaxAddr < MinAddr).
// The overlay's child cells track the "None" state before a child's
// first UpdateZone with their own Populated flag, not with Empty.
func (z Zone) Empty() bool {
	return z.MaxAddr.Less(z.MinAddr)
}

// Contains reports whether a lies within [MinAddr, MaxAddr].
func (z Zone) Contains(a Address) bool {
	if z.Empty() {
		return false
	}
	return !a.Less(z.MinAddr) && !z.MaxAddr.Less(a)
}

// Distance is 0 when a is inside the zone, otherwise the smaller gap to
// either endpoint.
func (z Zone) Distance(a Address) uint32 {
	if z.Contains(a) {
		return 0
	}
	if z.Empty() {
		return ^uint32(0)
	}
	dMin := z.MinAddr.Distance(a)
	dMax := z.MaxAddr.Distance(a)
	if dMin < dMax {
		return dMin
	}
	return dMax
}

// Aggregate extends [Min,Max] to also cover other and sums the reserve
// capacity counts, matching the parent-side zone rollup in §4.6.
func (z Zone) Aggregate(other Zone) Zone {
	if other.Empty() {
		return z
	}
	if z.Empty() {
		return other
	}
	out := z
	if other.MinAddr.Less(out.MinAddr) {
		out.MinAddr = other.MinAddr
	}
	if out.MaxAddr.Less(other.MaxAddr) {
		out.MaxAddr = other.MaxAddr
	}
	out.AvailableStrNodes += other.AvailableStrNodes
	return out
}

// Singleton returns the degenerate zone covering exactly one address with
// the given reserve count — what a freshly inserted leaf router
// advertises before it has any children of its own.
func Singleton(a Address, availableStrNodes uint32) Zone {
	return Zone{MinAddr: a, MaxAddr: a, AvailableStrNodes: availableStrNodes}
}
