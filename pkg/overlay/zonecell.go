package overlay

import "github.com/jcelaya/stars-sub002/pkg/types"

// Zone is a structure endpoint's two-valued cell for one child: the
// committed ("actual") link/zone/seq plus, while a transaction is in
// flight, a pending replacement (§9 "Transactional two-valued cells").
// Rather than the source's always-present actual/new pair with a
// separate `changing` bool, this models the pending side as an
// optional pointer: Pending == nil is exactly the `changing == false`
// state spec §4.9.6 requires outside a transaction, so the invariant is
// enforced by the type instead of by convention.
type Zone struct {
	Link types.Address
	Zone types.Zone
	Seq  uint64

	// Populated is false until the first UpdateZone arrives for this
	// child — the explicit "None" zone state §4.9.1/§4.9.3 check before
	// routing through or aggregating a child.
	Populated bool

	// Deleted marks a committed cell that should be dropped from the
	// children list on Commit (used when a child migrates away during a
	// split, §4.9.4 step 2).
	Deleted bool

	// Added marks a cell inserted by an in-flight transaction (a leaf
	// router admitting a new child, or a father handling NewChild): it
	// only becomes permanent on Commit, and a Rollback removes it.
	Added bool

	Pending *PendingZone
}

// PendingZone is the "new" side of a Zone cell while a transaction is
// open against it.
type PendingZone struct {
	Link   types.Address
	Zone   types.Zone
	Delete bool
}

// Changing reports whether this cell currently has a pending
// replacement, the Go equivalent of the source's `changing` flag.
func (z *Zone) Changing() bool { return z.Pending != nil }

// BeginLinkChange opens a pending replacement that points the cell at a
// different child (a split moving the child to a new father, or a leave
// replacing the whole list). The committed side is left untouched until
// Commit or Rollback.
func (z *Zone) BeginLinkChange(newLink types.Address) {
	z.Pending = &PendingZone{Link: newLink, Zone: z.Zone}
}

// BeginDelete opens a pending deletion: on Commit the cell is dropped
// from its owner's children list (used for a migrated-away child).
func (z *Zone) BeginDelete() {
	z.Pending = &PendingZone{Delete: true}
}

// UpdateZone applies a freshly aggregated zone to the committed side.
// This is not part of the 2PC pending/commit dance — UpdateZone (§4.9.2)
// is a best-effort, seq-gated update that applies immediately, exactly
// as §4.8's invariant describes.
func (z *Zone) UpdateZone(zone types.Zone, seq uint64) bool {
	if z.Populated && seq <= z.Seq {
		return false
	}
	z.Zone = zone
	z.Seq = seq
	z.Populated = true
	return true
}

// Commit makes the pending side permanent. Returns true if the cell
// should now be dropped from its owner's children slice (Deleted).
func (z *Zone) Commit() bool {
	z.Added = false
	if z.Pending == nil {
		return z.Deleted
	}
	if z.Pending.Delete {
		z.Pending = nil
		z.Deleted = true
		return true
	}
	z.Link = z.Pending.Link
	z.Zone = z.Pending.Zone
	z.Pending = nil
	return z.Deleted
}

// Rollback discards the pending side, leaving the committed side
// untouched — the atomicity property §8 tests directly. Returns true if
// the cell was itself a pending addition and should be dropped from its
// owner's children slice.
func (z *Zone) Rollback() bool {
	z.Pending = nil
	if z.Added {
		z.Added = false
		return true
	}
	return false
}
