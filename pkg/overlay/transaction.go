package overlay

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/jcelaya/stars-sub002/pkg/types"
)

// Role disambiguates which of a dual-role node's participations a 2PC
// member is tracked under — the ForRN/FromRN bits in §6's wire messages.
type Role int

const (
	RoleRn Role = iota // resource endpoint (leaf) role
	RoleSn             // structure endpoint (interior) role
)

// Participant identifies one member of a transaction's neighborhood: an
// address plus which of its two roles is involved.
type Participant struct {
	Addr types.Address
	Role Role
}

// DriverState is the driver-side 2PC state machine of §4.7.
type DriverState int

const (
	StateIdle DriverState = iota
	StatePreparing
	StateAckWait
	StateCommitted
	StateRolledBack
)

func (s DriverState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePreparing:
		return "Preparing"
	case StateAckWait:
		return "AckWait"
	case StateCommitted:
		return "Committed"
	case StateRolledBack:
		return "RolledBack"
	default:
		return "Unknown"
	}
}

// NewTransactionID draws a uniform-random nonzero 64-bit id, as §4.7
// requires ("chosen uniform-random over the nonzero 64-bit range by the
// driver"). Built from a uuid (matching the pack's uuid usage for
// node/task identity, per DESIGN.md) folded down to 64 bits by xor'ing
// its two halves, redrawing on the astronomically unlikely zero result.
func NewTransactionID() uint64 {
	for {
		id := uuid.New()
		hi := binary.BigEndian.Uint64(id[0:8])
		lo := binary.BigEndian.Uint64(id[8:16])
		if v := hi ^ lo; v != 0 {
			return v
		}
	}
}

// Coordinator tracks one driver-side 2PC round: the set of participants
// still owed an ack (NoAck) versus those that have acked (Acked), plus
// the outstanding timer. Interior embeds one per active split/merge/leave
// transaction; Leaf's father-change handshake is simple enough (one
// participant: the prospective father) that it tracks txId/newFather
// directly rather than through a Coordinator.
type Coordinator struct {
	TxID  uint64
	State DriverState
	NoAck map[Participant]struct{}
	Acked map[Participant]struct{}
	Timer Timer
}

// Begin starts a fresh round against the given participant set and
// moves the driver to AckWait (the send-REQ step is the caller's
// responsibility, since the REQ payload differs per transaction type).
func (c *Coordinator) Begin(txID uint64, participants []Participant) {
	c.TxID = txID
	c.State = StateAckWait
	c.NoAck = make(map[Participant]struct{}, len(participants))
	c.Acked = make(map[Participant]struct{}, len(participants))
	for _, p := range participants {
		c.NoAck[p] = struct{}{}
	}
}

// Ack records that p acknowledged. Returns true once every participant
// has acked (NoAck is empty), the driver's cue to broadcast Commit.
func (c *Coordinator) Ack(p Participant) bool {
	if _, owed := c.NoAck[p]; !owed {
		return len(c.NoAck) == 0
	}
	delete(c.NoAck, p)
	c.Acked[p] = struct{}{}
	return len(c.NoAck) == 0
}

// Participants returns every participant that has acked so far — the
// set a Rollback must be broadcast to ("driver broadcasts Rollback to
// acked participants only", §8 scenario 6).
func (c *Coordinator) Participants() []Participant {
	out := make([]Participant, 0, len(c.Acked))
	for p := range c.Acked {
		out = append(out, p)
	}
	return out
}

// Reset returns the coordinator to Idle with no transaction, cancelling
// any outstanding timer. Called on both commit and rollback completion.
func (c *Coordinator) Reset() {
	if c.Timer != nil {
		c.Timer.Stop()
	}
	*c = Coordinator{}
}

// Active reports whether a transaction is currently open.
func (c *Coordinator) Active() bool { return c.TxID != 0 }
