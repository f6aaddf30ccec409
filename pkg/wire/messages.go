// Package wire implements §6's external message table: a closed set of
// message kinds, one Go struct per kind (the polymorphic-messages
// redesign from spec §9 — a closed sum type with a switch in place of
// the source's virtual dispatch + typeid ladder), encoded with an
// order-preserving, schema-evolving, arrays-as-tuples binary format via
// the tinylib/msgp runtime.
package wire

import "github.com/jcelaya/stars-sub002/pkg/types"

// Kind identifies which of §6's message shapes a Message is; Encode
// writes it as the leading byte of each frame.
type Kind byte

const (
	KindInsertCommand Kind = iota
	KindInsert
	KindInitStructNode
	KindNewChild
	KindNewFather
	KindNewStrNode
	KindStrNodeNeeded
	KindUpdateZone
	KindAck
	KindNack
	KindCommit
	KindRollback
	KindLeaveCmd
	KindLeave
)

func (k Kind) String() string {
	switch k {
	case KindInsertCommand:
		return "InsertCommand"
	case KindInsert:
		return "Insert"
	case KindInitStructNode:
		return "InitStructNode"
	case KindNewChild:
		return "NewChild"
	case KindNewFather:
		return "NewFather"
	case KindNewStrNode:
		return "NewStrNode"
	case KindStrNodeNeeded:
		return "StrNodeNeeded"
	case KindUpdateZone:
		return "UpdateZone"
	case KindAck:
		return "Ack"
	case KindNack:
		return "Nack"
	case KindCommit:
		return "Commit"
	case KindRollback:
		return "Rollback"
	case KindLeaveCmd:
		return "LeaveCmd"
	case KindLeave:
		return "Leave"
	default:
		return "Unknown"
	}
}

// Message is any of §6's wire shapes: it knows its own Kind and can
// round-trip itself through the arrays-as-tuples codec in codec.go.
type Message interface {
	Kind() Kind
}

// TxMessage is a Message that carries a 2PC transaction id, with 0
// reserved as "not a transaction step" per §4.7.
type TxMessage interface {
	Message
	TransactionID() uint64
}

// InsertCommand is the non-Tx message that kicks off routing: a client
// or operator asking a node to insert itself at/under `Where`.
type InsertCommand struct {
	Where types.Address
}

func (InsertCommand) Kind() Kind { return KindInsertCommand }

// Insert carries a node identity through the routing tree toward the
// address it should be inserted near.
type Insert struct {
	TxID  uint64
	Who   types.Address
	ForRN bool
}

func (m Insert) Kind() Kind            { return KindInsert }
func (m Insert) TransactionID() uint64 { return m.TxID }

// InitStructNode tells a freshly-offered sub-node what interior role to
// take on: its father (if any), its level, and its initial children.
type InitStructNode struct {
	TxID        uint64
	FatherValid bool
	Father      types.Address
	Level       uint32
	Children    []types.Address
}

func (m InitStructNode) Kind() Kind            { return KindInitStructNode }
func (m InitStructNode) TransactionID() uint64 { return m.TxID }

// NewChild tells a father it has gained (or is replacing its whole list
// with) a child, as part of a split or leave transaction.
type NewChild struct {
	TxID    uint64
	Child   types.Address
	Seq     uint64
	Replace bool
}

func (m NewChild) Kind() Kind            { return KindNewChild }
func (m NewChild) TransactionID() uint64 { return m.TxID }

// NewFather tells a node (leaf or interior) that its father is changing.
// FatherValid is false only for the root-collapse case (§4.9.3): the
// single remaining child is told to become the new root, i.e. to clear
// its own father rather than adopt Father.
type NewFather struct {
	TxID        uint64
	FatherValid bool
	Father      types.Address
	ForRN       bool
}

func (m NewFather) Kind() Kind            { return KindNewFather }
func (m NewFather) TransactionID() uint64 { return m.TxID }

// NewStrNode answers a StrNodeNeeded request: whoOffers is available to
// take on the new structural role.
type NewStrNode struct {
	TxID      uint64
	WhoOffers types.Address
}

func (m NewStrNode) Kind() Kind            { return KindNewStrNode }
func (m NewStrNode) TransactionID() uint64 { return m.TxID }

// StrNodeNeeded propagates upward until it reaches a node with an
// offline sub-node it can offer for a split, merge, or leave.
type StrNodeNeeded struct {
	TxID     uint64
	WhoNeeds types.Address
}

func (m StrNodeNeeded) Kind() Kind            { return KindStrNodeNeeded }
func (m StrNodeNeeded) TransactionID() uint64 { return m.TxID }

// UpdateZone carries a child's aggregated zone upward, gated by seq.
type UpdateZone struct {
	TxID uint64
	Zone types.Zone
	Seq  uint64
}

func (m UpdateZone) Kind() Kind            { return KindUpdateZone }
func (m UpdateZone) TransactionID() uint64 { return m.TxID }

// Ack/Nack/Commit/Rollback are the 2PC control messages; ForRN/FromRN
// disambiguate which of a dual leaf+interior node's roles is being
// addressed or is replying.
type Ack struct {
	TxID   uint64
	ForRN  bool
	FromRN bool
}

func (m Ack) Kind() Kind            { return KindAck }
func (m Ack) TransactionID() uint64 { return m.TxID }

type Nack struct {
	TxID   uint64
	ForRN  bool
	FromRN bool
}

func (m Nack) Kind() Kind            { return KindNack }
func (m Nack) TransactionID() uint64 { return m.TxID }

type Commit struct {
	TxID  uint64
	ForRN bool
}

func (m Commit) Kind() Kind            { return KindCommit }
func (m Commit) TransactionID() uint64 { return m.TxID }

type Rollback struct {
	TxID  uint64
	ForRN bool
}

func (m Rollback) Kind() Kind            { return KindRollback }
func (m Rollback) TransactionID() uint64 { return m.TxID }

// LeaveCmd/Leave drive the leave protocol (§4.9.5): LeaveCmd is the
// local trigger, Leave is the message sent to the father.
type LeaveCmd struct {
	TxID uint64
}

func (m LeaveCmd) Kind() Kind            { return KindLeaveCmd }
func (m LeaveCmd) TransactionID() uint64 { return m.TxID }

type Leave struct {
	TxID uint64
}

func (m Leave) Kind() Kind            { return KindLeave }
func (m Leave) TransactionID() uint64 { return m.TxID }
