package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinatorAckSequencing(t *testing.T) {
	var c Coordinator
	p1 := Participant{Addr: addr(1), Role: RoleRn}
	p2 := Participant{Addr: addr(2), Role: RoleSn}
	c.Begin(42, []Participant{p1, p2})
	assert.True(t, c.Active())
	assert.False(t, c.Ack(p1))
	assert.True(t, c.Ack(p2))
	assert.ElementsMatch(t, []Participant{p1, p2}, c.Participants())
}

func TestCoordinatorAckUnknownParticipantIsNoop(t *testing.T) {
	var c Coordinator
	p1 := Participant{Addr: addr(1), Role: RoleRn}
	c.Begin(7, []Participant{p1})
	stray := Participant{Addr: addr(99), Role: RoleRn}
	assert.False(t, c.Ack(stray))
	assert.True(t, c.Ack(p1))
}

func TestCoordinatorResetClearsState(t *testing.T) {
	var c Coordinator
	c.Begin(1, []Participant{{Addr: addr(1), Role: RoleRn}})
	c.Reset()
	assert.False(t, c.Active())
	assert.Empty(t, c.Participants())
}

func TestNewTransactionIDNeverZero(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.NotZero(t, NewTransactionID())
	}
}
