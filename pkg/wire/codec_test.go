package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcelaya/stars-sub002/pkg/types"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, msg))
	got, err := Decode(&buf)
	require.NoError(t, err)
	return got
}

func TestCodecRoundTripsEveryKind(t *testing.T) {
	a := types.NewAddress(10, 4001)
	b := types.NewAddress(20, 4002)
	zone := types.Zone{MinAddr: a, MaxAddr: b, AvailableStrNodes: 3}

	cases := []Message{
		InsertCommand{Where: a},
		Insert{TxID: 1, Who: a, ForRN: true},
		InitStructNode{TxID: 2, FatherValid: true, Father: a, Level: 1, Children: []types.Address{a, b}},
		NewChild{TxID: 3, Child: a, Seq: 7, Replace: true},
		NewFather{TxID: 4, FatherValid: false, Father: a, ForRN: true},
		NewStrNode{TxID: 5, WhoOffers: b},
		StrNodeNeeded{TxID: 6, WhoNeeds: a},
		UpdateZone{TxID: 7, Zone: zone, Seq: 9},
		Ack{TxID: 8, ForRN: true, FromRN: false},
		Nack{TxID: 9, ForRN: false, FromRN: true},
		Commit{TxID: 10, ForRN: true},
		Rollback{TxID: 11, ForRN: false},
		LeaveCmd{TxID: 12},
		Leave{TxID: 13},
	}

	for _, want := range cases {
		got := roundTrip(t, want)
		assert.Equal(t, want, got, "kind %s", want.Kind())
	}
}

func TestDecodeUnknownKindErrors(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0xFE)
	_, err := Decode(&buf)
	assert.Error(t, err)
}
