package wire

import (
	"fmt"
	"io"

	"github.com/tinylib/msgp/msgp"

	"github.com/jcelaya/stars-sub002/pkg/types"
)

// Encode writes msg to w as a Kind byte followed by an arrays-as-tuples
// msgpack encoding of its fields, in field-declaration order. Arrays
// (rather than maps) keep the wire format compact. Decode reads exactly
// the fields each kind declares and ignores the tuple's length: it does
// not skip extra trailing elements, so a message with fields appended
// at the tail is not decoded correctly, nor is anything read after it
// from the same stream.
func Encode(w io.Writer, msg Message) error {
	mw := msgp.NewWriter(w)
	if err := mw.WriteByte(byte(msg.Kind())); err != nil {
		return err
	}
	if err := encodeBody(mw, msg); err != nil {
		return err
	}
	return mw.Flush()
}

// Decode reads one Kind byte plus its tuple body from r and returns the
// reconstructed Message.
func Decode(r io.Reader) (Message, error) {
	mr := msgp.NewReader(r)
	kb, err := mr.ReadByte()
	if err != nil {
		return nil, err
	}
	return decodeBody(mr, Kind(kb))
}

func encodeBody(w *msgp.Writer, msg Message) error {
	switch m := msg.(type) {
	case InsertCommand:
		if err := w.WriteArrayHeader(1); err != nil {
			return err
		}
		return writeAddress(w, m.Where)

	case Insert:
		if err := w.WriteArrayHeader(3); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		if err := writeAddress(w, m.Who); err != nil {
			return err
		}
		return w.WriteBool(m.ForRN)

	case InitStructNode:
		if err := w.WriteArrayHeader(5); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		if err := w.WriteBool(m.FatherValid); err != nil {
			return err
		}
		if err := writeAddress(w, m.Father); err != nil {
			return err
		}
		if err := w.WriteUint32(m.Level); err != nil {
			return err
		}
		return writeAddressSlice(w, m.Children)

	case NewChild:
		if err := w.WriteArrayHeader(4); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		if err := writeAddress(w, m.Child); err != nil {
			return err
		}
		if err := w.WriteUint64(m.Seq); err != nil {
			return err
		}
		return w.WriteBool(m.Replace)

	case NewFather:
		if err := w.WriteArrayHeader(4); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		if err := w.WriteBool(m.FatherValid); err != nil {
			return err
		}
		if err := writeAddress(w, m.Father); err != nil {
			return err
		}
		return w.WriteBool(m.ForRN)

	case NewStrNode:
		if err := w.WriteArrayHeader(2); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		return writeAddress(w, m.WhoOffers)

	case StrNodeNeeded:
		if err := w.WriteArrayHeader(2); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		return writeAddress(w, m.WhoNeeds)

	case UpdateZone:
		if err := w.WriteArrayHeader(3); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		if err := writeZone(w, m.Zone); err != nil {
			return err
		}
		return w.WriteUint64(m.Seq)

	case Ack:
		if err := w.WriteArrayHeader(3); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		if err := w.WriteBool(m.ForRN); err != nil {
			return err
		}
		return w.WriteBool(m.FromRN)

	case Nack:
		if err := w.WriteArrayHeader(3); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		if err := w.WriteBool(m.ForRN); err != nil {
			return err
		}
		return w.WriteBool(m.FromRN)

	case Commit:
		if err := w.WriteArrayHeader(2); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		return w.WriteBool(m.ForRN)

	case Rollback:
		if err := w.WriteArrayHeader(2); err != nil {
			return err
		}
		if err := w.WriteUint64(m.TxID); err != nil {
			return err
		}
		return w.WriteBool(m.ForRN)

	case LeaveCmd:
		if err := w.WriteArrayHeader(1); err != nil {
			return err
		}
		return w.WriteUint64(m.TxID)

	case Leave:
		if err := w.WriteArrayHeader(1); err != nil {
			return err
		}
		return w.WriteUint64(m.TxID)

	default:
		return fmt.Errorf("wire: encode: unknown message type %T", msg)
	}
}

func decodeBody(r *msgp.Reader, kind Kind) (Message, error) {
	switch kind {
	case KindInsertCommand:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		where, err := readAddress(r)
		if err != nil {
			return nil, err
		}
		return InsertCommand{Where: where}, nil

	case KindInsert:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		who, err := readAddress(r)
		if err != nil {
			return nil, err
		}
		forRN, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return Insert{TxID: txID, Who: who, ForRN: forRN}, nil

	case KindInitStructNode:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		fv, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		father, err := readAddress(r)
		if err != nil {
			return nil, err
		}
		level, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		children, err := readAddressSlice(r)
		if err != nil {
			return nil, err
		}
		return InitStructNode{TxID: txID, FatherValid: fv, Father: father, Level: level, Children: children}, nil

	case KindNewChild:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		child, err := readAddress(r)
		if err != nil {
			return nil, err
		}
		seq, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		replace, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return NewChild{TxID: txID, Child: child, Seq: seq, Replace: replace}, nil

	case KindNewFather:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		fv, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		father, err := readAddress(r)
		if err != nil {
			return nil, err
		}
		forRN, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return NewFather{TxID: txID, FatherValid: fv, Father: father, ForRN: forRN}, nil

	case KindNewStrNode:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		who, err := readAddress(r)
		if err != nil {
			return nil, err
		}
		return NewStrNode{TxID: txID, WhoOffers: who}, nil

	case KindStrNodeNeeded:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		who, err := readAddress(r)
		if err != nil {
			return nil, err
		}
		return StrNodeNeeded{TxID: txID, WhoNeeds: who}, nil

	case KindUpdateZone:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		zone, err := readZone(r)
		if err != nil {
			return nil, err
		}
		seq, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		return UpdateZone{TxID: txID, Zone: zone, Seq: seq}, nil

	case KindAck:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		forRN, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		fromRN, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return Ack{TxID: txID, ForRN: forRN, FromRN: fromRN}, nil

	case KindNack:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		forRN, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		fromRN, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return Nack{TxID: txID, ForRN: forRN, FromRN: fromRN}, nil

	case KindCommit:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		forRN, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return Commit{TxID: txID, ForRN: forRN}, nil

	case KindRollback:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		forRN, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return Rollback{TxID: txID, ForRN: forRN}, nil

	case KindLeaveCmd:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		return LeaveCmd{TxID: txID}, nil

	case KindLeave:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		txID, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		return Leave{TxID: txID}, nil

	default:
		return nil, fmt.Errorf("wire: decode: unknown kind %d", kind)
	}
}

func writeAddress(w *msgp.Writer, a types.Address) error {
	if err := w.WriteArrayHeader(2); err != nil {
		return err
	}
	if err := w.WriteUint32(a.IP); err != nil {
		return err
	}
	return w.WriteUint16(a.Port)
}

func readAddress(r *msgp.Reader) (types.Address, error) {
	if _, err := r.ReadArrayHeader(); err != nil {
		return types.Address{}, err
	}
	ip, err := r.ReadUint32()
	if err != nil {
		return types.Address{}, err
	}
	port, err := r.ReadUint16()
	if err != nil {
		return types.Address{}, err
	}
	return types.NewAddress(ip, port), nil
}

func writeAddressSlice(w *msgp.Writer, addrs []types.Address) error {
	if err := w.WriteArrayHeader(uint32(len(addrs))); err != nil {
		return err
	}
	for _, a := range addrs {
		if err := writeAddress(w, a); err != nil {
			return err
		}
	}
	return nil
}

func readAddressSlice(r *msgp.Reader) ([]types.Address, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	out := make([]types.Address, 0, n)
	for i := uint32(0); i < n; i++ {
		a, err := readAddress(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func writeZone(w *msgp.Writer, z types.Zone) error {
	if err := w.WriteArrayHeader(3); err != nil {
		return err
	}
	if err := writeAddress(w, z.MinAddr); err != nil {
		return err
	}
	if err := writeAddress(w, z.MaxAddr); err != nil {
		return err
	}
	return w.WriteUint32(z.AvailableStrNodes)
}

func readZone(r *msgp.Reader) (types.Zone, error) {
	if _, err := r.ReadArrayHeader(); err != nil {
		return types.Zone{}, err
	}
	min, err := readAddress(r)
	if err != nil {
		return types.Zone{}, err
	}
	max, err := readAddress(r)
	if err != nil {
		return types.Zone{}, err
	}
	avail, err := r.ReadUint32()
	if err != nil {
		return types.Zone{}, err
	}
	return types.Zone{MinAddr: min, MaxAddr: max, AvailableStrNodes: avail}, nil
}
