// Package protocol holds the control packets exchanged between neighbours and their wire encoding.
//
// The encoding is protobuf compatible:
//
//	message Flood  { string origin = 1; double x = 2; double y = 3; double z = 4; uint32 hop_count = 5; uint32 seqno = 6; }
//	message Ahd    { string origin = 1; string beacon = 2; double ahd = 3; uint32 hop_count = 4; uint32 seqno = 5; }
//	message Packet { oneof type { Flood flood = 1; Ahd ahd = 2; } }
//	message Bundle { repeated Packet packets = 1; }
package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/encodeous/dvhop/state"
	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformed = errors.New("malformed packet")

type Kind uint8

const (
	KindFlood Kind = iota + 1
	KindAhd
)

func (k Kind) String() string {
	switch k {
	case KindFlood:
		return "flood"
	case KindAhd:
		return "ahd"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Flood announces a beacon's position. HopCount is the number of links the packet has crossed.
type Flood struct {
	Origin   state.NodeId
	Position state.Position
	HopCount uint32
	Seqno    uint16
}

// Ahd carries the average hop distance computed by Origin for Beacon.
type Ahd struct {
	Origin   state.NodeId
	Beacon   state.NodeId
	Ahd      float64
	HopCount uint32
	Seqno    uint16
}

// Packet holds exactly one of Flood or Ahd.
type Packet struct {
	Flood *Flood
	Ahd   *Ahd
}

type Bundle struct {
	Packets []Packet
}

func (p Packet) Kind() Kind {
	if p.Flood != nil {
		return KindFlood
	}
	if p.Ahd != nil {
		return KindAhd
	}
	return 0
}

func (p Packet) Origin() state.NodeId {
	switch {
	case p.Flood != nil:
		return p.Flood.Origin
	case p.Ahd != nil:
		return p.Ahd.Origin
	}
	return ""
}

func (p Packet) Seqno() uint16 {
	switch {
	case p.Flood != nil:
		return p.Flood.Seqno
	case p.Ahd != nil:
		return p.Ahd.Seqno
	}
	return 0
}

func (p Packet) String() string {
	switch {
	case p.Flood != nil:
		f := p.Flood
		return fmt.Sprintf("flood(origin: %s, pos: %s, hops: %d, seqno: %d)", f.Origin, f.Position, f.HopCount, f.Seqno)
	case p.Ahd != nil:
		a := p.Ahd
		return fmt.Sprintf("ahd(origin: %s, beacon: %s, ahd: %.3f, hops: %d, seqno: %d)", a.Origin, a.Beacon, a.Ahd, a.HopCount, a.Seqno)
	}
	return "empty"
}

func sizeString(num protowire.Number, s string) int {
	return protowire.SizeTag(num) + protowire.SizeBytes(len(s))
}

func sizeVarint(num protowire.Number, v uint64) int {
	return protowire.SizeTag(num) + protowire.SizeVarint(v)
}

func sizeDouble(num protowire.Number) int {
	return protowire.SizeTag(num) + protowire.SizeFixed64()
}

func (f *Flood) size() int {
	return sizeString(1, string(f.Origin)) +
		sizeDouble(2) + sizeDouble(3) + sizeDouble(4) +
		sizeVarint(5, uint64(f.HopCount)) +
		sizeVarint(6, uint64(f.Seqno))
}

func (a *Ahd) size() int {
	return sizeString(1, string(a.Origin)) +
		sizeString(2, string(a.Beacon)) +
		sizeDouble(3) +
		sizeVarint(4, uint64(a.HopCount)) +
		sizeVarint(5, uint64(a.Seqno))
}

// Size is the encoded size of the packet.
func (p Packet) Size() int {
	switch {
	case p.Flood != nil:
		return protowire.SizeTag(1) + protowire.SizeBytes(p.Flood.size())
	case p.Ahd != nil:
		return protowire.SizeTag(2) + protowire.SizeBytes(p.Ahd.size())
	}
	return 0
}

// BundledSize is the number of bytes the packet adds to a bundle.
func (p Packet) BundledSize() int {
	return protowire.SizeTag(1) + protowire.SizeBytes(p.Size())
}

func (b Bundle) Size() int {
	n := 0
	for _, p := range b.Packets {
		n += p.BundledSize()
	}
	return n
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func (f *Flood) appendTo(b []byte) []byte {
	b = appendString(b, 1, string(f.Origin))
	b = appendDouble(b, 2, f.Position.X)
	b = appendDouble(b, 3, f.Position.Y)
	b = appendDouble(b, 4, f.Position.Z)
	b = appendVarint(b, 5, uint64(f.HopCount))
	return appendVarint(b, 6, uint64(f.Seqno))
}

func (a *Ahd) appendTo(b []byte) []byte {
	b = appendString(b, 1, string(a.Origin))
	b = appendString(b, 2, string(a.Beacon))
	b = appendDouble(b, 3, a.Ahd)
	b = appendVarint(b, 4, uint64(a.HopCount))
	return appendVarint(b, 5, uint64(a.Seqno))
}

// AppendPacket appends the encoded packet to b.
func AppendPacket(b []byte, p Packet) []byte {
	switch {
	case p.Flood != nil:
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(p.Flood.size()))
		return p.Flood.appendTo(b)
	case p.Ahd != nil:
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(p.Ahd.size()))
		return p.Ahd.appendTo(b)
	}
	return b
}

func MarshalBundle(bundle Bundle) []byte {
	b := make([]byte, 0, bundle.Size())
	for _, p := range bundle.Packets {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(p.Size()))
		b = AppendPacket(b, p)
	}
	return b
}

// fieldDecoder consumes the value of a known field and returns the number of bytes read,
// 0 when the field is unknown, or a negative protowire error code.
type fieldDecoder func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func decodeMessage(b []byte, fn fieldDecoder) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func consumeString(b []byte, dst *state.NodeId) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = state.NodeId(v)
	}
	return n, nil
}

func consumeDouble(b []byte, dst *float64) (int, error) {
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		*dst = math.Float64frombits(v)
	}
	return n, nil
}

func consumeUint32(b []byte, dst *uint32) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = uint32(v)
	}
	return n, nil
}

func consumeSeqno(b []byte, dst *uint16) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = uint16(v)
	}
	return n, nil
}

func decodeFlood(b []byte) (*Flood, error) {
	f := &Flood{}
	err := decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &f.Origin)
		case num == 2 && typ == protowire.Fixed64Type:
			return consumeDouble(b, &f.Position.X)
		case num == 3 && typ == protowire.Fixed64Type:
			return consumeDouble(b, &f.Position.Y)
		case num == 4 && typ == protowire.Fixed64Type:
			return consumeDouble(b, &f.Position.Z)
		case num == 5 && typ == protowire.VarintType:
			return consumeUint32(b, &f.HopCount)
		case num == 6 && typ == protowire.VarintType:
			return consumeSeqno(b, &f.Seqno)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if f.Origin == "" || f.HopCount == 0 {
		return nil, fmt.Errorf("%w: flood without origin or hop count", ErrMalformed)
	}
	for _, c := range []float64{f.Position.X, f.Position.Y, f.Position.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: flood position %v", ErrMalformed, f.Position)
		}
	}
	return f, nil
}

func decodeAhd(b []byte) (*Ahd, error) {
	a := &Ahd{}
	err := decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &a.Origin)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &a.Beacon)
		case num == 3 && typ == protowire.Fixed64Type:
			return consumeDouble(b, &a.Ahd)
		case num == 4 && typ == protowire.VarintType:
			return consumeUint32(b, &a.HopCount)
		case num == 5 && typ == protowire.VarintType:
			return consumeSeqno(b, &a.Seqno)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if a.Origin == "" || a.Beacon == "" || a.HopCount == 0 {
		return nil, fmt.Errorf("%w: ahd without origin, beacon or hop count", ErrMalformed)
	}
	if math.IsNaN(a.Ahd) || math.IsInf(a.Ahd, 0) || a.Ahd < 0 {
		return nil, fmt.Errorf("%w: ahd value %v", ErrMalformed, a.Ahd)
	}
	return a, nil
}

func UnmarshalPacket(b []byte) (Packet, error) {
	p := Packet{}
	err := decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType || (num != 1 && num != 2) {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		// last member of the oneof wins
		if num == 1 {
			f, err := decodeFlood(v)
			if err != nil {
				return 0, err
			}
			p = Packet{Flood: f}
		} else {
			a, err := decodeAhd(v)
			if err != nil {
				return 0, err
			}
			p = Packet{Ahd: a}
		}
		return n, nil
	})
	if err != nil {
		return Packet{}, err
	}
	if p.Kind() == 0 {
		return Packet{}, fmt.Errorf("%w: empty packet", ErrMalformed)
	}
	return p, nil
}

func UnmarshalBundle(b []byte) (Bundle, error) {
	bundle := Bundle{}
	err := decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		p, err := UnmarshalPacket(v)
		if err != nil {
			return 0, err
		}
		bundle.Packets = append(bundle.Packets, p)
		return n, nil
	})
	if err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}
