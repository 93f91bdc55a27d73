package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxDataPacketSize is the wire-size cap: packets larger than this are
// rejected by the sender before ever reaching the data channel.
const MaxDataPacketSize = 15000

// Encode serializes a DataPacket using hand-rolled protobuf wire-format
// framing (field tags via protowire, no generated descriptors — see
// DESIGN.md for why this repo has no .pb.go files).
func Encode(p *DataPacket) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Kind))

	switch p.Kind {
	case DataPacketSpeaker:
		if p.Speaker == nil {
			return nil, fmt.Errorf("wire: Kind=Speaker but Speaker is nil")
		}
		sub := encodeSpeakerUpdate(p.Speaker)
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	case DataPacketUser:
		if p.User == nil {
			return nil, fmt.Errorf("wire: Kind=User but User is nil")
		}
		sub := encodeUserPacket(p.User)
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}

	if len(b) > MaxDataPacketSize {
		return nil, fmt.Errorf("wire: encoded packet is %d bytes, exceeds max %d", len(b), MaxDataPacketSize)
	}
	return b, nil
}

// Decode parses a DataPacket. An empty buffer or one with no recognized
// field yields a DataPacket with Kind == DataPacketUnknown rather than an
// error; callers drop those silently.
func Decode(data []byte) (*DataPacket, error) {
	p := &DataPacket{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed kind: %w", protowire.ParseError(n))
			}
			p.Kind = DataPacketKind(v)
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed speaker: %w", protowire.ParseError(n))
			}
			su, err := decodeSpeakerUpdate(v)
			if err != nil {
				return nil, err
			}
			p.Speaker = su
			b = b[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed user: %w", protowire.ParseError(n))
			}
			up, err := decodeUserPacket(v)
			if err != nil {
				return nil, err
			}
			p.User = up
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed unknown field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return p, nil
}

func encodeSpeakerUpdate(s *SpeakerUpdate) []byte {
	var b []byte
	for _, sp := range s.Speakers {
		sub := encodeSpeakerInfo(sp)
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}
	return b
}

func decodeSpeakerUpdate(data []byte) (*SpeakerUpdate, error) {
	su := &SpeakerUpdate{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: malformed speaker_update tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed speaker entry: %w", protowire.ParseError(n))
			}
			sp, err := decodeSpeakerInfo(v)
			if err != nil {
				return nil, err
			}
			su.Speakers = append(su.Speakers, sp)
			b = b[n:]
		} else {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed unknown field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return su, nil
}

func encodeSpeakerInfo(s SpeakerInfo) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, s.SID)
	b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(s.Level))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, boolToVarint(s.Active))
	return b
}

func decodeSpeakerInfo(data []byte) (SpeakerInfo, error) {
	var sp SpeakerInfo
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return sp, fmt.Errorf("wire: malformed speaker_info tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return sp, fmt.Errorf("wire: malformed sid: %w", protowire.ParseError(n))
			}
			sp.SID = v
			b = b[n:]
		case num == 2 && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return sp, fmt.Errorf("wire: malformed level: %w", protowire.ParseError(n))
			}
			sp.Level = math.Float32frombits(v)
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return sp, fmt.Errorf("wire: malformed active: %w", protowire.ParseError(n))
			}
			sp.Active = v != 0
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return sp, fmt.Errorf("wire: malformed unknown field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return sp, nil
}

func encodeUserPacket(u *UserPacket) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, u.ParticipantSID)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, u.Payload)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendString(b, u.Topic)
	return b
}

func decodeUserPacket(data []byte) (*UserPacket, error) {
	up := &UserPacket{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: malformed user_packet tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed participant_sid: %w", protowire.ParseError(n))
			}
			up.ParticipantSID = v
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed payload: %w", protowire.ParseError(n))
			}
			up.Payload = append([]byte(nil), v...)
			b = b[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed topic: %w", protowire.ParseError(n))
			}
			up.Topic = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: malformed unknown field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return up, nil
}

func boolToVarint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
