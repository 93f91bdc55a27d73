package wire

import (
	"strings"
	"testing"
)

func TestEncodeDecodeSpeakerUpdateRoundTrip(t *testing.T) {
	original := &DataPacket{
		Kind: DataPacketSpeaker,
		Speaker: &SpeakerUpdate{
			Speakers: []SpeakerInfo{
				{SID: "p1", Level: 0.42, Active: true},
				{SID: "p2", Level: 0, Active: false},
			},
		},
	}

	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Kind != DataPacketSpeaker {
		t.Fatalf("Kind mismatch: got %v", decoded.Kind)
	}
	if decoded.Speaker == nil || len(decoded.Speaker.Speakers) != 2 {
		t.Fatalf("speaker payload mismatch: %+v", decoded.Speaker)
	}
	if decoded.Speaker.Speakers[0].SID != "p1" || decoded.Speaker.Speakers[0].Level != 0.42 || !decoded.Speaker.Speakers[0].Active {
		t.Errorf("speaker[0] mismatch: %+v", decoded.Speaker.Speakers[0])
	}
	if decoded.Speaker.Speakers[1].SID != "p2" || decoded.Speaker.Speakers[1].Active {
		t.Errorf("speaker[1] mismatch: %+v", decoded.Speaker.Speakers[1])
	}
}

func TestEncodeDecodeUserPacketRoundTrip(t *testing.T) {
	original := &DataPacket{
		Kind: DataPacketUser,
		User: &UserPacket{
			ParticipantSID: "pabc",
			Payload:        []byte{0x00, 0x01, 0xFF, 0x10},
			Topic:          "chat",
		},
	}

	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Kind != DataPacketUser {
		t.Fatalf("Kind mismatch: got %v", decoded.Kind)
	}
	if decoded.User == nil {
		t.Fatalf("User payload missing")
	}
	if decoded.User.ParticipantSID != "pabc" || decoded.User.Topic != "chat" {
		t.Errorf("user fields mismatch: %+v", decoded.User)
	}
	if string(decoded.User.Payload) != string(original.User.Payload) {
		t.Errorf("payload mismatch: got %v want %v", decoded.User.Payload, original.User.Payload)
	}
}

func TestEncodeUserPacketEmptyPayload(t *testing.T) {
	original := &DataPacket{Kind: DataPacketUser, User: &UserPacket{ParticipantSID: "p1"}}

	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.User.Payload) != 0 {
		t.Errorf("expected empty payload, got %v", decoded.User.Payload)
	}
}

func TestDecodeUnknownFieldsSkipped(t *testing.T) {
	// A well-formed user packet with an extra unknown field (field 9,
	// wiretype varint) appended should still decode.
	pkt := &DataPacket{Kind: DataPacketUser, User: &UserPacket{ParticipantSID: "p1", Topic: "t"}}
	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// field 9 << 3 | varint(0) = 0x48
	encoded = append(encoded, 0x48, 0x01)

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode should skip unknown field, got error: %v", err)
	}
	if decoded.User.ParticipantSID != "p1" {
		t.Errorf("known fields corrupted by unknown field skip: %+v", decoded.User)
	}
}

func TestDecodeTruncatedFails(t *testing.T) {
	pkt := &DataPacket{Kind: DataPacketUser, User: &UserPacket{ParticipantSID: "p1"}}
	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(encoded) < 2 {
		t.Fatalf("encoded packet unexpectedly short")
	}

	_, err = Decode(encoded[:len(encoded)-1])
	if err == nil {
		t.Fatal("expected error decoding truncated packet")
	}
}

func TestEncodeRejectsOversizePacket(t *testing.T) {
	big := strings.Repeat("x", MaxDataPacketSize+100)
	pkt := &DataPacket{Kind: DataPacketUser, User: &UserPacket{ParticipantSID: "p1", Payload: []byte(big)}}

	_, err := Encode(pkt)
	if err == nil {
		t.Fatal("expected Encode to reject a packet over MaxDataPacketSize")
	}
}
