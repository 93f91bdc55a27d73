// Package wire defines the message types exchanged between the engine and
// the server, and the protobuf-style codec for the data-channel wire
// format. Only DataPacket carries a concrete wire encoding here; the rest
// are plain request/response payload structs, which package signaling
// wraps in its own JSON envelope.
package wire

import "github.com/pion/webrtc/v4"

// TrackKind mirrors the kind of a published track.
type TrackKind int

const (
	TrackKindUnknown TrackKind = iota
	TrackKindAudio
	TrackKindVideo
	TrackKindData
)

// TrackInfo is the server's description of a published track, returned in
// a TrackPublished event and echoed back in SyncState.
type TrackInfo struct {
	SID   string
	CID   string
	Name  string
	Kind  TrackKind
	Muted bool
}

// ParticipantInfo describes one conference participant.
type ParticipantInfo struct {
	SID      string
	Identity string
	Tracks   []TrackInfo
}

// ICEServerInfo is the server's transport for a webrtc.ICEServer, kept
// decoupled from pion's type at the wire boundary.
type ICEServerInfo struct {
	URLs       []string
	Username   string
	Credential string
}

func (s ICEServerInfo) ToRTC() webrtc.ICEServer {
	return webrtc.ICEServer{
		URLs:       s.URLs,
		Username:   s.Username,
		Credential: s.Credential,
	}
}

// JoinResponse is returned by SignalLink.Join.
type JoinResponse struct {
	ParticipantSID    string
	SubscriberPrimary bool
	ICEServers        []ICEServerInfo
	ForceRelay        bool
	OtherParticipants []ParticipantInfo
}

// ReconnectResponse is returned by SignalLink.Reconnect on success.
type ReconnectResponse struct {
	ICEServers []ICEServerInfo
}

// MustFullReconnect is a sentinel error value SignalLink.Reconnect may
// return instead of a ReconnectResponse, instructing the caller to fall
// back to a full reconnect immediately.
type MustFullReconnect struct{ Reason string }

func (e *MustFullReconnect) Error() string { return "must full reconnect: " + e.Reason }

// TrackPublishedEvent correlates a client-assigned cid with its TrackInfo.
type TrackPublishedEvent struct {
	CID   string
	Track TrackInfo
}

// LeaveEvent signals the server asked the client to leave.
type LeaveEvent struct {
	CanReconnect bool
	Reason       string
}

// CloseEvent signals the signaling link closed.
type CloseEvent struct {
	Reason string
	Code   int
}

// DataPacketKind discriminates the DataPacket oneof.
type DataPacketKind uint64

const (
	DataPacketUnknown DataPacketKind = iota
	DataPacketSpeaker
	DataPacketUser
)

// SpeakerInfo is one entry in a SpeakerUpdate.
type SpeakerInfo struct {
	SID    string
	Level  float32
	Active bool
}

// SpeakerUpdate carries the list of currently active speakers.
type SpeakerUpdate struct {
	Speakers []SpeakerInfo
}

// UserPacket carries an application-defined payload sent over a
// DataChannelSet channel.
type UserPacket struct {
	ParticipantSID string
	Payload        []byte
	Topic          string
}

// DataPacket is the top-level message framed onto both the reliable and
// lossy data channels. Exactly one of Speaker or User is set, selected by
// Kind. Decode keeps whatever kind value is on the wire (DataPacketUnknown
// when the field is absent); callers drop kinds they do not recognize.
type DataPacket struct {
	Kind    DataPacketKind
	Speaker *SpeakerUpdate
	User    *UserPacket
}
