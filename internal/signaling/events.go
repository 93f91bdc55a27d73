package signaling

import (
	"github.com/pion/webrtc/v4"

	"github.com/meshcall/session-engine/internal/wire"
)

// EventKind discriminates the tagged union of server-pushed events a
// Link delivers.
type EventKind int

const (
	EventAnswer EventKind = iota
	EventOffer
	EventTrickle
	EventLocalTrackPublished
	EventLocalTrackUnpublished
	EventParticipantUpdate
	EventSpeakersChanged
	EventActiveSpeakers
	EventConnectionQuality
	EventRoomUpdate
	EventMuteChanged
	EventStreamStateUpdate
	EventSubscribedQualityUpdate
	EventSubscriptionPermissionUpdate
	EventRefreshToken
	EventLeave
	EventClose
	EventError
)

// TrickleTarget identifies which transport a trickled ICE candidate
// belongs to.
type TrickleTarget int

const (
	TargetPublisher TrickleTarget = iota
	TargetSubscriber
)

// TrickleEvent is a late-arriving ICE candidate delivered out of band from
// the SDP exchange.
type TrickleEvent struct {
	Candidate webrtc.ICECandidateInit
	Target    TrickleTarget
}

// Event is the tagged union the engine's dispatch loop switches on. Only
// the field matching Kind is populated: one inbound-event channel plus a
// dispatch function, rather than a Listener-interface hierarchy.
type Event struct {
	Kind EventKind

	SDP            *webrtc.SessionDescription
	Trickle        *TrickleEvent
	TrackPublished *wire.TrackPublishedEvent
	Participants   []wire.ParticipantInfo
	Speakers       []wire.SpeakerInfo
	MuteChanged    *MuteChangedEvent
	NewToken       string
	Leave          *wire.LeaveEvent
	Close          *wire.CloseEvent
	Err            error
}

// MuteChangedEvent reports a remote-driven mute state change for a track.
type MuteChangedEvent struct {
	TrackSID string
	Muted    bool
}
