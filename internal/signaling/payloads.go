package signaling

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/meshcall/session-engine/internal/wire"
)

type joinRequestPayload struct {
	AutoSubscribe   bool `json:"autoSubscribe"`
	AdaptiveStream  bool `json:"adaptiveStream"`
	DynacastEnabled bool `json:"dynacastEnabled"`
}

type reconnectRequestPayload struct {
	ParticipantSID string `json:"participantSid"`
}

type addTrackPayload struct {
	CID  string `json:"cid"`
	Name string `json:"name"`
	Kind int    `json:"kind"`
}

type removeTrackPayload struct {
	SID string `json:"sid"`
}

type muteTrackPayload struct {
	SID   string `json:"sid"`
	Muted bool   `json:"muted"`
}

type subscriptionPermsPayload struct {
	AllParticipants bool `json:"allParticipants"`
}

type sdpPayload struct {
	SDP string `json:"sdp"`
}

type trickleCandidatePayload struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	Target    int                     `json:"target"`
}

type syncStatePayload struct {
	SubscriberSDP      string                   `json:"subscriberSdp,omitempty"`
	UpdateSubscription updateSubscriptionPayload `json:"updateSubscription"`
	Tracks             []wire.TrackInfo          `json:"tracks"`
	DataChannels       []DataChannelInfo         `json:"dataChannels"`
}

type updateSubscriptionPayload struct {
	AllParticipants bool `json:"allParticipants"`
}

type closePayload struct {
	Reason string `json:"reason"`
}

type iceServerPayload struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

func (p iceServerPayload) toWire() wire.ICEServerInfo {
	return wire.ICEServerInfo{URLs: p.URLs, Username: p.Username, Credential: p.Credential}
}

type participantPayload struct {
	SID      string          `json:"sid"`
	Identity string          `json:"identity"`
	Tracks   []wire.TrackInfo `json:"tracks"`
}

func (p participantPayload) toWire() wire.ParticipantInfo {
	return wire.ParticipantInfo{SID: p.SID, Identity: p.Identity, Tracks: p.Tracks}
}

type joinResponsePayload struct {
	ParticipantSID    string               `json:"participantSid"`
	SubscriberPrimary bool                 `json:"subscriberPrimary"`
	ICEServers        []iceServerPayload   `json:"iceServers"`
	ForceRelay        bool                 `json:"forceRelay"`
	OtherParticipants []participantPayload `json:"otherParticipants"`
}

func (p joinResponsePayload) toWire() *wire.JoinResponse {
	servers := make([]wire.ICEServerInfo, len(p.ICEServers))
	for i, s := range p.ICEServers {
		servers[i] = s.toWire()
	}
	parts := make([]wire.ParticipantInfo, len(p.OtherParticipants))
	for i, pp := range p.OtherParticipants {
		parts[i] = pp.toWire()
	}
	return &wire.JoinResponse{
		ParticipantSID:    p.ParticipantSID,
		SubscriberPrimary: p.SubscriberPrimary,
		ICEServers:        servers,
		ForceRelay:        p.ForceRelay,
		OtherParticipants: parts,
	}
}

type reconnectResponsePayload struct {
	ICEServers []iceServerPayload `json:"iceServers"`
}

func (p reconnectResponsePayload) toWire() *wire.ReconnectResponse {
	servers := make([]wire.ICEServerInfo, len(p.ICEServers))
	for i, s := range p.ICEServers {
		servers[i] = s.toWire()
	}
	return &wire.ReconnectResponse{ICEServers: servers}
}

// decodeEvent maps a raw inbound envelope to the engine-facing tagged
// union. Unrecognized types are dropped (ok == false) rather than
// surfaced as an error, the same "unknown variants are discarded"
// discipline used for the data-channel wire format.
func decodeEvent(env inEnvelope) (Event, bool) {
	switch env.Type {
	case msgAnswer, msgOffer:
		var p sdpPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{Kind: EventError, Err: err}, true
		}
		typ := webrtc.SDPTypeOffer
		kind := EventOffer
		if env.Type == msgAnswer {
			typ = webrtc.SDPTypeAnswer
			kind = EventAnswer
		}
		sdp := webrtc.SessionDescription{Type: typ, SDP: p.SDP}
		return Event{Kind: kind, SDP: &sdp}, true

	case msgTrickle:
		var p trickleCandidatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{Kind: EventError, Err: err}, true
		}
		target := TargetPublisher
		if p.Target == int(TargetSubscriber) {
			target = TargetSubscriber
		}
		return Event{Kind: EventTrickle, Trickle: &TrickleEvent{Candidate: p.Candidate, Target: target}}, true

	case msgTrackPublished:
		var p struct {
			CID   string        `json:"cid"`
			Track wire.TrackInfo `json:"track"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{Kind: EventError, Err: err}, true
		}
		return Event{Kind: EventLocalTrackPublished, TrackPublished: &wire.TrackPublishedEvent{CID: p.CID, Track: p.Track}}, true

	case msgTrackUnpublished:
		return Event{Kind: EventLocalTrackUnpublished}, true

	case msgParticipantUpdate:
		var p []participantPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{Kind: EventError, Err: err}, true
		}
		out := make([]wire.ParticipantInfo, len(p))
		for i, pp := range p {
			out[i] = pp.toWire()
		}
		return Event{Kind: EventParticipantUpdate, Participants: out}, true

	case msgSpeakersChanged, msgActiveSpeakers:
		var p []wire.SpeakerInfo
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{Kind: EventError, Err: err}, true
		}
		kind := EventSpeakersChanged
		if env.Type == msgActiveSpeakers {
			kind = EventActiveSpeakers
		}
		return Event{Kind: kind, Speakers: p}, true

	case msgConnectionQuality:
		return Event{Kind: EventConnectionQuality}, true
	case msgRoomUpdate:
		return Event{Kind: EventRoomUpdate}, true

	case msgMuteChanged:
		var p MuteChangedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{Kind: EventError, Err: err}, true
		}
		return Event{Kind: EventMuteChanged, MuteChanged: &p}, true

	case msgStreamStateUpdate:
		return Event{Kind: EventStreamStateUpdate}, true
	case msgSubscribedQualityUpdate:
		return Event{Kind: EventSubscribedQualityUpdate}, true
	case msgSubscriptionPermissionUpdate:
		return Event{Kind: EventSubscriptionPermissionUpdate}, true

	case msgRefreshToken:
		var p struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{Kind: EventError, Err: err}, true
		}
		return Event{Kind: EventRefreshToken, NewToken: p.Token}, true

	case msgLeave:
		var p wire.LeaveEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{Kind: EventError, Err: err}, true
		}
		return Event{Kind: EventLeave, Leave: &p}, true

	case msgClose:
		var p closePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{Kind: EventError, Err: err}, true
		}
		return Event{Kind: EventClose, Close: &wire.CloseEvent{Reason: p.Reason}}, true

	default:
		return Event{}, false
	}
}
