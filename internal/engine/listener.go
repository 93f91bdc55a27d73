package engine

import (
	"github.com/pion/webrtc/v4"

	"github.com/meshcall/session-engine/internal/wire"
)

// Listener is the engine's consumer-facing callback surface. Every method
// is non-blocking except OnPostReconnect, which the reconnect loop waits
// on before declaring an attempt fully settled. A caller that only cares
// about a few events can embed NoopListener and override the rest.
type Listener interface {
	OnEngineConnected()
	OnEngineReconnecting()
	OnEngineReconnected()
	OnEngineDisconnected(reason DisconnectReason)
	OnFailToConnect(err error)
	OnJoinResponse(resp *wire.JoinResponse)
	OnAddTrack(receiver *webrtc.RTPReceiver, track *webrtc.TrackRemote)
	OnUpdateParticipants(participants []wire.ParticipantInfo)
	OnActiveSpeakersUpdate(speakers []wire.SpeakerInfo)
	OnSpeakersChanged(speakers []wire.SpeakerInfo)
	OnConnectionQuality()
	OnRemoteMuteChanged(trackSID string, muted bool)
	OnRoomUpdate()
	OnUserPacket(pkt *wire.UserPacket)
	OnStreamStateUpdate()
	OnSubscribedQualityUpdate()
	OnSubscriptionPermissionUpdate()
	OnSignalConnected(isResume bool)
	OnFullReconnecting()
	OnPostReconnect(isFullReconnect bool)
	OnLocalTrackUnpublished()
}

// NoopListener implements Listener with no-op bodies so callers can embed
// it and override only the callbacks they need.
type NoopListener struct{}

func (NoopListener) OnEngineConnected()                            {}
func (NoopListener) OnEngineReconnecting()                         {}
func (NoopListener) OnEngineReconnected()                          {}
func (NoopListener) OnEngineDisconnected(reason DisconnectReason)  {}
func (NoopListener) OnFailToConnect(err error)                     {}
func (NoopListener) OnJoinResponse(resp *wire.JoinResponse)        {}
func (NoopListener) OnAddTrack(receiver *webrtc.RTPReceiver, track *webrtc.TrackRemote) {}
func (NoopListener) OnUpdateParticipants(p []wire.ParticipantInfo) {}
func (NoopListener) OnActiveSpeakersUpdate(s []wire.SpeakerInfo)   {}
func (NoopListener) OnSpeakersChanged(s []wire.SpeakerInfo)        {}
func (NoopListener) OnConnectionQuality()                          {}
func (NoopListener) OnRemoteMuteChanged(trackSID string, muted bool) {}
func (NoopListener) OnRoomUpdate()                                 {}
func (NoopListener) OnUserPacket(pkt *wire.UserPacket)             {}
func (NoopListener) OnStreamStateUpdate()                          {}
func (NoopListener) OnSubscribedQualityUpdate()                    {}
func (NoopListener) OnSubscriptionPermissionUpdate()               {}
func (NoopListener) OnSignalConnected(isResume bool)               {}
func (NoopListener) OnFullReconnecting()                           {}
func (NoopListener) OnPostReconnect(isFullReconnect bool)          {}
func (NoopListener) OnLocalTrackUnpublished()                      {}
