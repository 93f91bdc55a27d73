// Package signaling defines the Link collaborator the engine consumes and
// a default WebSocket-backed implementation. Client below is a concrete
// but replaceable default; the engine only depends on the Link interface.
package signaling

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/meshcall/session-engine/internal/config"
	"github.com/meshcall/session-engine/internal/wire"
)

// SyncState is what the engine submits on reconnect so the server can
// reconcile subscriptions and published tracks.
type SyncState struct {
	SubscriberSDP      *webrtc.SessionDescription
	UpdateSubscription UpdateSubscription
	PublishedTracks    []wire.TrackInfo
	DataChannelInfos   []DataChannelInfo
}

// UpdateSubscription mirrors SendUpdateSubscriptionPermissions' payload,
// carried inside SyncState so a reconnecting peer restates its current
// subscription scope alongside its tracks and channels.
type UpdateSubscription struct {
	AllParticipants bool
}

// DataChannelInfo identifies one outbound data channel for SyncState.
type DataChannelInfo struct {
	ID    uint16
	Label string
}

// Link is the signaling collaborator the engine drives. Every method that
// performs network I/O takes a context for cancellation.
type Link interface {
	Join(ctx context.Context, url, token string, opts config.ConnectOptions, room config.RoomOptions) (*wire.JoinResponse, error)
	// Reconnect returns either a ReconnectResponse, or an error satisfying
	// errors.As to *wire.MustFullReconnect when the server demands a full
	// reconnect instead.
	Reconnect(ctx context.Context, url, token, participantSID string) (*wire.ReconnectResponse, error)

	OnReadyForResponses()
	OnPCConnected()

	SendAddTrack(cid, name string, kind wire.TrackKind) error
	SendRemoveTrack(sid string) error
	SendMuteTrack(sid string, muted bool) error
	SendUpdateSubscriptionPermissions(allParticipants bool) error
	SendOffer(sdp webrtc.SessionDescription) error
	SendAnswer(sdp webrtc.SessionDescription) error
	SendSyncState(state SyncState) error

	// Close terminates the link. Idempotent.
	Close(reason string)

	// Events delivers every server-pushed message as a tagged Event. It is
	// closed once Close has fully torn down the link.
	Events() <-chan Event
}
