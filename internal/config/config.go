// Package config holds the engine's session-scoped configuration types.
package config

import (
	"github.com/pion/webrtc/v4"
)

// ReconnectPolicy selects how the reconnect controller escalates between
// soft (ICE-restart) and full (fresh join) recovery.
type ReconnectPolicy int

const (
	// ReconnectDefault attempts a soft reconnect first; if that attempt
	// fails, every subsequent attempt in the same loop is full.
	ReconnectDefault ReconnectPolicy = iota
	// ReconnectForceSoft never escalates to a full reconnect.
	ReconnectForceSoft
	// ReconnectForceFull always tears down and rejoins.
	ReconnectForceFull
)

func (p ReconnectPolicy) String() string {
	switch p {
	case ReconnectForceSoft:
		return "FORCE_SOFT_RECONNECT"
	case ReconnectForceFull:
		return "FORCE_FULL_RECONNECT"
	default:
		return "DEFAULT"
	}
}

// ConnectOptions is supplied by the caller at Engine.Join and is immutable
// for the lifetime of the session.
type ConnectOptions struct {
	ReconnectPolicy ReconnectPolicy
	// ICEServers overrides the server-provided list when nonempty.
	ICEServers []webrtc.ICEServer
	// RTCConfig, if set, is used as a full override instead of the merged
	// ICE-server configuration.
	RTCConfig *webrtc.Configuration
	// ForceRelay mirrors the server's forceRelay flag back into the local
	// RTCConfiguration's ICETransportPolicy when true.
	ForceRelay    bool
	AutoSubscribe bool
}

// RoomOptions is copied into the session at join time and never mutated
// afterward. The engine doesn't interpret these toggles; it only passes
// them to the signal link's join request. SyncState does not include them.
type RoomOptions struct {
	AdaptiveStream  bool
	DynacastEnabled bool
}

// Credentials are the reconnect credentials captured on first successful
// join. A fresh process always starts without them.
type Credentials struct {
	URL            string
	Token          string
	ParticipantSID string
}
