package rtctransport

import (
	"reflect"

	"github.com/pion/webrtc/v4"
)

// defaultICEServers is used only when both the server and the caller leave
// ICEServers empty.
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
}

// BuildConfiguration resolves the effective RTCConfiguration for a
// session: the caller's ICEServers win when nonempty; otherwise the
// server's; otherwise the built-in default. forceRelay, when set,
// switches ICETransportPolicy to relay-only.
//
// pion/webrtc always negotiates unified-plan and gathers continually, so
// there's no corresponding field to set for either here — they're
// already pion's only behavior.
func BuildConfiguration(serverServers, callerServers []webrtc.ICEServer, forceRelay bool, override *webrtc.Configuration) webrtc.Configuration {
	if override != nil {
		return *override
	}

	servers := dedup(callerServers)
	if len(servers) == 0 {
		servers = dedup(serverServers)
	}
	if len(servers) == 0 {
		servers = defaultICEServers
	}

	cfg := webrtc.Configuration{ICEServers: servers}
	if forceRelay {
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}
	return cfg
}

// dedup removes structurally-equal entries, preserving first occurrence.
func dedup(servers []webrtc.ICEServer) []webrtc.ICEServer {
	var out []webrtc.ICEServer
	for _, s := range servers {
		seen := false
		for _, o := range out {
			if reflect.DeepEqual(s, o) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, s)
		}
	}
	return out
}
