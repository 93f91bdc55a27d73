package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/meshcall/session-engine/internal/config"
	"github.com/meshcall/session-engine/internal/wire"
)

// inEnvelope mirrors envelope but keeps Payload as raw JSON so the read
// loop can dispatch on Type before decoding the type-specific shape.
type inEnvelope struct {
	Type    messageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is the default Link implementation: a single WebSocket connection
// framed as JSON envelopes, with a dedicated read-loop goroutine that
// either resolves a pending request or emits an Event.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn

	events    chan Event
	closeOnce sync.Once
	done      chan struct{}

	pendingJoin      chan joinResult
	pendingReconnect chan reconnectResult
}

type joinResult struct {
	resp *wire.JoinResponse
	err  error
}

type reconnectResult struct {
	resp *wire.ReconnectResponse
	err  error
}

// NewClient dials url (token carried as a query parameter, matching the
// teacher's `wss://.../ws?pin=...` convention) and starts the read loop.
func NewClient(ctx context.Context, wsURL, token string) (*Client, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("signaling: invalid url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("signaling: dial failed: %w", err)
	}

	c := &Client{
		conn:             conn,
		events:           make(chan Event, 64),
		done:             make(chan struct{}),
		pendingJoin:      make(chan joinResult, 1),
		pendingReconnect: make(chan reconnectResult, 1),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) send(env envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) Join(ctx context.Context, wsURL, token string, opts config.ConnectOptions, room config.RoomOptions) (*wire.JoinResponse, error) {
	if err := c.send(envelope{Type: msgJoin, Payload: joinRequestPayload{
		AutoSubscribe:   opts.AutoSubscribe,
		AdaptiveStream:  room.AdaptiveStream,
		DynacastEnabled: room.DynacastEnabled,
	}}); err != nil {
		return nil, err
	}

	select {
	case r := <-c.pendingJoin:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("signaling: link closed while joining")
	}
}

func (c *Client) Reconnect(ctx context.Context, wsURL, token, participantSID string) (*wire.ReconnectResponse, error) {
	if err := c.send(envelope{Type: msgReconnect, Payload: reconnectRequestPayload{
		ParticipantSID: participantSID,
	}}); err != nil {
		return nil, err
	}

	select {
	case r := <-c.pendingReconnect:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("signaling: link closed while reconnecting")
	}
}

func (c *Client) OnReadyForResponses() { _ = c.send(envelope{Type: msgReadyForResponses}) }
func (c *Client) OnPCConnected()       { _ = c.send(envelope{Type: msgPCConnected}) }

func (c *Client) SendAddTrack(cid, name string, kind wire.TrackKind) error {
	return c.send(envelope{Type: msgAddTrack, Payload: addTrackPayload{CID: cid, Name: name, Kind: int(kind)}})
}

func (c *Client) SendRemoveTrack(sid string) error {
	return c.send(envelope{Type: msgRemoveTrack, Payload: removeTrackPayload{SID: sid}})
}

func (c *Client) SendMuteTrack(sid string, muted bool) error {
	return c.send(envelope{Type: msgMuteTrack, Payload: muteTrackPayload{SID: sid, Muted: muted}})
}

func (c *Client) SendUpdateSubscriptionPermissions(allParticipants bool) error {
	return c.send(envelope{Type: msgUpdateSubscriptionPerms, Payload: subscriptionPermsPayload{AllParticipants: allParticipants}})
}

func (c *Client) SendOffer(sdp webrtc.SessionDescription) error {
	return c.send(envelope{Type: msgOffer, Payload: sdpPayload{SDP: sdp.SDP}})
}

func (c *Client) SendAnswer(sdp webrtc.SessionDescription) error {
	return c.send(envelope{Type: msgAnswer, Payload: sdpPayload{SDP: sdp.SDP}})
}

func (c *Client) SendSyncState(state SyncState) error {
	p := syncStatePayload{
		DataChannels:       state.DataChannelInfos,
		Tracks:             state.PublishedTracks,
		UpdateSubscription: updateSubscriptionPayload{AllParticipants: state.UpdateSubscription.AllParticipants},
	}
	if state.SubscriberSDP != nil {
		p.SubscriberSDP = state.SubscriberSDP.SDP
	}
	return c.send(envelope{Type: msgSyncState, Payload: p})
}

func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		_ = c.send(envelope{Type: msgClose, Payload: closePayload{Reason: reason}})
		_ = c.conn.Close()
		close(c.done)
		close(c.events)
	})
}

// readLoop is the single reader goroutine for this connection; it owns
// decoding and either resolves a pending request or emits an Event.
func (c *Client) readLoop() {
	for {
		var env inEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case c.events <- Event{Kind: EventClose, Close: &wire.CloseEvent{Reason: err.Error()}}:
			default:
			}
			return
		}

		switch env.Type {
		case msgJoinResponse:
			var p joinResponsePayload
			err := json.Unmarshal(env.Payload, &p)
			c.pendingJoin <- joinResult{resp: p.toWire(), err: err}
		case msgReconnectResponse:
			var p reconnectResponsePayload
			err := json.Unmarshal(env.Payload, &p)
			c.pendingReconnect <- reconnectResult{resp: p.toWire(), err: err}
		case msgMustFullReconnect:
			var p struct{ Reason string }
			_ = json.Unmarshal(env.Payload, &p)
			c.pendingReconnect <- reconnectResult{err: &wire.MustFullReconnect{Reason: p.Reason}}
		default:
			if ev, ok := decodeEvent(env); ok {
				c.events <- ev
			}
		}
	}
}
