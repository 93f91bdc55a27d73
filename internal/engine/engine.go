// Package engine implements the top-level session coordinator: it owns
// the two transports, the data-channel sets, the pending-track registry,
// and the reconnect controller, and serves as the single serialized sink
// for signaling events and caller commands alike.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/meshcall/session-engine/internal/config"
	"github.com/meshcall/session-engine/internal/datachannel"
	"github.com/meshcall/session-engine/internal/observability"
	"github.com/meshcall/session-engine/internal/pendingtrack"
	"github.com/meshcall/session-engine/internal/reconnect"
	"github.com/meshcall/session-engine/internal/rtctransport"
	"github.com/meshcall/session-engine/internal/signaling"
	"github.com/meshcall/session-engine/internal/wire"
)

const maxICEConnectTimeout = 20 * time.Second

// DialFunc opens a SignalLink. Replaceable in tests; defaults to
// signaling.NewClient.
type DialFunc func(ctx context.Context, url, token string) (signaling.Link, error)

func defaultDial(ctx context.Context, url, token string) (signaling.Link, error) {
	return signaling.NewClient(ctx, url, token)
}

// Engine is the session coordinator. Exactly one session (one join..close
// cycle) may be in flight per Engine instance; construct a new Engine for
// each session.
type Engine struct {
	listener Listener
	dial     DialFunc

	ops  chan func()
	done chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	stateMu sync.Mutex
	state   State

	// The fields below are engine-scope owned: every read and write
	// happens inside a closure executed on the run-loop goroutine, so no
	// additional locking protects them.
	link              signaling.Link
	publisher         *rtctransport.Transport
	subscriber        *rtctransport.Transport
	dataOut           *datachannel.Set
	dataIn            *datachannel.Set
	pending           *pendingtrack.Registry
	reconnectCtl      *reconnect.Controller
	url               string
	token             string
	participantSID    string
	connectOpts       config.ConnectOptions
	roomOpts          config.RoomOptions
	subscriberPrimary bool
	publishedTracks   []wire.TrackInfo

	stats *observability.Stats
	log   *observability.Logger
}

// New constructs an Engine bound to listener. Call Join to start a session.
// Its log lines carry no session prefix; use NewWithSessionTag for one.
func New(listener Listener, dial DialFunc) *Engine {
	return newEngine(listener, dial, "")
}

// NewWithSessionTag is New with an explicit log-line prefix, for callers
// juggling more than one Engine in a process.
func NewWithSessionTag(listener Listener, dial DialFunc, sessionTag string) *Engine {
	return newEngine(listener, dial, sessionTag)
}

func newEngine(listener Listener, dial DialFunc, sessionTag string) *Engine {
	if dial == nil {
		dial = defaultDial
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		listener: listener,
		dial:     dial,
		ops:      make(chan func(), 32),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		pending:  pendingtrack.NewRegistry(),
		stats:    observability.NewStats(),
		log:      observability.NewLogger(sessionTag),
	}
	e.reconnectCtl = reconnect.NewController(e.reconnectAttempt, e)
	e.stats.StartReporter(ctx, e.log)
	go e.run()
	return e
}

// run is the engine scope: the single goroutine that executes every
// closure submitted via e.ops, in submission order.
func (e *Engine) run() {
	for {
		select {
		case fn := <-e.ops:
			fn()
		case <-e.ctx.Done():
			return
		}
	}
}

type opResult struct {
	val any
	err error
}

// call runs fn on the engine scope and blocks until it completes, ctx is
// cancelled, or the engine has closed.
func (e *Engine) call(ctx context.Context, fn func() (any, error)) (any, error) {
	resp := make(chan opResult, 1)
	job := func() {
		v, err := fn()
		resp <- opResult{val: v, err: err}
	}

	select {
	case e.ops <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, ErrClosed
	}

	select {
	case r := <-resp:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// setState suppresses spurious equal-value transitions.
func (e *Engine) setState(s State) (changed bool) {
	e.stateMu.Lock()
	changed = e.state != s
	e.state = s
	e.stateMu.Unlock()
	return changed
}

func (e *Engine) isClosed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------
// Join
// ---------------------------------------------------------------------

// Join resolves url+token with the signal link, brings up both
// transports, and returns the server's JoinResponse. It is the engine's
// primary suspension point.
func (e *Engine) Join(ctx context.Context, url, token string, opts config.ConnectOptions, room config.RoomOptions) (*wire.JoinResponse, error) {
	v, err := e.call(ctx, func() (any, error) {
		e.setState(StateConnecting)
		resp, err := e.joinCore(ctx, url, token, opts, room)
		if err != nil {
			e.setState(StateDisconnected)
			e.listener.OnFailToConnect(err)
			return nil, fmt.Errorf("%w: %v", ErrFailToConnect, err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*wire.JoinResponse), nil
}

// joinCore performs the join setup. It must run on the engine scope, and
// is reused verbatim by a full reconnect attempt.
func (e *Engine) joinCore(ctx context.Context, url, token string, opts config.ConnectOptions, room config.RoomOptions) (*wire.JoinResponse, error) {
	link, err := e.dial(ctx, url, token)
	if err != nil {
		return nil, fmt.Errorf("dial signal link: %w", err)
	}

	resp, err := link.Join(ctx, url, token, opts, room)
	if err != nil {
		link.Close("join failed")
		return nil, fmt.Errorf("join: %w", err)
	}

	e.link = link
	e.url, e.token, e.participantSID = url, token, resp.ParticipantSID
	e.connectOpts, e.roomOpts = opts, room
	e.subscriberPrimary = resp.SubscriberPrimary

	serverServers := make([]webrtc.ICEServer, len(resp.ICEServers))
	for i, s := range resp.ICEServers {
		serverServers[i] = s.ToRTC()
	}
	cfg := rtctransport.BuildConfiguration(serverServers, opts.ICEServers, opts.ForceRelay || resp.ForceRelay, opts.RTCConfig)

	publisher, err := rtctransport.New(rtctransport.RolePublisher, cfg)
	if err != nil {
		link.Close("transport setup failed")
		return nil, fmt.Errorf("new publisher transport: %w", err)
	}
	subscriber, err := rtctransport.New(rtctransport.RoleSubscriber, cfg)
	if err != nil {
		publisher.Close()
		link.Close("transport setup failed")
		return nil, fmt.Errorf("new subscriber transport: %w", err)
	}
	e.publisher, e.subscriber = publisher, subscriber

	v, err := publisher.WithPeerConnection(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		reliable, lossy, err := datachannel.CreateDataChannels(pc)
		if err != nil {
			return nil, err
		}
		return [2]*webrtc.DataChannel{reliable, lossy}, nil
	})
	if err != nil {
		e.teardownTransports()
		link.Close("data channel setup failed")
		return nil, fmt.Errorf("create data channels: %w", err)
	}
	pair := v.([2]*webrtc.DataChannel)
	e.dataOut = datachannel.NewSet(pair[0], pair[1])
	e.dataOut.OnPacket(func(pkt *wire.DataPacket) { e.submit(func() { e.dispatchDataPacket(pkt) }) })
	e.dataOut.OnTraffic(e.stats.AddSent, e.stats.AddRecv)

	if e.subscriberPrimary {
		e.dataIn = &datachannel.Set{}
		e.dataIn.OnPacket(func(pkt *wire.DataPacket) { e.submit(func() { e.dispatchDataPacket(pkt) }) })
		e.dataIn.OnTraffic(e.stats.AddSent, e.stats.AddRecv)
		dataIn := e.dataIn
		subscriber.OnDataChannel(func(dc *webrtc.DataChannel) { dataIn.Attach(dc) })
	}

	subscriber.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		e.submit(func() { e.listener.OnAddTrack(receiver, track) })
	})

	publisher.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		e.submit(func() { e.onICEStateChange(rtctransport.RolePublisher, s) })
	})
	subscriber.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		e.submit(func() { e.onICEStateChange(rtctransport.RoleSubscriber, s) })
	})

	e.startEventPump(link)

	if !e.subscriberPrimary {
		e.negotiatePublisherLocked(ctx)
	}

	link.OnReadyForResponses()
	e.listener.OnJoinResponse(resp)
	return resp, nil
}

// submit enqueues fn without blocking the caller; used from native pion
// callbacks, which must never block the library's internal goroutines.
func (e *Engine) submit(fn func()) {
	select {
	case e.ops <- fn:
	case <-e.done:
	}
}

// startEventPump forwards every event off link.Events() onto the engine
// scope, preserving arrival order.
func (e *Engine) startEventPump(link signaling.Link) {
	go func() {
		for ev := range link.Events() {
			e.submit(func() { e.handleEvent(ev) })
		}
	}()
}

func (e *Engine) primaryTransport() *rtctransport.Transport {
	if e.subscriberPrimary {
		return e.subscriber
	}
	return e.publisher
}

// onICEStateChange runs on the engine scope.
func (e *Engine) onICEStateChange(role rtctransport.Role, s webrtc.ICEConnectionState) {
	isPrimary := (role == rtctransport.RolePublisher && !e.subscriberPrimary) ||
		(role == rtctransport.RoleSubscriber && e.subscriberPrimary)

	connected := s == webrtc.ICEConnectionStateConnected || s == webrtc.ICEConnectionStateCompleted
	failed := s == webrtc.ICEConnectionStateDisconnected || s == webrtc.ICEConnectionStateFailed

	if isPrimary && connected && e.State() == StateConnecting {
		if e.setState(StateConnected) {
			e.listener.OnEngineConnected()
		}
		return
	}

	nonPrimaryPublisherDown := role == rtctransport.RolePublisher && e.subscriberPrimary &&
		len(e.publishedTracks) > 0 && failed

	if (isPrimary && failed || nonPrimaryPublisherDown) && e.State() == StateConnected {
		e.triggerReconnect(false)
	}
}

func (e *Engine) triggerReconnect(forceFullFirst bool) {
	if e.reconnectCtl.IsRunning() {
		return
	}
	go func() {
		err := e.reconnectCtl.Run(e.ctx, e.reconnectPolicy(), forceFullFirst, e.isClosed)
		if err != nil {
			reportErr := err
			if errors.Is(err, reconnect.ErrExhausted) {
				reportErr = ErrReconnectExhausted
			}
			e.submit(func() {
				e.Close("Failed reconnecting")
				e.listener.OnFailToConnect(reportErr)
				e.listener.OnEngineDisconnected(ReasonUnknown)
			})
		}
	}()
}

func (e *Engine) reconnectPolicy() reconnect.Policy {
	switch e.connectOpts.ReconnectPolicy {
	case config.ReconnectForceSoft:
		return reconnect.PolicyForceSoft
	case config.ReconnectForceFull:
		return reconnect.PolicyForceFull
	default:
		return reconnect.PolicyDefault
	}
}

// ---------------------------------------------------------------------
// reconnect.Listener adapter
// ---------------------------------------------------------------------

func (e *Engine) OnReconnecting() {
	e.submit(func() {
		if e.setState(StateReconnecting) {
			e.listener.OnEngineReconnecting()
		}
	})
}

func (e *Engine) OnFullReconnecting() { e.submit(func() { e.listener.OnFullReconnecting() }) }

func (e *Engine) OnReconnected(full bool) {
	_, _ = e.call(e.ctx, func() (any, error) {
		if e.setState(StateConnected) {
			e.listener.OnEngineReconnected()
		}
		e.listener.OnPostReconnect(full)
		return nil, nil
	})
}

func (e *Engine) OnExhausted() {}

// ---------------------------------------------------------------------
// reconnect attempt
// ---------------------------------------------------------------------

func (e *Engine) reconnectAttempt(ctx context.Context, full bool) error {
	e.stats.AddReconnectAttempt(full)
	if full {
		if err := e.doFullReconnectAttempt(ctx); err != nil {
			return err
		}
	} else {
		if err := e.doSoftReconnectAttempt(ctx); err != nil {
			return err
		}
	}
	if err := e.waitForICEConnected(ctx); err != nil {
		return err
	}
	_, err := e.call(ctx, func() (any, error) {
		e.link.OnPCConnected()
		return nil, nil
	})
	return err
}

func (e *Engine) doFullReconnectAttempt(ctx context.Context) error {
	_, err := e.call(ctx, func() (any, error) {
		e.teardownTransports()
		if e.link != nil {
			e.link.Close("full reconnect")
			e.link = nil
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	_, err = e.call(ctx, func() (any, error) {
		return e.joinCore(ctx, e.url, e.token, e.connectOpts, e.roomOpts)
	})
	return err
}

func (e *Engine) doSoftReconnectAttempt(ctx context.Context) error {
	v, err := e.call(ctx, func() (any, error) {
		e.subscriber.PrepareForIceRestart()
		resp, err := e.link.Reconnect(ctx, e.url, e.token, e.participantSID)
		return resp, err
	})
	if err != nil {
		return err
	}
	resp := v.(*wire.ReconnectResponse)

	_, err = e.call(ctx, func() (any, error) {
		if len(resp.ICEServers) > 0 {
			servers := make([]webrtc.ICEServer, len(resp.ICEServers))
			for i, s := range resp.ICEServers {
				servers[i] = s.ToRTC()
			}
			cfg := rtctransport.BuildConfiguration(nil, servers, e.connectOpts.ForceRelay, nil)
			if err := e.publisher.UpdateRTCConfig(ctx, cfg); err != nil {
				return nil, err
			}
			if err := e.subscriber.UpdateRTCConfig(ctx, cfg); err != nil {
				return nil, err
			}
		}
		e.listener.OnSignalConnected(true)
		if len(e.publishedTracks) > 0 {
			e.negotiatePublisherLocked(ctx)
		}
		return nil, nil
	})
	return err
}

// waitForICEConnected polls both relevant transports until each reaches a
// connected ICE state or the shared budget elapses.
func (e *Engine) waitForICEConnected(ctx context.Context) error {
	deadline := time.Now().Add(maxICEConnectTimeout)
	check := func(t *rtctransport.Transport) bool {
		return t != nil && t.IsConnected()
	}

	for {
		v, _ := e.call(ctx, func() (any, error) {
			publishing := len(e.publishedTracks) > 0
			pubOK := !publishing || check(e.publisher)
			return pubOK && check(e.subscriber), nil
		})
		if ok, _ := v.(bool); ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrConnect
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// teardownTransports closes both transports and clears channel sets. Must
// run on the engine scope.
func (e *Engine) teardownTransports() {
	if e.publisher != nil {
		e.publisher.Close()
		e.publisher = nil
	}
	if e.subscriber != nil {
		e.subscriber.Close()
		e.subscriber = nil
	}
	e.dataOut = nil
	e.dataIn = nil
}

func (e *Engine) negotiatePublisherLocked(ctx context.Context) {
	constraints := rtctransport.OfferConstraints{
		OfferToReceiveAudio: false,
		OfferToReceiveVideo: false,
		ICERestart:          e.State() == StateReconnecting,
	}
	_ = e.publisher.Negotiate(ctx, constraints, func(sdp webrtc.SessionDescription) error {
		return e.link.SendOffer(sdp)
	})
}

// ---------------------------------------------------------------------
// Inbound event dispatch
// ---------------------------------------------------------------------

func (e *Engine) handleEvent(ev signaling.Event) {
	switch ev.Kind {
	case signaling.EventAnswer:
		if err := e.publisher.SetRemoteDescription(e.ctx, *ev.SDP); err != nil {
			e.log.Warning("apply answer failed: %v", err)
		}

	case signaling.EventOffer:
		e.handleOffer(*ev.SDP)

	case signaling.EventTrickle:
		t := e.subscriber
		if ev.Trickle.Target == signaling.TargetPublisher {
			t = e.publisher
		}
		if t != nil {
			if err := t.AddICECandidate(e.ctx, ev.Trickle.Candidate); err != nil {
				e.log.Warning("add ICE candidate failed: %v", err)
			}
		}

	case signaling.EventLocalTrackPublished:
		e.pending.Resolve(ev.TrackPublished.CID, ev.TrackPublished.Track)
		e.publishedTracks = append(e.publishedTracks, ev.TrackPublished.Track)

	case signaling.EventLocalTrackUnpublished:
		e.listener.OnLocalTrackUnpublished()

	case signaling.EventParticipantUpdate:
		e.listener.OnUpdateParticipants(ev.Participants)
	case signaling.EventSpeakersChanged:
		e.listener.OnSpeakersChanged(ev.Speakers)
	case signaling.EventActiveSpeakers:
		e.listener.OnActiveSpeakersUpdate(ev.Speakers)
	case signaling.EventConnectionQuality:
		e.listener.OnConnectionQuality()
	case signaling.EventRoomUpdate:
		e.listener.OnRoomUpdate()
	case signaling.EventMuteChanged:
		e.listener.OnRemoteMuteChanged(ev.MuteChanged.TrackSID, ev.MuteChanged.Muted)
	case signaling.EventStreamStateUpdate:
		e.listener.OnStreamStateUpdate()
	case signaling.EventSubscribedQualityUpdate:
		e.listener.OnSubscribedQualityUpdate()
	case signaling.EventSubscriptionPermissionUpdate:
		e.listener.OnSubscriptionPermissionUpdate()

	case signaling.EventRefreshToken:
		e.token = ev.NewToken

	case signaling.EventLeave:
		if ev.Leave.CanReconnect {
			e.triggerReconnect(true)
		}

	case signaling.EventClose:
		if e.State() == StateConnected {
			e.triggerReconnect(false)
		} else if !e.isClosed() {
			e.log.Warning("%v: %s", ErrSignalClosed, ev.Close.Reason)
			e.Close("signal closed: " + ev.Close.Reason)
			e.listener.OnEngineDisconnected(ReasonSignalClose)
		}

	case signaling.EventError:
		e.log.Warning("signal error: %v", ev.Err)
	}
}

// dispatchDataPacket routes a decoded inbound DataPacket to the matching
// listener callback.
func (e *Engine) dispatchDataPacket(pkt *wire.DataPacket) {
	switch pkt.Kind {
	case wire.DataPacketSpeaker:
		if pkt.Speaker != nil {
			e.listener.OnActiveSpeakersUpdate(pkt.Speaker.Speakers)
		}
	case wire.DataPacketUser:
		if pkt.User != nil {
			e.listener.OnUserPacket(pkt.User)
		}
	}
}

func (e *Engine) handleOffer(offer webrtc.SessionDescription) {
	if e.isClosed() {
		return
	}
	if err := e.subscriber.SetRemoteDescription(e.ctx, offer); err != nil {
		return
	}
	if e.isClosed() {
		return
	}
	answer, err := e.subscriber.CreateAnswer(e.ctx)
	if err != nil {
		return
	}
	if e.isClosed() {
		return
	}
	if err := e.subscriber.SetLocalDescription(e.ctx, answer); err != nil {
		return
	}
	if e.isClosed() {
		return
	}
	_ = e.link.SendAnswer(answer)
}

// ---------------------------------------------------------------------
// AddTrack / SendData / SendSyncState
// ---------------------------------------------------------------------

// AddTrack registers cid with the pending-track registry, requests
// publication through the signal link, and suspends until the server's
// matching TrackPublished event resolves it.
func (e *Engine) AddTrack(ctx context.Context, cid, name string, kind wire.TrackKind) (*wire.TrackInfo, error) {
	v, err := e.call(ctx, func() (any, error) {
		resolver, err := e.pending.Add(cid)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDuplicatePublication, err)
		}
		if err := e.link.SendAddTrack(cid, name, kind); err != nil {
			e.pending.Cancel(cid, err)
			return nil, err
		}
		return resolver, nil
	})
	if err != nil {
		return nil, err
	}
	resolver := v.(*pendingtrack.Resolver)
	return resolver.Wait(ctx)
}

// AddTrackAuto is AddTrack with a generated correlation id, for callers
// that have no natural cid of their own to correlate the server's ack
// against.
func (e *Engine) AddTrackAuto(ctx context.Context, name string, kind wire.TrackKind) (*wire.TrackInfo, error) {
	return e.AddTrack(ctx, uuid.NewString(), name, kind)
}

// RemoveTrack unpublishes a previously-added local track by its server
// sid: it notifies the link and drops the entry from publishedTracks.
// Like GetPublisherStats/GetSubscriberStats, this is a synchronous-looking
// query that suspends the caller until the queued operation completes,
// rather than a fire-and-forget command.
func (e *Engine) RemoveTrack(ctx context.Context, sid string) error {
	_, err := e.call(ctx, func() (any, error) {
		idx := -1
		for i, t := range e.publishedTracks {
			if t.SID == sid {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil, fmt.Errorf("engine: no published track with sid %q", sid)
		}
		if err := e.link.SendRemoveTrack(sid); err != nil {
			return nil, err
		}
		e.publishedTracks = append(e.publishedTracks[:idx], e.publishedTracks[idx+1:]...)
		return nil, nil
	})
	return err
}

// SendData writes pkt to the reliable or lossy channel, triggering a
// publisher negotiation first if subscriber-primary and the publisher
// hasn't started connecting yet.
func (e *Engine) SendData(ctx context.Context, pkt *wire.DataPacket, reliable bool) error {
	_, err := e.call(ctx, func() (any, error) {
		if e.subscriberPrimary && e.publisher != nil &&
			e.publisher.ICEConnectionState() == webrtc.ICEConnectionStateNew {
			e.negotiatePublisherLocked(ctx)
		}
		if e.dataOut == nil {
			return nil, ErrPublish
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	deadline := time.Now().Add(maxICEConnectTimeout)
	for {
		v, _ := e.call(ctx, func() (any, error) { return e.dataOut.Ready(reliable), nil })
		if ok, _ := v.(bool); ok {
			break
		}
		if time.Now().After(deadline) {
			return ErrConnect
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, err = e.call(ctx, func() (any, error) {
		return nil, e.dataOut.Send(ctx, pkt, reliable)
	})
	return err
}

// SendSyncState submits the current subscriber SDP, published tracks, and
// outbound data-channel descriptors to the link for post-reconnect
// reconciliation.
func (e *Engine) SendSyncState(ctx context.Context) error {
	_, err := e.call(ctx, func() (any, error) {
		state := signaling.SyncState{
			PublishedTracks:    e.publishedTracks,
			UpdateSubscription: signaling.UpdateSubscription{AllParticipants: e.connectOpts.AutoSubscribe},
		}
		if e.subscriber != nil {
			if sdp := e.subscriber.LocalDescription(); sdp != nil {
				state.SubscriberSDP = sdp
			}
		}
		if e.dataOut != nil {
			for _, info := range e.dataOut.Infos() {
				state.DataChannelInfos = append(state.DataChannelInfos, signaling.DataChannelInfo{ID: info.ID, Label: info.Label})
			}
		}
		return nil, e.link.SendSyncState(state)
	})
	return err
}

// GetPublisherStats returns the publisher PeerConnection's current stats
// report. Returns an empty report if no publisher transport exists yet.
func (e *Engine) GetPublisherStats(ctx context.Context) (webrtc.StatsReport, error) {
	v, err := e.call(ctx, func() (any, error) {
		if e.publisher == nil {
			return webrtc.StatsReport{}, nil
		}
		return e.publisher.Stats(), nil
	})
	if err != nil {
		return webrtc.StatsReport{}, err
	}
	return v.(webrtc.StatsReport), nil
}

// GetSubscriberStats returns the subscriber PeerConnection's current stats
// report. Returns an empty report if no subscriber transport exists yet.
func (e *Engine) GetSubscriberStats(ctx context.Context) (webrtc.StatsReport, error) {
	v, err := e.call(ctx, func() (any, error) {
		if e.subscriber == nil {
			return webrtc.StatsReport{}, nil
		}
		return e.subscriber.Stats(), nil
	})
	if err != nil {
		return webrtc.StatsReport{}, err
	}
	return v.(webrtc.StatsReport), nil
}

// ---------------------------------------------------------------------
// Close
// ---------------------------------------------------------------------

// Close is idempotent: cancels the reconnect task, tears down transports
// and the signal link, and transitions to DISCONNECTED.
func (e *Engine) Close(reason string) {
	e.closeOnce.Do(func() {
		close(e.done)
		e.cancel()
		e.pending.CancelAll(ErrClosed)
		if e.publisher != nil {
			e.publisher.CloseBlocking()
		}
		if e.subscriber != nil {
			e.subscriber.CloseBlocking()
		}
		if e.link != nil {
			e.link.Close(reason)
		}
		e.setState(StateDisconnected)
	})
}
