// Package rtctransport wraps a single pion PeerConnection with a
// serialized-operation discipline: every call that touches the native
// object runs on a dedicated single-consumer queue, so concurrent callers
// never observe a partially-applied state change.
package rtctransport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Role is the fixed identity of a Transport for the lifetime of a session.
type Role int

const (
	RolePublisher Role = iota
	RoleSubscriber
)

func (r Role) String() string {
	if r == RolePublisher {
		return "publisher"
	}
	return "subscriber"
}

// SdpApplyError wraps a SetRemoteDescription/SetLocalDescription rejection.
// This is logged by the engine, never fatal to the session.
type SdpApplyError struct {
	Op  string
	Err error
}

func (e *SdpApplyError) Error() string { return fmt.Sprintf("sdp apply failed (%s): %v", e.Op, e.Err) }
func (e *SdpApplyError) Unwrap() error { return e.Err }

var ErrTransportClosed = errors.New("rtctransport: transport closed")
var ErrNotPublisher = errors.New("rtctransport: operation is publisher-only")

type opFunc func(pc *webrtc.PeerConnection) (any, error)

type opRequest struct {
	fn   opFunc
	resp chan opResult
}

type opResult struct {
	val any
	err error
}

// Transport wraps one *webrtc.PeerConnection.
type Transport struct {
	role Role
	pc   *webrtc.PeerConnection

	ops       chan opRequest
	closed    chan struct{}
	closeOnce sync.Once

	mu                   sync.Mutex
	pendingCandidates    []webrtc.ICECandidateInit
	hasRemoteDescription bool
	restartOnNextOffer   bool

	negotiateMu      sync.Mutex
	negotiating      bool
	negotiatePending bool
	lastNegotiateErr error
}

// New creates a Transport around a freshly constructed PeerConnection.
func New(role Role, cfg webrtc.Configuration) (*Transport, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("rtctransport: new peer connection: %w", err)
	}

	t := &Transport{
		role:   role,
		pc:     pc,
		ops:    make(chan opRequest, 32),
		closed: make(chan struct{}),
	}

	go t.worker()
	return t, nil
}

func (t *Transport) worker() {
	for {
		select {
		case req := <-t.ops:
			val, err := req.fn(t.pc)
			req.resp <- opResult{val: val, err: err}
		case <-t.closed:
			return
		}
	}
}

// enqueue runs fn on the transport's worker goroutine and blocks the
// caller until it completes, ctx is cancelled, or the transport closes.
func (t *Transport) enqueue(ctx context.Context, fn opFunc) (any, error) {
	req := opRequest{fn: fn, resp: make(chan opResult, 1)}
	select {
	case <-t.closed:
		return nil, ErrTransportClosed
	default:
	}
	select {
	case t.ops <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closed:
		return nil, ErrTransportClosed
	}

	select {
	case r := <-req.resp:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closed:
		return nil, ErrTransportClosed
	}
}

// WithPeerConnection runs fn with exclusive access to the native
// PeerConnection.
func (t *Transport) WithPeerConnection(ctx context.Context, fn func(*webrtc.PeerConnection) (any, error)) (any, error) {
	return t.enqueue(ctx, opFunc(fn))
}

func (t *Transport) Role() Role { return t.role }

// ---------------------------------------------------------------------
// Observation (side-effect free, no queue needed)
// ---------------------------------------------------------------------

func (t *Transport) IsConnected() bool {
	return t.pc.ICEConnectionState() == webrtc.ICEConnectionStateConnected ||
		t.pc.ICEConnectionState() == webrtc.ICEConnectionStateCompleted
}

func (t *Transport) ICEConnectionState() webrtc.ICEConnectionState { return t.pc.ICEConnectionState() }
func (t *Transport) SignalingState() webrtc.SignalingState         { return t.pc.SignalingState() }
func (t *Transport) ConnectionState() webrtc.PeerConnectionState   { return t.pc.ConnectionState() }

// LocalDescription returns the current local SDP, or nil if none has been
// set yet.
func (t *Transport) LocalDescription() *webrtc.SessionDescription {
	return t.pc.LocalDescription()
}

// Stats returns the PeerConnection's current stats report. Safe to call
// from any goroutine; pion's GetStats is already internally synchronized.
func (t *Transport) Stats() webrtc.StatsReport {
	return t.pc.GetStats()
}

// ---------------------------------------------------------------------
// Observer registration
// ---------------------------------------------------------------------

func (t *Transport) OnICECandidate(fn func(*webrtc.ICECandidate)) { t.pc.OnICECandidate(fn) }
func (t *Transport) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	t.pc.OnICEConnectionStateChange(fn)
}
func (t *Transport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	t.pc.OnConnectionStateChange(fn)
}
func (t *Transport) OnDataChannel(fn func(*webrtc.DataChannel)) { t.pc.OnDataChannel(fn) }

// OnTrack fires when a remote track (audio or video) is added, i.e. the
// subscriber side receiving a newly-subscribed publication.
func (t *Transport) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	t.pc.OnTrack(fn)
}

// ---------------------------------------------------------------------
// SDP / ICE operations
// ---------------------------------------------------------------------

// OfferConstraints mirrors the mandatory offer keys a caller may set.
// OfferToReceiveAudio/Video are legacy Plan-B constraints with no pion
// equivalent (pion negotiates media via explicit transceivers); they are
// accepted for API fidelity with the spec and otherwise unused.
type OfferConstraints struct {
	OfferToReceiveAudio bool
	OfferToReceiveVideo bool
	ICERestart          bool
}

func (t *Transport) CreateOffer(ctx context.Context, constraints OfferConstraints) (webrtc.SessionDescription, error) {
	t.mu.Lock()
	if t.restartOnNextOffer {
		constraints.ICERestart = true
		t.restartOnNextOffer = false
	}
	t.mu.Unlock()

	v, err := t.enqueue(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		return pc.CreateOffer(&webrtc.OfferOptions{ICERestart: constraints.ICERestart})
	})
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return v.(webrtc.SessionDescription), nil
}

func (t *Transport) CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error) {
	v, err := t.enqueue(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		return pc.CreateAnswer(nil)
	})
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return v.(webrtc.SessionDescription), nil
}

// SetLocalDescription applies sdp. Candidate flushing happens on
// SetRemoteDescription, not here.
func (t *Transport) SetLocalDescription(ctx context.Context, sdp webrtc.SessionDescription) error {
	_, err := t.enqueue(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		return nil, pc.SetLocalDescription(sdp)
	})
	if err != nil {
		return &SdpApplyError{Op: "set-local", Err: err}
	}
	return nil
}

// SetRemoteDescription applies sdp, then flushes any ICE candidates that
// were buffered because they arrived before a remote description existed,
// in arrival order.
func (t *Transport) SetRemoteDescription(ctx context.Context, sdp webrtc.SessionDescription) error {
	_, err := t.enqueue(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		if err := pc.SetRemoteDescription(sdp); err != nil {
			return nil, err
		}

		t.mu.Lock()
		buffered := t.pendingCandidates
		t.pendingCandidates = nil
		t.hasRemoteDescription = true
		t.mu.Unlock()

		for _, c := range buffered {
			if err := pc.AddICECandidate(c); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return &SdpApplyError{Op: "set-remote", Err: err}
	}
	return nil
}

// AddICECandidate applies candidate immediately if a remote description is
// already set; otherwise it buffers the candidate for the next successful
// SetRemoteDescription, in arrival order.
func (t *Transport) AddICECandidate(ctx context.Context, candidate webrtc.ICECandidateInit) error {
	_, err := t.enqueue(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		t.mu.Lock()
		ready := t.hasRemoteDescription
		if !ready {
			t.pendingCandidates = append(t.pendingCandidates, candidate)
		}
		t.mu.Unlock()

		if !ready {
			return nil, nil
		}
		return nil, pc.AddICECandidate(candidate)
	})
	return err
}

// UpdateRTCConfig atomically replaces the transport-wide configuration,
// used during soft reconnect to install new ICE servers.
func (t *Transport) UpdateRTCConfig(ctx context.Context, cfg webrtc.Configuration) error {
	_, err := t.enqueue(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		return nil, pc.SetConfiguration(cfg)
	})
	return err
}

// PrepareForIceRestart marks the transport so the next CreateOffer call
// (direct or via Negotiate) uses ICERestart = true.
func (t *Transport) PrepareForIceRestart() {
	t.mu.Lock()
	t.restartOnNextOffer = true
	t.mu.Unlock()
}

// ---------------------------------------------------------------------
// Negotiation (publisher only)
// ---------------------------------------------------------------------

// Negotiate creates an offer, sets it as the local description, and hands
// it to send. Coalesces: a call arriving while a negotiation is already in
// flight is collapsed into a single trailing retry, so at most one
// additional negotiation round ever queues up behind the active one.
func (t *Transport) Negotiate(ctx context.Context, constraints OfferConstraints, send func(webrtc.SessionDescription) error) error {
	if t.role != RolePublisher {
		return ErrNotPublisher
	}

	t.negotiateMu.Lock()
	if t.negotiating {
		t.negotiatePending = true
		t.negotiateMu.Unlock()
		return nil
	}
	t.negotiating = true
	t.negotiateMu.Unlock()

	for {
		err := t.doNegotiate(ctx, constraints, send)

		t.negotiateMu.Lock()
		t.lastNegotiateErr = err
		if t.negotiatePending {
			t.negotiatePending = false
			t.negotiateMu.Unlock()
			continue
		}
		t.negotiating = false
		t.negotiateMu.Unlock()
		return err
	}
}

func (t *Transport) doNegotiate(ctx context.Context, constraints OfferConstraints, send func(webrtc.SessionDescription) error) error {
	offer, err := t.CreateOffer(ctx, constraints)
	if err != nil {
		return err
	}
	if err := t.SetLocalDescription(ctx, offer); err != nil {
		return err
	}
	return send(offer)
}

// ---------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------

// Close tears down the transport: stops the worker, disposes the native
// peer connection, and rejects further operations. Idempotent. t.ops is
// never closed — a concurrent enqueue racing this call gates on t.closed
// instead, so it never sends on a closed channel.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.pc.Close()
	})
	return err
}

// CloseBlocking is Close, named for callers that want to be explicit
// about the blocking teardown.
func (t *Transport) CloseBlocking() error { return t.Close() }
