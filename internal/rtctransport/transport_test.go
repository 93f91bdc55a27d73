package rtctransport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

func TestStatsReturnsNonEmptyReportAfterDataChannel(t *testing.T) {
	tr, err := New(RolePublisher, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := tr.WithPeerConnection(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		_, err := pc.CreateDataChannel("_reliable", nil)
		return nil, err
	}); err != nil {
		t.Fatalf("WithPeerConnection: %v", err)
	}

	report := tr.Stats()
	if len(report) == 0 {
		t.Fatal("expected a non-empty stats report once a PeerConnection exists")
	}
}

func TestRoleString(t *testing.T) {
	if RolePublisher.String() != "publisher" {
		t.Errorf("got %q", RolePublisher.String())
	}
	if RoleSubscriber.String() != "subscriber" {
		t.Errorf("got %q", RoleSubscriber.String())
	}
}

func TestCreateOfferAndSetLocalDescription(t *testing.T) {
	tr, err := New(RolePublisher, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := tr.WithPeerConnection(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		_, err := pc.CreateDataChannel("_reliable", nil)
		return nil, err
	}); err != nil {
		t.Fatalf("WithPeerConnection: %v", err)
	}

	offer, err := tr.CreateOffer(ctx, OfferConstraints{})
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := tr.SetLocalDescription(ctx, offer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}
	if tr.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		t.Errorf("signaling state = %v, want have-local-offer", tr.SignalingState())
	}
}

func TestSetRemoteDescriptionRejectsGarbageSDP(t *testing.T) {
	tr, err := New(RoleSubscriber, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bad := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "not a real sdp"}
	err = tr.SetRemoteDescription(ctx, bad)
	if err == nil {
		t.Fatal("expected SetRemoteDescription to fail on garbage SDP")
	}
	var applyErr *SdpApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected *SdpApplyError, got %T: %v", err, err)
	}
	if applyErr.Op != "set-remote" {
		t.Errorf("Op = %q, want set-remote", applyErr.Op)
	}
}

func TestAddICECandidateBuffersBeforeRemoteDescription(t *testing.T) {
	pub, sub := newOfferedPair(t)
	defer pub.Close()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// sub has no remote description yet; AddICECandidate must buffer rather
	// than error.
	cand := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 9 typ host"}
	if err := sub.AddICECandidate(ctx, cand); err != nil {
		t.Fatalf("AddICECandidate before remote description: %v", err)
	}

	offer, err := pub.CreateOffer(ctx, OfferConstraints{})
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := pub.SetLocalDescription(ctx, offer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}

	// SetRemoteDescription must flush the buffered candidate without error.
	if err := sub.SetRemoteDescription(ctx, offer); err != nil {
		t.Fatalf("SetRemoteDescription: %v", err)
	}
}

func TestNegotiateRequiresPublisherRole(t *testing.T) {
	tr, err := New(RoleSubscriber, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	err = tr.Negotiate(context.Background(), OfferConstraints{}, func(webrtc.SessionDescription) error { return nil })
	if !errors.Is(err, ErrNotPublisher) {
		t.Fatalf("got %v, want ErrNotPublisher", err)
	}
}

func TestNegotiateCoalescesConcurrentCalls(t *testing.T) {
	tr, err := New(RolePublisher, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	ctx := context.Background()
	if _, err := tr.WithPeerConnection(ctx, func(pc *webrtc.PeerConnection) (any, error) {
		_, err := pc.CreateDataChannel("_reliable", nil)
		return nil, err
	}); err != nil {
		t.Fatalf("WithPeerConnection: %v", err)
	}

	var mu sync.Mutex
	var sendCount int
	release := make(chan struct{})
	firstBlocked := make(chan struct{})
	var firstOnce sync.Once

	send := func(sdp webrtc.SessionDescription) error {
		mu.Lock()
		sendCount++
		isFirst := sendCount == 1
		mu.Unlock()
		if isFirst {
			firstOnce.Do(func() { close(firstBlocked) })
			<-release
		}
		return nil
	}

	done1 := make(chan error, 1)
	go func() { done1 <- tr.Negotiate(ctx, OfferConstraints{}, send) }()

	select {
	case <-firstBlocked:
	case <-time.After(5 * time.Second):
		t.Fatal("first negotiation never reached send")
	}

	// A second call arriving while the first is in flight must coalesce
	// into a single pending retry rather than queue a second worker.
	if err := tr.Negotiate(ctx, OfferConstraints{}, send); err != nil {
		t.Fatalf("coalesced Negotiate call returned error: %v", err)
	}

	close(release)

	select {
	case err := <-done1:
		if err != nil {
			t.Fatalf("Negotiate returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("negotiation did not complete after release")
	}

	mu.Lock()
	defer mu.Unlock()
	if sendCount != 2 {
		t.Errorf("sendCount = %d, want 2 (initial + one coalesced retry)", sendCount)
	}
}

func TestCloseIsIdempotentAndRejectsFurtherOps(t *testing.T) {
	tr, err := New(RolePublisher, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = tr.CreateOffer(ctx, OfferConstraints{})
	if !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("got %v, want ErrTransportClosed", err)
	}
}

// newOfferedPair returns two fresh transports with no SDP exchanged yet.
func newOfferedPair(t *testing.T) (pub, sub *Transport) {
	t.Helper()
	pub, err := New(RolePublisher, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("New(publisher): %v", err)
	}
	sub, err = New(RoleSubscriber, webrtc.Configuration{})
	if err != nil {
		t.Fatalf("New(subscriber): %v", err)
	}
	return pub, sub
}
