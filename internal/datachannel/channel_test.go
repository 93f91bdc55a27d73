package datachannel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/meshcall/session-engine/internal/wire"
)

// newConnectedPair creates two peer connections, runs one offer/answer
// exchange from A to B, and hands each side the other's gathered ICE
// candidates. It creates no data channels and does not wait for the
// connection; callers create their channels and wait for them to open.
func newConnectedPair(t *testing.T) (pcA, pcB *webrtc.PeerConnection) {
	t.Helper()

	pcA, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection(A) error: %v", err)
	}
	t.Cleanup(func() { _ = pcA.Close() })

	pcB, err = webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection(B) error: %v", err)
	}
	t.Cleanup(func() { _ = pcB.Close() })

	var muA, muB sync.Mutex
	var candA, candB []webrtc.ICECandidateInit
	pcA.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		muA.Lock()
		candA = append(candA, c.ToJSON())
		muA.Unlock()
	})
	pcB.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		muB.Lock()
		candB = append(candB, c.ToJSON())
		muB.Unlock()
	})

	offer, err := pcA.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := pcA.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription(offer): %v", err)
	}
	if err := pcB.SetRemoteDescription(offer); err != nil {
		t.Fatalf("SetRemoteDescription(offer): %v", err)
	}
	answer, err := pcB.CreateAnswer(nil)
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if err := pcB.SetLocalDescription(answer); err != nil {
		t.Fatalf("SetLocalDescription(answer): %v", err)
	}
	if err := pcA.SetRemoteDescription(answer); err != nil {
		t.Fatalf("SetRemoteDescription(answer): %v", err)
	}

	waitGathering(t, pcA)
	waitGathering(t, pcB)

	muA.Lock()
	for _, c := range candA {
		if err := pcB.AddICECandidate(c); err != nil {
			t.Fatalf("AddICECandidate(B): %v", err)
		}
	}
	muA.Unlock()
	muB.Lock()
	for _, c := range candB {
		if err := pcA.AddICECandidate(c); err != nil {
			t.Fatalf("AddICECandidate(A): %v", err)
		}
	}
	muB.Unlock()

	return pcA, pcB
}

func waitGathering(t *testing.T, pc *webrtc.PeerConnection) {
	t.Helper()
	if pc.ICEGatheringState() == webrtc.ICEGatheringStateComplete {
		return
	}
	done := make(chan struct{})
	pc.OnICEGatheringStateChange(func(state webrtc.ICEGatheringState) {
		if state == webrtc.ICEGatheringStateComplete {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for ICE gathering")
	}
}

func waitOpen(t *testing.T, dc *webrtc.DataChannel) {
	t.Helper()
	if dc.ReadyState() == webrtc.DataChannelStateOpen {
		return
	}
	done := make(chan struct{})
	dc.OnOpen(func() { close(done) })
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s to open", dc.Label())
	}
}

func TestSetSendAndAttachRoundTrip(t *testing.T) {
	pcA, pcB := newConnectedPair(t)

	reliable, lossy, err := CreateDataChannels(pcA)
	if err != nil {
		t.Fatalf("CreateDataChannels: %v", err)
	}

	attached := make(chan *webrtc.DataChannel, 2)
	pcB.OnDataChannel(func(dc *webrtc.DataChannel) { attached <- dc })

	waitOpen(t, reliable)
	waitOpen(t, lossy)

	out := NewSet(reliable, lossy)

	in := &Set{}
	received := make(chan *wire.DataPacket, 1)
	in.OnPacket(func(pkt *wire.DataPacket) { received <- pkt })

	for i := 0; i < 2; i++ {
		select {
		case dc := <-attached:
			in.Attach(dc)
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for incoming data channel")
		}
	}

	pkt := &wire.DataPacket{
		Kind: wire.DataPacketUser,
		User: &wire.UserPacket{Payload: []byte("hello")},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := out.Send(ctx, pkt, true); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if got.Kind != wire.DataPacketUser || string(got.User.Payload) != "hello" {
			t.Errorf("got %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for packet delivery")
	}
}

func TestOnTrafficCountsSentAndReceivedBytes(t *testing.T) {
	pcA, pcB := newConnectedPair(t)

	reliable, lossy, err := CreateDataChannels(pcA)
	if err != nil {
		t.Fatalf("CreateDataChannels: %v", err)
	}
	attached := make(chan *webrtc.DataChannel, 2)
	pcB.OnDataChannel(func(dc *webrtc.DataChannel) { attached <- dc })
	waitOpen(t, reliable)
	waitOpen(t, lossy)

	out := NewSet(reliable, lossy)
	var sentBytes int
	var mu sync.Mutex
	out.OnTraffic(func(n int) {
		mu.Lock()
		sentBytes += n
		mu.Unlock()
	}, nil)

	in := &Set{}
	recvDone := make(chan int, 1)
	in.OnTraffic(nil, func(n int) { recvDone <- n })
	for i := 0; i < 2; i++ {
		select {
		case dc := <-attached:
			in.Attach(dc)
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for incoming data channel")
		}
	}

	pkt := &wire.DataPacket{Kind: wire.DataPacketUser, User: &wire.UserPacket{Payload: []byte("count-me")}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := out.Send(ctx, pkt, true); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case n := <-recvDone:
		if n == 0 {
			t.Error("expected recv callback to report a nonzero byte count")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recv callback")
	}

	mu.Lock()
	got := sentBytes
	mu.Unlock()
	if got == 0 {
		t.Error("expected sent callback to report a nonzero byte count")
	}
}

func TestReadyReflectsChannelState(t *testing.T) {
	pcA, _ := newConnectedPair(t)
	reliable, lossy, err := CreateDataChannels(pcA)
	if err != nil {
		t.Fatalf("CreateDataChannels: %v", err)
	}
	waitOpen(t, reliable)
	waitOpen(t, lossy)

	s := NewSet(reliable, lossy)
	if !s.Ready(true) {
		t.Error("expected reliable channel ready")
	}
	if !s.Ready(false) {
		t.Error("expected lossy channel ready")
	}
}

func TestReadyFalseWhenChannelMissing(t *testing.T) {
	s := &Set{}
	if s.Ready(true) {
		t.Error("expected reliable channel not ready when unset")
	}
	if s.Ready(false) {
		t.Error("expected lossy channel not ready when unset")
	}
}

func TestSendRejectsOversizePacket(t *testing.T) {
	pcA, _ := newConnectedPair(t)
	reliable, lossy, err := CreateDataChannels(pcA)
	if err != nil {
		t.Fatalf("CreateDataChannels: %v", err)
	}
	waitOpen(t, reliable)
	waitOpen(t, lossy)
	s := NewSet(reliable, lossy)

	pkt := &wire.DataPacket{
		Kind: wire.DataPacketUser,
		User: &wire.UserPacket{Payload: make([]byte, wire.MaxDataPacketSize+1)},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Send(ctx, pkt, true); err == nil {
		t.Fatal("expected oversize packet to be rejected")
	}
}

func TestSendFailsWhenChannelNotOpen(t *testing.T) {
	s := &Set{}
	pkt := &wire.DataPacket{Kind: wire.DataPacketUser, User: &wire.UserPacket{Payload: []byte("x")}}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Send(ctx, pkt, true); err == nil {
		t.Fatal("expected error when no channel is attached")
	}
}

func TestAttachIgnoresUnknownLabel(t *testing.T) {
	pcA, pcB := newConnectedPair(t)
	dcA, err := pcA.CreateDataChannel("_unexpected", nil)
	if err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}

	attached := make(chan *webrtc.DataChannel, 1)
	pcB.OnDataChannel(func(dc *webrtc.DataChannel) { attached <- dc })
	waitOpen(t, dcA)

	s := &Set{}
	select {
	case dc := <-attached:
		s.Attach(dc)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for incoming data channel")
	}

	if s.reliable != nil || s.lossy != nil {
		t.Error("expected unknown label to be discarded, not attached to either slot")
	}
}

func TestCreateDataChannelsUsesExpectedLabelsAndReliability(t *testing.T) {
	pcA, _ := newConnectedPair(t)
	reliable, lossy, err := CreateDataChannels(pcA)
	if err != nil {
		t.Fatalf("CreateDataChannels: %v", err)
	}
	if reliable.Label() != LabelReliable {
		t.Errorf("reliable label = %q, want %q", reliable.Label(), LabelReliable)
	}
	if lossy.Label() != LabelLossy {
		t.Errorf("lossy label = %q, want %q", lossy.Label(), LabelLossy)
	}
	if !lossy.Ordered() {
		t.Error("expected lossy channel to stay ordered")
	}
	if lossy.MaxRetransmits() == nil || *lossy.MaxRetransmits() != 0 {
		t.Error("expected lossy channel MaxRetransmits = 0")
	}
}
