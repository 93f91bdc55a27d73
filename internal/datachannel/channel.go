// Package datachannel wraps pion DataChannels with backpressure gating and
// wire.DataPacket framing across a reliable/lossy channel pair.
package datachannel

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/meshcall/session-engine/internal/wire"
)

const (
	// HighWaterMark pauses sends once BufferedAmount exceeds this.
	HighWaterMark = 256 * 1024
	// LowWaterMark resumes sends once BufferedAmount falls below this.
	LowWaterMark = 64 * 1024
)

// Label names for the two logical channels every session opens.
const (
	LabelReliable = "_reliable"
	LabelLossy    = "_lossy"
)

// channel wraps one pion DataChannel with backpressure gating.
type channel struct {
	raw       *webrtc.DataChannel
	sendReady chan struct{}
}

func newChannel(raw *webrtc.DataChannel) *channel {
	c := &channel{raw: raw, sendReady: make(chan struct{}, 1)}
	raw.SetBufferedAmountLowThreshold(uint64(LowWaterMark))
	raw.OnBufferedAmountLow(func() {
		select {
		case c.sendReady <- struct{}{}:
		default:
		}
	})
	return c
}

// send blocks for backpressure relief if BufferedAmount is already high,
// then writes data. Returns ctx.Err() if cancelled while waiting.
func (c *channel) send(ctx context.Context, data []byte) error {
	if c.raw.BufferedAmount() > uint64(HighWaterMark) {
		select {
		case <-c.sendReady:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.raw.Send(data)
}

func (c *channel) state() webrtc.DataChannelState { return c.raw.ReadyState() }

func (c *channel) id() uint16 {
	if id := c.raw.ID(); id != nil {
		return *id
	}
	return 0
}

// Set owns the reliable/lossy channel pair for one Transport side. A
// publisher-side Set sends; a subscriber-side Set receives. Both directions
// use the same wire format so a peer can in principle do either.
type Set struct {
	reliable *channel
	lossy    *channel

	onPacket func(*wire.DataPacket)
	onSent   func(n int)
	onRecv   func(n int)
}

// NewSet wraps two already-created DataChannels. Either may be nil if that
// direction is not yet open; use Attach to wire one in once it arrives.
func NewSet(reliable, lossy *webrtc.DataChannel) *Set {
	s := &Set{}
	if reliable != nil {
		s.Attach(reliable)
	}
	if lossy != nil {
		s.Attach(lossy)
	}
	return s
}

// Attach wires an incoming DataChannel (typically from Transport's
// OnDataChannel callback) into the set, keyed by its label. Channels with
// an unrecognized label are ignored.
func (s *Set) Attach(dc *webrtc.DataChannel) {
	switch dc.Label() {
	case LabelReliable:
		s.reliable = newChannel(dc)
	case LabelLossy:
		s.lossy = newChannel(dc)
	default:
		return
	}

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if s.onRecv != nil {
			s.onRecv(len(msg.Data))
		}
		pkt, err := wire.Decode(msg.Data)
		if err != nil {
			return
		}
		if s.onPacket != nil {
			s.onPacket(pkt)
		}
	})
}

// OnPacket registers the callback invoked for every successfully decoded
// inbound packet, from either channel.
func (s *Set) OnPacket(fn func(*wire.DataPacket)) { s.onPacket = fn }

// OnTraffic registers byte-count callbacks for observability: sent fires
// after a successful outbound write, recv fires for every inbound message
// regardless of whether it decodes.
func (s *Set) OnTraffic(sent, recv func(n int)) {
	s.onSent = sent
	s.onRecv = recv
}

// Send encodes pkt and writes it to the reliable or lossy channel. Packets
// larger than wire.MaxDataPacketSize are rejected before the write is even
// attempted.
func (s *Set) Send(ctx context.Context, pkt *wire.DataPacket, reliable bool) error {
	data, err := wire.Encode(pkt)
	if err != nil {
		return fmt.Errorf("datachannel: encode: %w", err)
	}
	if len(data) > wire.MaxDataPacketSize {
		return fmt.Errorf("datachannel: packet too large (%d > %d)", len(data), wire.MaxDataPacketSize)
	}

	ch := s.lossy
	if reliable {
		ch = s.reliable
	}
	if ch == nil {
		return fmt.Errorf("datachannel: %s channel not open", channelName(reliable))
	}
	if err := ch.send(ctx, data); err != nil {
		return err
	}
	if s.onSent != nil {
		s.onSent(len(data))
	}
	return nil
}

// Info identifies one live channel for sync-state reporting.
type Info struct {
	ID    uint16
	Label string
}

// Infos returns {ID, Label} for every channel currently attached to this
// set, reliable first then lossy, for SyncState's outbound-channel list.
func (s *Set) Infos() []Info {
	var out []Info
	if s.reliable != nil {
		out = append(out, Info{ID: s.reliable.id(), Label: LabelReliable})
	}
	if s.lossy != nil {
		out = append(out, Info{ID: s.lossy.id(), Label: LabelLossy})
	}
	return out
}

// Ready reports whether the requested channel is open and can accept sends.
func (s *Set) Ready(reliable bool) bool {
	ch := s.lossy
	if reliable {
		ch = s.reliable
	}
	return ch != nil && ch.state() == webrtc.DataChannelStateOpen
}

func channelName(reliable bool) string {
	if reliable {
		return LabelReliable
	}
	return LabelLossy
}

// CreateDataChannels opens both channels on pc: the reliable channel uses
// pion's default ordered/retransmit-forever settings; the lossy channel
// stays ordered but disables retransmits, so late packets are dropped
// rather than resent or queued.
func CreateDataChannels(pc *webrtc.PeerConnection) (reliable, lossy *webrtc.DataChannel, err error) {
	reliable, err = pc.CreateDataChannel(LabelReliable, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("datachannel: create %s: %w", LabelReliable, err)
	}

	zero := uint16(0)
	lossy, err = pc.CreateDataChannel(LabelLossy, &webrtc.DataChannelInit{
		MaxRetransmits: &zero,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("datachannel: create %s: %w", LabelLossy, err)
	}
	return reliable, lossy, nil
}
