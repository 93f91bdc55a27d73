package pendingtrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meshcall/session-engine/internal/wire"
)

func TestAddResolveRoundTrip(t *testing.T) {
	reg := NewRegistry()
	res, err := reg.Add("cid-1")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if !reg.Resolve("cid-1", wire.TrackInfo{SID: "sid-1", CID: "cid-1"}) {
		t.Fatal("Resolve reported no match for a pending cid")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	track, err := res.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if track.SID != "sid-1" {
		t.Errorf("SID mismatch: got %q", track.SID)
	}
}

func TestAddDuplicateCIDRejected(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Add("cid-1"); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	_, err := reg.Add("cid-1")
	if !errors.Is(err, ErrDuplicatePublication) {
		t.Fatalf("expected ErrDuplicatePublication, got %v", err)
	}
}

func TestResolveUnknownCIDReturnsFalse(t *testing.T) {
	reg := NewRegistry()
	if reg.Resolve("missing", wire.TrackInfo{}) {
		t.Fatal("expected Resolve to report no match for an unknown cid")
	}
}

func TestCancelAllSettlesPendingResolvers(t *testing.T) {
	reg := NewRegistry()
	res1, _ := reg.Add("cid-1")
	res2, _ := reg.Add("cid-2")

	sentinel := errors.New("session closed")
	reg.CancelAll(sentinel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := res1.Wait(ctx); !errors.Is(err, sentinel) {
		t.Errorf("res1: expected sentinel error, got %v", err)
	}
	if _, err := res2.Wait(ctx); !errors.Is(err, sentinel) {
		t.Errorf("res2: expected sentinel error, got %v", err)
	}

	// Registry should accept a fresh Add for the same cid after cancellation.
	if _, err := reg.Add("cid-1"); err != nil {
		t.Fatalf("Add after CancelAll should succeed, got %v", err)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	res := newResolver()
	res.Resolve(&wire.TrackInfo{SID: "a"})
	res.Resolve(&wire.TrackInfo{SID: "b"})
	res.Cancel(errors.New("ignored"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	track, err := res.Wait(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if track.SID != "a" {
		t.Errorf("expected first Resolve to win, got %q", track.SID)
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	res := newResolver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := res.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
