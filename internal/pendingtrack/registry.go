// Package pendingtrack correlates a locally published track (identified by
// its client-generated cid) with the server's eventual TrackPublished
// confirmation.
package pendingtrack

import (
	"context"
	"errors"
	"sync"

	"github.com/meshcall/session-engine/internal/wire"
)

// ErrDuplicatePublication is returned by Registry.Add when cid is already
// registered and still unresolved.
var ErrDuplicatePublication = errors.New("pendingtrack: cid already pending")

// ErrCancelled is the error a Resolver settles with when Cancel is called
// without an explicit reason.
var ErrCancelled = errors.New("pendingtrack: cancelled")

// Resolver is a one-shot future for a single pending track publication.
type Resolver struct {
	done chan struct{}
	once sync.Once

	track *wire.TrackInfo
	err   error
}

func newResolver() *Resolver {
	return &Resolver{done: make(chan struct{})}
}

// Resolve settles the resolver successfully. Subsequent calls (Resolve or
// Cancel) are no-ops.
func (r *Resolver) Resolve(track *wire.TrackInfo) {
	r.once.Do(func() {
		r.track = track
		close(r.done)
	})
}

// Cancel settles the resolver with an error. Subsequent calls are no-ops.
func (r *Resolver) Cancel(err error) {
	if err == nil {
		err = ErrCancelled
	}
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Wait blocks until the resolver settles or ctx is cancelled.
func (r *Resolver) Wait(ctx context.Context) (*wire.TrackInfo, error) {
	select {
	case <-r.done:
		return r.track, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Registry tracks every cid awaiting a TrackPublished confirmation.
type Registry struct {
	mu    sync.Mutex
	byCID map[string]*Resolver
}

func NewRegistry() *Registry {
	return &Registry{byCID: make(map[string]*Resolver)}
}

// Add registers cid and returns its Resolver. Fails with
// ErrDuplicatePublication if cid is already pending.
func (r *Registry) Add(cid string) (*Resolver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCID[cid]; exists {
		return nil, ErrDuplicatePublication
	}
	res := newResolver()
	r.byCID[cid] = res
	return res, nil
}

// Resolve settles and removes the resolver for cid, if one is pending.
// Reports whether a matching resolver was found.
func (r *Registry) Resolve(cid string, track wire.TrackInfo) bool {
	r.mu.Lock()
	res, ok := r.byCID[cid]
	if ok {
		delete(r.byCID, cid)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	res.Resolve(&track)
	return true
}

// Cancel settles and removes the resolver for cid with err, if one is
// pending. Reports whether a matching resolver was found.
func (r *Registry) Cancel(cid string, err error) bool {
	r.mu.Lock()
	res, ok := r.byCID[cid]
	if ok {
		delete(r.byCID, cid)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	res.Cancel(err)
	return true
}

// CancelAll settles every still-pending resolver with err and clears the
// registry. Called when the engine tears down mid-publish.
func (r *Registry) CancelAll(err error) {
	r.mu.Lock()
	pending := r.byCID
	r.byCID = make(map[string]*Resolver)
	r.mu.Unlock()

	for _, res := range pending {
		res.Cancel(err)
	}
}
