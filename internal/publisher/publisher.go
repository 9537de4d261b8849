// Package publisher holds the latest snapshot and fans it out to observers and render surfaces.
package publisher

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StockWatch/internal/model"
)

// Observer is notified synchronously after every publish.
// Implementations must not call back into the refresher that drives the publisher, nor publish
// or attach on this publisher.
type Observer interface {
	OnSnapshot(snap *model.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(snap *model.Snapshot)

func (f ObserverFunc) OnSnapshot(snap *model.Snapshot) { f(snap) }

// RenderHandle is an owned rendering surface. Every publish fully replaces its data set.
type RenderHandle interface {
	Update(snap *model.Snapshot) error
	Close() error
}

// Publisher owns the last published snapshot.
type Publisher struct {
	// deliverMu orders handle updates: a handle never sees an older snapshot after a newer one.
	deliverMu sync.Mutex

	mu        sync.RWMutex
	latest    *model.Snapshot
	observers []observerEntry
	handles   []handleEntry
	nextID    uint64
	closed    bool
	logger    zerolog.Logger
}

type observerEntry struct {
	id  uint64
	obs Observer
}

type handleEntry struct {
	id     uint64
	handle RenderHandle
}

// New creates an empty publisher.
func New() *Publisher {
	return &Publisher{logger: log.With().Str("component", "publisher").Logger()}
}

// Publish replaces the latest snapshot and notifies observers, then render handles, in
// registration order.
func (p *Publisher) Publish(snap *model.Snapshot) {
	if snap == nil {
		return
	}
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.latest = snap
	observers := make([]observerEntry, len(p.observers))
	copy(observers, p.observers)
	handles := make([]handleEntry, len(p.handles))
	copy(handles, p.handles)
	p.mu.Unlock()

	for _, o := range observers {
		o.obs.OnSnapshot(snap)
	}
	for _, h := range handles {
		if err := h.handle.Update(snap); err != nil {
			p.logger.Warn().Err(err).Str("symbol", snap.Symbol).Msg("render update failed")
		}
	}
}

// Latest returns the last published snapshot, if any.
func (p *Publisher) Latest() (*model.Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.latest != nil
}

// Subscribe registers an observer. The returned func removes it and is safe to call twice.
func (p *Publisher) Subscribe(obs Observer) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.observers = append(p.observers, observerEntry{id: id, obs: obs})

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, o := range p.observers {
				if o.id == id {
					p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Attach takes ownership of a render handle. The handle immediately receives the latest snapshot,
// if one exists. detach removes and closes it.
func (p *Publisher) Attach(handle RenderHandle) (detach func() error) {
	p.deliverMu.Lock()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.deliverMu.Unlock()
		err := handle.Close()
		return func() error { return err }
	}
	p.nextID++
	id := p.nextID
	p.handles = append(p.handles, handleEntry{id: id, handle: handle})
	latest := p.latest
	p.mu.Unlock()

	if latest != nil {
		if err := handle.Update(latest); err != nil {
			p.logger.Warn().Err(err).Str("symbol", latest.Symbol).Msg("initial render failed")
		}
	}
	p.deliverMu.Unlock()

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			p.deliverMu.Lock()
			defer p.deliverMu.Unlock()
			if p.remove(id) {
				err = handle.Close()
			}
		})
		return err
	}
}

func (p *Publisher) remove(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range p.handles {
		if h.id == id {
			p.handles = append(p.handles[:i:i], p.handles[i+1:]...)
			return true
		}
	}
	return false
}

// Close tears down every attached handle. Later publishes are ignored.
func (p *Publisher) Close() error {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	handles := p.handles
	p.handles = nil
	p.observers = nil
	p.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.handle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
