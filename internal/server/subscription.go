package server

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"gihan9a/patchstore/internal/utils"
	"gihan9a/patchstore/pkg/braidproto"
	"gihan9a/patchstore/pkg/store"
)

// subscriptionBuffer is how many updates a subscriber may lag behind before
// it is disconnected
const subscriptionBuffer = 64

// Subscription represents a client subscription to document changes
type Subscription struct {
	ID       string
	Resource string

	updates chan braidproto.Update
	done    chan struct{}
	once    sync.Once
	cancel  func()

	mu      sync.Mutex
	version string // version of the last update queued
}

func (sub *Subscription) stop() {
	sub.once.Do(func() { close(sub.done) })
}

// AddSubscription follows a document and returns the subscription together
// with the full update the stream starts with
func (s *Server) AddSubscription(resourceID string) (*Subscription, braidproto.Update, error) {
	sub := &Subscription{
		ID:       uuid.NewString(),
		Resource: resourceID,
		updates:  make(chan braidproto.Update, subscriptionBuffer),
		done:     make(chan struct{}),
	}

	// forward waits for the starting version
	sub.mu.Lock()
	value, cancel, err := s.sess.Subscribe(resourceID, func(ev store.Event) { s.forward(sub, ev) })
	if err != nil {
		sub.mu.Unlock()
		return nil, braidproto.Update{}, err
	}
	sub.cancel = cancel
	body, version, err := encode(value)
	sub.version = version
	sub.mu.Unlock()
	if err != nil {
		cancel()
		return nil, braidproto.Update{}, err
	}

	s.mu.Lock()
	if _, exists := s.subscriptions[resourceID]; !exists {
		s.subscriptions[resourceID] = make(map[string]*Subscription)
	}
	s.subscriptions[resourceID][sub.ID] = sub
	s.mu.Unlock()

	s.logger.Info("added subscription", "subscription", sub.ID, "resource", resourceID)
	return sub, braidproto.FullUpdate(version, nil, body), nil
}

// RemoveSubscription removes a subscription
func (s *Server) RemoveSubscription(sub *Subscription) {
	sub.cancel()
	sub.stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if subs, exists := s.subscriptions[sub.Resource]; exists {
		delete(subs, sub.ID)
		s.logger.Info("removed subscription", "subscription", sub.ID, "resource", sub.Resource)

		// Clean up empty subscription maps
		if len(subs) == 0 {
			delete(s.subscriptions, sub.Resource)
		}
	}
}

// forward queues the update for one applied change. It runs in the session's
// notification path, so it never blocks: a subscriber whose buffer is full is
// stopped instead.
func (s *Server) forward(sub *Subscription, ev store.Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	select {
	case <-sub.done:
		return
	default:
	}

	update, err := s.patchUpdate(sub.version, ev)
	if err != nil {
		s.logger.Warn("dropping subscription", "subscription", sub.ID, "error", err)
		sub.stop()
		return
	}

	select {
	case sub.updates <- update:
		sub.version = update.Version[0]
	default:
		s.logger.Warn("subscriber too slow, dropping subscription", "subscription", sub.ID, "resource", sub.Resource)
		sub.stop()
	}
}

// patchUpdate builds the update carrying the patches of ev. A change of the
// whole document is sent as a full body.
func (s *Server) patchUpdate(parent string, ev store.Event) (braidproto.Update, error) {
	body, version, err := encode(ev.Value)
	if err != nil {
		return braidproto.Update{}, err
	}
	if len(ev.Patches) == 1 && ev.Patches[0].Path.IsRoot() {
		return braidproto.FullUpdate(version, []string{parent}, body), nil
	}
	patches, err := braidproto.FromPatchSet(ev.Patches)
	if err != nil {
		return braidproto.Update{}, err
	}
	return braidproto.Update{Version: []string{version}, Parents: []string{parent}, Patches: patches}, nil
}

// encode returns the JSON body of a value tree and its version
func encode(value any) ([]byte, string, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, "", err
	}
	return body, utils.CalculateHash(body), nil
}
