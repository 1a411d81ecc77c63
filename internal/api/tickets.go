package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	// ticketTTL is how long a WebSocket ticket stays valid.
	ticketTTL = 60 * time.Second

	ticketBytes = 32
)

// ticketStore holds single-use WebSocket tickets. A ticket lets a browser
// open /ws without putting its JWT in the URL.
type ticketStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]ticket
}

type ticket struct {
	subject   string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		ttl:     ticketTTL,
		now:     time.Now,
		pending: make(map[string]ticket),
	}
}

// issue creates a ticket for subject.
func (ts *ticketStore) issue(subject string) (string, error) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating ticket: %w", err)
	}
	id := hex.EncodeToString(b)

	ts.mu.Lock()
	ts.pending[id] = ticket{subject: subject, expiresAt: ts.now().Add(ts.ttl)}
	ts.mu.Unlock()
	return id, nil
}

// consume removes id and returns its subject if it had not expired.
func (ts *ticketStore) consume(id string) (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	t, ok := ts.pending[id]
	if !ok {
		return "", false
	}
	delete(ts.pending, id)
	if !ts.now().Before(t.expiresAt) {
		return "", false
	}
	return t.subject, true
}

// sweep drops expired tickets that were never used.
func (ts *ticketStore) sweep() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	removed := 0
	for id, t := range ts.pending {
		if !now.Before(t.expiresAt) {
			delete(ts.pending, id)
			removed++
		}
	}
	return removed
}

func (ts *ticketStore) len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.pending)
}

// run sweeps once per TTL until ctx is done.
func (ts *ticketStore) run(ctx context.Context) {
	ticker := time.NewTicker(ts.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.sweep()
		}
	}
}
