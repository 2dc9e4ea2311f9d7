// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package bridge

import (
	"fmt"
	"sync"
	"time"
)

// DedupeWindow is how long an outbound push's pending ticket matches the
// inbound echo of that push. An echo arriving later is misclassified as a
// genuine external change; that soft race is accepted rather than holding
// tickets forever.
const DedupeWindow = 5 * time.Second

// PendingOpRegistry tracks pending-operation tickets: ephemeral dedupe
// records keyed by an operation-specific string, created before an
// outbound external write and consumed by the matching inbound echo.
type PendingOpRegistry interface {
	// Register records a ticket for the key, stamped now.
	Register(key string)

	// Consume removes the ticket for key and reports whether it matched.
	// A ticket older than the dedupe window never matches; a ticket is
	// consumed at most once.
	Consume(key string) bool

	// Sweep removes tickets older than the dedupe window, returning how
	// many were removed.
	Sweep() int

	// Len returns the number of outstanding tickets.
	Len() int
}

// Ticket key constructors. User tickets are keyed per player and group;
// sync tickets cover a whole entity during full reconciliation so the
// burst of echoed events is suppressed as a unit.

// UserTicket keys one user/group inheritance change.
func UserTicket(playerID, groupName string) string {
	return fmt.Sprintf("user:%s:%s", playerID, groupName)
}

// GroupTicket keys one group write (create, attribute replace, delete).
func GroupTicket(groupName string) string {
	return "group:" + groupName
}

// UserSyncTicket keys a whole-user reconciliation pass.
func UserSyncTicket(playerID string) string {
	return "sync:user:" + playerID
}

// GroupSyncTicket keys a whole-group reconciliation pass.
func GroupSyncTicket(groupName string) string {
	return "sync:group:" + groupName
}

// registry is the in-memory PendingOpRegistry.
//
// Thread-safety: the map is protected by mu; every operation is a single
// atomic per-key step, no multi-key transactions exist.
type registry struct {
	mu     sync.Mutex
	ops    map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewRegistry creates an in-memory pending-operation registry with the
// standard dedupe window.
func NewRegistry() PendingOpRegistry {
	return newRegistry(DedupeWindow, time.Now)
}

func newRegistry(window time.Duration, now func() time.Time) *registry {
	return &registry{
		ops:    make(map[string]time.Time),
		window: window,
		now:    now,
	}
}

func (r *registry) Register(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[key] = r.now()
	pendingTickets.Set(float64(len(r.ops)))
}

func (r *registry) Consume(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	created, ok := r.ops[key]
	if !ok {
		return false
	}
	// Remove in both cases: an expired ticket can never match again.
	delete(r.ops, key)
	pendingTickets.Set(float64(len(r.ops)))
	return r.now().Sub(created) <= r.window
}

func (r *registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	removed := 0
	for key, created := range r.ops {
		if created.Before(cutoff) {
			delete(r.ops, key)
			removed++
		}
	}
	pendingTickets.Set(float64(len(r.ops)))
	return removed
}

func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}
