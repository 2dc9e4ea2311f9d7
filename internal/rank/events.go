// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies the kind of local domain event.
type EventType string

const (
	EventPlayerRankChanged EventType = "player_rank_changed"
	EventRankSaved         EventType = "rank_saved"
	EventRankDeleted       EventType = "rank_deleted"
	EventRanksReloaded     EventType = "ranks_reloaded"
)

// Event is a local domain event emitted after a manager operation has
// updated in-memory state. Events never cross process boundaries; the
// change channel does that.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	PlayerID  string // set for player rank changes
	RankID    string // affected rank, when applicable
	OldRank   string // previous primary rank, for EventPlayerRankChanged
}

// Broadcaster distributes domain events to in-process subscribers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe creates a channel for receiving events.
func (b *Broadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 64)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes a channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Broadcast sends an event to all subscribers.
func (b *Broadcaster) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// A slow subscriber misses the event rather than blocking the
			// mutation path. Subscribers that must not miss events should
			// drain promptly.
			slog.Warn("domain event dropped: subscriber buffer full",
				"event_id", event.ID,
				"event_type", string(event.Type),
			)
		}
	}
}
