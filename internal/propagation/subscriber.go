// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

// Package propagation applies rank change messages arriving from other
// processes to this process's online-player cache.
package propagation

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/rankcore/rankcore/internal/rank"
)

// Source delivers change messages from the shared rank-update channel.
// The returned channel closes when the context is cancelled.
type Source interface {
	Messages(ctx context.Context) (<-chan rank.ChangeMessage, error)
}

// RefreshFunc recomputes a platform-specific permission cache for a player
// after a remote change was applied. Only invoked when no external
// authority bridge is active; an active bridge reconciles permissions
// through its own channel.
type RefreshFunc func(playerID string)

// Subscriber consumes change notifications from other processes and
// applies them to the local player cache.
//
// The subscriber never re-publishes (that would create a propagation loop)
// and never calls through the manager's public mutation path (that would
// re-trigger persistence writes and bridge pushes for a change this
// process did not originate).
type Subscriber struct {
	source       Source
	cache        *rank.PlayerCache
	store        *rank.Store
	serverID     string
	bridgeActive bool
	refresh      RefreshFunc
	logger       *slog.Logger
}

// SubscriberConfig holds the subscriber's collaborators.
type SubscriberConfig struct {
	Source       Source
	PlayerCache  *rank.PlayerCache
	Store        *rank.Store
	ServerID     string
	BridgeActive bool
	Refresh      RefreshFunc
	Logger       *slog.Logger
}

// NewSubscriber creates a propagation subscriber.
func NewSubscriber(cfg SubscriberConfig) *Subscriber {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		source:       cfg.Source,
		cache:        cfg.PlayerCache,
		store:        cfg.Store,
		serverID:     cfg.ServerID,
		bridgeActive: cfg.BridgeActive,
		refresh:      cfg.Refresh,
		logger:       logger,
	}
}

// Run consumes messages until the context is cancelled or the source
// channel closes.
func (s *Subscriber) Run(ctx context.Context) error {
	msgs, err := s.source.Messages(ctx)
	if err != nil {
		return oops.In("propagation").Code("SUBSCRIBE_FAILED").Wrap(err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			s.Apply(msg)
		}
	}
}

// Apply applies one change message to the local player cache. Messages
// originating from this process and messages for players not cached
// locally are ignored. Messages encode absolute state (set) or
// set-add/set-remove (add/remove), so duplicate delivery is harmless.
func (s *Subscriber) Apply(msg rank.ChangeMessage) {
	if msg.ServerID == s.serverID {
		recordMessage(string(msg.Action), "own")
		return
	}

	applied := s.cache.Update(msg.PlayerID, func(p *rank.Player) {
		switch msg.Action {
		case rank.ActionSet:
			p.PrimaryRank = msg.NewRank
			p.AddRank(msg.NewRank)
		case rank.ActionAdd:
			p.AddRank(msg.Rank)
		case rank.ActionRemove:
			p.RemoveRank(msg.Rank)
			if p.PrimaryRank == msg.Rank {
				def := s.store.Default()
				p.PrimaryRank = def.ID
				p.AddRank(def.ID)
			}
		default:
			s.logger.Warn("ignoring change message with unknown action",
				"message_id", msg.ID,
				"action", string(msg.Action))
		}
	})

	if !applied {
		// Player is not online here; nothing to update.
		recordMessage(string(msg.Action), "offline")
		return
	}
	recordMessage(string(msg.Action), "applied")

	s.logger.Debug("applied remote rank change",
		"message_id", msg.ID,
		"player_id", msg.PlayerID,
		"action", string(msg.Action))

	if !s.bridgeActive && s.refresh != nil {
		s.refresh(msg.PlayerID)
	}
}
