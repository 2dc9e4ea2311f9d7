// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import "context"

// ChangeAction identifies the kind of player rank change in a channel
// message.
type ChangeAction string

const (
	// ActionSet replaces the player's primary rank.
	ActionSet ChangeAction = "set"
	// ActionAdd adds a rank to the player's rank set.
	ActionAdd ChangeAction = "add"
	// ActionRemove removes a rank from the player's rank set.
	ActionRemove ChangeAction = "remove"
)

// ChangeMessage is the compact change notification published on the shared
// rank-update channel. Set messages carry the absolute old and new primary
// rank; add/remove messages carry the affected rank. Messages are
// idempotent, so at-least-once delivery is safe.
//
// ServerID identifies the originating process; subscribers drop their own
// publications, since broadcast transports echo to the publisher.
type ChangeMessage struct {
	ID       string       `json:"id"`
	ServerID string       `json:"serverId"`
	PlayerID string       `json:"playerId"`
	Action   ChangeAction `json:"action"`
	NewRank  string       `json:"newRank,omitempty"`
	OldRank  string       `json:"oldRank,omitempty"`
	Rank     string       `json:"rank,omitempty"`
}

// ChangePublisher publishes change messages on the shared rank-update
// channel. Implemented by the transport adapter; a nil publisher on the
// manager disables cross-process propagation.
type ChangePublisher interface {
	Publish(ctx context.Context, msg ChangeMessage) error
}
