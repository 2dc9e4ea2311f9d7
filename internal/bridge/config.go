// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package bridge

import (
	"strings"

	"github.com/samber/oops"
)

// Direction configures which synchronization flows are active.
type Direction string

const (
	// OutboundOnly pushes local changes to the external authority and
	// ignores external events.
	OutboundOnly Direction = "OUTBOUND_ONLY"
	// InboundOnly applies external events locally and never pushes.
	InboundOnly Direction = "INBOUND_ONLY"
	// Bidirectional does both, with pending tickets preventing echo loops.
	Bidirectional Direction = "BIDIRECTIONAL"
)

// Outbound reports whether local changes are pushed outward.
func (d Direction) Outbound() bool {
	return d == OutboundOnly || d == Bidirectional
}

// Inbound reports whether external events are applied locally.
func (d Direction) Inbound() bool {
	return d == InboundOnly || d == Bidirectional
}

// Authority selects who wins during first-run reconciliation.
type Authority string

const (
	// AuthorityLocal pushes every local rank to the external system.
	AuthorityLocal Authority = "LOCAL"
	// AuthorityExternal imports every external group as a local rank.
	AuthorityExternal Authority = "EXTERNAL"
)

// Config is the bridge configuration surface. GroupPrefix is the
// deterministic, reversible transform between local rank ids and external
// group names. The Sync* toggles control which attributes participate in
// push operations.
type Config struct {
	Enabled           bool      `koanf:"enabled"`
	Direction         Direction `koanf:"direction"`
	InitialAuthority  Authority `koanf:"initial_authority"`
	GroupPrefix       string    `koanf:"group_prefix"`
	FullSyncOnStartup bool      `koanf:"full_sync_on_startup"`
	SyncPrefixSuffix  bool      `koanf:"sync_prefix_suffix"`
	SyncWeight        bool      `koanf:"sync_weight"`
	SyncInheritance   bool      `koanf:"sync_inheritance"`
}

// Validate checks the configuration is internally consistent.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Direction {
	case OutboundOnly, InboundOnly, Bidirectional:
	default:
		return oops.In("bridge").Code("INVALID_SYNC_DIRECTION").
			With("direction", string(c.Direction)).
			Errorf("direction must be OUTBOUND_ONLY, INBOUND_ONLY, or BIDIRECTIONAL")
	}
	switch c.InitialAuthority {
	case AuthorityLocal, AuthorityExternal:
	default:
		return oops.In("bridge").Code("INVALID_INITIAL_AUTHORITY").
			With("initial_authority", string(c.InitialAuthority)).
			Errorf("initial authority must be LOCAL or EXTERNAL")
	}
	return nil
}

// GroupName translates a local rank id to its external group name.
func (c Config) GroupName(rankID string) string {
	return c.GroupPrefix + rankID
}

// RankID translates an external group name back to a local rank id.
// Returns false when the name does not carry the configured prefix, meaning
// the group is not managed by this bridge.
func (c Config) RankID(groupName string) (string, bool) {
	if c.GroupPrefix == "" {
		return groupName, groupName != ""
	}
	id, ok := strings.CutPrefix(groupName, c.GroupPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
