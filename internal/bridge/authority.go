// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

// Package bridge keeps local rank state and an optional external
// permission authority consistent, in either or both directions, without
// feedback loops.
package bridge

import (
	"context"
	"errors"
)

// ErrAuthorityUnavailable is returned when the external authority cannot
// be reached at startup. The bridge then stays inactive and the feature
// degrades to local-only permissions.
var ErrAuthorityUnavailable = errors.New("external authority unavailable")

// EntityKind identifies what an authority event describes.
type EntityKind string

const (
	// KindUser events describe a user's inherited-group change.
	KindUser EntityKind = "user"
	// KindGroup events describe a group's parent-group change.
	KindGroup EntityKind = "group"
)

// Event is an inheritance-node change observed by the external authority,
// emitted for every change it sees regardless of origin. EntityID is the
// user id for user events or the group name for group events; GroupName is
// the inheritance node that was added or removed.
type Event struct {
	Kind      EntityKind
	EntityID  string
	GroupName string
	Added     bool
}

// GroupAttributes is the full attribute set written to an external group.
// Pushes always replace all attributes; the external system's state is
// never read-modify-written.
type GroupAttributes struct {
	Permissions []string
	Prefix      string
	Suffix      string
	Weight      int
	Parents     []string
}

// ExternalAuthority is the collaborator contract for the external
// permission system. Implementations live outside this core.
type ExternalAuthority interface {
	// Ping verifies the authority is reachable.
	Ping(ctx context.Context) error

	// GroupExists reports whether the named group exists.
	GroupExists(ctx context.Context, name string) (bool, error)

	// CreateOrLoadGroup ensures the named group exists.
	CreateOrLoadGroup(ctx context.Context, name string) error

	// ReplaceGroupAttributes overwrites all attributes of the named group.
	ReplaceGroupAttributes(ctx context.Context, name string, attrs GroupAttributes) error

	// DeleteGroup removes the named group.
	DeleteGroup(ctx context.Context, name string) error

	// Groups enumerates all group names, used during full reconciliation
	// with external initial authority.
	Groups(ctx context.Context) ([]string, error)

	// GroupAttributes reads the current attributes of the named group.
	GroupAttributes(ctx context.Context, name string) (GroupAttributes, error)

	// UserInheritedGroups returns the group names a user inherits.
	UserInheritedGroups(ctx context.Context, userID string) ([]string, error)

	// AddUserGroup grants a user membership of the named group.
	AddUserGroup(ctx context.Context, userID, name string) error

	// RemoveUserGroup revokes a user's membership of the named group.
	RemoveUserGroup(ctx context.Context, userID, name string) error

	// SetUserPrimaryGroup sets a user's primary group.
	SetUserPrimaryGroup(ctx context.Context, userID, name string) error

	// Events streams inheritance-node changes. The channel closes when the
	// context is cancelled.
	Events(ctx context.Context) (<-chan Event, error)
}
