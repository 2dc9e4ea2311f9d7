// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

// Package rank contains the rank domain model, the permission resolver,
// and the manager that keeps rank state consistent across processes.
package rank

import (
	"maps"
	"slices"
	"sync/atomic"
	"time"
)

// DefaultRankID is the id given to the synthetic default rank when
// persistence yields no default.
const DefaultRankID = "default"

// Rank is a named, weighted bundle of permission grants and negations.
// A permission node prefixed with "-" is a negation. Inheritance lists
// parent rank ids whose permissions this rank absorbs.
type Rank struct {
	ID          string
	DisplayName string
	Prefix      string
	Suffix      string
	Weight      int
	Permissions []string
	Inheritance []string
	IsDefault   bool
	IsStaff     bool
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// effective is the resolved permission closure (own plus inherited).
	// The resolver swaps in a freshly built set once per pass while
	// permission checks on other goroutines read it; the pointer is
	// atomic so the hot path never takes a lock, and a published set is
	// never mutated afterwards.
	effective atomic.Pointer[map[string]struct{}]
}

// loadEffective returns the resolved set, or (nil, false) before the first
// resolution pass.
func (r *Rank) loadEffective() (map[string]struct{}, bool) {
	if set := r.effective.Load(); set != nil {
		return *set, true
	}
	return nil, false
}

// storeEffective publishes a resolved set. The set must not be mutated
// after this call.
func (r *Rank) storeEffective(set map[string]struct{}) {
	r.effective.Store(&set)
}

// Clone returns a deep copy of the rank. The effective set is not copied;
// the resolver repopulates it on the next pass.
func (r *Rank) Clone() *Rank {
	return &Rank{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Prefix:      r.Prefix,
		Suffix:      r.Suffix,
		Weight:      r.Weight,
		Permissions: slices.Clone(r.Permissions),
		Inheritance: slices.Clone(r.Inheritance),
		IsDefault:   r.IsDefault,
		IsStaff:     r.IsStaff,
		Metadata:    maps.Clone(r.Metadata),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// EffectivePermissions returns the resolved permission closure as a sorted
// slice. Returns the rank's own permissions if resolution has not run yet.
func (r *Rank) EffectivePermissions() []string {
	set, ok := r.loadEffective()
	if !ok {
		return slices.Clone(r.Permissions)
	}
	out := make([]string, 0, len(set))
	for node := range set {
		out = append(out, node)
	}
	slices.Sort(out)
	return out
}

// InheritsFrom reports whether parentID is a direct parent of this rank.
func (r *Rank) InheritsFrom(parentID string) bool {
	return slices.Contains(r.Inheritance, parentID)
}

// NewDefaultRank returns the synthetic default rank created when
// persistence holds no rank with IsDefault set.
func NewDefaultRank() *Rank {
	now := time.Now()
	return &Rank{
		ID:          DefaultRankID,
		DisplayName: "Default",
		Weight:      0,
		Permissions: []string{},
		Inheritance: []string{},
		IsDefault:   true,
		Metadata:    map[string]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Player is the rank assignment state for one player. Ranks is always a
// superset containing PrimaryRank.
type Player struct {
	ID          string
	PrimaryRank string
	Ranks       []string
	UpdatedAt   time.Time
}

// HasRank reports whether the player holds the given rank id.
func (p *Player) HasRank(rankID string) bool {
	return slices.Contains(p.Ranks, rankID)
}

// AddRank adds rankID to the player's rank set if absent.
func (p *Player) AddRank(rankID string) {
	if !p.HasRank(rankID) {
		p.Ranks = append(p.Ranks, rankID)
	}
}

// RemoveRank removes rankID from the player's rank set. It does not touch
// PrimaryRank; callers reassign that per the default-rank invariant.
func (p *Player) RemoveRank(rankID string) {
	p.Ranks = slices.DeleteFunc(p.Ranks, func(id string) bool {
		return id == rankID
	})
}

// Clone returns a deep copy of the player.
func (p *Player) Clone() *Player {
	c := *p
	c.Ranks = slices.Clone(p.Ranks)
	return &c
}

// HighestRank returns the held rank with the greatest weight, for display
// ordering. Unknown rank ids are skipped. Returns nil if none resolve.
func (p *Player) HighestRank(lookup func(id string) (*Rank, bool)) *Rank {
	var best *Rank
	for _, id := range p.Ranks {
		r, ok := lookup(id)
		if !ok {
			continue
		}
		if best == nil || r.Weight > best.Weight {
			best = r
		}
	}
	return best
}
