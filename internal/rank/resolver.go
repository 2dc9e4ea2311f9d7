// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import (
	"log/slog"
	"time"
)

// ResolveAll recomputes the effective permission set of every rank in the
// store. An inheritance edge can affect ranks not directly touched by a
// mutation, so the pass always covers all ranks.
//
// For each rank the walk is a depth-first traversal of inheritance edges
// with a per-walk visited set keyed by rank id, so each rank contributes
// its own permissions at most once even when reachable by multiple paths
// or via a cycle. The walk therefore always terminates; a cycle produces a
// bounded (union of the cycle members') set rather than an error.
//
// O(ranks × edges) per pass, acceptable at rank counts in the tens, and
// only run on mutation, never on a permission check.
func ResolveAll(store *Store) {
	start := time.Now()
	ranks := store.All()

	index := make(map[string]*Rank, len(ranks))
	for _, r := range ranks {
		index[r.ID] = r
	}

	cycles := 0
	for _, r := range ranks {
		effective := make(map[string]struct{}, len(r.Permissions))
		walk := &walkState{
			visited: make(map[string]bool, len(ranks)),
			onPath:  make(map[string]bool, len(ranks)),
		}
		resolveInto(r, index, walk, effective)
		if walk.cycle {
			cycles++
		}
		r.storeEffective(effective)
	}

	if cycles > 0 {
		// Semantics are unchanged (the visited set bounds the walk), but a
		// cycle is almost always a configuration mistake worth surfacing.
		slog.Warn("inheritance cycle detected during rank resolution",
			"ranks_in_cycles", cycles,
			"total_ranks", len(ranks))
	}

	observeResolution(time.Since(start), len(ranks))
}

// walkState tracks one resolution walk. visited is the contribution cutoff
// (each rank contributes at most once); onPath distinguishes a genuine back
// edge from a diamond where a rank is merely reachable twice.
type walkState struct {
	visited map[string]bool
	onPath  map[string]bool
	cycle   bool
}

// resolveInto accumulates the permissions reachable from r into effective.
func resolveInto(r *Rank, index map[string]*Rank, walk *walkState, effective map[string]struct{}) {
	if walk.onPath[r.ID] {
		walk.cycle = true
		return
	}
	if walk.visited[r.ID] {
		return
	}
	walk.visited[r.ID] = true
	walk.onPath[r.ID] = true
	defer delete(walk.onPath, r.ID)

	for _, node := range r.Permissions {
		effective[node] = struct{}{}
	}

	for _, parentID := range r.Inheritance {
		parent, ok := index[parentID]
		if !ok {
			// Dangling edge: the parent was deleted. The child simply loses
			// the inherited grants on this pass.
			continue
		}
		resolveInto(parent, index, walk, effective)
	}
}
