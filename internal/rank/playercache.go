// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import "sync"

// PlayerCache holds the rank assignment state of players currently online
// on this process. The manager keeps it current for locally originated
// changes; the propagation subscriber mutates it directly for changes that
// originated on other processes.
//
// Thread-safety: protected by mu; lookups take the read lock only.
type PlayerCache struct {
	mu      sync.RWMutex
	players map[string]*Player
}

// NewPlayerCache creates an empty player cache.
func NewPlayerCache() *PlayerCache {
	return &PlayerCache{players: make(map[string]*Player)}
}

// Get returns a copy of the cached player, or (nil, false) if the player
// is not online on this process. The copy is made under the lock so the
// caller never aliases state the subscriber goroutine mutates; writes go
// through Put or Update.
func (c *PlayerCache) Get(playerID string) (*Player, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.players[playerID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Put inserts or replaces a cached player.
func (c *PlayerCache) Put(p *Player) {
	c.mu.Lock()
	c.players[p.ID] = p
	c.mu.Unlock()
}

// Remove drops a player from the cache, typically on disconnect.
func (c *PlayerCache) Remove(playerID string) {
	c.mu.Lock()
	delete(c.players, playerID)
	c.mu.Unlock()
}

// Update applies fn to the cached player under the write lock. Returns
// false without calling fn when the player is not cached.
func (c *PlayerCache) Update(playerID string, fn func(*Player)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.players[playerID]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// Len returns the number of cached players.
func (c *PlayerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.players)
}
