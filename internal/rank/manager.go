// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/rankcore/rankcore/pkg/errutil"
)

// AuthorityPusher pushes locally originated changes to the external
// permission authority. Implemented by the bridge; a nil pusher on the
// manager means no external authority is configured.
type AuthorityPusher interface {
	// PushPlayerRank pushes one player rank change outward.
	PushPlayerRank(ctx context.Context, player *Player, action ChangeAction, rankID string) error

	// PushRankSave pushes a rank create/update outward.
	PushRankSave(ctx context.Context, r *Rank) error

	// PushRankDelete pushes a rank deletion outward.
	PushRankDelete(ctx context.Context, rankID string) error
}

// Manager owns rank CRUD and player rank assignment. Each mutation executes
// its effects in a fixed order: cache update, resolver pass (rank
// mutations), local event, channel publication, bridge push. Two concurrent
// mutations from different call sites are not serialized against each
// other; the store is last-write-wins.
//
// Failure policy: validation failures (unknown rank, unknown player,
// deleting the default) are returned as typed errors. Persistence and
// channel failures after the in-memory mutation are logged and not
// returned, because in-memory state is the source of truth for this
// process and must not become inconsistent with itself.
//
// Operations may block on the persistence collaborator; callers that must
// not block run them on their own goroutine. The permission-check hot path
// (Rank.HasPermission) never goes through the manager.
type Manager struct {
	store       *Store
	players     PlayerRepository
	cache       *PlayerCache
	broadcaster *Broadcaster
	publisher   ChangePublisher // nil disables cross-process propagation
	bridge      AuthorityPusher // nil disables external authority pushes
	serverID    string
	logger      *slog.Logger
}

// ManagerConfig holds the manager's collaborators.
type ManagerConfig struct {
	Store       *Store
	Players     PlayerRepository
	PlayerCache *PlayerCache
	Broadcaster *Broadcaster
	Publisher   ChangePublisher
	Bridge      AuthorityPusher
	ServerID    string
	Logger      *slog.Logger
}

// NewManager creates a rank manager. Store, Players, and PlayerCache are
// required; Publisher and Bridge are optional.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	broadcaster := cfg.Broadcaster
	if broadcaster == nil {
		broadcaster = NewBroadcaster()
	}
	return &Manager{
		store:       cfg.Store,
		players:     cfg.Players,
		cache:       cfg.PlayerCache,
		broadcaster: broadcaster,
		publisher:   cfg.Publisher,
		bridge:      cfg.Bridge,
		serverID:    cfg.ServerID,
		logger:      logger,
	}
}

// SetBridge wires the authority pusher after construction. The bridge needs
// the manager to apply inbound changes, so one of the two is always wired
// late.
func (m *Manager) SetBridge(b AuthorityPusher) {
	m.bridge = b
}

// Store returns the rank store.
func (m *Manager) Store() *Store {
	return m.store
}

// PlayerCache returns the online-player cache.
func (m *Manager) PlayerCache() *PlayerCache {
	return m.cache
}

// Events returns the local domain event broadcaster.
func (m *Manager) Events() *Broadcaster {
	return m.broadcaster
}

// SetPlayerRank replaces a player's primary rank. The new rank is added to
// the player's rank set if absent. Returns ErrRankNotFound or
// ErrPlayerNotFound as typed failures.
func (m *Manager) SetPlayerRank(ctx context.Context, playerID, rankID string) (err error) {
	defer func() { recordOperation("set_player_rank", err) }()

	if _, ok := m.store.Get(rankID); !ok {
		return oops.In("rank").Code("RANK_NOT_FOUND").
			With("rank_id", rankID).
			Wrap(ErrRankNotFound)
	}

	player, err := m.loadPlayer(ctx, playerID)
	if err != nil {
		return err
	}

	oldRank := player.PrimaryRank
	player.PrimaryRank = rankID
	player.AddRank(rankID)
	player.UpdatedAt = time.Now()

	m.finishPlayerChange(ctx, player, ChangeMessage{
		ID:       NewULID(),
		ServerID: m.serverID,
		PlayerID: playerID,
		Action:   ActionSet,
		OldRank:  oldRank,
		NewRank:  rankID,
	}, oldRank, rankID)
	return nil
}

// AddPlayerRank adds a rank to the player's secondary rank set. Adding a
// rank the player already holds is a harmless no-op that still propagates,
// keeping reapplication idempotent.
func (m *Manager) AddPlayerRank(ctx context.Context, playerID, rankID string) (err error) {
	defer func() { recordOperation("add_player_rank", err) }()

	if _, ok := m.store.Get(rankID); !ok {
		return oops.In("rank").Code("RANK_NOT_FOUND").
			With("rank_id", rankID).
			Wrap(ErrRankNotFound)
	}

	player, err := m.loadPlayer(ctx, playerID)
	if err != nil {
		return err
	}

	player.AddRank(rankID)
	player.UpdatedAt = time.Now()

	m.finishPlayerChange(ctx, player, ChangeMessage{
		ID:       NewULID(),
		ServerID: m.serverID,
		PlayerID: playerID,
		Action:   ActionAdd,
		Rank:     rankID,
	}, "", rankID)
	return nil
}

// RemovePlayerRank removes a rank from the player's rank set. Removing the
// current primary rank reassigns the primary to the default rank, which is
// also added to the set so the superset invariant holds.
func (m *Manager) RemovePlayerRank(ctx context.Context, playerID, rankID string) (err error) {
	defer func() { recordOperation("remove_player_rank", err) }()

	if _, ok := m.store.Get(rankID); !ok {
		return oops.In("rank").Code("RANK_NOT_FOUND").
			With("rank_id", rankID).
			Wrap(ErrRankNotFound)
	}

	player, err := m.loadPlayer(ctx, playerID)
	if err != nil {
		return err
	}

	player.RemoveRank(rankID)
	if player.PrimaryRank == rankID {
		def := m.store.Default()
		player.PrimaryRank = def.ID
		player.AddRank(def.ID)
	}
	player.UpdatedAt = time.Now()

	m.finishPlayerChange(ctx, player, ChangeMessage{
		ID:       NewULID(),
		ServerID: m.serverID,
		PlayerID: playerID,
		Action:   ActionRemove,
		Rank:     rankID,
	}, "", rankID)
	return nil
}

// SaveRank upserts a rank definition and re-runs global resolution; an
// inheritance edge can affect ranks the mutation never touched.
func (m *Manager) SaveRank(ctx context.Context, r *Rank) (err error) {
	defer func() { recordOperation("save_rank", err) }()

	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	current := m.store.Default()
	if r.IsDefault && current != nil && current.ID != r.ID {
		// Exactly one default at all times: demote the previous one.
		demoted := current.Clone()
		demoted.IsDefault = false
		m.store.Put(demoted)
		if saveErr := m.store.repo.Save(ctx, demoted); saveErr != nil {
			errutil.LogError(m.logger, "failed to persist demoted default rank", saveErr)
		}
	}
	if !r.IsDefault && current != nil && current.ID == r.ID {
		// Unsetting the last default would leave zero defaults; keep it.
		r.IsDefault = true
		m.logger.Warn("refusing to unset the default flag on the only default rank",
			"rank_id", r.ID)
	}

	m.store.Put(r)
	ResolveAll(m.store)

	m.broadcaster.Broadcast(Event{
		ID:        NewULID(),
		Type:      EventRankSaved,
		Timestamp: now,
		RankID:    r.ID,
	})

	if m.bridge != nil && !IsExternalOrigin(ctx) {
		if pushErr := m.bridge.PushRankSave(ctx, r); pushErr != nil {
			errutil.LogError(m.logger, "failed to push rank save to external authority", pushErr)
		}
	}

	if saveErr := m.store.repo.Save(ctx, r); saveErr != nil {
		errutil.LogError(m.logger, "failed to persist rank", saveErr)
	}
	return nil
}

// DeleteRank removes a rank definition. Deleting the current default rank
// is rejected with ErrCannotDeleteDefault. Ranks inheriting from the
// deleted rank lose the inherited grants on the resolution pass that
// follows.
func (m *Manager) DeleteRank(ctx context.Context, rankID string) (err error) {
	defer func() { recordOperation("delete_rank", err) }()

	r, ok := m.store.Get(rankID)
	if !ok {
		return oops.In("rank").Code("RANK_NOT_FOUND").
			With("rank_id", rankID).
			Wrap(ErrRankNotFound)
	}
	if r.IsDefault {
		return oops.In("rank").Code("CANNOT_DELETE_DEFAULT").
			With("rank_id", rankID).
			Wrap(ErrCannotDeleteDefault)
	}

	m.store.Remove(rankID)
	ResolveAll(m.store)

	m.broadcaster.Broadcast(Event{
		ID:        NewULID(),
		Type:      EventRankDeleted,
		Timestamp: time.Now(),
		RankID:    rankID,
	})

	if m.bridge != nil && !IsExternalOrigin(ctx) {
		if pushErr := m.bridge.PushRankDelete(ctx, rankID); pushErr != nil {
			errutil.LogError(m.logger, "failed to push rank deletion to external authority", pushErr)
		}
	}

	if delErr := m.store.repo.Delete(ctx, rankID); delErr != nil {
		errutil.LogError(m.logger, "failed to delete persisted rank", delErr)
	}
	return nil
}

// Reload discards the rank cache, reloads from persistence, and re-runs
// resolution.
func (m *Manager) Reload(ctx context.Context) (err error) {
	defer func() { recordOperation("reload", err) }()

	if err := m.store.Load(ctx); err != nil {
		return err
	}
	ResolveAll(m.store)

	m.broadcaster.Broadcast(Event{
		ID:        NewULID(),
		Type:      EventRanksReloaded,
		Timestamp: time.Now(),
	})
	return nil
}

// PlayerEffectivePermissions returns, as a sorted slice, the union of the
// resolved permission sets of every rank the player holds. Enforcement lives with the caller;
// this only exposes the resolved data.
func (m *Manager) PlayerEffectivePermissions(ctx context.Context, playerID string) ([]string, error) {
	player, err := m.loadPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	union := make(map[string]struct{})
	for _, rankID := range player.Ranks {
		r, ok := m.store.Get(rankID)
		if !ok {
			continue
		}
		for _, node := range r.EffectivePermissions() {
			union[node] = struct{}{}
		}
	}

	out := make([]string, 0, len(union))
	for node := range union {
		out = append(out, node)
	}
	slices.Sort(out)
	return out, nil
}

// loadPlayer returns a mutable copy of the player, preferring the online
// cache over persistence. Normalizes an unset or unknown primary rank to
// the default rank.
func (m *Manager) loadPlayer(ctx context.Context, playerID string) (*Player, error) {
	if cached, ok := m.cache.Get(playerID); ok {
		// Get already hands back a copy made under the cache lock.
		return m.normalize(cached), nil
	}

	player, err := m.players.FindByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.In("rank").Code("PLAYER_NOT_FOUND").
				With("player_id", playerID).
				Wrap(ErrPlayerNotFound)
		}
		return nil, oops.In("rank").Code("PLAYER_LOAD_FAILED").
			With("player_id", playerID).
			Wrap(err)
	}
	return m.normalize(player), nil
}

// normalize enforces the player invariants: a valid primary rank and a rank
// set containing it.
func (m *Manager) normalize(p *Player) *Player {
	if _, ok := m.store.Get(p.PrimaryRank); !ok || p.PrimaryRank == "" {
		p.PrimaryRank = m.store.Default().ID
	}
	p.AddRank(p.PrimaryRank)
	return p
}

// finishPlayerChange runs the shared tail of every player mutation:
// persist, refresh the online cache, emit the local event, publish on the
// change channel, and push to the bridge unless the call originated from
// an inbound external change.
func (m *Manager) finishPlayerChange(ctx context.Context, player *Player, msg ChangeMessage, oldRank, rankID string) {
	if saveErr := m.players.Save(ctx, player); saveErr != nil {
		errutil.LogError(m.logger, "failed to persist player rank change", saveErr)
	}

	if _, online := m.cache.Get(player.ID); online {
		m.cache.Put(player)
	}

	m.broadcaster.Broadcast(Event{
		ID:        NewULID(),
		Type:      EventPlayerRankChanged,
		Timestamp: player.UpdatedAt,
		PlayerID:  player.ID,
		RankID:    rankID,
		OldRank:   oldRank,
	})

	if m.publisher != nil {
		if pubErr := m.publisher.Publish(ctx, msg); pubErr != nil {
			errutil.LogError(m.logger, "failed to publish rank change message", pubErr)
		}
	}

	if m.bridge != nil && !IsExternalOrigin(ctx) {
		if pushErr := m.bridge.PushPlayerRank(ctx, player, msg.Action, rankID); pushErr != nil {
			errutil.LogError(m.logger, "failed to push player rank change to external authority", pushErr)
		}
	}
}
