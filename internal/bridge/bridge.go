// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package bridge

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/rankcore/rankcore/internal/rank"
	"github.com/rankcore/rankcore/pkg/errutil"
)

// defaultSweepInterval is how often expired pending tickets are swept.
const defaultSweepInterval = time.Second

// RankService is the slice of the rank manager the bridge applies inbound
// changes through. Every call the bridge makes carries the external-origin
// context mark so the manager does not push the change back out.
type RankService interface {
	SetPlayerRank(ctx context.Context, playerID, rankID string) error
	AddPlayerRank(ctx context.Context, playerID, rankID string) error
	RemovePlayerRank(ctx context.Context, playerID, rankID string) error
	SaveRank(ctx context.Context, r *rank.Rank) error
	DeleteRank(ctx context.Context, rankID string) error
}

// Bridge is the bidirectional adapter between the local rank state and the
// external permission authority. It pushes local changes outward, applies
// external events locally, and performs initial reconciliation, with
// pending-operation tickets preventing an outbound push from re-entering
// as an apparent external change.
type Bridge struct {
	authority     ExternalAuthority
	ranks         RankService
	store         *rank.Store
	pending       PendingOpRegistry
	cfg           Config
	logger        *slog.Logger
	sweepInterval time.Duration
	active        atomic.Bool
}

// BridgeConfig holds the bridge's collaborators.
//
//nolint:revive // Name matches the collaborator-config convention used across packages.
type BridgeConfig struct {
	Authority     ExternalAuthority
	Ranks         RankService
	Store         *rank.Store
	Pending       PendingOpRegistry
	Sync          Config
	Logger        *slog.Logger
	SweepInterval time.Duration
}

// New creates a bridge. It is inactive until Start succeeds.
func New(cfg BridgeConfig) (*Bridge, error) {
	if err := cfg.Sync.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pending := cfg.Pending
	if pending == nil {
		pending = NewRegistry()
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = defaultSweepInterval
	}
	return &Bridge{
		authority:     cfg.Authority,
		ranks:         cfg.Ranks,
		store:         cfg.Store,
		pending:       pending,
		cfg:           cfg.Sync,
		logger:        logger,
		sweepInterval: sweep,
	}, nil
}

// Active reports whether the bridge reached the external authority and is
// synchronizing.
func (b *Bridge) Active() bool {
	return b.active.Load()
}

// Start connects to the external authority, runs initial reconciliation if
// configured, and launches the event listener and ticket sweeper. An
// unreachable authority is logged once and leaves the bridge inactive; the
// system degrades to local-only permissions rather than failing startup.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.cfg.Enabled {
		return nil
	}

	if err := b.authority.Ping(ctx); err != nil {
		errutil.LogError(b.logger, "external authority unreachable, bridge disabled",
			oops.In("bridge").Code("AUTHORITY_UNAVAILABLE").Wrap(ErrAuthorityUnavailable))
		return nil
	}
	b.active.Store(true)

	if b.cfg.FullSyncOnStartup {
		if err := b.PerformFullSync(ctx); err != nil {
			errutil.LogError(b.logger, "initial reconciliation failed", err)
		}
	}

	if b.cfg.Direction.Inbound() {
		go b.listen(ctx)
	}
	go b.sweepLoop(ctx)

	b.logger.Info("external authority bridge started",
		"direction", string(b.cfg.Direction),
		"group_prefix", b.cfg.GroupPrefix)
	return nil
}

// PushPlayerRank pushes one player rank change to the external authority.
// The pending ticket is registered before the external write; if the write
// then fails, the ticket is left to expire naturally, which is safe
// because local state is already authoritative for the change.
func (b *Bridge) PushPlayerRank(ctx context.Context, player *rank.Player, action rank.ChangeAction, rankID string) (err error) {
	defer func() { recordPush("player", err) }()

	if !b.active.Load() || !b.cfg.Direction.Outbound() {
		return nil
	}

	group := b.cfg.GroupName(rankID)
	if b.cfg.Direction.Inbound() {
		b.pending.Register(UserTicket(player.ID, group))
	}

	switch action {
	case rank.ActionSet:
		if err := b.authority.AddUserGroup(ctx, player.ID, group); err != nil {
			return b.writeFailed("add user group", group, err)
		}
		if err := b.authority.SetUserPrimaryGroup(ctx, player.ID, group); err != nil {
			return b.writeFailed("set user primary group", group, err)
		}
	case rank.ActionAdd:
		if err := b.authority.AddUserGroup(ctx, player.ID, group); err != nil {
			return b.writeFailed("add user group", group, err)
		}
	case rank.ActionRemove:
		if err := b.authority.RemoveUserGroup(ctx, player.ID, group); err != nil {
			return b.writeFailed("remove user group", group, err)
		}
	}
	return nil
}

// PushRankSave pushes a rank create/update outward as a full attribute
// replace. Incremental external writes would race with concurrent edits;
// a full replace cannot be half-applied.
func (b *Bridge) PushRankSave(ctx context.Context, r *rank.Rank) (err error) {
	defer func() { recordPush("rank_save", err) }()

	if !b.active.Load() || !b.cfg.Direction.Outbound() {
		return nil
	}

	group := b.cfg.GroupName(r.ID)
	if b.cfg.Direction.Inbound() {
		b.pending.Register(GroupTicket(group))
	}

	if err := b.authority.CreateOrLoadGroup(ctx, group); err != nil {
		return b.writeFailed("create or load group", group, err)
	}
	if err := b.authority.ReplaceGroupAttributes(ctx, group, b.groupAttributes(r)); err != nil {
		return b.writeFailed("replace group attributes", group, err)
	}
	return nil
}

// PushRankDelete pushes a rank deletion outward.
func (b *Bridge) PushRankDelete(ctx context.Context, rankID string) (err error) {
	defer func() { recordPush("rank_delete", err) }()

	if !b.active.Load() || !b.cfg.Direction.Outbound() {
		return nil
	}

	group := b.cfg.GroupName(rankID)
	if b.cfg.Direction.Inbound() {
		b.pending.Register(GroupTicket(group))
	}

	if err := b.authority.DeleteGroup(ctx, group); err != nil {
		return b.writeFailed("delete group", group, err)
	}
	return nil
}

// groupAttributes builds the external attribute set from a rank, honoring
// the per-attribute sync toggles.
func (b *Bridge) groupAttributes(r *rank.Rank) GroupAttributes {
	attrs := GroupAttributes{
		Permissions: append([]string(nil), r.Permissions...),
	}
	if b.cfg.SyncPrefixSuffix {
		attrs.Prefix = r.Prefix
		attrs.Suffix = r.Suffix
	}
	if b.cfg.SyncWeight {
		attrs.Weight = r.Weight
	}
	if b.cfg.SyncInheritance {
		parents := make([]string, 0, len(r.Inheritance))
		for _, parentID := range r.Inheritance {
			parents = append(parents, b.cfg.GroupName(parentID))
		}
		attrs.Parents = parents
	}
	return attrs
}

// PerformFullSync runs the first-run reconciliation. With local authority,
// every local rank is pushed outward; with external authority, every
// external group managed by this bridge is imported as a local rank,
// preserving locally pre-existing default/staff flags and metadata the
// external system cannot represent.
func (b *Bridge) PerformFullSync(ctx context.Context) error {
	switch b.cfg.InitialAuthority {
	case AuthorityLocal:
		return b.fullSyncLocal(ctx)
	case AuthorityExternal:
		return b.fullSyncExternal(ctx)
	default:
		return oops.In("bridge").Code("INVALID_INITIAL_AUTHORITY").
			With("initial_authority", string(b.cfg.InitialAuthority)).
			Errorf("unknown initial authority")
	}
}

func (b *Bridge) fullSyncLocal(ctx context.Context) error {
	ranks := b.store.All()
	for _, r := range ranks {
		if b.cfg.Direction.Inbound() {
			b.pending.Register(GroupSyncTicket(b.cfg.GroupName(r.ID)))
		}
		if err := b.PushRankSave(ctx, r); err != nil {
			errutil.LogError(b.logger, "full sync: failed to push rank", err)
		}
	}
	b.logger.Info("full sync pushed local ranks to external authority",
		"ranks", len(ranks))
	return nil
}

func (b *Bridge) fullSyncExternal(ctx context.Context) error {
	names, err := b.authority.Groups(ctx)
	if err != nil {
		return oops.In("bridge").Code("FULL_SYNC_FAILED").
			With("operation", "enumerate external groups").
			Wrap(err)
	}

	imported := 0
	syncCtx := rank.WithExternalOrigin(ctx)
	for _, name := range names {
		rankID, managed := b.cfg.RankID(name)
		if !managed {
			continue
		}

		attrs, attrErr := b.authority.GroupAttributes(ctx, name)
		if attrErr != nil {
			errutil.LogError(b.logger, "full sync: failed to read external group",
				oops.In("bridge").With("group", name).Wrap(attrErr))
			continue
		}

		b.pending.Register(GroupSyncTicket(name))

		if saveErr := b.ranks.SaveRank(syncCtx, b.importRank(rankID, attrs)); saveErr != nil {
			errutil.LogError(b.logger, "full sync: failed to save imported rank", saveErr)
			continue
		}
		imported++
	}

	b.logger.Info("full sync imported external groups as local ranks",
		"groups", len(names),
		"imported", imported)
	return nil
}

// importRank converts external group attributes to a local rank
// definition. Flags and metadata the external system cannot represent are
// preserved from any pre-existing local rank.
func (b *Bridge) importRank(rankID string, attrs GroupAttributes) *rank.Rank {
	var r *rank.Rank
	if existing, ok := b.store.Get(rankID); ok {
		r = existing.Clone()
	} else {
		r = &rank.Rank{
			ID:          rankID,
			DisplayName: rankID,
			Metadata:    map[string]string{},
		}
	}

	r.Permissions = append([]string(nil), attrs.Permissions...)
	if b.cfg.SyncPrefixSuffix {
		r.Prefix = attrs.Prefix
		r.Suffix = attrs.Suffix
	}
	if b.cfg.SyncWeight {
		r.Weight = attrs.Weight
	}
	if b.cfg.SyncInheritance {
		parents := make([]string, 0, len(attrs.Parents))
		for _, parent := range attrs.Parents {
			if parentID, managed := b.cfg.RankID(parent); managed {
				parents = append(parents, parentID)
			}
		}
		r.Inheritance = parents
	}
	return r
}

// listen consumes the external event stream until the context is
// cancelled.
func (b *Bridge) listen(ctx context.Context) {
	events, err := b.authority.Events(ctx)
	if err != nil {
		errutil.LogError(b.logger, "failed to subscribe to external authority events",
			oops.In("bridge").Code("EVENT_SUBSCRIBE_FAILED").Wrap(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent processes one inbound external event. A matching pending
// ticket means the event is this bridge's own echo and is discarded;
// otherwise the change is applied through the rank manager with
// propagation back to the authority suppressed for that call.
func (b *Bridge) HandleEvent(ctx context.Context, ev Event) {
	if !b.cfg.Direction.Inbound() {
		recordInbound(ev.Kind, "ignored")
		return
	}

	if b.consumeTickets(ev) {
		recordInbound(ev.Kind, "echo")
		b.logger.Debug("discarded echo of own external write",
			"kind", string(ev.Kind),
			"entity_id", ev.EntityID,
			"group", ev.GroupName)
		return
	}

	switch ev.Kind {
	case KindUser:
		b.applyUserEvent(ctx, ev)
	case KindGroup:
		b.applyGroupEvent(ctx, ev)
	default:
		recordInbound(ev.Kind, "ignored")
	}
}

// consumeTickets tries the exact ticket first, then the coarser
// whole-entity sync ticket registered during full reconciliation. Each
// ticket is consumed at most once.
func (b *Bridge) consumeTickets(ev Event) bool {
	switch ev.Kind {
	case KindUser:
		if b.pending.Consume(UserTicket(ev.EntityID, ev.GroupName)) {
			return true
		}
		return b.pending.Consume(UserSyncTicket(ev.EntityID))
	case KindGroup:
		if b.pending.Consume(GroupTicket(ev.EntityID)) {
			return true
		}
		return b.pending.Consume(GroupSyncTicket(ev.EntityID))
	default:
		return false
	}
}

func (b *Bridge) applyUserEvent(ctx context.Context, ev Event) {
	rankID, managed := b.cfg.RankID(ev.GroupName)
	if !managed {
		recordInbound(ev.Kind, "unmanaged")
		return
	}
	if _, known := b.store.Get(rankID); !known {
		recordInbound(ev.Kind, "unknown_rank")
		b.logger.Debug("ignoring external user event for unknown local rank",
			"rank_id", rankID,
			"group", ev.GroupName)
		return
	}

	ctx = rank.WithExternalOrigin(ctx)
	var err error
	if ev.Added {
		err = b.ranks.AddPlayerRank(ctx, ev.EntityID, rankID)
	} else {
		err = b.ranks.RemovePlayerRank(ctx, ev.EntityID, rankID)
	}
	if err != nil {
		recordInbound(ev.Kind, "error")
		errutil.LogError(b.logger, "failed to apply external user event", err)
		return
	}
	recordInbound(ev.Kind, "applied")
}

func (b *Bridge) applyGroupEvent(ctx context.Context, ev Event) {
	if !b.cfg.SyncInheritance {
		recordInbound(ev.Kind, "ignored")
		return
	}

	childID, managedChild := b.cfg.RankID(ev.EntityID)
	parentID, managedParent := b.cfg.RankID(ev.GroupName)
	if !managedChild || !managedParent {
		recordInbound(ev.Kind, "unmanaged")
		return
	}

	child, known := b.store.Get(childID)
	if !known {
		recordInbound(ev.Kind, "unknown_rank")
		b.logger.Debug("ignoring external group event for unknown local rank",
			"rank_id", childID)
		return
	}

	updated := child.Clone()
	if ev.Added {
		if updated.InheritsFrom(parentID) {
			recordInbound(ev.Kind, "applied")
			return
		}
		updated.Inheritance = append(updated.Inheritance, parentID)
	} else {
		if !updated.InheritsFrom(parentID) {
			recordInbound(ev.Kind, "applied")
			return
		}
		kept := make([]string, 0, len(updated.Inheritance))
		for _, id := range updated.Inheritance {
			if id != parentID {
				kept = append(kept, id)
			}
		}
		updated.Inheritance = kept
	}

	if err := b.ranks.SaveRank(rank.WithExternalOrigin(ctx), updated); err != nil {
		recordInbound(ev.Kind, "error")
		errutil.LogError(b.logger, "failed to apply external group event", err)
		return
	}
	recordInbound(ev.Kind, "applied")
}

// sweepLoop periodically removes expired pending tickets to bound memory.
func (b *Bridge) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := b.pending.Sweep(); removed > 0 {
				b.logger.Debug("swept expired pending tickets", "removed", removed)
			}
		}
	}
}

// writeFailed wraps an external write failure. The pending ticket
// registered before the write is intentionally not rolled back; it expires
// on its own.
func (b *Bridge) writeFailed(operation, group string, err error) error {
	return oops.In("bridge").Code("EXTERNAL_WRITE_FAILED").
		With("operation", operation).
		With("group", group).
		Wrap(err)
}
