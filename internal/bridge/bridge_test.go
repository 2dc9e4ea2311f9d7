// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankcore/rankcore/internal/bridge"
	"github.com/rankcore/rankcore/internal/rank"
	"github.com/rankcore/rankcore/internal/rank/ranktest"
	"github.com/rankcore/rankcore/pkg/errutil"
)

// fakeAuthority is an in-memory ExternalAuthority that records every write.
type fakeAuthority struct {
	mu     sync.Mutex
	groups map[string]bridge.GroupAttributes
	calls  []string

	PingErr  error
	WriteErr error
	events   chan bridge.Event
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{
		groups: make(map[string]bridge.GroupAttributes),
		events: make(chan bridge.Event, 16),
	}
}

func (f *fakeAuthority) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeAuthority) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAuthority) Ping(context.Context) error { return f.PingErr }

func (f *fakeAuthority) GroupExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.groups[name]
	return ok, nil
}

func (f *fakeAuthority) CreateOrLoadGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.record("CreateOrLoadGroup:%s", name)
	if _, ok := f.groups[name]; !ok {
		f.groups[name] = bridge.GroupAttributes{}
	}
	return nil
}

func (f *fakeAuthority) ReplaceGroupAttributes(_ context.Context, name string, attrs bridge.GroupAttributes) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.record("ReplaceGroupAttributes:%s", name)
	f.groups[name] = attrs
	return nil
}

func (f *fakeAuthority) DeleteGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.record("DeleteGroup:%s", name)
	delete(f.groups, name)
	return nil
}

func (f *fakeAuthority) Groups(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.groups))
	for name := range f.groups {
		out = append(out, name)
	}
	return out, nil
}

func (f *fakeAuthority) GroupAttributes(_ context.Context, name string) (bridge.GroupAttributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attrs, ok := f.groups[name]
	if !ok {
		return bridge.GroupAttributes{}, errors.New("no such group")
	}
	return attrs, nil
}

func (f *fakeAuthority) UserInheritedGroups(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *fakeAuthority) AddUserGroup(_ context.Context, userID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.record("AddUserGroup:%s:%s", userID, name)
	return nil
}

func (f *fakeAuthority) RemoveUserGroup(_ context.Context, userID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.record("RemoveUserGroup:%s:%s", userID, name)
	return nil
}

func (f *fakeAuthority) SetUserPrimaryGroup(_ context.Context, userID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.record("SetUserPrimaryGroup:%s:%s", userID, name)
	return nil
}

func (f *fakeAuthority) Events(context.Context) (<-chan bridge.Event, error) {
	return f.events, nil
}

// fakeRankService records manager calls and whether each carried the
// external-origin mark.
type fakeRankService struct {
	mu       sync.Mutex
	calls    []string
	external []bool

	savedRanks []*rank.Rank
}

func (f *fakeRankService) note(ctx context.Context, call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.external = append(f.external, rank.IsExternalOrigin(ctx))
}

func (f *fakeRankService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRankService) AllExternal() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ext := range f.external {
		if !ext {
			return false
		}
	}
	return len(f.external) > 0
}

func (f *fakeRankService) SetPlayerRank(ctx context.Context, playerID, rankID string) error {
	f.note(ctx, "set:"+playerID+":"+rankID)
	return nil
}

func (f *fakeRankService) AddPlayerRank(ctx context.Context, playerID, rankID string) error {
	f.note(ctx, "add:"+playerID+":"+rankID)
	return nil
}

func (f *fakeRankService) RemovePlayerRank(ctx context.Context, playerID, rankID string) error {
	f.note(ctx, "remove:"+playerID+":"+rankID)
	return nil
}

func (f *fakeRankService) SaveRank(ctx context.Context, r *rank.Rank) error {
	f.note(ctx, "save:"+r.ID)
	f.mu.Lock()
	f.savedRanks = append(f.savedRanks, r)
	f.mu.Unlock()
	return nil
}

func (f *fakeRankService) DeleteRank(ctx context.Context, rankID string) error {
	f.note(ctx, "delete:"+rankID)
	return nil
}

type bridgeFixture struct {
	bridge    *bridge.Bridge
	authority *fakeAuthority
	ranks     *fakeRankService
	store     *rank.Store
	pending   bridge.PendingOpRegistry
	cancel    context.CancelFunc
}

func syncConfig(direction bridge.Direction) bridge.Config {
	return bridge.Config{
		Enabled:          true,
		Direction:        direction,
		InitialAuthority: bridge.AuthorityLocal,
		GroupPrefix:      "rank_",
		SyncWeight:       true,
		SyncInheritance:  true,
	}
}

func newBridgeFixture(t *testing.T, cfg bridge.Config, seeds ...*rank.Rank) *bridgeFixture {
	t.Helper()

	authority := newFakeAuthority()
	ranks := &fakeRankService{}
	store := ranktest.NewStore(t, seeds...)
	pending := bridge.NewRegistry()

	b, err := bridge.New(bridge.BridgeConfig{
		Authority: authority,
		Ranks:     ranks,
		Store:     store,
		Pending:   pending,
		Sync:      cfg,
	})
	require.NoError(t, err)

	return &bridgeFixture{
		bridge:    b,
		authority: authority,
		ranks:     ranks,
		store:     store,
		pending:   pending,
	}
}

// start activates the bridge and registers cleanup of its goroutines.
func (f *bridgeFixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	t.Cleanup(cancel)
	require.NoError(t, f.bridge.Start(ctx))
}

func TestBridge_New_InvalidConfig(t *testing.T) {
	cfg := syncConfig("SIDEWAYS")
	_, err := bridge.New(bridge.BridgeConfig{
		Authority: newFakeAuthority(),
		Ranks:     &fakeRankService{},
		Sync:      cfg,
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_SYNC_DIRECTION")
}

func TestBridge_Start_UnreachableAuthorityDegrades(t *testing.T) {
	fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional))
	fix.authority.PingErr = errors.New("connection refused")

	require.NoError(t, fix.bridge.Start(context.Background()))
	assert.False(t, fix.bridge.Active())

	// Pushes are silent no-ops while inactive.
	require.NoError(t, fix.bridge.PushRankDelete(context.Background(), "vip"))
	assert.Empty(t, fix.authority.Calls())
}

func TestBridge_Start_Disabled(t *testing.T) {
	cfg := syncConfig(bridge.Bidirectional)
	cfg.Enabled = false
	fix := newBridgeFixture(t, cfg)

	require.NoError(t, fix.bridge.Start(context.Background()))
	assert.False(t, fix.bridge.Active())
}

func TestBridge_PushPlayerRank(t *testing.T) {
	ctx := context.Background()
	player := &rank.Player{ID: "p1", PrimaryRank: "vip", Ranks: []string{"vip"}}

	t.Run("set pushes membership then primary", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional))
		fix.start(t)

		require.NoError(t, fix.bridge.PushPlayerRank(ctx, player, rank.ActionSet, "vip"))
		assert.Equal(t, []string{
			"AddUserGroup:p1:rank_vip",
			"SetUserPrimaryGroup:p1:rank_vip",
		}, fix.authority.Calls())
	})

	t.Run("bidirectional registers a pending ticket", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional))
		fix.start(t)

		require.NoError(t, fix.bridge.PushPlayerRank(ctx, player, rank.ActionAdd, "vip"))
		assert.Equal(t, 1, fix.pending.Len())
		assert.True(t, fix.pending.Consume(bridge.UserTicket("p1", "rank_vip")))
	})

	t.Run("outbound only skips the ticket", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.OutboundOnly))
		fix.start(t)

		require.NoError(t, fix.bridge.PushPlayerRank(ctx, player, rank.ActionAdd, "vip"))
		assert.Zero(t, fix.pending.Len())
		assert.Equal(t, []string{"AddUserGroup:p1:rank_vip"}, fix.authority.Calls())
	})

	t.Run("inbound only never writes outward", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.InboundOnly))
		fix.start(t)

		require.NoError(t, fix.bridge.PushPlayerRank(ctx, player, rank.ActionRemove, "vip"))
		assert.Empty(t, fix.authority.Calls())
	})

	t.Run("write failure keeps the ticket to expire on its own", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional))
		fix.start(t)
		fix.authority.WriteErr = errors.New("backend down")

		err := fix.bridge.PushPlayerRank(ctx, player, rank.ActionAdd, "vip")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "EXTERNAL_WRITE_FAILED")
		assert.Equal(t, 1, fix.pending.Len())
	})
}

func TestBridge_PushRankSave(t *testing.T) {
	ctx := context.Background()

	fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional))
	fix.start(t)

	require.NoError(t, fix.bridge.PushRankSave(ctx, &rank.Rank{
		ID:          "vip",
		Weight:      10,
		Permissions: []string{"kit.vip"},
		Inheritance: []string{"member"},
		Prefix:      "[VIP] ",
	}))

	assert.Equal(t, []string{
		"CreateOrLoadGroup:rank_vip",
		"ReplaceGroupAttributes:rank_vip",
	}, fix.authority.Calls())

	attrs := fix.authority.groups["rank_vip"]
	assert.Equal(t, []string{"kit.vip"}, attrs.Permissions)
	assert.Equal(t, 10, attrs.Weight)
	assert.Equal(t, []string{"rank_member"}, attrs.Parents)
	// SyncPrefixSuffix is off in the fixture config.
	assert.Empty(t, attrs.Prefix)
}

func TestBridge_PushRankDelete(t *testing.T) {
	fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional))
	fix.start(t)
	fix.authority.groups["rank_vip"] = bridge.GroupAttributes{}

	require.NoError(t, fix.bridge.PushRankDelete(context.Background(), "vip"))

	assert.Contains(t, fix.authority.Calls(), "DeleteGroup:rank_vip")
	assert.True(t, fix.pending.Consume(bridge.GroupTicket("rank_vip")))
}

func TestBridge_HandleEvent(t *testing.T) {
	ctx := context.Background()

	userEvent := bridge.Event{
		Kind:      bridge.KindUser,
		EntityID:  "p1",
		GroupName: "rank_vip",
		Added:     true,
	}

	t.Run("echo of own write is discarded", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional),
			&rank.Rank{ID: "vip"})
		fix.start(t)

		fix.pending.Register(bridge.UserTicket("p1", "rank_vip"))
		fix.bridge.HandleEvent(ctx, userEvent)

		assert.Empty(t, fix.ranks.Calls())
		assert.Zero(t, fix.pending.Len())
	})

	t.Run("full sync echo is discarded via the sync ticket", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional),
			&rank.Rank{ID: "vip"})
		fix.start(t)

		fix.pending.Register(bridge.GroupSyncTicket("rank_vip"))
		fix.bridge.HandleEvent(ctx, bridge.Event{
			Kind:      bridge.KindGroup,
			EntityID:  "rank_vip",
			GroupName: "rank_member",
			Added:     true,
		})

		assert.Empty(t, fix.ranks.Calls())
	})

	t.Run("genuine user event applies with external origin", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional),
			&rank.Rank{ID: "vip"})
		fix.start(t)

		fix.bridge.HandleEvent(ctx, userEvent)

		assert.Equal(t, []string{"add:p1:vip"}, fix.ranks.Calls())
		assert.True(t, fix.ranks.AllExternal(), "inbound applies must carry the external-origin mark")
	})

	t.Run("user removal event", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional),
			&rank.Rank{ID: "vip"})
		fix.start(t)

		removed := userEvent
		removed.Added = false
		fix.bridge.HandleEvent(ctx, removed)

		assert.Equal(t, []string{"remove:p1:vip"}, fix.ranks.Calls())
	})

	t.Run("unmanaged group is ignored", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional))
		fix.start(t)

		ev := userEvent
		ev.GroupName = "staff"
		fix.bridge.HandleEvent(ctx, ev)

		assert.Empty(t, fix.ranks.Calls())
	})

	t.Run("unknown local rank is ignored", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional))
		fix.start(t)

		fix.bridge.HandleEvent(ctx, userEvent)
		assert.Empty(t, fix.ranks.Calls())
	})

	t.Run("outbound only ignores inbound events", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.OutboundOnly),
			&rank.Rank{ID: "vip"})
		fix.start(t)

		fix.bridge.HandleEvent(ctx, userEvent)
		assert.Empty(t, fix.ranks.Calls())
	})

	t.Run("group event updates inheritance", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional),
			&rank.Rank{ID: "vip"}, &rank.Rank{ID: "member"})
		fix.start(t)

		fix.bridge.HandleEvent(ctx, bridge.Event{
			Kind:      bridge.KindGroup,
			EntityID:  "rank_vip",
			GroupName: "rank_member",
			Added:     true,
		})

		require.Equal(t, []string{"save:vip"}, fix.ranks.Calls())
		require.Len(t, fix.ranks.savedRanks, 1)
		assert.Contains(t, fix.ranks.savedRanks[0].Inheritance, "member")
	})

	t.Run("group event is ignored without inheritance sync", func(t *testing.T) {
		cfg := syncConfig(bridge.Bidirectional)
		cfg.SyncInheritance = false
		fix := newBridgeFixture(t, cfg, &rank.Rank{ID: "vip"}, &rank.Rank{ID: "member"})
		fix.start(t)

		fix.bridge.HandleEvent(ctx, bridge.Event{
			Kind:      bridge.KindGroup,
			EntityID:  "rank_vip",
			GroupName: "rank_member",
			Added:     true,
		})

		assert.Empty(t, fix.ranks.Calls())
	})
}

func TestBridge_PerformFullSync(t *testing.T) {
	ctx := context.Background()

	t.Run("local authority pushes every rank outward", func(t *testing.T) {
		fix := newBridgeFixture(t, syncConfig(bridge.Bidirectional),
			&rank.Rank{ID: "vip"}, &rank.Rank{ID: "mod"})
		fix.start(t)

		require.NoError(t, fix.bridge.PerformFullSync(ctx))

		// The synthetic default is pushed alongside the seeds.
		calls := fix.authority.Calls()
		assert.Contains(t, calls, "CreateOrLoadGroup:rank_vip")
		assert.Contains(t, calls, "CreateOrLoadGroup:rank_mod")
		assert.Contains(t, calls, "CreateOrLoadGroup:rank_"+rank.DefaultRankID)
	})

	t.Run("external authority imports managed groups", func(t *testing.T) {
		cfg := syncConfig(bridge.Bidirectional)
		cfg.InitialAuthority = bridge.AuthorityExternal
		fix := newBridgeFixture(t, cfg,
			&rank.Rank{ID: "vip", IsStaff: true, Metadata: map[string]string{"color": "gold"}})
		fix.start(t)

		fix.authority.groups["rank_vip"] = bridge.GroupAttributes{
			Permissions: []string{"kit.vip"},
			Weight:      25,
		}
		fix.authority.groups["unmanaged"] = bridge.GroupAttributes{}

		require.NoError(t, fix.bridge.PerformFullSync(ctx))

		require.Equal(t, []string{"save:vip"}, fix.ranks.Calls())
		assert.True(t, fix.ranks.AllExternal())

		imported := fix.ranks.savedRanks[0]
		assert.Equal(t, []string{"kit.vip"}, imported.Permissions)
		assert.Equal(t, 25, imported.Weight)
		// Attributes the external system cannot represent survive locally.
		assert.True(t, imported.IsStaff)
		assert.Equal(t, "gold", imported.Metadata["color"])
	})
}
