// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankcore/rankcore/internal/bridge"
	"github.com/rankcore/rankcore/pkg/errutil"
)

func TestDirection(t *testing.T) {
	tests := []struct {
		direction bridge.Direction
		outbound  bool
		inbound   bool
	}{
		{bridge.OutboundOnly, true, false},
		{bridge.InboundOnly, false, true},
		{bridge.Bidirectional, true, true},
		{bridge.Direction("garbage"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.direction), func(t *testing.T) {
			assert.Equal(t, tt.outbound, tt.direction.Outbound())
			assert.Equal(t, tt.inbound, tt.direction.Inbound())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := bridge.Config{
		Enabled:          true,
		Direction:        bridge.Bidirectional,
		InitialAuthority: bridge.AuthorityLocal,
		GroupPrefix:      "rank_",
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid.Validate())
	})

	t.Run("disabled skips validation entirely", func(t *testing.T) {
		require.NoError(t, bridge.Config{Enabled: false}.Validate())
	})

	t.Run("bad direction", func(t *testing.T) {
		cfg := valid
		cfg.Direction = "SIDEWAYS"
		err := cfg.Validate()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_SYNC_DIRECTION")
	})

	t.Run("bad initial authority", func(t *testing.T) {
		cfg := valid
		cfg.InitialAuthority = "NEITHER"
		err := cfg.Validate()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_INITIAL_AUTHORITY")
	})
}

func TestConfig_GroupNameRankID(t *testing.T) {
	cfg := bridge.Config{GroupPrefix: "rank_"}

	t.Run("round trip", func(t *testing.T) {
		group := cfg.GroupName("vip")
		assert.Equal(t, "rank_vip", group)

		id, managed := cfg.RankID(group)
		require.True(t, managed)
		assert.Equal(t, "vip", id)
	})

	t.Run("unprefixed group is unmanaged", func(t *testing.T) {
		_, managed := cfg.RankID("staff")
		assert.False(t, managed)
	})

	t.Run("bare prefix is unmanaged", func(t *testing.T) {
		_, managed := cfg.RankID("rank_")
		assert.False(t, managed)
	})

	t.Run("empty prefix manages every nonempty name", func(t *testing.T) {
		open := bridge.Config{}

		id, managed := open.RankID("vip")
		require.True(t, managed)
		assert.Equal(t, "vip", id)

		_, managed = open.RankID("")
		assert.False(t, managed)
	})
}
