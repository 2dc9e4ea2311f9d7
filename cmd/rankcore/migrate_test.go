// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rankcore/rankcore/internal/store"
	"github.com/rankcore/rankcore/pkg/errutil"
)

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	err := withMigrator("", func(*store.Migrator) error { return nil })
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_CONFIG")
}

func TestMigrateForce_RejectsNonIntegerVersion(t *testing.T) {
	cmd := NewMigrateCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"force", "abc", "--database-url", "postgres://localhost/ranks"})

	err := cmd.Execute()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}
