// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"serve", "migrate", "status"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestServeCommand_HasExpectedFlags(t *testing.T) {
	cmd := NewServeCmd()

	for _, name := range []string{
		"config", "server-id", "database-url",
		"redis-addr", "redis-channel", "metrics-addr", "log-format",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "serve missing --%s flag", name)
	}
}

func TestMigrateCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewMigrateCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"up", "down", "status", "force"} {
		assert.Contains(t, output, sub, "Help missing %q operation", sub)
	}
}
