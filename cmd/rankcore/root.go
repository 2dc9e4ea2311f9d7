// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the rankcore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rankcore",
		Short: "Rankcore - rank and permission consistency engine",
		Long: `Rankcore keeps rank definitions and player rank assignments
consistent across every server process of a game network, and optionally
synchronizes them with an external permission authority.`,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
