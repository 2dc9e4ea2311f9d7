// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rankcore/rankcore/internal/config"
	"github.com/rankcore/rankcore/internal/store"
)

// probeTimeout bounds each HTTP probe against a running process.
const probeTimeout = 2 * time.Second

// EngineStatus holds the probed state of a running serve process.
type EngineStatus struct {
	Running   bool   `json:"running"`
	Liveness  string `json:"liveness,omitempty"`
	Readiness string `json:"readiness,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SchemaStatus holds the migration state of the database schema.
type SchemaStatus struct {
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
	Error   string `json:"error,omitempty"`
}

// statusReport is the combined output of the status command.
type statusReport struct {
	Engine EngineStatus  `json:"engine"`
	Schema *SchemaStatus `json:"schema,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	metricsAddr string
	databaseURL string
	jsonOutput  bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running rankcore process",
		Long: `Probe the health endpoints of a running rankcore process and, when a
database URL is available, report the schema migration version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "metrics/health HTTP address of the running process")
	cmd.Flags().StringVar(&cfg.databaseURL, "database-url", "", "PostgreSQL connection string (default: DATABASE_URL)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	report := statusReport{
		Engine: queryEngineStatus(cfg.metricsAddr),
	}

	databaseURL := cfg.databaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL != "" {
		schema := querySchemaStatus(databaseURL)
		report.Schema = &schema
	}

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatusTable(report))
	return nil
}

// queryEngineStatus probes the health endpoints of a serve process.
func queryEngineStatus(metricsAddr string) EngineStatus {
	var status EngineStatus

	client := &http.Client{Timeout: probeTimeout}

	liveness, err := probe(client, metricsAddr, "/healthz/liveness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}

	status.Running = true
	status.Liveness = liveness

	readiness, err := probe(client, metricsAddr, "/healthz/readiness")
	if err != nil {
		status.Readiness = "unknown"
		return status
	}
	status.Readiness = readiness

	return status
}

// probe issues one GET against a health endpoint and classifies the result.
func probe(client *http.Client, addr, path string) (string, error) {
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // probe result is the status code

	if resp.StatusCode == http.StatusOK {
		return "ok", nil
	}
	return "unavailable", nil
}

// querySchemaStatus reports the migration version of the database.
func querySchemaStatus(databaseURL string) SchemaStatus {
	var status SchemaStatus

	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("failed to open migrator: %v", err)
		return status
	}
	defer m.Close() //nolint:errcheck // read-only status query

	version, dirty, err := m.Version()
	if err != nil {
		status.Error = fmt.Sprintf("failed to read schema version: %v", err)
		return status
	}

	status.Version = version
	status.Dirty = dirty
	return status
}

// formatStatusTable formats the report as a human-readable table.
func formatStatusTable(report statusReport) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "COMPONENT\tSTATUS\tDETAIL")
	_, _ = fmt.Fprintln(w, "---------\t------\t------")

	if report.Engine.Running {
		_, _ = fmt.Fprintf(w, "engine\trunning\tliveness=%s readiness=%s\n",
			report.Engine.Liveness, report.Engine.Readiness)
	} else {
		reason := "not running"
		if report.Engine.Error != "" {
			reason = report.Engine.Error
		}
		_, _ = fmt.Fprintf(w, "engine\tstopped\t%s\n", reason)
	}

	if report.Schema != nil {
		switch {
		case report.Schema.Error != "":
			_, _ = fmt.Fprintf(w, "schema\tunknown\t%s\n", report.Schema.Error)
		case report.Schema.Dirty:
			_, _ = fmt.Fprintf(w, "schema\tdirty\tversion=%d\n", report.Schema.Version)
		default:
			_, _ = fmt.Fprintf(w, "schema\tclean\tversion=%d\n", report.Schema.Version)
		}
	}

	_ = w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}
