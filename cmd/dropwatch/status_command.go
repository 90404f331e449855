package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"dropwatch/internal/api"
	"dropwatch/internal/config"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running dropwatch instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := fetchStatus(cmd, cfg)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			w := newStatusWriter(cmd.OutOrStdout())
			tr := status.Tracker
			w.section("Tracker")
			w.line("Running", kindIf(tr.Running, statusError), yesNo(tr.Running))
			w.line("Target", statusInfo, tr.Target)
			w.line("Session", statusInfo, tr.SessionID)
			w.line("Cold scan complete", kindIf(tr.ColdScanComplete, statusWarn), yesNo(tr.ColdScanComplete))
			w.linef("Existing files", statusInfo, "%d", tr.ExistingCount)
			w.linef("New at startup", statusInfo, "%d", tr.BaselineNew)
			if tr.Strategy != "" {
				w.linef("Watcher", watcherKind(tr.WatcherState), "%s (%s)", tr.WatcherState, tr.Strategy)
			} else {
				w.line("Watcher", watcherKind(tr.WatcherState), tr.WatcherState)
			}
			queueKind := statusInfo
			if tr.QueueCapacity > 0 && tr.QueueDepth >= tr.QueueCapacity {
				queueKind = statusWarn
			}
			w.linef("Queue", queueKind, "%d/%d", tr.QueueDepth, tr.QueueCapacity)

			w.section("Process")
			w.linef("PID", statusInfo, "%d", status.PID)
			w.linef("Store", statusInfo, "%s (%s)", status.StorePath, status.StoreBackend)
			w.line("Lock", statusInfo, status.LockFilePath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func fetchStatus(cmd *cobra.Command, cfg *config.Config) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	if !cfg.API.Enabled {
		return status, errors.New("status API disabled; set api.enabled = true and restart `dropwatch run`")
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, "http://"+cfg.Paths.APIBind+"/api/status", nil)
	if err != nil {
		return status, fmt.Errorf("build status request: %w", err)
	}
	if cfg.API.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.API.Token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return status, fmt.Errorf("query %s: %w; is `dropwatch run` active?", cfg.Paths.APIBind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return status, fmt.Errorf("status request failed: %s %s", resp.Status, apiErr.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}
