package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dropwatch/internal/files"
	"dropwatch/internal/store"
)

type stateSummary struct {
	StorePath            string   `json:"storePath"`
	Backend              string   `json:"backend"`
	KnownFiles           int      `json:"knownFiles"`
	LastFullScanComplete int64    `json:"lastFullScanComplete"`
	LastExit             int64    `json:"lastExit"`
	RescanDue            bool     `json:"rescanDue"`
	Names                []string `json:"names,omitempty"`
}

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the durable known-file state",
	}
	stateCmd.AddCommand(newStateShowCommand(ctx))
	stateCmd.AddCommand(newStateClearCommand(ctx))
	return stateCmd
}

func newStateShowCommand(ctx *commandContext) *cobra.Command {
	var list, asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show known-file state and scan metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.quietLogger()
			if err != nil {
				return err
			}
			var summary stateSummary
			err = ctx.withStore(logger, func(st store.Store) error {
				summary = readState(cmd.Context(), st, cfg.Tracking.FullRescanInterval())
				return nil
			})
			if err != nil {
				return err
			}
			summary.StorePath = cfg.StorePath()
			summary.Backend = cfg.Store.Backend
			if !list {
				summary.Names = nil
			}

			if asJSON {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			w := newStatusWriter(out)
			w.section("Known-file State")
			w.linef("Store", statusInfo, "%s (%s)", summary.StorePath, summary.Backend)
			w.linef("Known files", statusInfo, "%d", summary.KnownFiles)
			w.line("Last full scan", kindIf(summary.LastFullScanComplete > 0, statusWarn), formatMillis(summary.LastFullScanComplete))
			w.line("Last exit", statusInfo, formatMillis(summary.LastExit))
			w.line("Full rescan due", kindIf(!summary.RescanDue, statusWarn), yesNo(summary.RescanDue))

			if len(summary.Names) > 0 {
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(summary.Names))
				for _, name := range summary.Names {
					rows = append(rows, []string{name})
				}
				fmt.Fprintln(out, renderTable([]string{"Known file"}, rows, nil, ""))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List every known file name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func readState(ctx context.Context, st store.Store, interval time.Duration) stateSummary {
	meta := st.Metadata(ctx)
	known := st.KnownFiles(ctx)
	return stateSummary{
		KnownFiles:           len(known),
		LastFullScanComplete: meta.LastFullScanComplete,
		LastExit:             meta.LastExit,
		RescanDue:            st.NeedsFullRescan(ctx, interval),
		Names:                files.SortedNames(known),
	}
}

func newStateClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget every known file; the next scan reports all files as new",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.quietLogger()
			if err != nil {
				return err
			}
			err = ctx.withStateLock(func() error {
				return ctx.withStore(logger, func(st store.Store) error {
					st.Clear(cmd.Context())
					return nil
				})
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared known-file state at %s\n", cfg.StorePath())
			return nil
		},
	}
}
