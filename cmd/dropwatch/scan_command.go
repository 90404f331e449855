package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dropwatch/internal/api"
	"dropwatch/internal/files"
	"dropwatch/internal/scanner"
	"dropwatch/internal/store"
)

type scanReport struct {
	Target      string           `json:"target"`
	Forced      bool             `json:"forced"`
	DurationMs  int64            `json:"durationMs"`
	Existing    []api.FileRecord `json:"existing"`
	Incremental []api.FileRecord `json:"incremental"`
	Removed     []string         `json:"removed"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one baseline scan and show how each file was classified",
		Long: "Scan lists the target directory once, classifies every file against the\n" +
			"known-file state and records the result, exactly like the cold scan of `run`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.quietLogger()
			if err != nil {
				return err
			}

			var result scanner.Result
			var target string
			err = ctx.withStateLock(func() error {
				return ctx.withStore(logger, func(st store.Store) error {
					sc, err := scanner.New(cfg, st, logger)
					if err != nil {
						return err
					}
					target = sc.Target().String()
					result = sc.Scan(cmd.Context())
					return nil
				})
			})
			if err != nil {
				return err
			}

			removed := files.SortedNames(result.Removed)
			if asJSON {
				return writeJSON(cmd, scanReport{
					Target:      target,
					Forced:      result.Forced,
					DurationMs:  result.Duration.Milliseconds(),
					Existing:    api.FromRecords(result.Existing),
					Incremental: api.FromRecords(result.Incremental),
					Removed:     removed,
				})
			}

			rows := make([][]string, 0, len(result.Existing)+len(result.Incremental)+len(removed))
			for _, rec := range result.Incremental {
				rows = append(rows, recordRow(rec, "new"))
			}
			for _, rec := range result.Existing {
				rows = append(rows, recordRow(rec, "existing"))
			}
			for _, name := range removed {
				rows = append(rows, []string{name, "removed", "-", "-"})
			}

			out := cmd.OutOrStdout()
			if result.Forced {
				fmt.Fprintln(out, "Known-file state was stale; every file was rescanned.")
			}
			if len(rows) == 0 {
				fmt.Fprintf(out, "No matching files in %s\n", target)
				return nil
			}
			footer := fmt.Sprintf("%d new, %d existing, %d removed in %s",
				len(result.Incremental), len(result.Existing), len(removed), result.Duration.Round(time.Millisecond))
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Class", "Size", "Modified"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				footer,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
