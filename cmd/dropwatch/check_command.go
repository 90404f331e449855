package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dropwatch/internal/preflight"
)

type checkResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the target, state directory and watch strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)
			failed := 0
			for _, result := range results {
				if !result.Passed {
					failed++
				}
			}

			if asJSON {
				payload := make([]checkResult, 0, len(results))
				for _, result := range results {
					payload = append(payload, checkResult(result))
				}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				w := newStatusWriter(cmd.OutOrStdout())
				w.section("Preflight")
				for _, result := range results {
					w.line(result.Name, kindIf(result.Passed, statusError), result.Detail)
				}
			}

			if failed > 0 {
				return errors.New(pluralChecks(failed) + " failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func pluralChecks(n int) string {
	if n == 1 {
		return "1 preflight check"
	}
	return fmt.Sprintf("%d preflight checks", n)
}
