package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dropwatch/internal/config"
	"dropwatch/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create and validate the configuration file",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

type configInitOptions struct {
	path      string
	target    string
	stdout    bool
	overwrite bool
}

func newConfigInitCommand() *cobra.Command {
	var opts configInitOptions
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.stdout {
				content, err := config.Sample(opts.target)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(content)
				return err
			}

			dest, err := configInitDestination(opts.path)
			if err != nil {
				return err
			}
			if !opts.overwrite {
				switch _, err := os.Stat(dest); {
				case err == nil:
					return fmt.Errorf("%s already exists; pass --overwrite to replace it", dest)
				case !errors.Is(err, os.ErrNotExist):
					return fmt.Errorf("inspect %s: %w", dest, err)
				}
			}
			if err := config.CreateSample(dest, opts.target); err != nil {
				return err
			}

			w := newStatusWriter(cmd.OutOrStdout())
			w.line("Config file", statusOK, "wrote "+dest)
			if strings.TrimSpace(opts.target) == "" {
				w.linef("Target", statusWarn, "not set; edit tracking.target_dir or export %s", config.TargetDirEnv)
			} else {
				w.line("Target", statusInfo, opts.target)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "Where to write the file (default ~/.config/dropwatch/config.toml)")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Directory or mount:// handle to store as tracking.target_dir")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Print the sample instead of writing it")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func configInitDestination(flagValue string) (string, error) {
	if value := strings.TrimSpace(flagValue); value != "" {
		dest, err := config.ExpandPath(value)
		if err != nil {
			return "", fmt.Errorf("resolve --path: %w", err)
		}
		return dest, nil
	}
	dest, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("default config path: %w", err)
	}
	return filepath.Clean(dest), nil
}

// newConfigValidateCommand loads the configuration and then checks that the
// target it names can actually be listed.
func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and verify the tracking target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			w := newStatusWriter(cmd.OutOrStdout())
			w.section("Configuration")
			if ctx.configExists {
				w.line("Config file", statusOK, ctx.configPath)
			} else {
				w.line("Config file", statusWarn, ctx.configPath+" (missing; defaults used)")
			}
			w.linef("Store", statusInfo, "%s (%s)", cfg.StorePath(), cfg.Store.Backend)
			w.line("Watch mode", statusInfo, cfg.Watch.Mode)
			if cfg.API.Enabled {
				w.line("API", statusInfo, cfg.Paths.APIBind)
			} else {
				w.line("API", statusInfo, "disabled")
			}

			target := preflight.CheckTarget(cfg.Tracking)
			w.line("Target", kindIf(target.Passed, statusError), target.Detail)
			if !target.Passed {
				return errors.New("configuration loaded but the target directory is not usable")
			}
			return nil
		},
	}
}
