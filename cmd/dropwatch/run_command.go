package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dropwatch/internal/daemon"
	"dropwatch/internal/logging"
	"dropwatch/internal/notifications"
	"dropwatch/internal/preflight"
	"dropwatch/internal/store"
)

type runOptions struct {
	json         bool
	listExisting bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Track the target directory and print files as they arrive",
		Long: "Run classifies the target directory against the known-file state, prints every\n" +
			"new file and keeps watching until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTracking(cmd, ctx, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print records as JSON lines")
	cmd.Flags().BoolVar(&opts.listExisting, "existing", false, "Also print files classified as existing at startup")
	return cmd
}

func runTracking(cmd *cobra.Command, ctx *commandContext, opts runOptions) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, result := range preflight.RunAll(cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "tracking may miss files until the problem is fixed"),
			logging.String(logging.FieldErrorHint, "run `dropwatch check` for details"))
	}

	st, err := store.Open(cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "open store failed", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store.backend and the state directory permissions"))
		return err
	}

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	notifier := notifications.NewService(cfg)
	if status := d.Status().Tracker; status.ColdScanComplete {
		if err := notifier.NotifyColdScanComplete(signalCtx, status.Target, status.ExistingCount, status.BaselineNew); err != nil {
			warnNotifyFailed(logger, err)
		}
	}

	printer := newRecordPrinter(cmd.OutOrStdout(), opts.json)
	if opts.listExisting {
		for _, rec := range d.Existing() {
			if err := printer.print(rec); err != nil {
				return err
			}
		}
	}

	incoming, err := d.Incremental()
	if err != nil {
		return err
	}
	for {
		select {
		case <-signalCtx.Done():
			logger.Info("dropwatch shutting down")
			return nil
		case rec, ok := <-incoming:
			if !ok {
				return nil
			}
			if err := printer.print(rec); err != nil {
				return err
			}
			if err := notifier.NotifyNewFile(signalCtx, rec); err != nil {
				warnNotifyFailed(logger, err, logging.String(logging.FieldFileName, rec.FileName))
			}
		}
	}
}

func warnNotifyFailed(logger *slog.Logger, err error, attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.Error(err),
		logging.String(logging.FieldImpact, "the notification was not delivered; tracking continues"),
		logging.String(logging.FieldErrorHint, "check notify.ntfy_topic and network access"))
	logging.WarnWithContext(logger, "notification failed", "notification_failed", attrs...)
}
