// Package cmd defines the CLI commands for the confluence-collector executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/app"
	"github.com/JakeFAU/confluence-collector/internal/collector"
	"github.com/JakeFAU/confluence-collector/internal/config"
	"github.com/JakeFAU/confluence-collector/internal/logging"
	"github.com/JakeFAU/confluence-collector/internal/sink"
)

type appKeyType string

const appKey appKeyType = "app"

// App is the set of services the commands use. Tests inject their own.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Collector() *collector.Collector
	OpenSink(ctx context.Context, runID string) (sink.Sink, error)
}

// newApp is the application factory, swapped out in tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "confluence-collector",
		Short: "Collects Confluence pages as search documents.",
		Long: `confluence-collector enumerates every current page in a set of Confluence
spaces, flattens each page into a normalized document and hands the documents
to a sink or streams them over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (environment variables prefixed COLLECTOR_ also apply)")

	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// execute runs root and closes the app the executed command built, whether or
// not the command succeeded. Cobra skips post-run hooks after a RunE error.
func execute(ctx context.Context, root *cobra.Command) error {
	executed, err := root.ExecuteContextC(ctx)
	if executed != nil && executed.Context() != nil {
		if appInstance, ok := executed.Context().Value(appKey).(App); ok && appInstance != nil {
			appInstance.Close()
		}
	}
	return err
}

// Execute runs the root command until it finishes or the process is signaled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, newRootCmd()); err != nil {
		fmt.Fprintf(os.Stderr, "command execution failed: %v\n", err)
		stop()
		os.Exit(1)
	}
}
