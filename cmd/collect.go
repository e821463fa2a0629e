package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/sink"
)

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Runs one collection into the configured sink",
		Long: `Resolves the target spaces, fetches every current page with bounded
parallelism and writes the resulting documents to the sink selected by
sink.provider (stdout, file, gcs, pubsub or elasticsearch).`,
		RunE: runCollectCommand,
	}
}

func runCollectCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := appInstance.Logger()

	stream := appInstance.Collector().Collect(ctx)
	written, err := sink.Run(ctx, stream, appInstance.OpenSink)
	if err != nil {
		return fmt.Errorf("collect documents: %w", err)
	}
	logger.Info("collect command finished",
		zap.String("run_id", stream.RunID()),
		zap.Int("documents", written),
	)
	return nil
}
