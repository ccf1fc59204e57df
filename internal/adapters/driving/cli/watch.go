package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/catalyst-labs/filingrag/internal/index"
	"github.com/catalyst-labs/filingrag/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the index directory and report published generations",
	Long: `Watches the index directory and prints refreshed statistics each
time an indexing run in another process publishes a new generation.
Stops on interrupt.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := requireEngine(); err != nil {
		return err
	}

	watcher, err := index.NewWatcher(cfg.IndexDir())
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go watcher.Run(ctx)

	cmd.Printf("Watching %s (interrupt to stop)\n", cfg.IndexDir())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watcher.Reloads():
			logger.Info("index generation published, reloading")
			if err := reloadEngine(); err != nil {
				logger.Error("reloading index: %v", err)
				continue
			}
			if err := runStats(cmd, nil); err != nil {
				return err
			}
		}
	}
}

// reloadEngine drops the wired services and rebuilds them against the
// newly published index artifacts.
func reloadEngine() error {
	if vectorIndex != nil {
		vectorIndex.Close()
	}
	if filingStore != nil {
		filingStore.Close()
	}
	if embedder != nil {
		embedder.Close()
	}
	searchService = nil
	indexService = nil
	vectorIndex = nil
	filingStore = nil
	embedder = nil
	return requireEngine()
}
