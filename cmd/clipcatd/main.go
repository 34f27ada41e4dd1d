// Command clipcatd is the clipcat daemon: it owns the platform clipboard
// backend, the watcher, the in-memory manager, the durable history store,
// and every RPC transport built on top of them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/backend/mock"
	"github.com/clipcatd/clipcat/internal/backendselect"
	"github.com/clipcatd/clipcat/internal/config"
	"github.com/clipcatd/clipcat/internal/dbusapi"
	"github.com/clipcatd/clipcat/internal/history"
	"github.com/clipcatd/clipcat/internal/lifecycle"
	"github.com/clipcatd/clipcat/internal/logging"
	"github.com/clipcatd/clipcat/internal/manager"
	"github.com/clipcatd/clipcat/internal/rpc"
	"github.com/clipcatd/clipcat/internal/rpc/localsock"
	"github.com/clipcatd/clipcat/internal/snippet"
	"github.com/clipcatd/clipcat/internal/watcher"
	"github.com/clipcatd/clipcat/internal/worker"
)

var (
	version   = "dev"
	buildTime = "unknown"
	commit    = "none"

	configPath string
	useMock    bool
)

var rootCmd = &cobra.Command{
	Use:   "clipcatd",
	Short: "clipcat clipboard daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clipcatd %s (built %s, commit %s)\n", version, buildTime, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default under the platform config dir)")
	rootCmd.Flags().BoolVar(&useMock, "mock-backend", false, "use the in-memory mock clipboard backend instead of a native one")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.KindDaemon, cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("clipcatd starting",
		zap.String("version", version),
		zap.String("config", cfg.SystemPaths.ActiveConfig))

	coord := lifecycle.New(logger)

	kinds := activeKinds(cfg)
	be, err := openBackend(logger, cfg, kinds)
	if err != nil {
		logger.Fatal("failed to open clipboard backend", zap.Error(err))
	}

	w, err := watcher.New(logger, be, cfg.Watcher)
	if err != nil {
		logger.Fatal("failed to build watcher", zap.Error(err))
	}

	hist, err := history.Open(logger, cfg.SystemPaths.HistoryFile, cfg.SystemPaths.ImageDir)
	if err != nil {
		logger.Fatal("failed to open history store", zap.Error(err))
	}
	defer hist.Close()

	mgr := manager.New(be, cfg.History.Capacity)
	service := rpc.New(mgr, w)

	snippetSource := snippet.New(logger, cfg.Snippet)

	watcherEvents, err := w.Run(coord.Context(), cfg.Watcher.LoadCurrent)
	if err != nil {
		logger.Fatal("failed to start watcher", zap.Error(err))
	}
	snippetEvents, err := snippetSource.Run(coord.Context())
	if err != nil {
		logger.Fatal("failed to start snippet source", zap.Error(err))
	}

	wrk := worker.New(logger, mgr, hist)
	coord.Go("worker", func(ctx context.Context) error {
		return wrk.Run(ctx, watcherEvents, snippetEvents)
	})

	if cfg.Local.Enabled {
		srv := localsock.NewServer(logger, service, cfg.Local.SocketPath, cfg.RPC.AccessToken, cfg.RPC.MaxDecodedMessageSize)
		coord.Go("localsock", srv.Run)
	}

	if cfg.DBus.Enabled {
		coord.Go("dbusapi", func(ctx context.Context) error {
			srv, err := dbusapi.New(logger, service)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		})
	}

	logger.Info("clipcatd ready")
	err = coord.Wait()
	logger.Info("clipcatd stopped")
	return err
}

func activeKinds(cfg *config.Config) []backend.ClipboardKind {
	var kinds []backend.ClipboardKind
	if cfg.Watcher.EnableClipboard {
		kinds = append(kinds, backend.Clipboard)
	}
	if cfg.Watcher.EnablePrimary {
		kinds = append(kinds, backend.Primary)
	}
	if cfg.Watcher.EnableSecondary {
		kinds = append(kinds, backend.Secondary)
	}
	return kinds
}

func openBackend(logger *zap.Logger, cfg *config.Config, kinds []backend.ClipboardKind) (backend.Backend, error) {
	if useMock {
		return mock.New(kinds...), nil
	}
	be, err := backendselect.Detect(logger, kinds)
	if err != nil {
		logger.Warn("native clipboard backend unavailable, falling back to mock", zap.Error(err))
		return mock.New(kinds...), nil
	}
	return be, nil
}
