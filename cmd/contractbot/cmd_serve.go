package main

import (
	"context"
	"os/signal"
	"syscall"

	"contractbot/internal/server"
	"contractbot/internal/task"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr      string
	serveAccessLog bool
)

// serveCmd runs the HTTP API with the background workers it depends on.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dialogue API over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveAccessLog, "access-log", false, "Log every request")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	rt, err := openRuntime(cfg, runtimeOptions{persist: true, publish: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to close runtime", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	// Typed nils must not reach the handlers as non-nil interfaces.
	var (
		history server.HistorySource
		deleter server.SessionDeleter
	)
	if rt.turnLog != nil {
		history = rt.turnLog
	}
	if rt.snapshots != nil {
		deleter = rt.snapshots
	}
	h := server.NewHandlers(rt.manager, history, deleter)
	srv := server.New(cfg.Server.Addr, server.NewRouter(h, "contractbot", serveAccessLog), cfg.GetShutdownTimeout())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error {
		return rt.sessions.RunSweeper(ctx, cfg.GetSweepInterval(), func(ids []string) {
			logger.Debug("Swept expired sessions", zap.Int("count", len(ids)))
			if rt.snapshots == nil {
				return
			}
			for _, id := range ids {
				if err := rt.snapshots.Delete(id); err != nil {
					logger.Warn("Failed to delete snapshot", zap.String("session", id), zap.Error(err))
				}
			}
		})
	})
	if rt.snapshots != nil {
		g.Go(func() error { return rt.snapshots.Run(ctx, cfg.GetSnapshotInterval(), rt.sessions) })
	}
	if cfg.Tasks.File != "" && cfg.Tasks.Watch {
		w, err := task.NewWatcher(cfg.Tasks.File, func(r *task.Registry) {
			rt.manager.SetTasks(r)
			logger.Info("Reloaded tasks", zap.Strings("kinds", kindNames(r)))
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(ctx) })
	}

	logger.Info("Serving",
		zap.String("addr", cfg.Server.Addr),
		zap.Bool("turn_log", rt.turnLog != nil),
		zap.Bool("snapshots", rt.snapshots != nil),
		zap.String("events", cfg.Events.NATSURL),
	)
	return g.Wait()
}

func kindNames(r *task.Registry) []string {
	var names []string
	for _, k := range r.Kinds() {
		names = append(names, string(k))
	}
	return names
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
