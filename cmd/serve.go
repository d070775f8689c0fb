package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zipmatch/internal/api"
	"github.com/sells-group/zipmatch/internal/cache"
	"github.com/sells-group/zipmatch/internal/catalog"
	"github.com/sells-group/zipmatch/internal/query"
)

var (
	servePort    int
	servePreload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ZIP code matching HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		src, cleanup, err := newSource(ctx, cfg.Catalog)
		if err != nil {
			return err
		}
		defer cleanup()

		cat := catalog.New(src)
		svc := newService(cat)

		if servePreload {
			go func() {
				if _, err := cat.EnsureLoaded(ctx); err != nil {
					zap.L().Error("catalog preload failed", zap.Error(err))
				}
			}()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(svc),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("catalog", src.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newService(cat *catalog.Catalog) *query.Service {
	return query.NewService(cat, cache.New(cfg.Cache.MaxEntries), query.Options{
		Workers:           cfg.Query.Workers,
		SimplifyTolerance: cfg.Query.SimplifyTolerance,
	})
}

func newRouter(q api.Querier) http.Handler {
	return api.NewRouter(q, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		Timeout:        time.Duration(cfg.Query.TimeoutSecs) * time.Second,
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&servePreload, "preload", false, "load the region catalog at startup instead of on first request")
	rootCmd.AddCommand(serveCmd)
}
