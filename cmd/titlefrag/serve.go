package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/config"
	"github.com/nicktill/titlefrag/pkg/server"
)

const (
	serverReadTimeout  = 30 * time.Second
	serverWriteTimeout = 30 * time.Minute // loads stream large bodies
	statsInterval      = 5 * time.Second
	backgroundDrain    = 5 * time.Second
)

func newServeCommand(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the title store over HTTP.",
		Long: `Starts the HTTP API: search, count and stats over committed titles,
POST /v1/load and /v1/fragment for TSV bodies, export and import, a WebSocket
event stream at /v1/ws and Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			log := a.log

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			store, err := a.openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore(a, store)
			log.Info("storage initialized",
				zap.String("backend", cfg.Storage.Backend),
				zap.String("data_dir", cfg.Storage.DataDir))

			h := server.InitializeHandlers(store, cfg, log)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.Hub.Run(ctx)
			}()
			wg.Add(1)
			go func() {
				defer wg.Done()
				server.BroadcastStats(ctx, store, h.Hub, h.Metrics, log, statsInterval)
			}()
			wg.Add(1)
			go server.RunBadgerGC(ctx, store, log, &wg)

			router := mux.NewRouter()
			server.SetupRoutes(router, h, cfg.Server.Port)

			srv := &http.Server{
				Addr:         ":" + cfg.Server.Port,
				Handler:      router,
				ReadTimeout:  serverReadTimeout,
				WriteTimeout: serverWriteTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				log.Info("server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case sig := <-quit:
				log.Info("shutdown signal received", zap.Stringer("signal", sig))
			case err, ok := <-serveErr:
				if ok && err != nil {
					cancel()
					wg.Wait()
					return err
				}
			case <-ctx.Done():
			}

			// background tasks stop first or wg.Wait deadlocks
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("server shutdown", zap.Error(err))
			}

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				log.Info("background tasks stopped")
			case <-time.After(backgroundDrain):
				log.Warn("background tasks did not stop in time")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", config.DefaultPort, "HTTP listen port")
	return cmd
}
