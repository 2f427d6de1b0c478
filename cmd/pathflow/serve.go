package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/internal/cli"
	"github.com/aretw0/pathflow/internal/presentation/tui"
	httpAdapter "github.com/aretw0/pathflow/pkg/adapters/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Exposes the loaded signals as a JSON API over HTTP, with an SSE stream of run results and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cfg, logger, err := loadApp(cmd, false, map[string]string{"server.addr": "addr"})
		if err != nil {
			return err
		}
		defer app.Close()

		var opts []httpAdapter.Option
		opts = append(opts, httpAdapter.WithLogger(logger), httpAdapter.WithMaxBodySize(int64(cli.MaxPayloadSize())))
		if app.Metrics != nil {
			opts = append(opts, httpAdapter.WithMetrics(app.Metrics))
		}
		handler, stop := httpAdapter.NewHandler(app.Controller, opts...)
		defer stop()

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		tui.PrintBanner(cmd.OutOrStdout(), pathflow.Version)
		g, ctx := errgroup.WithContext(sigCtx)

		g.Go(func() error {
			logger.Info("Starting pathflow server", "addr", srv.Addr, "signals", app.Controller.Signals())
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			g.Go(func() error {
				return cli.Watch(ctx, cfg.Signals.Paths, logger, func(name string) {
					if err := app.Reload(); err != nil {
						logger.Error("Reload failed, keeping previous signals", "file", name, "err", err)
						return
					}
					logger.Info("Signals reloaded", "file", name, "signals", app.Controller.Signals())
				})
			})
		}

		g.Go(func() error {
			<-ctx.Done()
			logger.Info("Start shutdown...", "signal", sigCtx.Signal())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				return srv.Close()
			}
			logger.Info("pathflow server stopped gracefully")
			return nil
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload signals on file changes")
}
