package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/casegest/internal/api"
)

func serveCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			a.orchestrator.Start(ctx)

			srv := api.NewServer(api.Deps{
				Pipeline: a.orchestrator,
				Store:    a.store,
				Chat:     a.chat,
				LLM:      a.llm,
				Metrics:  a.metrics,
			}, a.log, cfg)

			httpServer := &http.Server{
				Addr:        ":" + cfg.Port,
				Handler:     srv,
				ReadTimeout: 30 * time.Second,
				// Synchronous uploads wait for every model call in the batch.
				WriteTimeout: cfg.LLMTimeout*time.Duration(cfg.UploadMaxFiles) + time.Minute,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("starting casegest", "port", cfg.Port)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					a.log.Error("server error", "error", err)
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info("shutting down...")
			a.orchestrator.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("port", "", "listen port")
	return cmd
}
