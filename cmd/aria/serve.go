package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/aria/internal/api"
	"github.com/dgnsrekt/aria/internal/netutil"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over a local HTTP API",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			apiCfg := a.cfg.API
			if addr != "" {
				apiCfg.BindAddr = addr
			}
			bindAddr, err := netutil.SelectBindAddr(apiCfg.BindAddr, apiCfg.BindCandidates(), apiCfg.AutoFallback)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              bindAddr,
				Handler:           api.NewServer(svc),
				ReadHeaderTimeout: 10 * time.Second,
			}
			logCtx := cmd.Context()
			errCh := make(chan error, 1)
			go func() {
				slog.InfoContext(logCtx, "aria api listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			cmd.Printf("Serving on http://%s (docs at /docs)\n", bindAddr)

			select {
			case err := <-errCh:
				return err
			case <-logCtx.Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.ErrorContext(logCtx, "aria api shutdown failed", "error", err)
				return err
			}
			slog.InfoContext(logCtx, "aria api stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "bind address, overriding the configured one")
	return cmd
}
