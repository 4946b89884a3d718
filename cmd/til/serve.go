package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"inductionlog/internal/app"
	"inductionlog/internal/metrics"
	"inductionlog/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devHeaders bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			m := metrics.New()
			a, err := app.Open(cmd.Context(), viper.GetString("workspace"), app.Options{
				ConfigPath: viper.GetString("config"),
				Logger:     logger,
				Metrics:    m,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("addr") && a.Config.Server.Addr != "" {
				addr = a.Config.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") {
				basePath = a.Config.Server.BasePath
			}
			if !cmd.Flags().Changed("allow-dev-headers") {
				devHeaders = a.Config.Server.AllowDevHeaders
			}
			authCfg := server.AuthConfig{
				JWTSecret:       viper.GetString("jwt-secret"),
				AllowDevHeaders: devHeaders,
				Logger:          logger.Named("auth"),
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowDevHeaders {
				return fmt.Errorf("TIL_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				BasePath: basePath,
				Auth:     authCfg,
				Metrics:  m,
				TargetID: a.Config.Save.TargetID,
				Logger:   logger.Named("http"),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			hooks := server.NewWebhookDispatcher(a.Engine.Repo, a.Config.Webhooks, logger.Named("webhooks"))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Info("serving", zap.String("addr", addr), zap.String("base_path", basePath))
				fmt.Printf("Serving induction log API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return hooks.Run(ctx)
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devHeaders, "allow-dev-headers", false, "accept X-Actor-Id/X-User-Role without a token")
	return cmd
}
