package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/foodshare/internal/api"
	"github.com/sells-group/foodshare/internal/donation"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the donation marketplace API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		sweeper := donation.NewSweeper(env.Service, time.Duration(cfg.Server.ExpireIntervalMins)*time.Minute)
		go sweeper.Run(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		handler := api.NewServer(env.Service, api.Options{
			UploadDir:      env.Images.Dir(),
			MaxUploadBytes: int64(env.Images.MaxBytes()),
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("store", cfg.Store.Driver),
			zap.String("provider", cfg.Classifier.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
