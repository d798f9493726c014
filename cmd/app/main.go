package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imgupload/internal/config"
	"imgupload/internal/server"
	"imgupload/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the image upload HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	thumbnailCmd := &cobra.Command{
		Use:   "thumbnail [name...]",
		Short: "Regenerate thumbnails for the named originals, or for all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return thumbnail(cmd, args)
		},
	}

	rootCmd := &cobra.Command{
		Use:          "imgupload",
		Short:        "Image upload and thumbnail service for the blog admin",
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}
	rootCmd.AddCommand(serveCmd, thumbnailCmd)
	return rootCmd
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.Server.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

func serve(parent context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create server", zap.Error(err))
		return err
	}

	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	go func() {
		if err := srv.WatchSettings(ctx); err != nil {
			log.Warn("Settings watcher stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Server exited")
	return nil
}

func thumbnail(cmd *cobra.Command, names []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := cmd.Context()
	components, err := server.NewComponents(ctx, cfg, afero.NewOsFs(), log)
	if err != nil {
		return err
	}
	st := components.Settings.Get()

	if len(names) == 0 {
		n, err := components.Service.RebuildThumbnails(ctx, st)
		fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %d thumbnails.\n", n)
		return err
	}

	var errs []error
	for _, name := range names {
		result, err := components.Service.ThumbnailFor(ctx, name, st)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%dx%d)\n",
			result.Name, result.ThumbName, result.ThumbWidth, result.ThumbHeight)
	}
	return errors.Join(errs...)
}
