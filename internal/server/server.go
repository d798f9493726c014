package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"imgupload/internal/config"
	"imgupload/internal/handler"
	"imgupload/internal/metrics"
	"imgupload/internal/middleware"
	"imgupload/internal/repository"
	"imgupload/internal/service"
	"imgupload/internal/settings"
	"imgupload/pkg/utils"
	"imgupload/web"
)

// Components are the pieces shared by the HTTP server and the CLI.
type Components struct {
	FS       afero.Fs
	Settings *settings.Store
	Metrics  *metrics.Metrics
	Service  service.UploadService
}

func NewComponents(ctx context.Context, cfg *config.Config, fs afero.Fs, log *zap.Logger) (*Components, error) {
	store, err := settings.NewStore(fs, cfg.Settings.File, settings.Settings{
		ImagesDirectory: cfg.Settings.ImagesDirectory,
		BaseURL:         cfg.Settings.BaseURL,
		ThumbMaxWidth:   cfg.Settings.ThumbMaxWidth,
		ThumbMaxHeight:  cfg.Settings.ThumbMaxHeight,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var mirror repository.Mirror
	if cfg.S3.Enabled {
		mirror, err = repository.NewS3Repository(ctx, &cfg.S3, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 repository: %w", err)
		}
	}

	m := metrics.New(prometheus.NewRegistry())
	proc := utils.NewImageProcessor(log, cfg.App.ThumbJPEGQuality, cfg.App.AutoOrient, cfg.App.MaxPixels)

	return &Components{
		FS:       fs,
		Settings: store,
		Metrics:  m,
		Service:  service.NewUploadService(fs, mirror, proc, m, log),
	}, nil
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(c *Components, adminToken string, maxUploadSize int64, log *zap.Logger) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLog(log))
	router.MaxMultipartMemory = maxUploadSize

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	h := handler.NewHandler(c.Service, c.Settings, c.FS, maxUploadSize, log)
	admin := middleware.RequireAdmin(adminToken)

	router.GET("/health", h.HealthCheck)
	router.GET("/healthz/ready", h.Readiness)
	router.GET("/metrics", admin, gin.WrapH(c.Metrics.Handler()))

	router.POST(handler.ServicePath, admin, h.ServicePoint)

	opts := router.Group("/admin", admin)
	{
		opts.GET("/options/img_upload", h.ShowOptions)
		opts.POST("/options/img_upload", h.ShowOptions)
		opts.POST("/img_upload/upload", h.UploadImage)
	}

	router.StaticFS(handler.SharedPrefix, http.FS(web.Shared()))

	return router, nil
}

type Server struct {
	httpServer *http.Server
	components *Components
	cfg        *config.Config
	log        *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	components, err := NewComponents(ctx, cfg, afero.NewOsFs(), log)
	if err != nil {
		return nil, err
	}

	router, err := NewRouter(components, cfg.Server.AdminToken, cfg.App.MaxUploadSize, log)
	if err != nil {
		return nil, err
	}

	if cfg.Server.AdminToken == "" {
		log.Warn("ADMIN_TOKEN is not set, admin routes are open (dev mode only)")
	}

	server := &Server{
		httpServer: &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: router,
			// Uploads and thumbnailing of large images need more than the usual budget.
			ReadTimeout:    2 * time.Minute,
			WriteTimeout:   2 * time.Minute,
			IdleTimeout:    2 * time.Minute,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		components: components,
		cfg:        cfg,
		log:        log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("settings_file", components.Settings.Path()),
		zap.Bool("s3_mirror", cfg.S3.Enabled))

	return server, nil
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

// WatchSettings reloads settings edited on disk until ctx is done.
func (s *Server) WatchSettings(ctx context.Context) error {
	return s.components.Settings.Watch(ctx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
