package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/slidewizard/backend/internal/api"
	"github.com/slidewizard/backend/internal/config"
	"github.com/slidewizard/backend/internal/events"
	"github.com/slidewizard/backend/internal/history"
	"github.com/slidewizard/backend/internal/jobs"
	"github.com/slidewizard/backend/internal/logging"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/remote"
	"github.com/slidewizard/backend/internal/session"
	"github.com/slidewizard/backend/internal/settings"
	"github.com/slidewizard/backend/internal/storage"
	"github.com/slidewizard/backend/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wizard HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

// resolveConfigPath defaults to SlideWizard.config next to the executable.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), "SlideWizard.config"), nil
}

func loadConfig() (*config.AppConfig, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", fmt.Errorf("load configuration: %w", err)
	}
	return cfg, path, nil
}

func runServer(parent context.Context) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	logging.Init(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	defer logging.Close()
	log := logging.WithComponent("server")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	caches, err := settings.NewClientCaches(cfg.Storage.SettingsDirectory)
	if err != nil {
		return fmt.Errorf("initialize settings cache: %w", err)
	}
	if cfg.Storage.PresetFile != "" {
		preset, err := settings.LoadPreset(cfg.Storage.PresetFile)
		if err == nil {
			err = caches.UsePreset(preset)
		}
		if err != nil {
			log.Warn("settings preset not loaded", "path", cfg.Storage.PresetFile, "error", err)
		} else {
			log.Info("settings preset applies to new clients", "path", cfg.Storage.PresetFile)
		}
	}

	// Run history is optional; the wizard works without it
	var runs api.RunHistory
	if cfg.Storage.HistoryDatabase != "" {
		hs, err := history.Open(cfg.Storage.HistoryDatabase)
		if err != nil {
			log.Warn("run history disabled", "path", cfg.Storage.HistoryDatabase, "error", err)
		} else {
			defer hs.Close()
			runs = hs
		}
	}

	hub := events.NewHub(cfg.Wizard.EventBufferSize)

	jobMgr := jobs.NewManager(ctx)
	jobMgr.OnUpdate(func(j jobs.Job) {
		if j.SessionID != "" {
			hub.Publish(j.SessionID, events.TypeJob, j)
		}
	})

	sessions := session.NewManager(session.Services{
		Analyzer:  remote.NewAnalyzerClient(cfg.Services.AnalyzerURL, cfg.RequestTimeout()),
		Generator: remote.NewGeneratorClient(cfg.Services.GeneratorURL, cfg.RequestTimeout()),
		Caches:    caches,
		Hub:       hub,
	}, cfg.Wizard.MaxSessions)

	go runCleanup(ctx, cfg, sessions, jobMgr, fileStore)

	maxUpload, err := cfg.MaxUploadBytes()
	if err != nil {
		return fmt.Errorf("invalid MaxUploadSize: %w", err)
	}

	e := newEcho(cfg)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions: sessions,
		Store:    fileStore,
		Jobs:     jobMgr,
		Hub:      hub,
		History:  runs,
		Caches:   caches,
		Defaults: models.GenerateOptions{
			ImageOrder:       cfg.Processing.DefaultImageOrder,
			SkipEmptyFolders: cfg.Processing.SkipEmptyFolders,
		},
		MaxUpload: maxUpload,
		Version:   Version,
	}))

	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn("failed to register static routes", "error", err)
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, cfgPath, embeddedMode)

	errCh := make(chan error, 1)
	go func() { errCh <- e.StartServer(s) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newEcho(cfg *config.AppConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Logging.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/jobs/") ||
				strings.HasSuffix(path, "/events") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 1 && origins[0] == "" {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{echo.HeaderContentDisposition},
		}))
	}
	return e
}

// runCleanup drops idle sessions, finished jobs and old uploads until ctx ends.
func runCleanup(ctx context.Context, cfg *config.AppConfig, sessions *session.Manager, jobMgr *jobs.Manager, files *storage.LocalStore) {
	log := logging.WithComponent("cleanup")
	ticker := time.NewTicker(cfg.CleanupInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.CleanupOldSessions(cfg.SessionTimeout()); n > 0 {
				log.Info("expired sessions removed", "count", n)
			}
			if n := jobMgr.CleanupOldJobs(cfg.JobRetention()); n > 0 {
				log.Debug("finished jobs removed", "count", n)
			}
			if keep := cfg.UploadRetention(); keep > 0 {
				if n := files.Prune(keep); n > 0 {
					log.Info("old uploads removed", "count", n)
				}
			}
		}
	}
}

func printBanner(cfg *config.AppConfig, cfgPath string, embedded bool) {
	mode := "API only"
	if embedded {
		mode = "Embedded frontend"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Slide Wizard Server                             ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", cfgPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Analyzer:  %-46s║\n", cfg.Services.AnalyzerURL)
	fmt.Printf("║  Generator: %-46s║\n", cfg.Services.GeneratorURL)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
