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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/har-viewer/backend/internal/analyzer"
	"github.com/har-viewer/backend/internal/api"
	"github.com/har-viewer/backend/internal/config"
	"github.com/har-viewer/backend/internal/logging"
	"github.com/har-viewer/backend/internal/metrics"
	"github.com/har-viewer/backend/internal/report"
	"github.com/har-viewer/backend/internal/search"
	"github.com/har-viewer/backend/internal/session"
	"github.com/har-viewer/backend/internal/storage"
	"github.com/har-viewer/backend/internal/upload"
	"github.com/har-viewer/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	var configPath, logLevel, logPath string
	pflag.StringVar(&configPath, "config", "", "path to HARViewer.config (default: next to the executable)")
	pflag.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pflag.StringVar(&logPath, "log-path", "", "additional log file (overrides config)")
	pflag.Parse()

	if configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(filepath.Dir(exePath), "HARViewer.config")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Advanced.LogLevel = logLevel
	}
	if logPath != "" {
		cfg.Advanced.LogPath = logPath
	}

	if err := logging.InitializeLogger(cfg.Advanced.LogLevel, cfg.Advanced.LogPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.L.Sync()
	log := logging.L

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal("failed to create directories", zap.Error(err))
	}

	// Check if running in embedded mode (shell built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	m := metrics.New()

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}

	sessionMgr := session.NewManager(session.Options{
		Redact:          cfg.Security.RedactSensitive,
		SlowThresholdMs: float64(cfg.Search.SlowThresholdMillis),
		Engine:          search.NewEngine(m),
		Metrics:         m,
		OnEvict: func(fileID string) {
			if err := fileStore.Delete(fileID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				log.Warn("failed to delete spooled upload", zap.String("file", logging.ShortID(fileID)), zap.Error(err))
			}
		},
	})

	client := analyzer.NewClient(cfg.Analyzer.Endpoint, cfg.AnalyzerTimeout())
	uploadMgr := upload.NewManager(fileStore, client, sessionMgr, cfg.AnalyzerTimeout(), m)

	tpl, err := report.Load(cfg.Advanced.ReportTemplatePath)
	if err != nil {
		log.Warn("failed to load report template, using built-in", zap.Error(err))
		tpl = report.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background cleanup of idle sessions and finished jobs
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := sessionMgr.CleanupOldSessions(cfg.SessionTimeout()); n > 0 {
					log.Info("cleaned up idle sessions", zap.Int("count", n))
				}
				uploadMgr.CleanupOldJobs(cfg.JobRetention())
			case <-ctx.Done():
				return
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	// Configure middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/keepalive") ||
				path == "/api/health" ||
				path == "/metrics"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			return api.StreamingPath(c.Request().URL.Path) ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout - query took too long",
	}))

	// Compression middleware
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Skipper: func(c echo.Context) bool {
				return api.StreamingPath(c.Request().URL.Path) ||
					c.Request().Header.Get("Accept") == "text/event-stream"
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		if embeddedMode {
			origins := strings.Split(cfg.Server.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
			if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
				origins = []string{"*"}
			}
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: origins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			}))
		} else {
			// Development mode - only allow localhost
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{
					"http://localhost:5173", "http://127.0.0.1:5173",
					"http://localhost:3000", "http://127.0.0.1:3000",
				},
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			}))
		}
	}

	handlers := api.NewHandlers(&api.Dependencies{
		Store:              fileStore,
		Sessions:           sessionMgr,
		Jobs:               uploadMgr,
		Template:           tpl,
		Metrics:            m,
		AnalyzerEndpoint:   client.Endpoint(),
		Debounce:           cfg.DebounceInterval(),
		MaxMessageBytes:    int64(cfg.Advanced.WebSocketMaxMessageSize) * 1024,
		AllowSessionDelete: cfg.Security.AllowSessionDelete,
		Version:            Version,
	})
	api.RegisterRoutes(e, handlers)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	// Register embedded shell if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn("failed to register static routes", zap.Error(err))
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	mode := "Development"
	if embeddedMode {
		mode = "Embedded shell"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           HAR Viewer Server                               ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Analyzer:  %-46s║\n", client.Endpoint())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	uploadMgr.Wait()
}
