package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"polls/config"
	"polls/fixtures"
	"polls/handler"
	"polls/logging"
	"polls/store"
	"polls/templates"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/acme/autocert"
)

//go:embed assets
var assets embed.FS

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	s, err := store.Open(cfg.DBDriver, cfg.DBURL, log)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing database...")
		_ = s.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.FixturesPath != "" {
		if err := fixtures.LoadFile(ctx, s, cfg.FixturesPath, time.Now(), log); err != nil {
			return fmt.Errorf("fixtures failed: %w", err)
		}
	}

	e := newServer(handler.New(s, log, cfg.IndexLimit), log)

	errc := make(chan error, 1)
	go func() {
		if cfg.AddressListen != "" {
			log.Info("Listening", "address", cfg.AddressListen, "env", cfg.Env)
			errc <- e.Start(cfg.AddressListen)
			return
		}
		// Cache certificates to avoid issues with rate limits (https://letsencrypt.org/docs/rate-limits)
		e.AutoTLSManager.Cache = autocert.DirCache(cfg.CertCacheDir)
		if cfg.WhitelistHost != "" {
			e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(cfg.WhitelistHost)
		}
		e.Pre(middleware.HTTPSRedirect())
		log.Info("Listening with TLS", "address", ":443", "env", cfg.Env)
		errc <- e.StartAutoTLS(":443")
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newServer wires routes, templates and middleware around h.
func newServer(h *handler.Handler, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// GET and HEAD redirect with 301, other methods with 308, which keeps the method and body.
	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			return isStatic(c) || !isRead(c)
		},
	}))
	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusPermanentRedirect,
		Skipper: func(c echo.Context) bool {
			return isStatic(c) || isRead(c)
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "REQUEST", attrs...)
			return nil
		},
	}))

	e.Renderer = templates.New()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/polls/")
	})
	e.GET("/polls/", h.GetQuestions)
	e.GET("/polls/:id/", h.GetByID)
	e.GET("/polls/:id/results/", h.GetResults)
	e.POST("/polls/:id/vote/", h.Vote)
	e.StaticFS("/static", echo.MustSubFS(assets, "assets"))

	return e
}

func isStatic(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/static/")
}

func isRead(c echo.Context) bool {
	m := c.Request().Method
	return m == http.MethodGet || m == http.MethodHead
}
