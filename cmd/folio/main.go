package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/eringen/folio"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("folio %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	log := newLogger(folio.EnvOr("LOG_FORMAT", "text"), folio.EnvOr("LOG_LEVEL", "info"))

	ttl, err := time.ParseDuration(folio.EnvOr("LISTING_CACHE_TTL", "5m"))
	if err != nil {
		return fmt.Errorf("LISTING_CACHE_TTL: %w", err)
	}
	pageSize, err := strconv.Atoi(folio.EnvOr("PAGE_SIZE", "10"))
	if err != nil {
		return fmt.Errorf("PAGE_SIZE: %w", err)
	}

	app := folio.New(folio.SiteConfig{
		Name:            folio.EnvOr("SITE_NAME", "Folio"),
		URL:             folio.EnvOr("SITE_URL", "http://localhost:3000"),
		Description:     os.Getenv("SITE_DESCRIPTION"),
		Author:          os.Getenv("SITE_AUTHOR"),
		Addr:            folio.EnvOr("ADDR", ":3000"),
		DatabasePath:    folio.EnvOr("DATABASE_PATH", "data/folio.db"),
		UploadsDir:      folio.EnvOr("UPLOADS_DIR", "data/uploads"),
		AdminPassword:   folio.MustEnv("ADMIN_PASSWORD"),
		SessionSecret:   folio.MustEnv("ADMIN_SESSION_SECRET"),
		CookieSecure:    strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
		ListingCacheTTL: ttl,
		DisableMetrics:  strings.EqualFold(os.Getenv("DISABLE_METRICS"), "true"),
		PageSize:        pageSize,
	},
		folio.WithLogger(log),
		folio.WithStaticDir(folio.EnvOr("STATIC_DIR", "public")),
	)
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

func newLogger(format, level string) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	switch format {
	case "json":
		log.Formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	default:
		log.Formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339}
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.Level = lvl
	}
	return log
}

func printUsage() {
	fmt.Println(`folio - portfolio, storefront and blog backend

Usage:
  folio <command>

Commands:
  serve      Start the HTTP server (configured from the environment / .env)
  version    Print the folio version
  help       Show this help message

Environment:
  ADMIN_PASSWORD, ADMIN_SESSION_SECRET   required
  SITE_NAME, SITE_URL, SITE_DESCRIPTION, SITE_AUTHOR
  ADDR, DATABASE_PATH, UPLOADS_DIR, STATIC_DIR
  LISTING_CACHE_TTL, PAGE_SIZE, COOKIE_SECURE, DISABLE_METRICS
  LOG_FORMAT (text|json), LOG_LEVEL`)
}
