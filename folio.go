// Package folio is the backend core for a portfolio, storefront and blog
// site built with Go, Echo and SQLite. Blog posts, products and projects
// share one publishing lifecycle and one slug scheme, and are served as JSON
// with an authenticated admin API for editing.
package folio

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// App is the central folio application. It wires together the store,
// collections, cache, handlers and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *ListingCache
	Log    *logrus.Logger

	Blogs    *Collection[BlogPost, *BlogPost]
	Products *Collection[Product, *Product]
	Projects *Collection[Project, *Project]

	Assets   AssetStore
	Mailer   Mailer
	Checkout CheckoutProvider

	loginLimiter   *Limiter
	contactLimiter *Limiter
	customRoutes   []func(*App)
	staticDir      string
	now            func() time.Time
	initialized    bool
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	a := &App{
		Config:    cfg,
		Echo:      e,
		Log:       logrus.New(),
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init opens the store and registers middleware and routes without
// listening. Start calls it; tests call it directly and drive a.Echo.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("folio: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("folio: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("folio: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewListingCache(a.Config.ListingCacheTTL)

	a.Blogs = NewCollection[BlogPost](store)
	a.Products = NewCollection[Product](store)
	a.Projects = NewCollection[Project](store)
	invalidate := func(kind Kind) {
		a.Cache.Invalidate()
		a.Log.WithField("kind", kind).Debug("listing cache flushed")
	}
	a.Blogs.OnChange = invalidate
	a.Products.OnChange = invalidate
	a.Projects.OnChange = invalidate
	if a.now != nil {
		a.Blogs.SetClock(a.now)
		a.Products.SetClock(a.now)
		a.Projects.SetClock(a.now)
	}

	if a.Assets == nil {
		a.Assets = &DiskAssets{Dir: a.Config.UploadsDir, URLPrefix: "/uploads/"}
	}
	if a.Mailer == nil {
		a.Mailer = LogMailer{Log: a.Log}
	}

	a.loginLimiter = NewLimiter(5, time.Minute)
	a.contactLimiter = NewLimiter(3, 10*time.Minute)

	if !a.Config.DisableMetrics {
		registerMetrics()
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

// Start initializes the app and starts the server. It blocks until the
// server stops; http.ErrServerClosed is not reported.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.Log.WithField("addr", a.Config.Addr).Info("folio listening")
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	e.Static("/uploads", a.Config.UploadsDir)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog/:slug/", a.handlePost)
	if !a.Config.DisableMetrics {
		e.GET("/metrics", metricsHandler())
	}

	api := e.Group("/api")
	api.POST("/contact", a.handleContact)
	api.POST("/checkout", a.handleCheckout)

	api.POST("/admin/login", a.handleLogin)
	api.POST("/admin/logout", handleLogout)
	api.GET("/admin/session", handleSession)

	admin := api.Group("/admin", requireAdmin)
	admin.GET("/images", a.handleAssetList)
	admin.POST("/images", a.handleAssetUpload)
	admin.DELETE("/images/:filename", a.handleAssetDelete)

	registerCollection(a, api, admin, a.Blogs)
	registerCollection(a, api, admin, a.Products)
	registerCollection(a, api, admin, a.Projects)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.contactLimiter != nil {
		a.contactLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		logrus.Fatalf("folio: required environment variable %s is not set", key)
	}
	return v
}
