package folio

import (
	"time"

	"github.com/sirupsen/logrus"
)

// SiteConfig holds all configuration for a folio site.
type SiteConfig struct {
	Name        string // Site name (default "Folio")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS
	Author      string

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/folio.db")
	UploadsDir   string // Upload directory served under /uploads (default "data/uploads")

	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	ListingCacheTTL time.Duration // Public listing cache TTL (default 5min)
	DisableMetrics  bool          // Do not expose /metrics

	PageSize    int // Default listing page size (default 10)
	MaxPageSize int // Upper bound for ?limit= (default 50)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Folio"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/folio.db"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "data/uploads"
	}
	if c.ListingCacheTTL == 0 {
		c.ListingCacheTTL = 5 * time.Minute
	}
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 50
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory served under /public (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger replaces the default logrus logger.
func WithLogger(log *logrus.Logger) Option {
	return func(a *App) {
		a.Log = log
	}
}

// WithMailer sets where contact form messages are delivered.
func WithMailer(m Mailer) Option {
	return func(a *App) {
		a.Mailer = m
	}
}

// WithCheckoutProvider enables POST /api/checkout.
func WithCheckoutProvider(p CheckoutProvider) Option {
	return func(a *App) {
		a.Checkout = p
	}
}

// WithAssetStore replaces the on-disk upload store.
func WithAssetStore(s AssetStore) Option {
	return func(a *App) {
		a.Assets = s
	}
}

// WithClock sets the time source for timestamps and publish dates.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
