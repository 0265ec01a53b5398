package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	BackendPostgres  = "postgres"
	BackendWordPress = "wordpress"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (DISCOUNTS_ prefix), flags, or YAML config files.
type Config struct {
	Addr            string   `default:"0.0.0.0:8080" usage:"API server listen address"`
	Backend         string   `default:"postgres" usage:"Rule and catalog storage: postgres or wordpress"`
	DatabaseURL     string   `usage:"PostgreSQL connection URL (DISCOUNTS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	BrandNamespaces []string `default:"product_brand,pwb-brand,pa_brand" usage:"Brand taxonomies probed for legacy brand rules" flag:"brand-namespaces"`
	Currency        string   `default:"€" usage:"Currency symbol used in price HTML"`
	WordPress       WordPressConfig
	Health          HealthConfig
	Graceful        GracefulConfig
}

// HealthConfig bounds the liveness checks.
type HealthConfig struct {
	MaxGoroutines int           `default:"10000" usage:"Goroutine count above which the process is not live" flag:"max-goroutines"`
	MaxGCPause    time.Duration `default:"1s"    usage:"GC pause above which the process is not live" flag:"max-gc-pause"`
}

// WordPressConfig points at an existing WooCommerce database.
type WordPressConfig struct {
	DSN         string `usage:"MySQL DSN of the WordPress database; must set parseTime=true" flag:"wordpress-dsn"`
	TablePrefix string `default:"wp_" usage:"WordPress table prefix" flag:"wordpress-table-prefix"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "DISCOUNTS",
		Files:     []string{"config.yaml", "/etc/discounts/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set DISCOUNTS_DATABASE_URL or DATABASE_URL")
		}
	case BackendWordPress:
		if c.WordPress.DSN == "" {
			return errors.New("wordpress DSN is required: set DISCOUNTS_WORDPRESS_DSN")
		}
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if len(c.BrandNamespaces) == 0 {
		return errors.New("at least one brand namespace is required")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT onto the
// DISCOUNTS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
