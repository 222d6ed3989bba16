package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	HubSpot HubSpotConfig `yaml:"hubspot" mapstructure:"hubspot"`
	Stage   StageConfig   `yaml:"stage" mapstructure:"stage"`
	Product ProductConfig `yaml:"product" mapstructure:"product"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// HubSpotConfig holds CRM credentials and client tuning.
type HubSpotConfig struct {
	Token             string  `yaml:"token" mapstructure:"token"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	// MaxRetries bounds retries of throttled/failed page requests.
	// -1 retries until the API recovers or the context is cancelled.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
	// MaxPages caps pagination per fetch. 0 means no cap; only useful
	// when debugging against a large portal.
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
}

// StageConfig configures the weekly funnel-by-stage report.
type StageConfig struct {
	OutputPath    string `yaml:"output_path" mapstructure:"output_path"`
	HorizonMonths int    `yaml:"horizon_months" mapstructure:"horizon_months"`
	Timezone      string `yaml:"timezone" mapstructure:"timezone"`
	// WeekOverride forces the week column label instead of deriving it
	// from the clock. Set by the --week flag, never from the config file.
	WeekOverride string `yaml:"-" mapstructure:"-"`
}

// ProductConfig configures the weekly product snapshot report.
type ProductConfig struct {
	OutputPath string   `yaml:"output_path" mapstructure:"output_path"`
	Products   []string `yaml:"products" mapstructure:"products"`
	// PropertyName is the internal name of the deal property holding the
	// product multi-select. When empty the property is discovered by label.
	PropertyName  string `yaml:"property_name" mapstructure:"property_name"`
	PropertyLabel string `yaml:"property_label" mapstructure:"property_label"`
	Timezone      string `yaml:"timezone" mapstructure:"timezone"`
	// WeekOverride forces the snapshot Monday instead of deriving it from
	// the clock. Set by the --week flag, never from the config file.
	WeekOverride string `yaml:"-" mapstructure:"-"`
}

// StoreConfig configures the optional run-ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from a local .env dotfile, config file, and
// environment. Environment variables override the config file; the dotfile
// never overrides variables already set in the environment.
func Load() (*Config, error) {
	// .env in the working directory, if present.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRMREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The private-app token and property overrides are conventionally
	// exported unprefixed.
	_ = v.BindEnv("hubspot.token", "CRMREPORT_HUBSPOT_TOKEN", "HUBSPOT_TOKEN", "HUBSPOT_PRIVATE_APP_TOKEN")
	_ = v.BindEnv("product.property_name", "CRMREPORT_PRODUCT_PROPERTY_NAME", "PRODUCT_PROPERTY_NAME")
	_ = v.BindEnv("product.property_label", "CRMREPORT_PRODUCT_PROPERTY_LABEL", "PRODUCT_PROPERTY_LABEL")

	// Defaults
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.requests_per_second", 4.0)
	v.SetDefault("hubspot.max_retries", -1)
	v.SetDefault("hubspot.max_pages", 0)
	v.SetDefault("stage.output_path", "weekly_report_dynamic.xlsx")
	v.SetDefault("stage.horizon_months", 18)
	v.SetDefault("stage.timezone", "Europe/Prague")
	v.SetDefault("product.output_path", "weekly_product_report.xlsx")
	v.SetDefault("product.products", []string{"Tapix", "EcoTrack", "ATM Nearby", "Labelling", "OpenData", "Subscription"})
	v.SetDefault("product.property_label", "Product")
	v.SetDefault("product.timezone", "Europe/Prague")
	v.SetDefault("store.driver", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode.
// Modes: "stage-report", "product-report", "runs".
func (c *Config) Validate(mode string) error {
	var issues []string

	switch mode {
	case "stage-report", "product-report":
		if c.HubSpot.Token == "" {
			issues = append(issues, "hubspot.token is required (set HUBSPOT_TOKEN or HUBSPOT_PRIVATE_APP_TOKEN)")
		}
		if c.HubSpot.RequestsPerSecond <= 0 {
			issues = append(issues, "hubspot.requests_per_second must be > 0")
		}
		if c.HubSpot.MaxPages < 0 {
			issues = append(issues, "hubspot.max_pages must be >= 0")
		}
		if mode == "stage-report" && c.Stage.HorizonMonths < 1 {
			issues = append(issues, "stage.horizon_months must be >= 1")
		}
		if mode == "product-report" {
			if len(c.Product.Products) == 0 {
				issues = append(issues, "product.products must list at least one product")
			}
			if c.Product.PropertyName == "" && c.Product.PropertyLabel == "" {
				issues = append(issues, "product.property_label or product.property_name is required")
			}
			if c.Product.WeekOverride != "" {
				if _, err := time.Parse("2006-01-02", c.Product.WeekOverride); err != nil {
					issues = append(issues, fmt.Sprintf("product week override must be a YYYY-MM-DD date, got %q", c.Product.WeekOverride))
				}
			}
		}
	case "runs":
		if c.Store.Driver == "" {
			issues = append(issues, "store.driver is required (sqlite or postgres)")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "", "sqlite":
		// sqlite falls back to a file in the working directory.
	case "postgres":
		if c.Store.DatabaseURL == "" {
			issues = append(issues, "store.database_url is required for the postgres driver")
		}
	default:
		issues = append(issues, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if len(issues) > 0 {
		return eris.New("config: " + strings.Join(issues, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
