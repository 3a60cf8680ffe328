package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Trigger  TriggerConfig  `mapstructure:"trigger"`
}

// PipelineConfig enumerates the per-run ETL parameters.
type PipelineConfig struct {
	CSVPath       string `mapstructure:"csv_path"`        // primary sales source
	JSONPath      string `mapstructure:"json_path"`       // product catalog file
	ProductKey    string `mapstructure:"product_key"`     // key holding the catalog array
	APIURL        string `mapstructure:"api_url"`         // supplementary remote source
	BatchSize     int    `mapstructure:"batch_size"`      // rows per load transaction
	MaxAPIRetries int    `mapstructure:"max_api_retries"` // bounded retry attempts
}

// CatalogConfig selects where the product catalog comes from.
// Source "file" reads the JSON file above; "database" queries a
// relational database through the dbclient connector.
type CatalogConfig struct {
	Source string `mapstructure:"source"` // "file" | "database"
	Driver string `mapstructure:"driver"` // "postgres" | "mysql"
	DSN    string `mapstructure:"dsn"`
	Query  string `mapstructure:"query"`
}

// DatabaseConfig points at the SQLite target store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig mirrors logging.Options.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// TriggerConfig enables scheduled or file-watch driven runs.
type TriggerConfig struct {
	Cron        string `mapstructure:"cron"`         // cron expression; empty = disabled
	WatchSource bool   `mapstructure:"watch_source"` // re-run when the CSV changes
}

// Load reads the yaml config at path, applying defaults and
// SALESPIPE_* environment overrides. A missing file is not an
// error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SALESPIPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be >= 1, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.MaxAPIRetries < 1 {
		return fmt.Errorf("pipeline.max_api_retries must be >= 1, got %d", c.Pipeline.MaxAPIRetries)
	}
	switch c.Catalog.Source {
	case "file", "database":
	default:
		return fmt.Errorf("catalog.source must be \"file\" or \"database\", got %q", c.Catalog.Source)
	}
	if c.Catalog.Source == "database" && (c.Catalog.Driver == "" || c.Catalog.DSN == "" || c.Catalog.Query == "") {
		return fmt.Errorf("catalog.source \"database\" requires driver, dsn and query")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.csv_path", "data/sales_data.csv")
	v.SetDefault("pipeline.json_path", "data/products.json")
	v.SetDefault("pipeline.product_key", "products")
	v.SetDefault("pipeline.api_url", "https://api.example.com/sales")
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("pipeline.max_api_retries", 3)

	v.SetDefault("catalog.source", "file")

	v.SetDefault("database.path", "output/clean_sales.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.max_size_mb", 5)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("trigger.cron", "")
	v.SetDefault("trigger.watch_source", false)
}
