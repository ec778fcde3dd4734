// Package config handles configuration for the index service, including
// defaults, a JSON file overlay, environment variables and command-line
// flags.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/dbx"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// Index backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendPebble   = "pebble"
)

// Config holds runtime settings of the index service.
//
// Fields:
//   - GRPCAddr / MetricsAddr: bind addresses of the gRPC API and the
//     Prometheus endpoint. An empty MetricsAddr disables metrics serving.
//   - IndexBackend: postgres, sqlite or pebble. DatabaseDSN is used by the
//     SQL backends and PebbleDir by pebble (empty means in memory).
//   - KeywordsFile / KeywordMaxLength: keyword directory for long strings.
//   - DefaultScanInterval: period of "every" endpoints without interval.
//   - Endpoints: registered at startup and after a reset when missing.
type Config struct {
	GRPCAddr            string
	MetricsAddr         string
	IndexBackend        string
	DatabaseDSN         string
	PebbleDir           string
	KeywordsFile        string
	KeywordMaxLength    int
	DefaultScanInterval time.Duration
	MaxConcurrentScans  int
	ScanPageSize        int
	CacheSize           int
	CacheTTL            time.Duration
	HTTPTimeout         time.Duration
	LogLevel            string
	LogFormat           string
	S3Region            string
	S3AccessKey         string
	S3SecretKey         string
	S3BaseEndpoint      string
	Endpoints           []*models.Endpoint
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.GRPCAddr = ":50051"
	c.MetricsAddr = ":9090"
	c.IndexBackend = BackendSQLite
	c.DatabaseDSN = "file:aasindex.db?_pragma=busy_timeout(5000)"
	c.PebbleDir = "aasindex.pebble"
	c.KeywordMaxLength = 256
	c.DefaultScanInterval = time.Hour
	c.MaxConcurrentScans = 4
	c.ScanPageSize = 100
	c.CacheSize = 256
	c.CacheTTL = 5 * time.Minute
	c.HTTPTimeout = 30 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "auto"
	c.S3Region = "us-east-1"
}

// Validate checks values the service cannot start with.
func (c *Config) Validate() error {
	switch c.IndexBackend {
	case BackendPostgres, BackendSQLite:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("config: database dsn is required for %s", c.IndexBackend)
		}
	case BackendPebble:
	default:
		return fmt.Errorf("config: unknown index backend %q", c.IndexBackend)
	}
	if c.MaxConcurrentScans <= 0 {
		return fmt.Errorf("config: max concurrent scans must be positive")
	}
	for _, e := range c.Endpoints {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("config: endpoint %q: %w", e.Name, err)
		}
	}
	return nil
}

// Dialect returns the SQL dialect of a SQL backend.
func (c *Config) Dialect() (dbx.Dialect, error) {
	return dbx.ParseDialect(c.IndexBackend)
}
