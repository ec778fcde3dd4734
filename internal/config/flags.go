package config

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/aasindex/internal/flagx"
)

// EnvPrefix prefixes the environment variables read by Flags.Load, e.g.
// AASINDEX_DATABASE_DSN for --database-dsn.
const EnvPrefix = "AASINDEX"

// Flags binds the configuration to a flag set. Values are applied on top
// of defaults and the JSON file, and only when given.
type Flags struct {
	fs         *pflag.FlagSet
	v          Config
	configFile string
}

// setters copy one flag's value from src to dst.
var setters = map[string]func(dst, src *Config){
	"grpc-addr":             func(d, s *Config) { d.GRPCAddr = s.GRPCAddr },
	"metrics-addr":          func(d, s *Config) { d.MetricsAddr = s.MetricsAddr },
	"index-backend":         func(d, s *Config) { d.IndexBackend = s.IndexBackend },
	"database-dsn":          func(d, s *Config) { d.DatabaseDSN = s.DatabaseDSN },
	"pebble-dir":            func(d, s *Config) { d.PebbleDir = s.PebbleDir },
	"keywords-file":         func(d, s *Config) { d.KeywordsFile = s.KeywordsFile },
	"keyword-max-length":    func(d, s *Config) { d.KeywordMaxLength = s.KeywordMaxLength },
	"default-scan-interval": func(d, s *Config) { d.DefaultScanInterval = s.DefaultScanInterval },
	"max-concurrent-scans":  func(d, s *Config) { d.MaxConcurrentScans = s.MaxConcurrentScans },
	"scan-page-size":        func(d, s *Config) { d.ScanPageSize = s.ScanPageSize },
	"cache-size":            func(d, s *Config) { d.CacheSize = s.CacheSize },
	"cache-ttl":             func(d, s *Config) { d.CacheTTL = s.CacheTTL },
	"http-timeout":          func(d, s *Config) { d.HTTPTimeout = s.HTTPTimeout },
	"log-level":             func(d, s *Config) { d.LogLevel = s.LogLevel },
	"log-format":            func(d, s *Config) { d.LogFormat = s.LogFormat },
	"s3-region":             func(d, s *Config) { d.S3Region = s.S3Region },
	"s3-access-key":         func(d, s *Config) { d.S3AccessKey = s.S3AccessKey },
	"s3-secret-key":         func(d, s *Config) { d.S3SecretKey = s.S3SecretKey },
	"s3-base-endpoint":      func(d, s *Config) { d.S3BaseEndpoint = s.S3BaseEndpoint },
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	f.v.LoadDefaults()
	v := &f.v

	fs.StringVarP(&f.configFile, "config", "c", "", "path to JSON config file")
	fs.StringVarP(&v.GRPCAddr, "grpc-addr", "a", v.GRPCAddr, "gRPC listen address")
	fs.StringVar(&v.MetricsAddr, "metrics-addr", v.MetricsAddr, "Prometheus listen address, empty to disable")
	fs.StringVarP(&v.IndexBackend, "index-backend", "b", v.IndexBackend, "index backend: postgres, sqlite or pebble")
	fs.StringVarP(&v.DatabaseDSN, "database-dsn", "d", v.DatabaseDSN, "database DSN of the SQL backends")
	fs.StringVar(&v.PebbleDir, "pebble-dir", v.PebbleDir, "pebble data directory, empty for in-memory")
	fs.StringVarP(&v.KeywordsFile, "keywords-file", "k", v.KeywordsFile, "keyword directory JSON file")
	fs.IntVar(&v.KeywordMaxLength, "keyword-max-length", v.KeywordMaxLength, "byte budget of keyword digests")
	fs.DurationVar(&v.DefaultScanInterval, "default-scan-interval", v.DefaultScanInterval, "scan period of endpoints without interval")
	fs.IntVar(&v.MaxConcurrentScans, "max-concurrent-scans", v.MaxConcurrentScans, "scans running at the same time")
	fs.IntVar(&v.ScanPageSize, "scan-page-size", v.ScanPageSize, "page size used while scanning")
	fs.IntVar(&v.CacheSize, "cache-size", v.CacheSize, "environments kept in the content cache")
	fs.DurationVar(&v.CacheTTL, "cache-ttl", v.CacheTTL, "lifetime of content cache entries")
	fs.DurationVar(&v.HTTPTimeout, "http-timeout", v.HTTPTimeout, "timeout of AAS API requests")
	fs.StringVar(&v.LogLevel, "log-level", v.LogLevel, "debug, info, warn or error")
	fs.StringVar(&v.LogFormat, "log-format", v.LogFormat, "json, text or auto")
	fs.StringVar(&v.S3Region, "s3-region", v.S3Region, "S3 region")
	fs.StringVar(&v.S3AccessKey, "s3-access-key", v.S3AccessKey, "S3 access key")
	fs.StringVar(&v.S3SecretKey, "s3-secret-key", v.S3SecretKey, "S3 secret key")
	fs.StringVar(&v.S3BaseEndpoint, "s3-base-endpoint", v.S3BaseEndpoint, "S3 base endpoint, e.g. http://127.0.0.1:9000")
	return f
}

// Load builds the configuration: defaults, then the JSON file, then
// environment variables, then flags given on the command line.
func (f *Flags) Load() (*Config, error) {
	if err := flagx.FromEnv(f.fs, EnvPrefix, os.LookupEnv); err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.LoadDefaults()
	if f.configFile != "" {
		if err := cfg.LoadJSON(f.configFile); err != nil {
			return nil, err
		}
	}
	f.fs.Visit(func(fl *pflag.Flag) {
		if set, ok := setters[fl.Name]; ok {
			set(cfg, &f.v)
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
