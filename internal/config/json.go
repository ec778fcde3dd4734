package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/dmitrijs2005/aasindex/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// both "1m30s" strings and integer nanoseconds are accepted. Fields left
// out of the file keep their current value.
type JsonConfig struct {
	GRPCAddr            string             `json:"grpc_addr"`
	MetricsAddr         *string            `json:"metrics_addr"`
	IndexBackend        string             `json:"index_backend"`
	DatabaseDSN         string             `json:"database_dsn"`
	PebbleDir           *string            `json:"pebble_dir"`
	KeywordsFile        string             `json:"keywords_file"`
	KeywordMaxLength    int                `json:"keyword_max_length"`
	DefaultScanInterval timex.Duration     `json:"default_scan_interval"`
	MaxConcurrentScans  int                `json:"max_concurrent_scans"`
	ScanPageSize        int                `json:"scan_page_size"`
	CacheSize           int                `json:"cache_size"`
	CacheTTL            timex.Duration     `json:"cache_ttl"`
	HTTPTimeout         timex.Duration     `json:"http_timeout"`
	LogLevel            string             `json:"log_level"`
	LogFormat           string             `json:"log_format"`
	S3Region            string             `json:"s3_region"`
	S3AccessKey         string             `json:"s3_access_key"`
	S3SecretKey         string             `json:"s3_secret_key"`
	S3BaseEndpoint      string             `json:"s3_base_endpoint"`
	Endpoints           []*models.Endpoint `json:"endpoints"`
}

// LoadJSON overlays the settings of the JSON file at path.
func (c *Config) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var j JsonConfig
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	j.apply(c)
	return nil
}

func (j *JsonConfig) apply(c *Config) {
	setString(&c.GRPCAddr, j.GRPCAddr)
	if j.MetricsAddr != nil {
		c.MetricsAddr = *j.MetricsAddr
	}
	setString(&c.IndexBackend, j.IndexBackend)
	setString(&c.DatabaseDSN, j.DatabaseDSN)
	if j.PebbleDir != nil {
		c.PebbleDir = *j.PebbleDir
	}
	setString(&c.KeywordsFile, j.KeywordsFile)
	setInt(&c.KeywordMaxLength, j.KeywordMaxLength)
	if j.DefaultScanInterval.Duration > 0 {
		c.DefaultScanInterval = j.DefaultScanInterval.Duration
	}
	setInt(&c.MaxConcurrentScans, j.MaxConcurrentScans)
	setInt(&c.ScanPageSize, j.ScanPageSize)
	setInt(&c.CacheSize, j.CacheSize)
	if j.CacheTTL.Duration > 0 {
		c.CacheTTL = j.CacheTTL.Duration
	}
	if j.HTTPTimeout.Duration > 0 {
		c.HTTPTimeout = j.HTTPTimeout.Duration
	}
	setString(&c.LogLevel, j.LogLevel)
	setString(&c.LogFormat, j.LogFormat)
	setString(&c.S3Region, j.S3Region)
	setString(&c.S3AccessKey, j.S3AccessKey)
	setString(&c.S3SecretKey, j.S3SecretKey)
	setString(&c.S3BaseEndpoint, j.S3BaseEndpoint)
	if j.Endpoints != nil {
		c.Endpoints = j.Endpoints
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
