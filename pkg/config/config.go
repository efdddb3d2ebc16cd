// Package config loads bpdoc settings.
//
// Settings come from three layers, later layers winning:
//
//  1. a TOML file, bpdoc.toml in the working directory unless a path is given
//  2. environment variables prefixed BPDOC_, after .env is loaded if present
//  3. command-line flags, applied by the CLI
//
// A minimal file:
//
//	source = "Saved/Snapshots"
//
//	[sink]
//	type = "file"
//	dir  = "Docs/Blueprints"
//
//	[watch]
//	window = "2s"
//	pulse  = "500ms"
//
// Unknown keys are rejected so typos do not silently fall back to defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/host"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "bpdoc.toml"

// Sink types.
const (
	SinkFile     = "file"
	SinkMemory   = "memory"
	SinkS3       = "s3"
	SinkPostgres = "postgres"
	SinkMongo    = "mongo"
)

// Cache types.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config is the full bpdoc configuration.
type Config struct {
	Source string       `toml:"source"` // Directory of artifact snapshots
	Kind   string       `toml:"kind"`   // Artifact class to export and monitor
	Export ExportConfig `toml:"export"`
	Watch  WatchConfig  `toml:"watch"`
	Sink   SinkConfig   `toml:"sink"`
	Cache  CacheConfig  `toml:"cache"`
}

// ExportConfig tunes export runs.
type ExportConfig struct {
	ChunkSize  int           `toml:"chunk_size"`
	Workers    int           `toml:"workers"`
	Retries    int           `toml:"retries"`     // Attempts per sink write
	RetryDelay time.Duration `toml:"retry_delay"` // First backoff delay
}

// WatchConfig tunes monitoring sessions.
type WatchConfig struct {
	Window         time.Duration `toml:"window"`
	BatchThreshold int           `toml:"batch_threshold"`
	BatchExtension time.Duration `toml:"batch_extension"`
	Pulse          time.Duration `toml:"pulse"`  // Rescan and pulse interval
	Status         string        `toml:"status"` // Status listen address, empty disables
}

// SinkConfig selects and configures the document sink.
type SinkConfig struct {
	Type     string         `toml:"type"`
	Dir      string         `toml:"dir"`
	S3       S3Config       `toml:"s3"`
	Postgres PostgresConfig `toml:"postgres"`
	Mongo    MongoConfig    `toml:"mongo"`
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

// PostgresConfig configures a Postgres table.
type PostgresConfig struct {
	DSN   string `toml:"dsn"`
	Table string `toml:"table"`
}

// MongoConfig configures a MongoDB collection.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// CacheConfig configures the written-hash cache.
type CacheConfig struct {
	Type  string        `toml:"type"`
	Dir   string        `toml:"dir"`
	TTL   time.Duration `toml:"ttl"`
	Redis RedisConfig   `toml:"redis"`
}

// RedisConfig configures a Redis hash cache.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills in zero values. Export and watch tuning left at zero is
// resolved by the export and schedule packages.
func (c *Config) SetDefaults() {
	if c.Source == "" {
		c.Source = "."
	}
	if c.Kind == "" {
		c.Kind = host.DefaultKind
	}
	if c.Sink.Type == "" {
		c.Sink.Type = SinkFile
	}
	if c.Sink.Dir == "" {
		c.Sink.Dir = "docs"
	}
	if c.Sink.S3.Region == "" {
		c.Sink.S3.Region = "us-east-1"
	}
	if c.Cache.Type == "" {
		c.Cache.Type = CacheFile
	}
	if c.Watch.Pulse == 0 {
		c.Watch.Pulse = 500 * time.Millisecond
	}
}

// Validate checks that the selected sink and cache are usable.
func (c *Config) Validate() error {
	switch c.Sink.Type {
	case SinkFile:
		if strings.TrimSpace(c.Sink.Dir) == "" {
			return invalid("sink.dir is required for the file sink")
		}
	case SinkMemory:
	case SinkS3:
		if c.Sink.S3.Endpoint == "" || c.Sink.S3.Bucket == "" {
			return invalid("sink.s3.endpoint and sink.s3.bucket are required for the s3 sink")
		}
	case SinkPostgres:
		if c.Sink.Postgres.DSN == "" {
			return invalid("sink.postgres.dsn is required for the postgres sink")
		}
	case SinkMongo:
		if c.Sink.Mongo.URI == "" || c.Sink.Mongo.Database == "" {
			return invalid("sink.mongo.uri and sink.mongo.database are required for the mongo sink")
		}
	default:
		return invalid("unknown sink type %q (want file, memory, s3, postgres or mongo)", c.Sink.Type)
	}

	switch c.Cache.Type {
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return invalid("cache.redis.addr is required for the redis cache")
		}
	default:
		return invalid("unknown cache type %q (want file, redis or none)", c.Cache.Type)
	}

	switch {
	case c.Export.ChunkSize < 0:
		return invalid("export.chunk_size must not be negative")
	case c.Export.Workers < 0:
		return invalid("export.workers must not be negative")
	case c.Export.Retries < 0 || c.Export.RetryDelay < 0:
		return invalid("export retries and retry_delay must not be negative")
	case c.Watch.Window < 0 || c.Watch.BatchExtension < 0 || c.Watch.Pulse < 0:
		return invalid("watch durations must not be negative")
	case c.Cache.TTL < 0:
		return invalid("cache.ttl must not be negative")
	}
	return nil
}

// ValidateAndSetDefaults fills in defaults, then validates.
func (c *Config) ValidateAndSetDefaults() error {
	c.SetDefaults()
	return c.Validate()
}

// Load reads path, or DefaultFile if path is empty and it exists, then
// applies the environment. A .env file in the working directory is loaded
// first; variables already set are not overwritten.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	c := &Config{}
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := c.decodeFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes TOML text into a configuration without consulting the
// environment.
func Parse(text string) (*Config, error) {
	c := &Config{}
	md, err := toml.Decode(text, c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if err := undecoded(md, "config"); err != nil {
		return nil, err
	}
	if err := c.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	return undecoded(md, path)
}

func undecoded(md toml.MetaData, source string) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return invalid("%s: unknown keys %s", source, strings.Join(names, ", "))
}

func invalid(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidConfig, format, args...)
}

// String renders the configuration as TOML with secrets masked.
func (c *Config) String() string {
	masked := *c
	masked.Sink.S3.SecretKey = mask(masked.Sink.S3.SecretKey)
	masked.Sink.Postgres.DSN = mask(masked.Sink.Postgres.DSN)
	masked.Sink.Mongo.URI = mask(masked.Sink.Mongo.URI)
	masked.Cache.Redis.Password = mask(masked.Cache.Redis.Password)

	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(masked); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
