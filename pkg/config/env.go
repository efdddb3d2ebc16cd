package config

import (
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable bpdoc reads.
const EnvPrefix = "BPDOC_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays BPDOC_* variables onto c. Empty values are ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("SOURCE", &c.Source)
	e.str("KIND", &c.Kind)

	e.integer("CHUNK_SIZE", &c.Export.ChunkSize)
	e.integer("WORKERS", &c.Export.Workers)
	e.integer("RETRIES", &c.Export.Retries)
	e.duration("RETRY_DELAY", &c.Export.RetryDelay)

	e.duration("WINDOW", &c.Watch.Window)
	e.integer("BATCH_THRESHOLD", &c.Watch.BatchThreshold)
	e.duration("BATCH_EXTENSION", &c.Watch.BatchExtension)
	e.duration("PULSE", &c.Watch.Pulse)
	e.str("STATUS_ADDR", &c.Watch.Status)

	e.str("SINK", &c.Sink.Type)
	e.str("OUT", &c.Sink.Dir)
	e.str("S3_ENDPOINT", &c.Sink.S3.Endpoint)
	e.str("S3_REGION", &c.Sink.S3.Region)
	e.str("S3_ACCESS_KEY", &c.Sink.S3.AccessKey)
	e.str("S3_SECRET_KEY", &c.Sink.S3.SecretKey)
	e.str("S3_BUCKET", &c.Sink.S3.Bucket)
	e.str("S3_PREFIX", &c.Sink.S3.Prefix)
	e.boolean("S3_USE_SSL", &c.Sink.S3.UseSSL)
	e.str("POSTGRES_DSN", &c.Sink.Postgres.DSN)
	e.str("POSTGRES_TABLE", &c.Sink.Postgres.Table)
	e.str("MONGO_URI", &c.Sink.Mongo.URI)
	e.str("MONGO_DATABASE", &c.Sink.Mongo.Database)
	e.str("MONGO_COLLECTION", &c.Sink.Mongo.Collection)

	e.str("CACHE", &c.Cache.Type)
	e.str("CACHE_DIR", &c.Cache.Dir)
	e.duration("CACHE_TTL", &c.Cache.TTL)
	e.str("REDIS_ADDR", &c.Cache.Redis.Addr)
	e.str("REDIS_PASSWORD", &c.Cache.Redis.Password)
	e.integer("REDIS_DB", &c.Cache.Redis.DB)
	e.str("REDIS_PREFIX", &c.Cache.Redis.Prefix)

	return e.err
}

// envReader reads typed variables and keeps the first parse error.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = d
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) fail(name, value string, err error) {
	if e.err == nil {
		e.err = invalid("%s%s=%q: %v", EnvPrefix, name, value, err)
	}
}
