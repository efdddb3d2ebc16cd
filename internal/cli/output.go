package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"

	"github.com/matzehuels/bpdoc/pkg/cache"
	"github.com/matzehuels/bpdoc/pkg/config"
	"github.com/matzehuels/bpdoc/pkg/sink"
)

// output is an opened document sink and everything that must be closed
// with it.
type output struct {
	sink   sink.Sink
	cached *sink.Cached // Nil when writes are not deduplicated
	where  string       // Human-readable destination
	close  []func() error
}

// Close releases connections in reverse order of opening.
func (o *output) Close() error {
	var errs []error
	for i := len(o.close) - 1; i >= 0; i-- {
		if err := o.close[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// openOutput opens the configured sink, wrapped in a hash-skipping cache
// unless noCache is set or the sink is in-memory.
func (c *CLI) openOutput(ctx context.Context, cfg *config.Config, noCache bool) (*output, error) {
	out := &output{}
	base, where, err := c.openSink(ctx, cfg, out)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	out.sink, out.where = base, where
	if noCache || cfg.Sink.Type == config.SinkMemory || cfg.Cache.Type == config.CacheNone {
		return out, nil
	}

	hashes, err := openCache(ctx, cfg)
	if err != nil {
		c.Logger.Warn("hash cache unavailable, writing every document", "error", err)
		return out, nil
	}
	out.close = append(out.close, hashes.Close)

	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "out:"+cache.Hash([]byte(where))[:12]+":")
	cached, err := sink.NewCached(base, hashes, keyer, c.Logger)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	cached.TTL = cfg.Cache.TTL
	out.sink, out.cached = cached, cached
	return out, nil
}

func (c *CLI) openSink(ctx context.Context, cfg *config.Config, out *output) (sink.Sink, string, error) {
	switch cfg.Sink.Type {
	case config.SinkFile:
		dir, err := filepath.Abs(cfg.Sink.Dir)
		if err != nil {
			return nil, "", err
		}
		s, err := sink.NewFile(dir)
		return s, "file:" + dir, err

	case config.SinkMemory:
		return sink.NewMemory(), "memory", nil

	case config.SinkS3:
		s3 := cfg.Sink.S3
		s, err := sink.NewS3(sink.S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			UseSSL:    s3.UseSSL,
		})
		return s, fmt.Sprintf("s3://%s/%s/%s", s3.Endpoint, s3.Bucket, s3.Prefix), err

	case config.SinkPostgres:
		s, err := sink.NewPostgres(ctx, cfg.Sink.Postgres.DSN, cfg.Sink.Postgres.Table)
		if err != nil {
			return nil, "", err
		}
		out.close = append(out.close, s.Close)
		return s, "postgres:" + s.Table() + "@" + cache.Hash([]byte(cfg.Sink.Postgres.DSN))[:12], nil

	case config.SinkMongo:
		m := cfg.Sink.Mongo
		s, err := sink.NewMongo(ctx, sink.MongoConfig{URI: m.URI, Database: m.Database, Collection: m.Collection})
		if err != nil {
			return nil, "", err
		}
		out.close = append(out.close, func() error { return s.Close(context.WithoutCancel(ctx)) })
		return s, "mongo:" + m.Database + "." + m.Collection + "@" + cache.Hash([]byte(m.URI))[:12], nil
	}
	return nil, "", fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
}

// openCache opens the configured hash cache.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Type {
	case config.CacheRedis:
		r := cfg.Cache.Redis
		return cache.NewRedisCache(ctx, cache.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB, Prefix: r.Prefix})
	case config.CacheNone:
		return cache.NewNullCache(), nil
	default:
		return cache.NewFileCache(cfg.Cache.Dir)
	}
}
