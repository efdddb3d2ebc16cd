package export

import (
	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/sink"
)

// Default option values.
const (
	DefaultChunkSize = 64
	DefaultWorkers   = 4
)

// Options configures a Coordinator.
type Options struct {
	// ChunkSize is the number of artifacts processed between yields.
	ChunkSize int

	// Workers is the number of goroutines reading and serializing snapshots
	// within a chunk. Writes are always sequential.
	Workers int

	// Backoff controls retries of sink writes marked retryable.
	Backoff sink.Backoff
}

// SetDefaults fills in zero values.
func (o *Options) SetDefaults() {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.Backoff.Attempts == 0 {
		o.Backoff = sink.DefaultBackoff
	}
}

// Validate checks option ranges.
func (o *Options) Validate() error {
	if o.ChunkSize < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "workers must be positive, got %d", o.Workers)
	}
	if o.Backoff.Delay < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "retry delay must not be negative")
	}
	return nil
}

// ValidateAndSetDefaults validates, then fills in defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if err := o.Validate(); err != nil {
		return err
	}
	o.SetDefaults()
	return nil
}

