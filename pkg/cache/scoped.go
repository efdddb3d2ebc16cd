package cache

// ScopedKeyer wraps a Keyer with a prefix, so one cache can serve several
// output destinations without their hashes colliding.
//
// Example usage:
//
//	// Hashes for documents written under ./docs
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "out:"+Hash([]byte("./docs"))[:12]+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// DocumentKey generates a prefixed document key.
func (k *ScopedKeyer) DocumentKey(artifactPath string) string {
	return k.prefix + k.inner.DocumentKey(artifactPath)
}

// IndexKey generates a prefixed index key.
func (k *ScopedKeyer) IndexKey() string {
	return k.prefix + k.inner.IndexKey()
}
