package cache

// ScopedKeyer wraps a Keyer with a prefix so that several tenants can share
// one backend. The API server scopes keys by session.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "session:"+id+":")
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

// GraphKey generates a prefixed critical-graph key.
func (k *ScopedKeyer) GraphKey(datasetHash string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(datasetHash, opts)
}

// ResultKey generates a prefixed result key. graphKey is passed through
// unchanged, so it may already carry the prefix.
func (k *ScopedKeyer) ResultKey(graphKey string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(graphKey, opts)
}
