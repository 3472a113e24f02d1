package results

import (
	"hash/fnv"
	"strings"
	"sync"
)

// registryStripes bounds the lock table no matter how many users are seen.
const registryStripes = 256

// Registry hands out Caches keyed prefix:uid. Every Cache for a key takes the
// same striped lock, so each key has a single writer while the registry holds
// no per-user state.
type Registry struct {
	kv     KV
	prefix string
	opts   []Option
	locks  [registryStripes]sync.Mutex
}

// NewRegistry creates a registry whose per-user keys are prefix:uid. A prefix
// inside the corrupt-backup namespace falls back to DefaultKey.
func NewRegistry(kv KV, prefix string, opts ...Option) *Registry {
	if prefix == "" || strings.HasPrefix(prefix+":", BackupPrefix) {
		prefix = DefaultKey
	}
	return &Registry{kv: kv, prefix: prefix, opts: opts}
}

// For returns the cache of uid.
func (r *Registry) For(uid string) *Cache {
	key := r.prefix + ":" + uid
	c := NewCache(r.kv, key, r.opts...)
	c.mu = r.lockFor(key)
	return c
}

func (r *Registry) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &r.locks[h.Sum32()%registryStripes]
}
