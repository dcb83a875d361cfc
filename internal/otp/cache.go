package otp

import (
	"time"

	"github.com/bluele/gcache"
)

// planCache keeps successful plan response bodies keyed by request URL.
// Only raw bodies are cached, so callers that vary the trip name still get
// freshly built legs.
type planCache struct {
	c gcache.Cache
}

func newPlanCache(size int, ttl time.Duration) *planCache {
	if size <= 0 {
		return nil
	}
	b := gcache.New(size).LRU()
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	return &planCache{c: b.Build()}
}

func (pc *planCache) get(key string) ([]byte, bool) {
	if pc == nil {
		return nil, false
	}
	v, err := pc.c.Get(key)
	if err != nil {
		return nil, false
	}
	body, ok := v.([]byte)
	return body, ok
}

func (pc *planCache) set(key string, body []byte) {
	if pc == nil {
		return
	}
	_ = pc.c.Set(key, body)
}
