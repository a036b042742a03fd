// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheSize bounds the number of cached query results.
	DefaultCacheSize = 128
	// DefaultCacheTTL is how long a cached result stays valid. Index
	// mutations do not invalidate entries, so the TTL is kept short.
	DefaultCacheTTL = 60 * time.Second
)

// resultCache memoizes query results keyed by the full request shape.
type resultCache struct {
	lru *expirable.LRU[string, *Result]
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &resultCache{lru: expirable.NewLRU[string, *Result](size, nil, ttl)}
}

// cacheKey builds a deterministic key from everything that shapes a result.
func cacheKey(namespaces []string, primary, query string, p Params) string {
	return fmt.Sprintf("%s|%s|%s|%d|%g|%s|%v|%d|%g",
		strings.Join(namespaces, ","), primary, query,
		p.TopK, p.Alpha, p.Method, p.UseRerank, p.RerankTopK, p.BoostFactor)
}

// get returns a shallow copy of the cached result, flagged as cached, so
// callers can't mutate the stored entry.
func (c *resultCache) get(key string) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	cached, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	out := *cached
	out.Cached = true
	return &out, true
}

func (c *resultCache) add(key string, result *Result) {
	if c == nil {
		return
	}
	c.lru.Add(key, result)
}

func (c *resultCache) purge() {
	if c != nil {
		c.lru.Purge()
	}
}
