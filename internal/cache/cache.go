// Package cache provides the Cache interface and Memory, an in-process LRU
// cache with TTL expiration. The response-cache plugin keeps its own store
// and does not use this package.
package cache

import "github.com/ferro-labs/agentrouter/providers"

// Cache defines the interface for response caching.
type Cache interface {
	Get(key string) (*providers.Response, bool)
	Set(key string, resp *providers.Response)
	Delete(key string)
	Len() int
	Clear()
}
