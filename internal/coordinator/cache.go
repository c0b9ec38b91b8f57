package coordinator

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"github.com/relayagent/agentd/internal/toolapi"
)

const (
	cacheTTL      = 5 * time.Minute
	cacheCapacity = 100
)

// cacheableTools lists the handlers whose results the coordinator may
// memoize by parameter tuple (§4.B), with each tool's own TTL: list_files
// for 3 minutes, search_files for 5 minutes. Both tools share one LRU of
// cacheCapacity (100) entries keyed by tool name and parameters; there is
// no separate, smaller entry limit for list_files.
var cacheableTools = map[string]time.Duration{
	"list_files":   3 * time.Minute,
	"search_files": 5 * time.Minute,
}

type cacheEntry struct {
	key       string
	result    toolapi.Result
	expiresAt time.Time
}

// resultCache is a mutex-guarded LRU keyed by tool-name+canonical
// parameters (spec.md §9: "Tool caches ... LRU access is guarded by a
// mutex").
type resultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	index    map[string]*list.Element
}

func newResultCache(ttl time.Duration, capacity int) *resultCache {
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

func cacheKey(name string, params json.RawMessage) string {
	var canon any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &canon); err == nil {
			if b, err := json.Marshal(canon); err == nil {
				return name + "\x00" + string(b)
			}
		}
	}
	return name + "\x00" + string(params)
}

func (c *resultCache) get(name string, params json.RawMessage) (toolapi.Result, bool) {
	ttl, cacheable := cacheableTools[name]
	if !cacheable {
		return toolapi.Result{}, false
	}

	key := cacheKey(name, params)
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return toolapi.Result{}, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.ll.Remove(el)
		delete(c.index, key)
		return toolapi.Result{}, false
	}
	_ = ttl
	c.ll.MoveToFront(el)
	return entry.result, true
}

func (c *resultCache) put(name string, params json.RawMessage, result toolapi.Result) {
	ttl, cacheable := cacheableTools[name]
	if !cacheable || !result.Success {
		return
	}

	key := cacheKey(name, params)
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		el.Value.(*cacheEntry).result = result
		el.Value.(*cacheEntry).expiresAt = time.Now().Add(ttl)
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, result: result, expiresAt: time.Now().Add(ttl)})
	c.index[key] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.index, oldest.Value.(*cacheEntry).key)
	}
}
