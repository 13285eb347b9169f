package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheItem 包装缓存数据和过期时间
type cacheItem[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// Cache 带 TTL 的本地 LRU 缓存，由调用方持有，不再使用全局单例
type Cache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
	now      func() time.Time
}

// NewCache 创建容量为 size 的缓存
func NewCache[V any](size int) (*Cache[V], error) {
	return NewCacheWithEvict[V](size, nil)
}

// NewCacheWithEvict 条目被淘汰、删除或过期清理时回调 onEvict
func NewCacheWithEvict[V any](size int, onEvict func(key string, value V)) (*Cache[V], error) {
	var cb func(string, cacheItem[V])
	if onEvict != nil {
		cb = func(key string, item cacheItem[V]) { onEvict(key, item.Data) }
	}
	l, err := lru.NewWithEvict[string, cacheItem[V]](size, cb)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lruCache: l, now: time.Now}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *Cache[V]) Set(key string, data V, ttl time.Duration) {
	c.lruCache.Add(key, cacheItem[V]{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，不存在或已过期时 ok 为 false
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}

	// 检查过期
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}

	return val.Data, true
}

// Touch 刷新过期时间，用于滑动过期的会话
func (c *Cache[V]) Touch(key string, ttl time.Duration) bool {
	val, ok := c.Get(key)
	if !ok {
		return false
	}
	c.Set(key, val, ttl)
	return true
}

// Delete 删除指定缓存
func (c *Cache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

func (c *Cache[V]) Len() int {
	return c.lruCache.Len()
}
