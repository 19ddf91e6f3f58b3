// Package cache 提供按用途隔离的进程内 TTL 缓存。
package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultSize = 1024

// Entry 是缓存中的一条记录。过期后读取视为未命中（stale 路径除外）。
type Entry[V any] struct {
	Value  V         `json:"value"`
	Expiry time.Time `json:"expiry"`
}

// Options 控制单个缓存实例。
type Options struct {
	// Size 是最大条目数（LRU 淘汰）；<=0 使用默认值。
	Size int

	// AllowStale=true 时保留过期条目，供 GetStale 读取；
	// 否则过期条目在读取时被删除，GetStale 永远未命中。
	AllowStale bool

	// Now 可注入时钟（测试用）；nil 使用 time.Now。
	Now func() time.Time
}

// TTL 是一个用途（title / pool / calendar）的缓存实例。
//
// 约束：
// - 整值替换：Set 覆盖整个 value，不做字段级合并
// - 并发安全（底层 LRU 自带互斥）
type TTL[V any] struct {
	name  string
	opts  Options
	store *lru.Cache[string, Entry[V]]
}

func New[V any](name string, opts Options) (*TTL[V], error) {
	if opts.Size <= 0 {
		opts.Size = defaultSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if _, err := cleanName(name); err != nil {
		return nil, err
	}
	store, err := lru.New[string, Entry[V]](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("cache %s：%w", name, err)
	}
	return &TTL[V]{name: name, opts: opts, store: store}, nil
}

// Get 返回未过期的值。
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	if !c.opts.Now().Before(e.Expiry) {
		if !c.opts.AllowStale {
			c.store.Remove(key)
		}
		return zero, false
	}
	return e.Value, true
}

// Set 以 ttl 写入；ttl<=0 等价于删除。
func (c *TTL[V]) Set(key string, v V, ttl time.Duration) {
	if ttl <= 0 {
		c.store.Remove(key)
		return
	}
	c.store.Add(key, Entry[V]{Value: v, Expiry: c.opts.Now().Add(ttl)})
}

// GetStale 忽略过期时间返回最后一次写入的值及其过期时刻。
// 仅在 AllowStale=true 的实例上可用。
func (c *TTL[V]) GetStale(key string) (V, time.Time, bool) {
	var zero V
	if !c.opts.AllowStale {
		return zero, time.Time{}, false
	}
	e, ok := c.store.Get(key)
	if !ok {
		return zero, time.Time{}, false
	}
	return e.Value, e.Expiry, true
}

func (c *TTL[V]) Len() int { return c.store.Len() }

// Entries 返回当前所有条目（含过期条目）的快照副本。
func (c *TTL[V]) Entries() map[string]Entry[V] {
	out := make(map[string]Entry[V], c.store.Len())
	for _, k := range c.store.Keys() {
		if e, ok := c.store.Peek(k); ok {
			out[k] = e
		}
	}
	return out
}

// Restore 批量写入条目并保留原过期时刻；零过期时刻的条目被忽略。
func (c *TTL[V]) Restore(entries map[string]Entry[V]) int {
	n := 0
	for k, e := range entries {
		if e.Expiry.IsZero() {
			continue
		}
		if !c.opts.AllowStale && !c.opts.Now().Before(e.Expiry) {
			continue
		}
		c.store.Add(k, e)
		n++
	}
	return n
}
