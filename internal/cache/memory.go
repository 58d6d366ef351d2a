package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryClient はプロセス内のLRUキャッシュ。
// 容量を超えると最も使われていないエントリから追い出す。
type MemoryClient struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryClient はMemoryClientを生成する。
// maxTTLはエントリごとのTTLの上限で、0以下の場合は上限なし。
func NewMemoryClient(size int, maxTTL time.Duration) *MemoryClient {
	return &MemoryClient{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

// Get はキーに対応する値を返す。
func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

// Set は値を保存する。
func (c *MemoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.lru.Add(key, memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: expiresAt(c.now(), ttl),
	})
	return nil
}

// Remove はキーを削除する。
func (c *MemoryClient) Remove(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len は保持しているエントリ数を返す。
func (c *MemoryClient) Len() int {
	return c.lru.Len()
}

// compile-time interface check
var _ Client = (*MemoryClient)(nil)
