// Package cache はセッションなどを保存するキーバリューキャッシュを提供する。
package cache

import (
	"context"
	"fmt"
	"time"
)

// Client はTTL付きのキーバリューキャッシュ。
// 期限切れのエントリは存在しないものとして扱う。
type Client interface {
	// Get はキーに対応する値を返す。存在しない場合はfalseを返す。
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set は値を保存する。ttlが0以下の場合は期限なしで保存する。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Remove はキーを削除する。存在しない場合もエラーにしない。
	Remove(ctx context.Context, key string) error
}

// Backend はキャッシュの保存先を表す。
type Backend string

const (
	// BackendMemory はプロセス内のLRUキャッシュ。
	BackendMemory Backend = "memory"
	// BackendDatabase はsessionsテーブル。
	BackendDatabase Backend = "database"
)

// ParseBackend は文字列からBackendを判別する。
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendMemory, BackendDatabase:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("unsupported cache backend: %q", s)
	}
}

// farFuture は期限なしのエントリに設定する有効期限。
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return farFuture
	}
	return now.Add(ttl)
}
