package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/boiler/internal/cache"
)

const keyPrefix = "urn:session:"

// Key はセッションIDからキャッシュキーを生成する。
func Key(id string) string {
	return keyPrefix + id
}

// Resolver はキャッシュ上のセッションを取得・作成・保存する。
// 同一IDへの同時取得は1回のキャッシュ参照にまとめる。
type Resolver struct {
	cache cache.Client
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

// NewResolver はResolverを生成する。ttlはセッションの有効期間。
func NewResolver(c cache.Client, ttl time.Duration) *Resolver {
	return &Resolver{
		cache: c,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate は指定IDのセッションを返す。
// キャッシュに無い場合は未認証の新しいセッションを作成して保存する。
// 呼び出し側ごとに独立したコピーを返す。
// まとめた取得は先頭の呼び出し側のキャンセルから切り離し、各呼び出し側は自身のctxでのみ待機を打ち切る。
func (r *Resolver) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(id, func() (any, error) {
		return r.getOrCreate(flightCtx, id)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to get session: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session).clone(), nil
	}
}

func (r *Resolver) getOrCreate(ctx context.Context, id string) (*Session, error) {
	data, ok, err := r.cache.Get(ctx, Key(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if ok {
		var s Session
		if err := json.Unmarshal(data, &s); err == nil {
			return &s, nil
		}
		slog.Warn("discarding unreadable session",
			slog.String("session_id", id),
		)
	}

	now := r.now()
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		LastModified: now,
	}
	if err := r.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save はセッションをキャッシュに保存し、有効期限を延長する。
func (r *Resolver) Save(ctx context.Context, s *Session) error {
	s.LastModified = r.now()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.cache.Set(ctx, Key(s.ID), data, r.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Remove はセッションを削除する。
func (r *Resolver) Remove(ctx context.Context, id string) error {
	if err := r.cache.Remove(ctx, Key(id)); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
