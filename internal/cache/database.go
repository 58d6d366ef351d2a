package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sessionRow はsessionsテーブルの1行。
type sessionRow struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Data      string    `gorm:"column:data"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (sessionRow) TableName() string { return "sessions" }

// DBClient はsessionsテーブルを保存先とするキャッシュ。
// 複数プロセス間でセッションを共有できる。
type DBClient struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBClient はDBClientを生成する。
func NewDBClient(db *gorm.DB) *DBClient {
	return &DBClient{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get はキーに対応する値を返す。期限切れの行は返さない。
func (c *DBClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row sessionRow
	err := c.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", key, c.now()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return []byte(row.Data), true, nil
}

// Set は値を保存する。既存のキーは値と有効期限を上書きする。
func (c *DBClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now()
	row := sessionRow{
		ID:        key,
		Data:      string(value),
		ExpiresAt: expiresAt(now, ttl),
		CreatedAt: now,
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Remove はキーを削除する。
func (c *DBClient) Remove(ctx context.Context, key string) error {
	if err := c.db.WithContext(ctx).Where("id = ?", key).Delete(&sessionRow{}).Error; err != nil {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れの行を削除し、削除件数を返す。
func (c *DBClient) DeleteExpired(ctx context.Context) (int64, error) {
	result := c.db.WithContext(ctx).Where("expires_at <= ?", c.now()).Delete(&sessionRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// compile-time interface check
var _ Client = (*DBClient)(nil)
