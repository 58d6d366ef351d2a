package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hitoshi/boiler/internal/model"
)

// GormUserAuthRepo は資格情報ストア上のログインユーザーリポジトリ。
type GormUserAuthRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserAuthRepo はGormUserAuthRepoを生成する。
func NewUserAuthRepo(db *gorm.DB) *GormUserAuthRepo {
	return &GormUserAuthRepo{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// FindByUserName はユーザー名で検索する。見つからない場合はnilを返す。
func (r *GormUserAuthRepo) FindByUserName(ctx context.Context, userName string) (*model.UserAuth, error) {
	user := &model.UserAuth{}
	err := r.db.WithContext(ctx).Where(&model.UserAuth{UserName: userName}).First(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user auth by name: %w", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *GormUserAuthRepo) FindByID(ctx context.Context, id int) (*model.UserAuth, error) {
	user := &model.UserAuth{}
	err := r.db.WithContext(ctx).First(user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user auth by ID: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *GormUserAuthRepo) Create(ctx context.Context, user *model.UserAuth) error {
	now := r.now()
	user.CreatedOn = now
	user.UpdatedOn = now
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user auth: %w", err)
	}
	return nil
}

// UpdatePassword はパスワードハッシュを更新する。
func (r *GormUserAuthRepo) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	result := r.db.WithContext(ctx).Model(&model.UserAuth{}).Where("id = ?", id).
		Updates(map[string]any{
			"password_hash": passwordHash,
			"updated_on":    r.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user auth %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ UserAuthRepository = (*GormUserAuthRepo)(nil)
