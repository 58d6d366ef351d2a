package model

import "time"

// UserAuth は資格情報ストアに保存されるログインユーザーを表す。
// 監査フィルタの対象外で、認証層が自身で日時を設定する。
type UserAuth struct {
	ID           int       `gorm:"column:id;primaryKey"`
	UserName     string    `gorm:"column:user_name"`
	Email        string    `gorm:"column:email"`
	DisplayName  string    `gorm:"column:display_name"`
	PasswordHash string    `gorm:"column:password_hash"`
	IsAdmin      bool      `gorm:"column:is_admin"`
	CreatedOn    time.Time `gorm:"column:created_on"`
	UpdatedOn    time.Time `gorm:"column:updated_on"`
}

// GetID はIDを返す。
func (u UserAuth) GetID() int { return u.ID }

// TableName はテーブル名を返す。
func (UserAuth) TableName() string { return "user_auths" }
