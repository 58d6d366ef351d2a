// Package model はドメインモデルを定義する。
package model

import "time"

// Epoch は監査日時が「未設定」であるかを判定する境界値。
// これより前のCreatedOnは一度も設定されていないものとして扱う。
var Epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Entity は整数IDを持つ永続化レコードを表す。
type Entity interface {
	GetID() int
}

// Audit は作成者・更新者と日時を保持する監査フィールド。
// エンティティに埋め込むとAuditedを満たす。
type Audit struct {
	CreatedOn time.Time `gorm:"column:created_on" json:"createdOn"`
	UpdatedOn time.Time `gorm:"column:updated_on" json:"updatedOn"`
	CreatedBy string    `gorm:"column:created_by" json:"createdBy"`
	UpdatedBy string    `gorm:"column:updated_by" json:"updatedBy"`
}

// AuditFields は監査フィールドへのポインタを返す。
func (a *Audit) AuditFields() *Audit {
	return a
}

// Audited は監査フィールドを公開するエンティティが満たすインターフェース。
// 型名ではなくこのメソッドの有無で監査対象かどうかを判定する。
type Audited interface {
	AuditFields() *Audit
}
