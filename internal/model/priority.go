package model

// Priority はTodoの優先度マスタを表す。
type Priority struct {
	ID    int    `gorm:"column:id;primaryKey" json:"id"`
	Name  string `gorm:"column:name" json:"name"`
	Level int    `gorm:"column:level" json:"level"`
	Audit
}

// GetID はIDを返す。
func (p Priority) GetID() int { return p.ID }

// TableName はテーブル名を返す。
func (Priority) TableName() string { return "priorities" }
