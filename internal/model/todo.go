package model

import "time"

// Todo はユーザーのタスクを表す。
// Priorityは参照データで、GetByIDでのみ読み込まれる。
type Todo struct {
	ID          int        `gorm:"column:id;primaryKey" json:"id"`
	Title       string     `gorm:"column:title" json:"title"`
	Description string     `gorm:"column:description" json:"description"`
	PriorityID  *int       `gorm:"column:priority_id" json:"priorityId"`
	Priority    *Priority  `gorm:"foreignKey:PriorityID" json:"priority,omitempty"`
	IsComplete  bool       `gorm:"column:is_complete" json:"isComplete"`
	DueOn       *time.Time `gorm:"column:due_on" json:"dueOn,omitempty"`
	Audit
}

// GetID はIDを返す。
func (t Todo) GetID() int { return t.ID }

// TableName はテーブル名を返す。
func (Todo) TableName() string { return "todos" }
