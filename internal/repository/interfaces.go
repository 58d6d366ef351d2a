// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/hitoshi/boiler/internal/model"
)

// Repository は整数IDを持つエンティティの汎用CRUDインターフェース。
// 各メソッドは呼び出しごとに専用の接続を1本取得し、戻る前に必ず解放する。
// 接続・クエリの失敗はラップして返し、リトライはしない。
type Repository[T model.Entity] interface {
	// All は全行をストアの既定順で返す。
	All(ctx context.Context) ([]T, error)

	// GetByID は指定IDの行を参照先も含めて返す。
	// 見つからない場合はmodel.ErrNotFoundを返す。
	GetByID(ctx context.Context, id int) (*T, error)

	// Delete は指定IDの行を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, id int) error

	// Insert は新しい行を作成し、払い出されたIDをmに書き戻して返す。
	Insert(ctx context.Context, m *T) (int, error)

	// Update は既存行の全カラムを上書きする。
	// IDが1未満の場合はmodel.ErrInvalidOperation、行が無い場合はmodel.ErrNotFoundを返す。
	Update(ctx context.Context, m *T) (int, error)

	// Where は条件式に一致する行を返す。
	Where(ctx context.Context, pred clause.Expression) ([]T, error)

	// WhereFields はカラムと値の組をANDで結合した等価条件に一致する行を返す。
	WhereFields(ctx context.Context, fields map[string]any) ([]T, error)

	// Single は条件式にちょうど1行だけ一致する行を返す。
	// 0行または複数行の場合はmodel.ErrQueryAmbiguityを返す。
	Single(ctx context.Context, pred clause.Expression) (*T, error)

	// SingleOrDefault はSingleと同じだが、あらゆる失敗をnilとして返す。
	SingleOrDefault(ctx context.Context, pred clause.Expression) *T
}

// UserAuthRepository は資格情報ストアのログインユーザー永続化インターフェース。
type UserAuthRepository interface {
	// FindByUserName はユーザー名で検索する。見つからない場合はnilを返す。
	FindByUserName(ctx context.Context, userName string) (*model.UserAuth, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int) (*model.UserAuth, error)

	// Create はユーザーを作成し、払い出されたIDを書き戻す。
	Create(ctx context.Context, user *model.UserAuth) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}
