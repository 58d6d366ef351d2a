package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hitoshi/boiler/internal/model"
)

// GormRepo はgormを使用した汎用リポジトリ。
// 接続を保持せず、呼び出しごとにプールから1本借りて返す。
type GormRepo[T model.Entity] struct {
	db     *gorm.DB
	entity string
}

// NewGormRepo はGormRepoを生成する。
func NewGormRepo[T model.Entity](db *gorm.DB) *GormRepo[T] {
	return &GormRepo[T]{
		db:     db,
		entity: reflect.TypeOf((*T)(nil)).Elem().Name(),
	}
}

// NewPriorityRepo は優先度リポジトリを生成する。
func NewPriorityRepo(db *gorm.DB) Repository[model.Priority] {
	return NewGormRepo[model.Priority](db)
}

// NewTodoRepo はTodoリポジトリを生成する。
func NewTodoRepo(db *gorm.DB) Repository[model.Todo] {
	return NewGormRepo[model.Todo](db)
}

// withConn は専用接続を1本取得してfnを実行する。
// 接続はfnの成否にかかわらず解放される。
func (r *GormRepo[T]) withConn(ctx context.Context, fn func(conn *gorm.DB) error) error {
	return r.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		return fn(tx.Session(&gorm.Session{NewDB: true}))
	})
}

// All は全行を返す。
func (r *GormRepo[T]) All(ctx context.Context) ([]T, error) {
	rows := []T{}
	err := r.withConn(ctx, func(conn *gorm.DB) error {
		return conn.Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.entity, err)
	}
	return rows, nil
}

// GetByID は指定IDの行を参照先とともに返す。
func (r *GormRepo[T]) GetByID(ctx context.Context, id int) (*T, error) {
	var m T
	err := r.withConn(ctx, func(conn *gorm.DB) error {
		return conn.Preload(clause.Associations).First(&m, id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s %d: %w", r.entity, id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %d: %w", r.entity, id, err)
	}
	return &m, nil
}

// Delete は指定IDの行を削除する。
func (r *GormRepo[T]) Delete(ctx context.Context, id int) error {
	err := r.withConn(ctx, func(conn *gorm.DB) error {
		return conn.Delete(new(T), id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", r.entity, id, err)
	}
	return nil
}

// Insert は新しい行を作成する。参照先の行は書き込まない。
func (r *GormRepo[T]) Insert(ctx context.Context, m *T) (int, error) {
	err := r.withConn(ctx, func(conn *gorm.DB) error {
		return conn.Omit(clause.Associations).Create(m).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s: %w", r.entity, err)
	}
	return checkedID((*m).GetID())
}

// Update は既存行の全カラムをゼロ値も含めて上書きする。参照先の行は書き込まない。
// 存在確認と書き込みは同一トランザクションではない。
func (r *GormRepo[T]) Update(ctx context.Context, m *T) (int, error) {
	id := (*m).GetID()
	if id < 1 {
		return 0, fmt.Errorf("cannot update %s without id: %w", r.entity, model.ErrInvalidOperation)
	}

	err := r.withConn(ctx, func(conn *gorm.DB) error {
		var existing T
		if err := conn.First(&existing, id).Error; err != nil {
			return err
		}
		return conn.Model(m).Select("*").Omit(clause.Associations).Updates(m).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%s %d: %w", r.entity, id, model.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update %s %d: %w", r.entity, id, err)
	}
	return checkedID(id)
}

// Where は条件式に一致する行を返す。predがnilの場合は全行を返す。
func (r *GormRepo[T]) Where(ctx context.Context, pred clause.Expression) ([]T, error) {
	rows := []T{}
	err := r.withConn(ctx, func(conn *gorm.DB) error {
		return conn.Where(pred).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.entity, err)
	}
	return rows, nil
}

// WhereFields はフィールドの等価条件をANDで結合して検索する。
// キーにはカラム名またはGoのフィールド名を指定できる。nilの値はIS NULLになる。
func (r *GormRepo[T]) WhereFields(ctx context.Context, fields map[string]any) ([]T, error) {
	pred, err := r.fieldEquality(fields)
	if err != nil {
		return nil, err
	}
	return r.Where(ctx, pred)
}

// Single は条件式にちょうど1行一致する行を返す。
func (r *GormRepo[T]) Single(ctx context.Context, pred clause.Expression) (*T, error) {
	var rows []T
	err := r.withConn(ctx, func(conn *gorm.DB) error {
		return conn.Where(pred).Limit(2).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query single %s: %w", r.entity, err)
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("single %s matched %d rows: %w", r.entity, len(rows), model.ErrQueryAmbiguity)
	}
	return &rows[0], nil
}

// SingleOrDefault はSingleの失敗をすべてnilとして返す。
func (r *GormRepo[T]) SingleOrDefault(ctx context.Context, pred clause.Expression) *T {
	return orDefault(r.Single(ctx, pred))
}

// orDefault はエラーを握りつぶしてnilを返す。握りつぶしたエラーはデバッグログにのみ残す。
func orDefault[T any](v *T, err error) *T {
	if err != nil {
		slog.Debug("single-or-default lookup returned no value",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return v
}

// fieldEquality はフィールド名と値のマップをカラムの等価条件に変換する。
func (r *GormRepo[T]) fieldEquality(fields map[string]any) (clause.Expression, error) {
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("failed to parse %s schema: %w", r.entity, err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return nil, nil
	}

	exprs := make([]clause.Expression, 0, len(keys))
	for _, k := range keys {
		field := stmt.Schema.LookUpField(k)
		if field == nil || field.DBName == "" {
			return nil, fmt.Errorf("field %q on %s: %w", k, r.entity, model.ErrUnknownField)
		}
		exprs = append(exprs, clause.Eq{
			Column: clause.Column{Table: stmt.Schema.Table, Name: field.DBName},
			Value:  fields[k],
		})
	}
	return clause.And(exprs...), nil
}

// checkedID はストアが払い出したIDが32bitに収まることを確認する。
func checkedID(id int) (int, error) {
	if int64(id) > math.MaxInt32 || int64(id) < math.MinInt32 {
		return 0, fmt.Errorf("id %d: %w", id, model.ErrIdentityOverflow)
	}
	return id, nil
}

// compile-time interface check
var (
	_ Repository[model.Priority] = (*GormRepo[model.Priority])(nil)
	_ Repository[model.Todo]     = (*GormRepo[model.Todo])(nil)
)
