package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm"
)

// WriteFilter はINSERT/UPDATEのSQL生成直前にエンティティごとに呼ばれるフック。
// entityは行に対応する構造体へのポインタ。
// 書き込みを中断する場合はstmt.DB.AddErrorでエラーを積む。
type WriteFilter func(ctx context.Context, stmt *gorm.Statement, entity any)

const (
	insertFilterName = "boiler:insert_filter"
	updateFilterName = "boiler:update_filter"
)

// RegisterWriteFilters はプロセス全体の書き込みパイプラインにフィルタを登録する。
// dbから派生するすべてのセッション・接続のCreate/Updateに適用される。
// nilのフィルタは登録しない。
func RegisterWriteFilters(db *gorm.DB, insert, update WriteFilter) error {
	if insert != nil {
		if err := db.Callback().Create().Before("gorm:create").
			Register(insertFilterName, writeFilterCallback(insert)); err != nil {
			return fmt.Errorf("failed to register insert filter: %w", err)
		}
	}
	if update != nil {
		if err := db.Callback().Update().Before("gorm:update").
			Register(updateFilterName, writeFilterCallback(update)); err != nil {
			return fmt.Errorf("failed to register update filter: %w", err)
		}
	}
	return nil
}

func writeFilterCallback(filter WriteFilter) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Schema == nil {
			return
		}
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		forEachRow(tx.Statement.ReflectValue, func(entity any) {
			filter(ctx, tx.Statement, entity)
		})
	}
}

// forEachRow は単一行・複数行のどちらの書き込みでも行ごとにfnを呼ぶ。
func forEachRow(rv reflect.Value, fn func(entity any)) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			forEachRow(reflect.Indirect(rv.Index(i)), fn)
		}
	case reflect.Struct:
		if rv.CanAddr() {
			fn(rv.Addr().Interface())
		}
	}
}

// StatementRecorder はステートメントの実行結果を記録する。
type StatementRecorder interface {
	RecordStatement(table, operation, result string, duration time.Duration)
}

const statementStartKey = "boiler:statement_start"

// RegisterStatementMetrics はCRUDの各ステートメントの実行結果をrecorderに通知するコールバックを登録する。
func RegisterStatementMetrics(db *gorm.DB, recorder StatementRecorder) error {
	cb := db.Callback()
	registrations := []struct {
		operation string
		before    func(name string, fn func(*gorm.DB)) error
		after     func(name string, fn func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, r := range registrations {
		if err := r.before("boiler:metrics_start_"+r.operation, startStatementTimer); err != nil {
			return fmt.Errorf("failed to register %s metrics callback: %w", r.operation, err)
		}
		if err := r.after("boiler:metrics_"+r.operation, recordStatement(recorder, r.operation)); err != nil {
			return fmt.Errorf("failed to register %s metrics callback: %w", r.operation, err)
		}
	}
	return nil
}

func startStatementTimer(tx *gorm.DB) {
	tx.InstanceSet(statementStartKey, time.Now())
}

func recordStatement(recorder StatementRecorder, operation string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		var duration time.Duration
		if v, ok := tx.InstanceGet(statementStartKey); ok {
			if start, ok := v.(time.Time); ok {
				duration = time.Since(start)
			}
		}

		result := "ok"
		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			result = "error"
		}

		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}

		recorder.RecordStatement(table, operation, result, duration)
	}
}
