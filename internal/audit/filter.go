// Package audit は書き込み時に作成者・更新者と日時を自動で設定する。
package audit

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/session"
)

// ProfileSource はリクエストのプロファイルを解決する。
type ProfileSource func(ctx context.Context) (*session.Profile, error)

// Filter は監査フィールドを設定する書き込みフィルタ。
// InsertFilterとUpdateFilterはdatabase.WriteFilterとして登録する。
type Filter struct {
	now     func() time.Time
	profile ProfileSource
}

// Option はFilterの設定を変更する。
type Option func(*Filter)

// WithClock は現在時刻の取得元を差し替える。
func WithClock(now func() time.Time) Option {
	return func(f *Filter) { f.now = now }
}

// WithProfileSource はプロファイルの解決方法を差し替える。
func WithProfileSource(src ProfileSource) Option {
	return func(f *Filter) { f.profile = src }
}

// NewFilter はFilterを生成する。
// 既定ではリクエストコンテキストのセッションからプロファイルを解決する。
func NewFilter(opts ...Option) *Filter {
	f := &Filter{
		now:     time.Now,
		profile: session.ProfileFromContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InsertFilter は作成者・更新者と日時を常に上書きする。
func (f *Filter) InsertFilter(ctx context.Context, stmt *gorm.Statement, entity any) {
	fields, ok := auditFields(entity)
	if !ok {
		return
	}
	profile, err := f.profile(ctx)
	if err != nil {
		stmt.DB.AddError(fmt.Errorf("failed to resolve profile for audit: %w", err))
		return
	}

	now := f.stamp()
	fields.CreatedBy = profile.Username
	fields.UpdatedBy = profile.Username
	fields.CreatedOn = now
	fields.UpdatedOn = now
}

// UpdateFilter は更新者と日時を上書きする。
// 作成日時・作成者が未設定の行は更新時の値で補完する。
func (f *Filter) UpdateFilter(ctx context.Context, stmt *gorm.Statement, entity any) {
	fields, ok := auditFields(entity)
	if !ok {
		return
	}
	profile, err := f.profile(ctx)
	if err != nil {
		stmt.DB.AddError(fmt.Errorf("failed to resolve profile for audit: %w", err))
		return
	}

	fields.UpdatedBy = profile.Username
	fields.UpdatedOn = f.stamp()

	if fields.CreatedOn.Before(model.Epoch) {
		fields.CreatedOn = fields.UpdatedOn
	}
	if strings.TrimSpace(fields.CreatedBy) == "" {
		fields.CreatedBy = fields.UpdatedBy
	}
}

// stamp は現在時刻をUTCかつマイクロ秒精度で返す。
// PostgreSQLのTIMESTAMPTZはマイクロ秒までしか保持しないため、書き戻す値を保存値と揃える。
func (f *Filter) stamp() time.Time {
	return f.now().UTC().Truncate(time.Microsecond)
}

var (
	auditedInterface = reflect.TypeOf((*model.Audited)(nil)).Elem()
	// reflect.Type -> bool
	auditedTypes sync.Map
)

// auditFields はentityが監査対象であれば監査フィールドを返す。
// 判定結果は型ごとにキャッシュする。
func auditFields(entity any) (*model.Audit, bool) {
	if entity == nil {
		return nil, false
	}
	t := reflect.TypeOf(entity)
	audited, ok := auditedTypes.Load(t)
	if !ok {
		audited, _ = auditedTypes.LoadOrStore(t, t.Implements(auditedInterface))
	}
	if !audited.(bool) {
		return nil, false
	}
	fields := entity.(model.Audited).AuditFields()
	return fields, fields != nil
}
