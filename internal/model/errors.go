package model

import (
	"errors"
	"fmt"
)

// リポジトリ層が返すエラー種別。
// 呼び出し側はerrors.Isで判定し、HTTP層でステータスコードに変換する。
var (
	// ErrNotFound は対象レコードが存在しないことを示す。
	ErrNotFound = errors.New("record not found")

	// ErrInvalidOperation はIDを持たないエンティティを更新しようとしたことを示す。
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrQueryAmbiguity は単一行を期待するクエリが0行または複数行に一致したことを示す。
	ErrQueryAmbiguity = errors.New("query did not match exactly one row")

	// ErrIdentityOverflow はストアが払い出したIDが32bitに収まらないことを示す。
	ErrIdentityOverflow = errors.New("identity does not fit in 32 bits")

	// ErrUnknownField は等価条件にエンティティに存在しないフィールドが指定されたことを示す。
	ErrUnknownField = errors.New("unknown field")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, record, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeRecordNotFound     = "RECORD_NOT_FOUND"
	ErrCodeInvalidOperation   = "INVALID_OPERATION"
	ErrCodeAmbiguousMatch     = "AMBIGUOUS_MATCH"
	ErrCodeCSRFTokenInvalid   = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewCSRFTokenError はCSRFトークン検証の失敗エラーを生成する。
func NewCSRFTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInvalidCredentialsError はユーザー名またはパスワードの誤りを表すエラーを生成する。
// ユーザーの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が不正です: %s", detail),
		Category: "validation",
		Action:   "入力内容を修正してください。",
	}
}

// NewRecordNotFoundError はレコード未検出エラーを生成する。
func NewRecordNotFoundError(entity string, id int) *APIError {
	return &APIError{
		Code:     ErrCodeRecordNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %d", entity, id),
		Category: "record",
		Action:   "IDを確認してください。",
	}
}

// NewInvalidOperationError はIDなし更新などの不正操作エラーを生成する。
func NewInvalidOperationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOperation,
		Message:  fmt.Sprintf("この操作は実行できません: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewAmbiguousMatchError は一意に特定できない検索結果のエラーを生成する。
func NewAmbiguousMatchError() *APIError {
	return &APIError{
		Code:     ErrCodeAmbiguousMatch,
		Message:  "条件に一致するレコードを一意に特定できません。",
		Category: "record",
		Action:   "検索条件を絞り込んでください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
