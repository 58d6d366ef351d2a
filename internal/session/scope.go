package session

import (
	"context"
	"sync"
)

// Source はセッションIDからセッションを解決する。
type Source interface {
	GetOrCreate(ctx context.Context, id string) (*Session, error)
}

// Scope は1リクエストの間だけ有効なセッション参照。
// 最初の参照時に一度だけ解決し、以降は同じインスタンスを返す。
// リクエストをまたいで共有してはならない。
type Scope struct {
	source    Source
	sessionID string

	mu       sync.Mutex
	resolved bool
	session  *Session
	profile  *Profile
	err      error
}

// NewScope はScopeを生成する。
func NewScope(source Source, sessionID string) *Scope {
	return &Scope{source: source, sessionID: sessionID}
}

// SessionID はこのリクエストのセッションIDを返す。
func (s *Scope) SessionID() string {
	return s.sessionID
}

// Session はセッションを返す。解決に失敗した場合は同じエラーを返し続ける。
func (s *Scope) Session(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve(ctx)
	return s.session, s.err
}

// Profile はセッションから導出したプロファイルを返す。
func (s *Scope) Profile(ctx context.Context) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve(ctx)
	return s.profile, s.err
}

// ResolvedProfile は解決済みの場合のみプロファイルを返す。解決は行わない。
func (s *Scope) ResolvedProfile() (*Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resolved || s.err != nil {
		return nil, false
	}
	return s.profile, true
}

// Replace はログイン・ログアウトで変化したセッションをこのリクエストに反映する。
func (s *Scope) Replace(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = true
	s.session = sess
	s.profile = sess.ToProfile()
	s.err = nil
}

func (s *Scope) resolve(ctx context.Context) {
	if s.resolved {
		return
	}
	s.resolved = true
	s.session, s.err = s.source.GetOrCreate(ctx, s.sessionID)
	if s.err == nil {
		s.profile = s.session.ToProfile()
	}
}

type scopeContextKey struct{}

// ContextWithScope はコンテキストにScopeを注入する。
func ContextWithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext はコンテキストからScopeを取得する。
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(*Scope)
	return scope, ok && scope != nil
}

// ProfileFromContext はリクエストのプロファイルを返す。
// リクエスト外（バッチ処理など）ではAnonymousを返す。
func ProfileFromContext(ctx context.Context) (*Profile, error) {
	scope, ok := ScopeFromContext(ctx)
	if !ok {
		return Anonymous(), nil
	}
	return scope.Profile(ctx)
}
