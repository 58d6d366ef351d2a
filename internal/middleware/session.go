// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/session"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// requestInfoContextKey はロギングミドルウェアと内側のミドルウェアが共有する情報のキー。
var requestInfoContextKey = contextKey("request_info")

// requestInfo は内側のミドルウェアが外側のロギングへ渡すリクエスト情報。
type requestInfo struct {
	scope *session.Scope
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoContextKey).(*requestInfo)
	return info
}

// SessionConfig はセッションCookieの設定。
type SessionConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int // 秒
}

// NewSessionMiddleware はCookieのセッションIDからリクエスト単位のScopeを生成し、
// コンテキストに注入するミドルウェアを返す。
// Cookieが無い、またはIDの形式が不正な場合は新しいIDを発行してCookieに設定する。
// セッション本体の解決は最初に参照されたときまで遅延する。
func NewSessionMiddleware(source session.Source, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				id = cookie.Value
			}
			if !validSessionID(id) {
				id = uuid.NewString()
				SetSessionCookie(w, config, id)
			}

			scope := session.NewScope(source, id)
			if info := requestInfoFromContext(r.Context()); info != nil {
				info.scope = scope
			}

			ctx := session.ContextWithScope(r.Context(), scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetSessionCookie はセッションIDをHTTP Only Cookieに設定する。
func SetSessionCookie(w http.ResponseWriter, config SessionConfig, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func validSessionID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// SessionIDFromContext はリクエストのセッションIDを返す。
// セッションミドルウェアを通過していない場合はfalseを返す。
func SessionIDFromContext(ctx context.Context) (string, bool) {
	scope, ok := session.ScopeFromContext(ctx)
	if !ok {
		return "", false
	}
	return scope.SessionID(), true
}

// RequireAuth は認証済みセッションを要求するミドルウェア。
// 未認証リクエストには401を返す。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}
		if !sess.IsAuthenticated {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin は管理者権限を要求するミドルウェア。
// 未認証は401、管理者でない場合は403を返す。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}
		if !sess.IsAuthenticated {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		if !sess.ToProfile().IsAdmin {
			slog.Warn("admin required",
				slog.String("username", sess.UserAuthName),
				slog.String("path", r.URL.Path),
			)
			WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentSession はScopeからセッションを解決する。
// 失敗時はレスポンスを書き込んでfalseを返す。
func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	scope, ok := session.ScopeFromContext(r.Context())
	if !ok {
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	sess, err := scope.Session(r.Context())
	if err != nil {
		slog.Error("failed to resolve session",
			slog.String("session_id", scope.SessionID()),
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
		return nil, false
	}
	return sess, true
}
