package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/boiler/internal/middleware"
	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, currentSessionID, userName, password string) (*session.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentProfile(ctx context.Context) (*session.Profile, error)
	ChangePassword(ctx context.Context, userAuthID int, current, next string) error
}

// LoginRecorder はログイン結果の記録先。metrics.Collectorが満たす。
type LoginRecorder interface {
	RecordLogin(result string)
}

// ログイン結果のラベル。
const (
	loginResultSuccess = "success"
	loginResultFailure = "failure"
	loginResultError   = "error"
)

// AuthHandler はユーザー名・パスワード認証のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	cookie   middleware.SessionConfig
	recorder LoginRecorder
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, cookie middleware.SessionConfig, recorder LoginRecorder) *AuthHandler {
	return &AuthHandler{
		service:  service,
		cookie:   cookie,
		recorder: recorder,
	}
}

type loginRequest struct {
	UserName string `json:"userName" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=128"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=128"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128,nefield=CurrentPassword"`
}

// Login はユーザー名とパスワードを検証し、新しいセッションIDのCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if apiErr := decodeAndValidate(w, r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	currentID, _ := middleware.SessionIDFromContext(r.Context())
	sess, err := h.service.Login(r.Context(), currentID, req.UserName, req.Password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials {
			h.recordLogin(loginResultFailure)
		} else {
			h.recordLogin(loginResultError)
		}
		handleServiceError(w, err, "user", 0)
		return
	}

	middleware.SetSessionCookie(w, h.cookie, sess.ID)
	if scope, ok := session.ScopeFromContext(r.Context()); ok {
		scope.Replace(sess)
	}
	h.recordLogin(loginResultSuccess)

	writeJSON(w, http.StatusOK, sess.ToProfile())
}

// Logout はセッションを破棄してCookieを削除する。
// セッション削除に失敗してもCookieは削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.SessionIDFromContext(r.Context()); ok {
		if err := h.service.Logout(r.Context(), id); err != nil {
			slog.Warn("failed to logout",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
		if scope, ok := session.ScopeFromContext(r.Context()); ok {
			scope.Replace(&session.Session{ID: id})
		}
	}

	middleware.ClearSessionCookie(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のユーザーのプロファイルを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.CurrentProfile(r.Context())
	if err != nil {
		handleServiceError(w, err, "user", 0)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ChangePassword は現在のパスワードを検証してから変更する。
// PUT /auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	scope, ok := session.ScopeFromContext(r.Context())
	if !ok {
		writeAPIError(w, model.NewUnauthorizedError())
		return
	}
	sess, err := scope.Session(r.Context())
	if err != nil {
		handleServiceError(w, err, "session", 0)
		return
	}
	if !sess.IsAuthenticated {
		writeAPIError(w, model.NewUnauthorizedError())
		return
	}

	var req changePasswordRequest
	if apiErr := decodeAndValidate(w, r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	if err := h.service.ChangePassword(r.Context(), sess.UserAuthID, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, err, "user", sess.UserAuthID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) recordLogin(result string) {
	if h.recorder != nil {
		h.recorder.RecordLogin(result)
	}
}
