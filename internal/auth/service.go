// Package auth はユーザー名・パスワードによる認証とセッションの昇格を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/repository"
	"github.com/hitoshi/boiler/internal/session"
)

// SessionStore はセッションの保存・削除に必要なインターフェース。
// session.Resolverが満たす。
type SessionStore interface {
	Save(ctx context.Context, s *session.Session) error
	Remove(ctx context.Context, id string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int // 0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserAuthRepository
	sessions SessionStore
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(users repository.UserAuthRepository, sessions SessionStore, config ServiceConfig) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:    users,
		sessions: sessions,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewSessionID は推測困難なセッションIDを生成する。
func NewSessionID() string {
	return uuid.NewString()
}

// Login はユーザー名とパスワードを検証し、認証済みセッションを発行する。
// セッション固定を防ぐため新しいIDで発行し、以前のセッションは削除する。
// ユーザーが存在しない場合とパスワード誤りは区別せずInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, currentSessionID, userName, password string) (*session.Session, error) {
	user, err := s.users.FindByUserName(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Info("login failed: unknown user", slog.String("user_name", userName))
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Info("login failed: password mismatch", slog.Int("user_auth_id", user.ID))
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	now := s.now()
	sess := &session.Session{
		ID:              NewSessionID(),
		IsAuthenticated: true,
		UserAuthID:      user.ID,
		UserAuthName:    user.UserName,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		UserProfile: &session.Profile{
			ID:       user.ID,
			Username: user.UserName,
			Email:    user.Email,
			IsAdmin:  user.IsAdmin,
		},
		CreatedAt: now,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if currentSessionID != "" {
		if err := s.sessions.Remove(ctx, currentSessionID); err != nil {
			slog.Warn("failed to remove previous session",
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("user logged in",
		slog.Int("user_auth_id", user.ID),
		slog.String("user_name", user.UserName),
	)
	return sess, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessions.Remove(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentProfile はリクエストのプロファイルを返す。未認証の場合はanonymous。
func (s *Service) CurrentProfile(ctx context.Context) (*session.Profile, error) {
	return session.ProfileFromContext(ctx)
}

// ChangePassword は現在のパスワードを検証してから新しいパスワードに変更する。
func (s *Service) ChangePassword(ctx context.Context, userAuthID int, current, next string) error {
	user, err := s.users.FindByID(ctx, userAuthID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUnauthorizedError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return model.NewInvalidCredentialsError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password changed", slog.Int("user_auth_id", user.ID))
	return nil
}

// AdminInput は管理者ユーザーの作成内容。
type AdminInput struct {
	UserName string
	Email    string
	Password string
}

// CreateAdmin は管理者ユーザーを作成する。
// 同じユーザー名が既に存在する場合は何もせずfalseを返す。
func (s *Service) CreateAdmin(ctx context.Context, in AdminInput) (bool, error) {
	if in.UserName == "" || in.Password == "" {
		return false, fmt.Errorf("admin user name and password are required")
	}

	existing, err := s.users.FindByUserName(ctx, in.UserName)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		slog.Info("admin user already exists", slog.String("user_name", in.UserName))
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.UserAuth{
		UserName:     in.UserName,
		Email:        in.Email,
		DisplayName:  in.UserName,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("admin user created",
		slog.Int("user_auth_id", user.ID),
		slog.String("user_name", user.UserName),
	)
	return true, nil
}
