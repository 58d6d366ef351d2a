package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/boiler/internal/middleware"
	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/repository"
	"github.com/hitoshi/boiler/internal/security"
	"github.com/hitoshi/boiler/internal/session"
)

// MetricsRecorder はルーターが記録するメトリクス。metrics.Collectorが満たす。
type MetricsRecorder interface {
	middleware.HTTPRecorder
	LoginRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Sessions          session.Source
	SessionConfig     middleware.SessionConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 監視
	Metrics        MetricsRecorder
	MetricsHandler http.Handler
	HealthCheck    HealthCheckFunc

	// 認証
	AuthService AuthServiceInterface

	// リポジトリ
	Priorities repository.Repository[model.Priority]
	Todos      repository.Repository[model.Todo]
	Sanitizer  security.TextSanitizer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//	  → Session → RateLimit(General) → CSRF
//
// /health と /metrics はセッションの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	var loginRecorder LoginRecorder
	if deps.Metrics != nil {
		loginRecorder = deps.Metrics
	}
	authHandler := NewAuthHandler(deps.AuthService, deps.SessionConfig, loginRecorder)
	priorityHandler := NewPriorityHandler(deps.Priorities, sanitizer)
	todoHandler := NewTodoHandler(deps.Todos, deps.Priorities, sanitizer)

	// --- セッション不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- セッションを持つルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions, deps.SessionConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/auth", func(r chi.Router) {
			r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			r.With(middleware.RequireAuth).Get("/me", authHandler.Me)
			r.With(middleware.RequireAuth).Put("/password", authHandler.ChangePassword)
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Route("/priorities", func(r chi.Router) {
				r.Get("/", priorityHandler.List)
				r.Get("/{id}", priorityHandler.Get)

				// 書き込みは管理者のみ
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Post("/", priorityHandler.Create)
					r.Put("/{id}", priorityHandler.Update)
					r.Delete("/{id}", priorityHandler.Delete)
				})
			})

			r.Route("/todos", func(r chi.Router) {
				r.Get("/", todoHandler.List)
				r.Post("/", todoHandler.Create)
				r.Get("/{id}", todoHandler.Get)
				r.Put("/{id}", todoHandler.Update)
				r.Delete("/{id}", todoHandler.Delete)
			})
		})
	})

	return r
}
