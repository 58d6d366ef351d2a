package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/hitoshi/boiler/internal/audit"
	"github.com/hitoshi/boiler/internal/auth"
	"github.com/hitoshi/boiler/internal/cache"
	"github.com/hitoshi/boiler/internal/config"
	"github.com/hitoshi/boiler/internal/database"
	"github.com/hitoshi/boiler/internal/handler"
	"github.com/hitoshi/boiler/internal/logger"
	"github.com/hitoshi/boiler/internal/metrics"
	"github.com/hitoshi/boiler/internal/middleware"
	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/repository"
	"github.com/hitoshi/boiler/internal/security"
	"github.com/hitoshi/boiler/internal/session"
	"github.com/hitoshi/boiler/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Dependencies はアプリケーションストアのリポジトリ。
type Dependencies struct {
	Priorities repository.Repository[model.Priority]
	Todos      repository.Repository[model.Todo]
}

// RegisterApplicationDependencies はアプリケーションストアのリポジトリを生成する。
func RegisterApplicationDependencies(db *gorm.DB) Dependencies {
	return Dependencies{
		Priorities: repository.NewPriorityRepo(db),
		Todos:      repository.NewTodoRepo(db),
	}
}

// stores はアプリケーションストアと資格情報ストアの接続。
// 同じURLの場合は1つの接続プールを共有する。
type stores struct {
	app         *gorm.DB
	credentials *gorm.DB
}

// openStores は両ストアを開いて疎通を確認する。migrateがtrueの場合は先にマイグレーションを適用する。
func openStores(cfg *config.Config, migrate bool) (*stores, error) {
	app, err := openStore(cfg.DatabaseURL, migrate)
	if err != nil {
		return nil, err
	}
	if cfg.CredentialsDatabaseURL == cfg.DatabaseURL {
		return &stores{app: app, credentials: app}, nil
	}

	credentials, err := openStore(cfg.CredentialsDatabaseURL, migrate)
	if err != nil {
		database.Close(app)
		return nil, err
	}
	return &stores{app: app, credentials: credentials}, nil
}

func openStore(databaseURL string, migrate bool) (*gorm.DB, error) {
	if migrate {
		if err := database.RunMigrations(databaseURL); err != nil {
			return nil, fmt.Errorf("migration failed (%s): %w", maskDatabaseURL(databaseURL), err)
		}
	}

	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (s *stores) Close() {
	database.Close(s.app)
	if s.credentials != s.app {
		database.Close(s.credentials)
	}
}

// newRegistry はGo・プロセスのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newCacheClient は設定に応じたセッションキャッシュを生成する。
func newCacheClient(cfg *config.Config, db *gorm.DB) (cache.Client, error) {
	backend, err := cache.ParseBackend(cfg.CacheBackend)
	if err != nil {
		return nil, err
	}
	switch backend {
	case cache.BackendDatabase:
		return cache.NewDBClient(db), nil
	default:
		return cache.NewMemoryClient(cfg.CacheSize, cfg.SessionTTL()), nil
	}
}

// buildRouter は全依存関係をワイヤリングしたルーターを返す。
// 戻り値の関数はバックグラウンド処理を停止する。
func buildRouter(cfg *config.Config, st *stores, reg *prometheus.Registry) (http.Handler, func(), error) {
	collector := metrics.NewCollector(reg)

	// 1. 書き込みパイプライン（監査フィルタとステートメントメトリクス）
	filter := audit.NewFilter()
	if err := database.RegisterWriteFilters(st.app, filter.InsertFilter, filter.UpdateFilter); err != nil {
		return nil, nil, err
	}
	if err := database.RegisterStatementMetrics(st.app, collector); err != nil {
		return nil, nil, err
	}

	// 2. セッションと認証
	cacheClient, err := newCacheClient(cfg, st.app)
	if err != nil {
		return nil, nil, err
	}
	resolver := session.NewResolver(cacheClient, cfg.SessionTTL())
	authService := auth.NewService(repository.NewUserAuthRepo(st.credentials), resolver, auth.ServiceConfig{})

	// 3. リポジトリ
	deps := RegisterApplicationDependencies(st.app)

	// 4. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:   slog.Default(),
		Sessions: resolver,
		SessionConfig: middleware.SessionConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.SessionMaxAge,
		},
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.SessionMaxAge,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		HealthCheck: func(ctx context.Context) error {
			return database.Ping(st.app)
		},

		AuthService: authService,
		Priorities:  deps.Priorities,
		Todos:       deps.Todos,
		Sanitizer:   security.NewTextSanitizer(),
	})

	return router, rateLimiter.Stop, nil
}

// runServe はAPIサーバーモードで起動する。
// 両ストアをマイグレーションして開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	st, err := openStores(cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.String("credentials_database_url", maskDatabaseURL(cfg.CredentialsDatabaseURL)),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	router, stop, err := buildRouter(cfg, st, newRegistry())
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	defer stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はサーバーを起動し、SIGINT/SIGTERMでグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// databaseキャッシュの期限切れセッションを定期削除し、/metricsを公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.CacheBackend != string(cache.BackendDatabase) {
		slog.Warn("worker has nothing to do with the memory cache backend",
			slog.String("cache_backend", cfg.CacheBackend),
		)
		return nil
	}

	db, err := openStore(cfg.DatabaseURL, false)
	if err != nil {
		return err
	}
	defer database.Close(db)

	slog.Info("database connection established (worker)")

	reg := newRegistry()
	collector := metrics.NewCollector(reg)
	job := cleanup.NewSessionCleanupJob(cache.NewDBClient(db), collector, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// メインgoroutineで実行（ブロッキング）
	job.RunEvery(ctx, cfg.SessionCleanupInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 資格情報ストアが別URLの場合は両方に適用する。
func runMigrate(cfg *config.Config) error {
	urls := []string{cfg.DatabaseURL}
	if cfg.CredentialsDatabaseURL != cfg.DatabaseURL {
		urls = append(urls, cfg.CredentialsDatabaseURL)
	}

	for _, url := range urls {
		slog.Info("running database migrations",
			slog.String("database_url", maskDatabaseURL(url)),
		)
		if err := database.RunMigrations(url); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCreateAdmin はADMIN_*環境変数から管理者ユーザーを作成する。
// 同名のユーザーが既に存在する場合は何もしない。
func runCreateAdmin(cfg *config.Config) error {
	db, err := openStore(cfg.CredentialsDatabaseURL, true)
	if err != nil {
		return err
	}
	defer database.Close(db)

	service := auth.NewService(repository.NewUserAuthRepo(db), nil, auth.ServiceConfig{})
	created, err := service.CreateAdmin(context.Background(), auth.AdminInput{
		UserName: cfg.AdminUserName,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("create-admin completed",
		slog.String("user_name", cfg.AdminUserName),
		slog.Bool("created", created),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
