package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Driver はデータベースURLのスキームから判別したドライバ種別。
type Driver string

const (
	// DriverPostgres は本番用のPostgreSQL。
	DriverPostgres Driver = "postgres"
	// DriverSQLite はローカル開発・テスト用のSQLite。
	DriverSQLite Driver = "sqlite3"
)

// DriverFromURL はデータベースURLのスキームからドライバを判別する。
func DriverFromURL(databaseURL string) (Driver, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(databaseURL, "sqlite3://"):
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database url scheme: %q", schemeOf(databaseURL))
	}
}

// Open はデータベースURLに応じたgorm.DBを開く。
// PostgreSQLはlib/pqで開いた*sql.DBをgormに渡す。
// SQLiteは "sqlite3://path/to/file.db" 形式のURLを受け付ける。
// sql.Openと同様に接続は試行しないため、疎通確認にはPingを使用すること。
func Open(databaseURL string) (*gorm.DB, error) {
	driver, err := DriverFromURL(databaseURL)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		sqlDB, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	case DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(databaseURL))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// 単一ステートメントで完結させるため暗黙のトランザクションは張らない
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		Logger: gormlogger.New(slogWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// Ping はデータベースへの疎通を確認する。
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Close は下位の*sql.DBを閉じる。
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// sqliteDSN はsqlite3://形式のURLをgo-sqlite3のDSNに変換する。
// 外部キー制約とビジータイムアウトを常に有効にする。
func sqliteDSN(databaseURL string) string {
	dsn := strings.TrimPrefix(databaseURL, "sqlite3://")
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func schemeOf(databaseURL string) string {
	if i := strings.Index(databaseURL, "://"); i >= 0 {
		return databaseURL[:i]
	}
	return ""
}

// slogWriter はgormのログ出力をslogに流す。
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...interface{}) {
	slog.Warn("gorm", slog.String("detail", fmt.Sprintf(format, args...)))
}
