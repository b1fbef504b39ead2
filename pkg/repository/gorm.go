package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/config"
	"github.com/example/shopfront/pkg/models"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormStore implements Store on top of gorm. The same type serves the root
// connection pool and transactions opened by RunInTx.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// OpenGorm connects to MySQL or SQLite and brings the schema up to date:
// MySQL through the embedded migrations, SQLite through AutoMigrate.
func OpenGorm(cfg *config.DatabaseConfig, logger *zap.Logger) (*GormStore, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "mysql":
		dsn := cfg.MySQL.DSN() + "&clientFoundRows=true"
		if err := MigrateMySQL(dsn); err != nil {
			return nil, err
		}
		db, err = gorm.Open(mysql.Open(dsn), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	case "sqlite":
		db, err = OpenSQLite(cfg.SQLite.Path, gcfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", cfg.Driver)
	}

	logger.Info("Database connected", zap.String("driver", cfg.Driver))
	return NewGormStore(db), nil
}

// OpenSQLite opens (or creates) the SQLite database at path and migrates it.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	if gcfg == nil {
		gcfg = &gorm.Config{TranslateError: true, Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	}
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_time_format=sqlite"), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared across the pool.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return db, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (s *GormStore) Users() UserRepository           { return &gormUsers{db: s.db} }
func (s *GormStore) Categories() CategoryRepository { return &gormCategories{db: s.db} }
func (s *GormStore) Products() ProductRepository     { return &gormProducts{db: s.db} }
func (s *GormStore) Carts() CartRepository           { return &gormCarts{db: s.db} }
func (s *GormStore) Orders() OrderRepository         { return &gormOrders{db: s.db} }
func (s *GormStore) Reports() ReportRepository       { return &gormReports{db: s.db} }

func (s *GormStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying handle for callers that need raw access, such as
// tests inspecting rows.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return err
}

// escapeLike escapes LIKE wildcards using '!' as the escape character, which
// both MySQL and SQLite accept in an ESCAPE clause.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
