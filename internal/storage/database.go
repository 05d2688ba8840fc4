package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/proofflow/internal/model"
)

const (
	// DriverNameSQLite identifies the SQLite driver implementation.
	DriverNameSQLite = "sqlite"
	// DriverNamePostgres identifies the PostgreSQL driver implementation.
	DriverNamePostgres = "postgres"

	errorMessageMissingDatabaseDriverName = "storage: missing database driver name"
	errorMessageUnsupportedDatabaseDriver = "storage: unsupported database driver"
	errorMessageMissingDataSourceName     = "storage: missing database data source name"
	errorMessageOpenDatabase              = "storage: open database"
	errorMessageOpenSQLiteDatabase        = "storage: open sqlite database"
	errorMessageOpenPostgresDatabase      = "storage: open postgres database"

	defaultRetryAttempts = 5
	defaultRetryMinDelay = 200 * time.Millisecond
	defaultRetryMaxDelay = 5 * time.Second
)

var (
	// ErrMissingDatabaseDriverName indicates the database driver name configuration was omitted.
	ErrMissingDatabaseDriverName = errors.New(errorMessageMissingDatabaseDriverName)
	// ErrUnsupportedDatabaseDriver indicates the provided database driver is not supported.
	ErrUnsupportedDatabaseDriver = errors.New(errorMessageUnsupportedDatabaseDriver)
	// ErrMissingDataSourceName indicates the database data source name configuration was omitted.
	ErrMissingDataSourceName = errors.New(errorMessageMissingDataSourceName)
)

type databaseOpener func(Config) (*gorm.DB, error)

var databaseOpeners = map[string]databaseOpener{
	DriverNameSQLite:   openSQLiteDatabase,
	DriverNamePostgres: openPostgresDatabase,
}

// Config captures database connection configuration.
type Config struct {
	DriverName     string
	DataSourceName string
}

// OpenDatabase opens a database connection using the configured driver and data source name.
func OpenDatabase(configuration Config) (*gorm.DB, error) {
	trimmedDriverName := strings.TrimSpace(configuration.DriverName)
	if trimmedDriverName == "" {
		return nil, ErrMissingDatabaseDriverName
	}

	opener, driverSupported := databaseOpeners[trimmedDriverName]
	if !driverSupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabaseDriver, trimmedDriverName)
	}

	database, openErr := opener(Config{
		DriverName:     trimmedDriverName,
		DataSourceName: strings.TrimSpace(configuration.DataSourceName),
	})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenDatabase, openErr)
	}

	return database, nil
}

// RetryPolicy bounds the attempts made by OpenDatabaseWithRetry.
type RetryPolicy struct {
	Attempts int
	MinDelay time.Duration
	MaxDelay time.Duration
}

// OpenDatabaseWithRetry retries OpenDatabase with exponential backoff and a ping so the server can
// start before its database accepts connections. Configuration errors are returned immediately.
func OpenDatabaseWithRetry(ctx context.Context, configuration Config, policy RetryPolicy, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Attempts <= 0 {
		policy.Attempts = defaultRetryAttempts
	}
	if policy.MinDelay <= 0 {
		policy.MinDelay = defaultRetryMinDelay
	}
	if policy.MaxDelay < policy.MinDelay {
		policy.MaxDelay = defaultRetryMaxDelay
	}
	retryBackoff := &backoff.Backoff{Min: policy.MinDelay, Max: policy.MaxDelay, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		database, openErr := OpenDatabase(configuration)
		if openErr == nil {
			openErr = pingDatabase(ctx, database)
			if openErr == nil {
				return database, nil
			}
		}
		if errors.Is(openErr, ErrMissingDatabaseDriverName) || errors.Is(openErr, ErrUnsupportedDatabaseDriver) || errors.Is(openErr, ErrMissingDataSourceName) {
			return nil, openErr
		}
		lastErr = openErr
		if attempt == policy.Attempts {
			break
		}
		delay := retryBackoff.Duration()
		logger.Warn("database_open_retry", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(openErr))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func pingDatabase(ctx context.Context, database *gorm.DB) error {
	sqlDatabase, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDatabase.PingContext(ctx)
}

func openSQLiteDatabase(configuration Config) (*gorm.DB, error) {
	if configuration.DataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}

	database, openErr := gorm.Open(sqlite.Open(configuration.DataSourceName), &gorm.Config{})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenSQLiteDatabase, openErr)
	}

	return database, nil
}

func openPostgresDatabase(configuration Config) (*gorm.DB, error) {
	if configuration.DataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}

	database, openErr := gorm.Open(postgres.Open(configuration.DataSourceName), &gorm.Config{})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenPostgresDatabase, openErr)
	}

	return database, nil
}

// AutoMigrate runs database migrations for the storage layer models.
func AutoMigrate(database *gorm.DB) error {
	return database.AutoMigrate(&model.Project{}, &model.Widget{}, &model.Testimonial{})
}

// NewID generates a new globally unique identifier.
func NewID() string {
	return uuid.NewString()
}
