package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/proofflow/internal/logging"
	"github.com/MarkoPoloResearchLab/proofflow/internal/storage"
)

const (
	commandUseName                   = "server"
	commandShortDescription          = "Run the ProofFlow server"
	commandLongDescription           = "Serve widget configurations, embed runtimes, share pages and the admin API"
	missingConfigurationMessage      = "missing required configuration"
	invalidConfigurationMessage      = "invalid configuration"
	loggerCreationErrorMessage       = "logger"
	logEventListening                = "listening"
	logEventShutdown                 = "shutdown"
	logFieldAddress                  = "addr"
	flagNameApplicationAddress       = "app-addr"
	flagNameDatabaseDriver           = "db-driver"
	flagNameDatabaseDataSourceName   = "db-dsn"
	flagNameAdminBearerToken         = "admin-bearer-token"
	flagNamePublicBaseURL            = "public-base-url"
	flagNameLogLevel                 = "log-level"
	flagNameLogFormat                = "log-format"
	flagNameLogFile                  = "log-file"
	flagNameShareCacheTTL            = "share-cache-ttl"
	flagUsageApplicationAddress      = "address for the HTTP server to listen on"
	flagUsageDatabaseDriver          = "database driver (sqlite or postgres)"
	flagUsageDatabaseDataSourceName  = "database connection string"
	flagUsageAdminBearerToken        = "bearer token required for admin API access"
	flagUsagePublicBaseURL           = "public URL the runtimes and snippets point at"
	flagUsageLogLevel                = "log level (debug, info, warn, error)"
	flagUsageLogFormat               = "log encoding (json or console)"
	flagUsageLogFile                 = "optional rotating log file"
	flagUsageShareCacheTTL           = "lifetime of rendered share pages"
	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyAdminBearerToken   = "ADMIN_BEARER_TOKEN"
	environmentKeyPublicBaseURL      = "PUBLIC_BASE_URL"
	environmentKeyLogLevel           = "LOG_LEVEL"
	environmentKeyLogFormat          = "LOG_FORMAT"
	environmentKeyLogFile            = "LOG_FILE"
	environmentKeyShareCacheTTL      = "SHARE_CACHE_TTL"
	defaultApplicationAddress        = ":8080"
	defaultDatabaseDriver            = storage.DriverNameSQLite
	defaultLogLevel                  = "info"
	defaultLogFormat                 = logging.FormatJSON
	defaultShareCacheTTL             = 5 * time.Minute
	defaultEnvironmentFile           = ".env"
	loggerContextOpenDatabase        = "open_db"
	loggerContextAutoMigrate         = "migrate"
	loggerContextServer              = "server"
	readHeaderTimeoutSeconds         = 5
	shutdownTimeout                  = 10 * time.Second
	unexpectedArgumentsMessage       = "unexpected command arguments"
	commandInitializationFailure     = "failed to configure command"
	flagNotDefinedMessage            = "flag %s not defined"
	environmentConfigurationError    = "failed to apply environment configuration"
	environmentFileError             = "failed to load environment file"
)

var databaseRetryPolicy = storage.RetryPolicy{
	Attempts: 5,
	MinDelay: 250 * time.Millisecond,
	MaxDelay: 5 * time.Second,
}

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress string
	Database           storage.Config
	AdminBearerToken   string
	PublicBaseURL      string
	Logging            logging.Config
	ShareCacheTTL      time.Duration
}

// DatabaseOpener opens the database described by the configuration.
type DatabaseOpener func(context.Context, storage.Config, *zap.Logger) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
	environmentFile     string
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      openDatabaseWithRetry,
		environmentFile:     defaultEnvironmentFile,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// WithEnvironmentFile changes the dotenv file loaded before flags are resolved. Empty disables loading.
func (application *ServerApplication) WithEnvironmentFile(path string) *ServerApplication {
	application.environmentFile = path
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if loadErr := application.loadEnvironmentFile(); loadErr != nil {
		return nil, loadErr
	}
	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

// loadEnvironmentFile never overrides variables that are already set.
func (application *ServerApplication) loadEnvironmentFile() error {
	path := strings.TrimSpace(application.environmentFile)
	if path == "" {
		return nil
	}
	if loadErr := godotenv.Load(path); loadErr != nil {
		if errors.Is(loadErr, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%s: %w", environmentFileError, loadErr)
	}
	return nil
}

type flagBinding struct {
	environmentKey string
	flagName       string
}

var flagBindings = []flagBinding{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
	{environmentKey: environmentKeyDatabaseDriver, flagName: flagNameDatabaseDriver},
	{environmentKey: environmentKeyDatabaseDataSource, flagName: flagNameDatabaseDataSourceName},
	{environmentKey: environmentKeyAdminBearerToken, flagName: flagNameAdminBearerToken},
	{environmentKey: environmentKeyPublicBaseURL, flagName: flagNamePublicBaseURL},
	{environmentKey: environmentKeyLogLevel, flagName: flagNameLogLevel},
	{environmentKey: environmentKeyLogFormat, flagName: flagNameLogFormat},
	{environmentKey: environmentKeyLogFile, flagName: flagNameLogFile},
	{environmentKey: environmentKeyShareCacheTTL, flagName: flagNameShareCacheTTL},
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDriver, defaultDatabaseDriver)
	application.configurationLoader.SetDefault(environmentKeyLogLevel, defaultLogLevel)
	application.configurationLoader.SetDefault(environmentKeyLogFormat, defaultLogFormat)
	application.configurationLoader.SetDefault(environmentKeyShareCacheTTL, defaultShareCacheTTL)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameDatabaseDriver, defaultDatabaseDriver, flagUsageDatabaseDriver)
	commandFlags.String(flagNameDatabaseDataSourceName, "", flagUsageDatabaseDataSourceName)
	commandFlags.String(flagNameAdminBearerToken, "", flagUsageAdminBearerToken)
	commandFlags.String(flagNamePublicBaseURL, "", flagUsagePublicBaseURL)
	commandFlags.String(flagNameLogLevel, defaultLogLevel, flagUsageLogLevel)
	commandFlags.String(flagNameLogFormat, defaultLogFormat, flagUsageLogFormat)
	commandFlags.String(flagNameLogFile, "", flagUsageLogFile)
	commandFlags.Duration(flagNameShareCacheTTL, defaultShareCacheTTL, flagUsageShareCacheTTL)

	for _, binding := range flagBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	for _, requiredFlag := range []string{flagNameDatabaseDataSourceName, flagNameAdminBearerToken, flagNamePublicBaseURL} {
		if markErr := command.MarkFlagRequired(requiredFlag); markErr != nil {
			return markErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadServerConfig() ServerConfig {
	loader := application.configurationLoader
	return ServerConfig{
		ApplicationAddress: loader.GetString(environmentKeyApplicationAddress),
		Database: storage.Config{
			DriverName:     strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver)),
			DataSourceName: strings.TrimSpace(loader.GetString(environmentKeyDatabaseDataSource)),
		},
		AdminBearerToken: strings.TrimSpace(loader.GetString(environmentKeyAdminBearerToken)),
		PublicBaseURL:    strings.TrimRight(strings.TrimSpace(loader.GetString(environmentKeyPublicBaseURL)), "/"),
		Logging: logging.Config{
			Level:    loader.GetString(environmentKeyLogLevel),
			Format:   loader.GetString(environmentKeyLogFormat),
			FilePath: loader.GetString(environmentKeyLogFile),
		},
		ShareCacheTTL: loader.GetDuration(environmentKeyShareCacheTTL),
	}
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := application.loadServerConfig()
	if validationErr := ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := logging.New(serverConfig.Logging)
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	runContext, stop := signal.NotifyContext(commandContext(command), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, databaseErr := application.databaseOpener(runContext, serverConfig.Database, logger)
	if databaseErr != nil {
		logger.Error(loggerContextOpenDatabase, zap.Error(databaseErr))
		return databaseErr
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Error(loggerContextAutoMigrate, zap.Error(migrateErr))
		return migrateErr
	}

	services := newServerServices(database, logger, serverConfig)
	services.start(runContext)
	defer services.stop()

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           services.router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error(loggerContextServer, zap.Error(serveErr))
			return serveErr
		}
		return nil
	case <-runContext.Done():
	}

	logger.Info(logEventShutdown)
	shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownContext)
}

func ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.Database.DataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if configuration.AdminBearerToken == "" {
		missingParameters = append(missingParameters, flagNameAdminBearerToken)
	}

	if configuration.PublicBaseURL == "" {
		missingParameters = append(missingParameters, flagNamePublicBaseURL)
	}

	if len(missingParameters) > 0 {
		return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
	}

	parsedBaseURL, parseErr := url.Parse(configuration.PublicBaseURL)
	if parseErr != nil || parsedBaseURL.Host == "" || (parsedBaseURL.Scheme != "http" && parsedBaseURL.Scheme != "https") {
		return fmt.Errorf("%s: %s %q", invalidConfigurationMessage, flagNamePublicBaseURL, configuration.PublicBaseURL)
	}

	return nil
}

func openDatabaseWithRetry(ctx context.Context, configuration storage.Config, logger *zap.Logger) (*gorm.DB, error) {
	return storage.OpenDatabaseWithRetry(ctx, configuration, databaseRetryPolicy, logger)
}

func commandContext(command *cobra.Command) context.Context {
	if command != nil && command.Context() != nil {
		return command.Context()
	}
	return context.Background()
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
