package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testHelpFlag = "--help"

func TestMainRunsHelpCommand(testingT *testing.T) {
	originalArguments := os.Args
	testingT.Cleanup(func() {
		os.Args = originalArguments
	})

	os.Args = []string{commandUseName, testHelpFlag}
	main()
}

func TestEnvironmentFileSuppliesConfiguration(testingT *testing.T) {
	environmentPath := filepath.Join(testingT.TempDir(), ".env")
	contents := "PROOFFLOW_TEST_UNUSED=1\nSHARE_CACHE_TTL=90s\nLOG_FORMAT=console\n"
	require.NoError(testingT, os.WriteFile(environmentPath, []byte(contents), 0o600))
	for _, key := range []string{"PROOFFLOW_TEST_UNUSED", environmentKeyShareCacheTTL, environmentKeyLogFormat} {
		key := key
		_, alreadySet := os.LookupEnv(key)
		require.False(testingT, alreadySet, key)
		testingT.Cleanup(func() {
			_ = os.Unsetenv(key)
		})
	}
	testingT.Setenv(environmentKeyApplicationAddress, ":9090")

	application := NewServerApplication().WithEnvironmentFile(environmentPath)
	_, commandErr := application.Command()
	require.NoError(testingT, commandErr)

	serverConfig := application.loadServerConfig()
	require.Equal(testingT, ":9090", serverConfig.ApplicationAddress)
	require.Equal(testingT, 90*time.Second, serverConfig.ShareCacheTTL)
	require.Equal(testingT, "console", serverConfig.Logging.Format)
	require.Equal(testingT, defaultDatabaseDriver, serverConfig.Database.DriverName)
}

func TestEnsureRequiredConfigurationAcceptsCompleteConfig(testingT *testing.T) {
	serverConfig := ServerConfig{
		AdminBearerToken: "token",
		PublicBaseURL:    "https://cdn.proofflow.test/embed",
	}
	serverConfig.Database.DataSourceName = "file::memory:"
	require.NoError(testingT, ensureRequiredConfiguration(serverConfig))
}
