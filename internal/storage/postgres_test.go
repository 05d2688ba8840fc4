package storage_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/proofflow/internal/storage"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const postgresTestDSNEnvironmentKey = "PROOFFLOW_TEST_POSTGRES_DSN"

func TestOpenAndMigratePostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv(postgresTestDSNEnvironmentKey))
	if dsn == "" {
		t.Skipf("%s not set", postgresTestDSNEnvironmentKey)
	}

	database, openErr := storage.OpenDatabaseWithRetry(context.Background(), storage.Config{
		DriverName:     storage.DriverNamePostgres,
		DataSourceName: dsn,
	}, storage.RetryPolicy{Attempts: 3, MinDelay: 100 * time.Millisecond, MaxDelay: time.Second}, nil)
	require.NoError(t, openErr)
	require.NoError(t, storage.AutoMigrate(database))

	project := seedProject(t, database)
	t.Cleanup(func() {
		database.Exec("DELETE FROM widgets WHERE project_id = ?", project.ID)
		database.Exec("DELETE FROM projects WHERE id = ?", project.ID)
	})
	record := seedWidget(t, database, project.ID, widget.TypeAvatarCarousel, widget.Styling{Shadow: "lg"}, widget.Behavior{AutoPlay: true})

	config, err := storage.LoadWidgetConfig(context.Background(), database, record.ID)
	require.NoError(t, err)
	require.Equal(t, widget.TypeAvatarCarousel, config.Type)
	require.Equal(t, "lg", config.Styling.Shadow)
}
