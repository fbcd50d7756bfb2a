package db

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"weekend-booking-bot/internal/config"
)

func TestApplyPoolSettings(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.DatabaseConfig
		wantMax      int32
		wantMin      int32
		wantLifetime time.Duration
	}{
		{"defaults", config.DatabaseConfig{}, 10, 2, time.Hour},
		{"small pool", config.DatabaseConfig{PoolSize: 2}, 2, 1, time.Hour},
		{"configured", config.DatabaseConfig{PoolSize: 20, MaxConnLifetime: 5 * time.Minute}, 20, 5, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Host, tt.cfg.Port, tt.cfg.User, tt.cfg.Name = "localhost", 5432, "booking", "booking"
			poolConfig, err := pgxpool.ParseConfig(tt.cfg.DSN())
			require.NoError(t, err)

			applyPoolSettings(poolConfig, &tt.cfg)
			assert.Equal(t, tt.wantMax, poolConfig.MaxConns)
			assert.Equal(t, tt.wantMin, poolConfig.MinConns)
			assert.Equal(t, tt.wantLifetime, poolConfig.MaxConnLifetime)
			assert.Equal(t, 10*time.Second, poolConfig.ConnConfig.ConnectTimeout)
			assert.Equal(t, ApplicationName, poolConfig.ConnConfig.RuntimeParams["application_name"])
			assert.Equal(t, "UTC", poolConfig.ConnConfig.RuntimeParams["timezone"])
		})
	}
}

func TestHealthCheck_RequiresSchema(t *testing.T) {
	if err := exec.Command("docker", "info").Run(); err != nil {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() { _ = pgContainer.Terminate(ctx) }()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pgxPool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	pool := &Pool{Pool: pgxPool}
	defer pool.Close()

	assert.ErrorIs(t, pool.HealthCheck(ctx), ErrSchemaMissing)

	require.NoError(t, Migrate(ctx, pgxPool))
	require.NoError(t, Migrate(ctx, pgxPool), "migrations are idempotent")
	assert.NoError(t, pool.HealthCheck(ctx))
}
