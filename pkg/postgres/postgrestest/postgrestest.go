// Package postgrestest connects tests to a scratch PostgreSQL database.
package postgrestest

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/postgres"
)

// Connect opens the database named by FG_TEST_POSTGRES_* and skips the test
// when FG_TEST_POSTGRES is unset or the server is unreachable.
func Connect(t testing.TB) *postgres.Client {
	t.Helper()
	if os.Getenv("FG_TEST_POSTGRES") == "" {
		t.Skip("FG_TEST_POSTGRES not set")
	}
	port, _ := strconv.Atoi(envOrDefault("FG_TEST_POSTGRES_PORT", "5432"))
	cfg := config.PostgresConfig{
		Host:            envOrDefault("FG_TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("FG_TEST_POSTGRES_DB", "fuzzygram_test"),
		User:            envOrDefault("FG_TEST_POSTGRES_USER", "fuzzygram"),
		Password:        envOrDefault("FG_TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}
	db, err := postgres.New(context.Background(), cfg)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
