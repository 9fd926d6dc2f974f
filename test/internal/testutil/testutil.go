package testutil

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"go-event-admission/config"
	"go-event-admission/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func Setup() (*pgxpool.Pool, *redis.Client, func(), error) {
	cfg := config.LoadTestConfig()

	testDB, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize test database: %v", err)
	}

	if err := testDB.Ping(context.Background()); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to ping test database: %v", err)
	}

	if err := ApplySchema(testDB); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to apply schema: %v", err)
	}

	log.Println("Test database connected successfully")

	testRdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize redis: %v", err)
	}
	log.Println("Test redis connected successfully")

	cleanup := func() {
		testDB.Close()
		log.Println("Test database closed")

		testRdb.Close()
		log.Println("Test redis closed")
	}

	return testDB, testRdb, cleanup, nil
}

// SetupDBOnly initializes only Postgres, for tests that never touch Redis.
func SetupDBOnly() (*pgxpool.Pool, func(), error) {
	cfg := config.LoadTestConfig()
	testDB, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize test database: %v", err)
	}
	if err := ApplySchema(testDB); err != nil {
		return nil, nil, fmt.Errorf("failed to apply schema: %v", err)
	}
	cleanup := func() { testDB.Close() }
	return testDB, cleanup, nil
}

// SetupRedisOnly initializes only Redis, for queue integration tests.
func SetupRedisOnly() (*redis.Client, func(), error) {
	cfg := config.LoadTestConfig()
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %v", err)
	}
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to ping redis: %v", err)
	}
	cleanup := func() { rdb.Close() }
	return rdb, cleanup, nil
}

// ApplySchema runs migrations/schema.sql; all statements are idempotent.
func ApplySchema(pool *pgxpool.Pool) error {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		return fmt.Errorf("cannot locate test source file")
	}
	schemaPath := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "migrations", "schema.sql")

	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		return err
	}

	_, err = pool.Exec(context.Background(), string(schema))
	return err
}
