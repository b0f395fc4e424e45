//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"quizrush/cmd/bootstrap"
	"quizrush/cmd/bootstrap/components"
	"quizrush/internal/pkg/config"

	"github.com/docker/go-connections/nat"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/fx"
)

const (
	pgImage    = "postgres:17-alpine"
	pgUser     = "test"
	pgPassword = "testpass"
	redisImage = "redis:7-alpine"

	migrationFile = "001_initial_schema.sql"
)

type containerInfo struct {
	Host string
	Port nat.Port
}

var (
	pgOnce sync.Once
	pgInfo containerInfo
	pgErr  error
	rdOnce sync.Once
	rdInfo containerInfo
	rdErr  error
)

// startPostgresOnce starts a single postgres container shared by every
// suite in the test binary. Isolation comes from per-test databases,
// not per-test containers.
func startPostgresOnce(ctx context.Context) (containerInfo, error) {
	pgOnce.Do(func() {
		container, err := tcpostgres.Run(ctx, pgImage,
			tcpostgres.WithDatabase("postgres"),
			tcpostgres.WithUsername(pgUser),
			tcpostgres.WithPassword(pgPassword),
			tcpostgres.BasicWaitStrategies(),
			testcontainers.CustomizeRequest(testcontainers.GenericContainerRequest{
				ContainerRequest: testcontainers.ContainerRequest{
					// Durability off: the data is disposable and the
					// suites hammer the database with small writes.
					Cmd: []string{
						"postgres",
						"-c", "fsync=off",
						"-c", "synchronous_commit=off",
						"-c", "full_page_writes=off",
					},
					Tmpfs: map[string]string{"/var/lib/postgresql/data": "rw"},
				},
			}),
		)
		if err != nil {
			pgErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}
		pgInfo, pgErr = inspectContainer(ctx, container, "5432/tcp")
	})
	return pgInfo, pgErr
}

func startRedisOnce(ctx context.Context) (containerInfo, error) {
	rdOnce.Do(func() {
		container, err := tcredis.Run(ctx, redisImage)
		if err != nil {
			rdErr = fmt.Errorf("failed to start redis container: %w", err)
			return
		}
		rdInfo, rdErr = inspectContainer(ctx, container, "6379/tcp")
	})
	return rdInfo, rdErr
}

func inspectContainer(ctx context.Context, container testcontainers.Container, port nat.Port) (containerInfo, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return containerInfo{}, fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return containerInfo{}, fmt.Errorf("failed to get mapped port: %w", err)
	}
	return containerInfo{Host: host, Port: mapped}, nil
}

// prepareDatabase creates a dedicated database for one test and applies
// the schema. Dropped again on cleanup so parallel suites never share
// tables.
func prepareDatabase(t *testing.T, ctx context.Context, info containerInfo) config.DBConfig {
	t.Helper()

	dbName := "testdb_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	adminDSN := fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable",
		pgUser, pgPassword, info.Host, info.Port.Port())
	admin, err := pgxpool.New(ctx, adminDSN)
	require.NoError(t, err, "failed to connect to admin database")

	// CREATE DATABASE cannot run concurrently against the same template;
	// parallel suites occasionally collide, so retry with backoff.
	for attempt := 1; ; attempt++ {
		_, err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
		if err == nil {
			break
		}
		if attempt >= 5 {
			admin.Close()
			require.NoError(t, err, "failed to create test database")
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}

	t.Cleanup(func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.Exec(dropCtx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName))
		admin.Close()
	})

	dbCfg := config.DBConfig{
		Host:     info.Host,
		Port:     info.Port.Port(),
		User:     pgUser,
		Password: pgPassword,
		DBName:   dbName,
		SSLMode:  "disable",
		PoolMax:  10,
	}
	applyMigrations(t, ctx, dbCfg)
	return dbCfg
}

func applyMigrations(t *testing.T, ctx context.Context, dbCfg config.DBConfig) {
	t.Helper()

	pool, err := pgxpool.New(ctx, dbCfg.BuildDSN())
	require.NoError(t, err, "failed to connect to test database")
	defer pool.Close()

	schema, err := os.ReadFile(findMigrationFile(t))
	require.NoError(t, err, "failed to read migration file")

	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err, "failed to apply migrations")
}

// findMigrationFile walks up from the test working directory until it
// hits the repository's migrations directory.
func findMigrationFile(t *testing.T) string {
	t.Helper()

	candidates := []string{
		filepath.Join("migrations", migrationFile),
		filepath.Join("..", "migrations", migrationFile),
		filepath.Join("..", "..", "migrations", migrationFile),
		filepath.Join("..", "..", "..", "migrations", migrationFile),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	t.Fatalf("migration file %s not found from working directory", migrationFile)
	return ""
}

// createTestConfig namespaces every redis key and stream under a
// per-test prefix so suites can share one redis container the way they
// share one postgres container.
func createTestConfig(dbCfg config.DBConfig, redisAddr, prefix string) config.Config {
	cfg := config.NewTestConfig()
	cfg.DB = dbCfg
	cfg.Redis.Addr = redisAddr
	cfg.Lock.KeyPrefix = prefix + ":lock:quiz:"
	cfg.Quota.KeyPrefix = prefix + ":quota:quiz:"
	cfg.Pipeline.Stream = prefix + ":quiz:submissions"
	cfg.Pipeline.DeadLetterStream = prefix + ":quiz:submissions:dlq"
	cfg.Pipeline.Consumer = prefix + "-consumer"
	return cfg
}

func setupE2EEnvironment(t *testing.T) (*pgxpool.Pool, *redis.Client, *gin.Engine, config.Config) {
	t.Helper()
	ctx := context.Background()

	pg, err := startPostgresOnce(ctx)
	require.NoError(t, err)
	rd, err := startRedisOnce(ctx)
	require.NoError(t, err)

	dbCfg := prepareDatabase(t, ctx, pg)
	prefix := "e2e" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	cfg := createTestConfig(dbCfg, rd.Host+":"+rd.Port.Port(), prefix)

	var (
		pool   *pgxpool.Pool
		client *redis.Client
		engine *gin.Engine
	)
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			func() (config.Config, error) { return cfg, nil },
			func(cfg config.Config) config.LockConfig { return cfg.Lock },
			func(cfg config.Config) config.QuotaConfig { return cfg.Quota },
			func(cfg config.Config) config.PipelineConfig { return cfg.Pipeline },
			func(cfg config.Config) config.ReconcileConfig { return cfg.Reconcile },
			func() *gin.Engine { return gin.New() },
		),
		bootstrap.LoggerModule,
		bootstrap.DBModule,
		bootstrap.RedisModule,
		components.PersistenceModule,
		components.GatewayModule,
		components.UseCaseModule,
		components.WorkerModule,
		components.HandlerModule,
		fx.Populate(&pool, &client, &engine),
	)
	require.NoError(t, app.Err(), "failed to build application graph")

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	require.NoError(t, app.Start(startCtx), "failed to start application")

	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	})

	return pool, client, engine, cfg
}

// SharedSuite wires a full application against real postgres and redis
// containers. The consumer and reconciler run in-process, so async
// suites only need to poll the HTTP surface.
type SharedSuite struct {
	suite.Suite
	Router *gin.Engine
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Config config.Config
}

func (s *SharedSuite) SetupSuite() {
	t := s.T()
	gin.SetMode(gin.TestMode)
	s.DB, s.Redis, s.Router, s.Config = setupE2EEnvironment(t)
	require.NotNil(t, s.DB, "database setup failed")
	require.NotNil(t, s.Redis, "redis setup failed")
	require.NotNil(t, s.Router, "router setup failed")
}

func (s *SharedSuite) SetupSubTest() {
	// Each subtest seeds its own quiz and members, so ids never collide
	// and no cross-subtest reset is needed.
}

// QuotaCounter reads the redis-side remaining counter for a quiz.
// Returns -1 when no counter exists.
func (s *SharedSuite) QuotaCounter(quizID string) int {
	val, err := s.Redis.Get(context.Background(), s.Config.Quota.KeyPrefix+quizID).Int()
	if err != nil {
		return -1
	}
	return val
}

// RemainingSlots reads the ledger-side remaining counter for a quiz.
func (s *SharedSuite) RemainingSlots(quizID string) int {
	var remaining int
	err := s.DB.QueryRow(context.Background(),
		"SELECT remaining_slots FROM quizzes WHERE id = $1", quizID).
		Scan(&remaining)
	require.NoError(s.T(), err, "failed to read remaining slots")
	return remaining
}
