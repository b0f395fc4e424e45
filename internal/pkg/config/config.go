package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB/Redis connection)
// - default: Values common across all environments (timeouts, batch sizes)
// -----------------------------------------------------------------------------

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Lock      LockConfig
	Quota     QuotaConfig
	Pipeline  PipelineConfig
	Reconcile ReconcileConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	PoolMax  int32  `envconfig:"DB_POOL_MAX" default:"20"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type LockConfig struct {
	KeyPrefix   string        `envconfig:"LOCK_KEY_PREFIX" default:"lock:quiz:"`
	WaitTimeout time.Duration `envconfig:"LOCK_WAIT_TIMEOUT" default:"2s"`
	LeaseTime   time.Duration `envconfig:"LOCK_LEASE_TIME" default:"1s"`
}

type QuotaConfig struct {
	KeyPrefix string        `envconfig:"QUOTA_KEY_PREFIX" default:"quota:quiz:"`
	TTL       time.Duration `envconfig:"QUOTA_TTL" default:"168h"`
}

type PipelineConfig struct {
	Stream           string        `envconfig:"PIPELINE_STREAM" default:"quiz:submissions"`
	DeadLetterStream string        `envconfig:"PIPELINE_DLQ_STREAM" default:"quiz:submissions:dlq"`
	Group            string        `envconfig:"PIPELINE_GROUP" default:"quizrush"`
	Consumer         string        `envconfig:"PIPELINE_CONSUMER" default:"consumer-1"`
	BatchSize        int           `envconfig:"PIPELINE_BATCH_SIZE" default:"50"`
	BlockTimeout     time.Duration `envconfig:"PIPELINE_BLOCK_TIMEOUT" default:"2s"`
	MaxAttempts      int           `envconfig:"PIPELINE_MAX_ATTEMPTS" default:"3"`
	RetryBackoff     time.Duration `envconfig:"PIPELINE_RETRY_BACKOFF" default:"1s"`
}

type ReconcileConfig struct {
	Interval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"5m"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433",
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
			PoolMax:  10,
		},
		Redis: RedisConfig{
			Addr: "localhost:16380",
		},
		Lock: LockConfig{
			KeyPrefix:   "lock:quiz:",
			WaitTimeout: 2 * time.Second,
			LeaseTime:   time.Second,
		},
		Quota: QuotaConfig{
			KeyPrefix: "quota:quiz:",
			TTL:       168 * time.Hour,
		},
		Pipeline: PipelineConfig{
			Stream:           "quiz:submissions",
			DeadLetterStream: "quiz:submissions:dlq",
			Group:            "quizrush",
			Consumer:         "consumer-test",
			BatchSize:        10,
			BlockTimeout:     200 * time.Millisecond,
			MaxAttempts:      3,
			RetryBackoff:     10 * time.Millisecond,
		},
		Reconcile: ReconcileConfig{
			Interval: 5 * time.Minute,
		},
		CORS: CORSConfig{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			TimeFormat: "2006-01-02 15:04:05.000",
		},
	}
}
