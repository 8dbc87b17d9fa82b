package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Storage      StorageConfig
	Substitution SubstitutionConfig
	Cache        CacheConfig
	DailyRun     DailyRunConfig
	Runs         RunQueueConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects the persistence backend for snapshots.
type StorageConfig struct {
	Driver  string
	DataDir string
}

// SubstitutionConfig tunes the substitute assignment engine.
type SubstitutionConfig struct {
	WorkloadCap       int
	MatchThreshold    float64
	Matcher           string
	FallbackMaxTarget int
	FallbackMinGrade  int
	DefaultGradeLevel int
	Timezone          string
}

// CacheConfig governs the run result cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// DailyRunConfig schedules the automatic morning run.
type DailyRunConfig struct {
	Enabled bool
	Cron    string
}

// RunQueueConfig configures the asynchronous run workers.
type RunQueueConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET"), Issuer: v.GetString("JWT_ISSUER")}
	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Driver:  strings.ToLower(v.GetString("STORAGE_DRIVER")),
		DataDir: v.GetString("DATA_DIR"),
	}

	threshold := v.GetFloat64("SUBSTITUTION_MATCH_THRESHOLD")
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.90
	}
	workloadCap := v.GetInt("SUBSTITUTION_WORKLOAD_CAP")
	if workloadCap <= 0 {
		workloadCap = 6
	}
	cfg.Substitution = SubstitutionConfig{
		WorkloadCap:       workloadCap,
		MatchThreshold:    threshold,
		Matcher:           strings.ToLower(v.GetString("SUBSTITUTION_MATCHER")),
		FallbackMaxTarget: v.GetInt("SUBSTITUTION_FALLBACK_MAX_GRADE"),
		FallbackMinGrade:  v.GetInt("SUBSTITUTION_FALLBACK_MIN_GRADE"),
		DefaultGradeLevel: v.GetInt("SUBSTITUTION_DEFAULT_GRADE"),
		Timezone:          v.GetString("SUBSTITUTION_TIMEZONE"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	cfg.DailyRun = DailyRunConfig{
		Enabled: v.GetBool("ENABLE_DAILY_RUN"),
		Cron:    v.GetString("DAILY_RUN_CRON"),
	}

	cfg.Runs = RunQueueConfig{
		Workers:    v.GetInt("RUN_WORKERS"),
		Retries:    v.GetInt("RUN_RETRIES"),
		RetryDelay: parseDuration(v.GetString("RUN_RETRY_DELAY"), 5*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_substitutes")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageFile)
	v.SetDefault("DATA_DIR", "./data")

	v.SetDefault("SUBSTITUTION_WORKLOAD_CAP", 6)
	v.SetDefault("SUBSTITUTION_MATCH_THRESHOLD", 0.90)
	v.SetDefault("SUBSTITUTION_MATCHER", "fuzzy")
	v.SetDefault("SUBSTITUTION_FALLBACK_MAX_GRADE", 8)
	v.SetDefault("SUBSTITUTION_FALLBACK_MIN_GRADE", 9)
	v.SetDefault("SUBSTITUTION_DEFAULT_GRADE", 0)
	v.SetDefault("SUBSTITUTION_TIMEZONE", "Local")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "10m")

	v.SetDefault("ENABLE_DAILY_RUN", false)
	v.SetDefault("DAILY_RUN_CRON", "30 6 * * 1-6")

	v.SetDefault("RUN_WORKERS", 1)
	v.SetDefault("RUN_RETRIES", 2)
	v.SetDefault("RUN_RETRY_DELAY", "5s")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
