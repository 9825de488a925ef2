package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Jury     JuryConfig
	Verdicts VerdictConfig
	Library  LibraryConfig
	Mailer   MailerConfig
	Archives ArchivesConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnectTimeout  time.Duration
	ConnMaxLifetime time.Duration
	AppName         string
}

// RedisConfig backs the shared proposal store.
type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// JWTConfig holds the verification settings for tokens issued by the host application.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// JuryConfig governs proposal generation for defense sittings.
type JuryConfig struct {
	MaxGroupSize         int
	PerCandidateDuration time.Duration
	WorkdayStart         string
	WorkdayEnd           string
	Timezone             string
	AudienceAllowance    int
	PresidentMinGrade    string
	ProposalTTL          time.Duration
	PolicyFile           string
}

// VerdictConfig tunes the downstream effect workers triggered by finalized verdicts.
type VerdictConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
}

// LibraryConfig points at the publication service. An empty BaseURL keeps submissions in the database.
type LibraryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// MailerConfig configures supervisor notifications. An empty Host disables e-mail.
type MailerConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	From          string
	SkipTLSVerify bool
}

// ArchivesConfig controls where finalized verdict records are archived.
type ArchivesConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	Institution     string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnectTimeout:  parseDuration(v.GetString("DB_CONNECT_TIMEOUT"), 5*time.Second),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
		AppName:         v.GetString("DB_APP_NAME"),
	}

	cfg.Redis = RedisConfig{
		Enabled:     v.GetBool("ENABLE_REDIS"),
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 3*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		MaxAge:         parseDuration(v.GetString("CORS_MAX_AGE"), 10*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Jury = JuryConfig{
		MaxGroupSize:         v.GetInt("JURY_MAX_GROUP_SIZE"),
		PerCandidateDuration: parseDuration(v.GetString("JURY_PER_CANDIDATE_DURATION"), 45*time.Minute),
		WorkdayStart:         v.GetString("JURY_WORKDAY_START"),
		WorkdayEnd:           v.GetString("JURY_WORKDAY_END"),
		Timezone:             v.GetString("JURY_TIMEZONE"),
		AudienceAllowance:    v.GetInt("JURY_AUDIENCE_ALLOWANCE"),
		PresidentMinGrade:    v.GetString("JURY_PRESIDENT_MIN_GRADE"),
		ProposalTTL:          parseDuration(v.GetString("JURY_PROPOSAL_TTL"), 30*time.Minute),
		PolicyFile:           v.GetString("JURY_POLICY_FILE"),
	}

	cfg.Verdicts = VerdictConfig{
		WorkerConcurrency: v.GetInt("VERDICT_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("VERDICT_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("VERDICT_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Library = LibraryConfig{
		BaseURL: strings.TrimRight(v.GetString("LIBRARY_BASE_URL"), "/"),
		APIKey:  v.GetString("LIBRARY_API_KEY"),
		Timeout: parseDuration(v.GetString("LIBRARY_TIMEOUT"), 10*time.Second),
	}

	cfg.Mailer = MailerConfig{
		Host:          v.GetString("SMTP_HOST"),
		Port:          v.GetInt("SMTP_PORT"),
		User:          v.GetString("SMTP_USER"),
		Password:      v.GetString("SMTP_PASS"),
		From:          v.GetString("SMTP_FROM"),
		SkipTLSVerify: v.GetBool("SMTP_SKIP_TLS_VERIFY"),
	}

	cfg.Archives = ArchivesConfig{
		StorageDir:      v.GetString("ARCHIVES_STORAGE_DIR"),
		SignedURLSecret: v.GetString("ARCHIVES_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("ARCHIVES_SIGNED_URL_TTL"), 30*time.Minute),
		Institution:     v.GetString("ARCHIVES_INSTITUTION"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "defense_jury")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DB_APP_NAME", "defense-jury-api")

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "3s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_MAX_AGE", "10m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("JURY_MAX_GROUP_SIZE", 3)
	v.SetDefault("JURY_PER_CANDIDATE_DURATION", "45m")
	v.SetDefault("JURY_WORKDAY_START", "08:00")
	v.SetDefault("JURY_WORKDAY_END", "17:00")
	v.SetDefault("JURY_TIMEZONE", "UTC")
	v.SetDefault("JURY_AUDIENCE_ALLOWANCE", 5)
	v.SetDefault("JURY_PRESIDENT_MIN_GRADE", "SENIOR_LECTURER")
	v.SetDefault("JURY_PROPOSAL_TTL", "30m")
	v.SetDefault("JURY_POLICY_FILE", "")

	v.SetDefault("VERDICT_WORKER_CONCURRENCY", 2)
	v.SetDefault("VERDICT_WORKER_RETRIES", 5)
	v.SetDefault("VERDICT_RETRY_DELAY", "5s")

	v.SetDefault("LIBRARY_BASE_URL", "")
	v.SetDefault("LIBRARY_API_KEY", "")
	v.SetDefault("LIBRARY_TIMEOUT", "10s")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_SKIP_TLS_VERIFY", false)

	v.SetDefault("ARCHIVES_STORAGE_DIR", "./archives")
	v.SetDefault("ARCHIVES_SIGNED_URL_SECRET", "dev_archives_secret")
	v.SetDefault("ARCHIVES_SIGNED_URL_TTL", "30m")
	v.SetDefault("ARCHIVES_INSTITUTION", "Faculty of Science")
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
