package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// app config, loaded once at startup from the environment
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	CORSOrigins []string
	JWTSecret   string
	APIBaseURL  string
	Provider    string

	Database    DatabaseConfig
	Redis       RedisConfig
	QStash      QStashConfig
	Interview   InterviewConfig
	Quota       QuotaConfig
	Maintenance MaintenanceConfig
}

type DatabaseConfig struct {
	Driver     string // "postgres" | "sqlite"
	Host       string
	User       string
	Password   string
	Name       string
	Port       string
	SSLMode    string
	SQLitePath string
}

// DSN builds the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type QStashConfig struct {
	URL               string
	Token             string
	CurrentSigningKey string
	NextSigningKey    string
}

// Enabled reports whether deliveries go through QStash rather than the in-process dispatcher.
func (q QStashConfig) Enabled() bool {
	return q.Token != ""
}

type InterviewConfig struct {
	MaxDuration       time.Duration
	MaxQuestions      int
	EvaluationRetries int
}

type QuotaConfig struct {
	InterviewsPerDay        int
	QuestionsPerDay         int
	ResumeGenerationsPerDay int
	ResumeAnalysesPerDay    int
	Location                *time.Location
	PrivilegedRoles         []string
}

type MaintenanceConfig struct {
	Enabled         bool
	Schedule        string
	PendingTTL      time.Duration
	EvaluatingAfter time.Duration
}

// LoadConfig reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	location, err := loadLocation(getEnvOrDefault("QUOTA_TIMEZONE", "Local"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("APP_ENV", "production"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		APIBaseURL:  strings.TrimRight(getEnvOrDefault("API_BASE_URL", "http://localhost:8080"), "/"),
		Provider:    getEnvOrDefault("AI_PROVIDER", "gemini"),
		Database: DatabaseConfig{
			Driver:     getEnvOrDefault("DB_DRIVER", "postgres"),
			Host:       getEnvOrDefault("POSTGRES_HOST", "localhost"),
			User:       getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password:   getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Name:       getEnvOrDefault("POSTGRES_DB", "postgres"),
			Port:       getEnvOrDefault("POSTGRES_PORT", "5432"),
			SSLMode:    getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
			SQLitePath: getEnvOrDefault("SQLITE_PATH", "./data/jobs-ai.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		QStash: QStashConfig{
			URL:               strings.TrimRight(getEnvOrDefault("QSTASH_URL", "https://qstash.upstash.io"), "/"),
			Token:             os.Getenv("QSTASH_TOKEN"),
			CurrentSigningKey: os.Getenv("QSTASH_CURRENT_SIGNING_KEY"),
			NextSigningKey:    os.Getenv("QSTASH_NEXT_SIGNING_KEY"),
		},
		Interview: InterviewConfig{
			MaxDuration:       getEnvDuration("INTERVIEW_MAX_DURATION", time.Hour),
			MaxQuestions:      getEnvInt("INTERVIEW_MAX_QUESTIONS", 10),
			EvaluationRetries: getEnvInt("EVALUATION_RETRIES", 3),
		},
		Quota: QuotaConfig{
			InterviewsPerDay:        getEnvInt("QUOTA_INTERVIEWS_PER_DAY", 10),
			QuestionsPerDay:         getEnvInt("QUOTA_QUESTIONS_PER_DAY", 100),
			ResumeGenerationsPerDay: getEnvInt("QUOTA_RESUME_GENERATIONS_PER_DAY", 5),
			ResumeAnalysesPerDay:    getEnvInt("QUOTA_RESUME_ANALYSES_PER_DAY", 5),
			Location:                location,
			PrivilegedRoles:         getEnvList("PRIVILEGED_ROLES", []string{"admin", "premium"}),
		},
		Maintenance: MaintenanceConfig{
			Enabled:         getEnvBool("MAINTENANCE_ENABLED", true),
			Schedule:        getEnvOrDefault("MAINTENANCE_SCHEDULE", "*/15 * * * *"),
			PendingTTL:      getEnvDuration("PENDING_INTERVIEW_TTL", 24*time.Hour),
			EvaluatingAfter: getEnvDuration("EVALUATION_STUCK_AFTER", 2*time.Hour),
		},
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// IsDevelopment returns true when running locally.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// WebhookURL returns the absolute callback URL for a webhook target.
func (c *Config) WebhookURL(target string) string {
	return c.APIBaseURL + "/api/webhook/qstash/" + target
}

func validateConfig(config *Config) error {
	if config.Provider != "gemini" {
		return errors.New("unsupported AI provider: " + config.Provider + ". Currently supported: gemini")
	}
	if config.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return errors.New("DB_DRIVER must be postgres or sqlite")
	}
	if config.Interview.MaxDuration <= 0 {
		return errors.New("INTERVIEW_MAX_DURATION must be positive")
	}
	if config.Interview.MaxQuestions < 2 {
		return errors.New("INTERVIEW_MAX_QUESTIONS must be at least 2")
	}
	if config.Interview.EvaluationRetries < 0 {
		return errors.New("EVALUATION_RETRIES must not be negative")
	}
	// Gemini validation is handled by gemini.NewConfig()
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTA_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
