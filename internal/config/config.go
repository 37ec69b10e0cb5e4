package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for our application
type Config struct {
	Port              string
	Origin            string
	Environment       string
	JWTSecret         string
	SessionCookieName string
	SessionTTLHours   int
	Database          DatabaseConfig
	Uploads           UploadConfig
	Log               LogConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// UploadConfig controls where uploaded files are written.
type UploadConfig struct {
	Dir        string
	MaxSizeMB  int
	MaxRequest int64
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig enables the cross-instance realtime relay when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// KafkaConfig enables domain event publication when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "ehealthwave"),
		DSN:      getEnv("DB_DSN", ""),
	}

	if dbConfig.DSN == "" {
		dsn, err := buildDSN(dbConfig)
		if err != nil {
			return nil, err
		}
		dbConfig.DSN = dsn
	}

	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL_HOURS: %w", err)
	}

	maxUpload, err := strconv.Atoi(getEnv("MAX_UPLOAD_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	var brokers []string
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return &Config{
		Port:              getEnv("PORT", "5000"),
		Origin:            getEnv("ORIGIN", "http://localhost:3000"),
		Environment:       getEnv("NODE_ENV", "development"),
		JWTSecret:         getEnv("JWT_SECRET", "default_jwt_secret"),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "session"),
		SessionTTLHours:   sessionTTL,
		Database:          dbConfig,
		Uploads: UploadConfig{
			Dir:        getEnv("UPLOAD_DIR", "./uploads"),
			MaxSizeMB:  maxUpload,
			MaxRequest: int64(maxUpload) << 20,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Channel:  getEnv("REDIS_CHANNEL", "ehealthwave:realtime"),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   getEnv("KAFKA_TOPIC", "ehealthwave.events"),
		},
	}, nil
}

// IsProduction reports whether cookies should be marked secure.
func (c *Config) IsProduction() bool {
	return c.Environment != "development" && c.Environment != "test"
}

func buildDSN(db DatabaseConfig) (string, error) {
	switch db.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			db.Username, db.Password, db.Host, db.Port, db.Name), nil
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			db.Host, db.Username, db.Password, db.Name, db.Port), nil
	case "sqlite":
		return db.Name + ".db", nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q", db.Driver)
	}
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
