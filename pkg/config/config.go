package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config configuración principal de la aplicación
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
	Admin    AdminConfig
	Media    MediaConfig
	Upstream UpstreamConfig
	Channels ChannelsConfig
}

// ServerConfig configuración del servidor HTTP
type ServerConfig struct {
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configuración de PostgreSQL
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configuración de Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// EngineConfig parámetros del ejecutor de workflows
type EngineConfig struct {
	ErrorThreshold     int           // fallos consecutivos antes de escalar
	MaxHopsPerTurn     int           // saltos de nodo máximos por mensaje entrante
	NodeTimeout        time.Duration // timeout por ejecución de nodo
	ConversationTTL    time.Duration // expiración de ConversationState
	LockTTL            time.Duration // expiración del lock por conversación
	CleanupCronSpec    string        // cron para limpieza de estados expirados
	WorkflowCacheTTL   time.Duration // cache de definiciones por tenant+key
	MaxHistoryMessages int
}

// AdminConfig configuración del API administrativo
type AdminConfig struct {
	JWTSecret       string
	AdminSecretHash string // bcrypt hash del secreto administrativo
	TokenExpiration time.Duration
}

// MediaConfig configuración del almacenamiento de adjuntos
type MediaConfig struct {
	S3Bucket        string
	S3Region        string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// UpstreamConfig APIs externas del cliente consumidas por los nodos
type UpstreamConfig struct {
	DirectoryBaseURL  string
	DirectoryAPIKey   string
	KnowledgeBaseURL  string
	KnowledgeAPIKey   string
	SchedulingBaseURL string
	SchedulingAPIKey  string
}

// ChannelsConfig credenciales globales de los proveedores de canal
type ChannelsConfig struct {
	WhatsAppAppSecret string
}

// Load carga la configuración desde variables de entorno
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", getEnv("POSTGRES_HOST", "localhost")),
			Port:            getEnv("DB_PORT", getEnv("POSTGRES_PORT", "5432")),
			User:            getEnv("DB_USER", getEnv("POSTGRES_USER", "postgres")),
			Password:        getEnv("DB_PASSWORD", getEnv("POSTGRES_PASSWORD", "postgres")),
			DBName:          getEnv("DB_NAME", getEnv("POSTGRES_DB", "converso")),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Engine: EngineConfig{
			ErrorThreshold:     getIntEnv("ENGINE_ERROR_THRESHOLD", 3),
			MaxHopsPerTurn:     getIntEnv("ENGINE_MAX_HOPS_PER_TURN", 20),
			NodeTimeout:        getDurationEnv("ENGINE_NODE_TIMEOUT", 30*time.Second),
			ConversationTTL:    getDurationEnv("ENGINE_CONVERSATION_TTL", 24*time.Hour),
			LockTTL:            getDurationEnv("ENGINE_LOCK_TTL", 2*time.Minute),
			CleanupCronSpec:    getEnv("ENGINE_CLEANUP_CRON", "@every 15m"),
			WorkflowCacheTTL:   getDurationEnv("ENGINE_WORKFLOW_CACHE_TTL", 10*time.Minute),
			MaxHistoryMessages: getIntEnv("ENGINE_MAX_HISTORY", 100),
		},
		Admin: AdminConfig{
			JWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
			AdminSecretHash: getEnv("ADMIN_SECRET_HASH", ""),
			TokenExpiration: getDurationEnv("ADMIN_TOKEN_EXPIRATION", 12*time.Hour),
		},
		Upstream: UpstreamConfig{
			DirectoryBaseURL:  getEnv("UPSTREAM_DIRECTORY_URL", ""),
			DirectoryAPIKey:   getEnv("UPSTREAM_DIRECTORY_API_KEY", ""),
			KnowledgeBaseURL:  getEnv("UPSTREAM_KNOWLEDGE_URL", ""),
			KnowledgeAPIKey:   getEnv("UPSTREAM_KNOWLEDGE_API_KEY", ""),
			SchedulingBaseURL: getEnv("UPSTREAM_SCHEDULING_URL", ""),
			SchedulingAPIKey:  getEnv("UPSTREAM_SCHEDULING_API_KEY", ""),
		},
		Channels: ChannelsConfig{
			WhatsAppAppSecret: getEnv("WHATSAPP_APP_SECRET", ""),
		},
		Media: MediaConfig{
			S3Bucket:        getEnv("MEDIA_S3_BUCKET", ""),
			S3Region:        getEnv("MEDIA_S3_REGION", "us-east-1"),
			AccessKeyID:     getEnv("MEDIA_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("MEDIA_S3_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("MEDIA_S3_ENDPOINT", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate valida la configuración
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Engine.ErrorThreshold <= 0 {
		return fmt.Errorf("ENGINE_ERROR_THRESHOLD must be positive")
	}
	if c.Engine.MaxHopsPerTurn <= 0 {
		return fmt.Errorf("ENGINE_MAX_HOPS_PER_TURN must be positive")
	}
	if c.Server.Environment != "development" && c.Admin.JWTSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required outside development")
	}

	return nil
}

// GetDSN retorna el DSN de PostgreSQL
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr retorna la dirección de Redis
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
