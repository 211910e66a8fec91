package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage modes for the engine's original backup artifact
const (
	StorageModeKeepBoth = "keep-both"
	StorageModeMove     = "move"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Backup   BackupConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Features FeaturesConfig
	Logging  LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database specific configuration
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
	ConnectTimeout  time.Duration
}

// StorageConfig holds file area storage configuration
type StorageConfig struct {
	Type  string // "local", "s3"
	Local LocalStorageConfig
	S3    S3StorageConfig
}

// LocalStorageConfig holds local storage configuration
type LocalStorageConfig struct {
	BasePath    string
	Permissions string
}

// S3StorageConfig holds AWS S3 configuration
type S3StorageConfig struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// BackupConfig holds archive and restore settings
type BackupConfig struct {
	TempDir     string
	Destination string
	StorageMode string
	ContextID   int
}

// RedisConfig holds the location cache configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled  bool
	Brokers  string
	Topic    string
	ClientID string
}

// BrokerList splits the comma separated broker setting
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// AuthConfig holds authentication specific configuration
type AuthConfig struct {
	JWTSecret string
}

// FeaturesConfig toggles optional post-restore behaviour
type FeaturesConfig struct {
	AudienceVisibility    bool
	CustomHeadingFieldID  int
	LearningChannelFormat string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variables override
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration populated only with defaults
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks settings that have a fixed set of values
func (c *Config) Validate() error {
	switch c.Backup.StorageMode {
	case StorageModeKeepBoth, StorageModeMove:
	default:
		return fmt.Errorf("invalid backup.storageMode %q (want %q or %q)",
			c.Backup.StorageMode, StorageModeKeepBoth, StorageModeMove)
	}

	switch c.Storage.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("invalid storage.type %q", c.Storage.Type)
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "5m")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")
	v.SetDefault("database.connectTimeout", "30s")

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.basePath", "/data/filedir")
	v.SetDefault("storage.local.permissions", "0644")

	// Backup defaults
	v.SetDefault("backup.tempDir", "/data/temp")
	v.SetDefault("backup.destination", "/data/temp/backup")
	v.SetDefault("backup.storageMode", StorageModeMove)
	v.SetDefault("backup.contextId", 1)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "course-template-events")
	v.SetDefault("kafka.clientId", "course-template-service")

	// Feature defaults
	v.SetDefault("features.audienceVisibility", false)
	v.SetDefault("features.customHeadingFieldId", 0)
	v.SetDefault("features.learningChannelFormat", "learningchannel")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
