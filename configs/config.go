package configs

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values
type Config struct {
	Port      string
	JWTSecret string
	JWTExpire time.Duration

	MySQLUser     string
	MySQLPassword string
	MySQLHost     string
	MySQLPort     string
	MySQLDB       string

	RedisURL string

	KafkaBrokers []string
	KafkaTopic   string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string

	UploadsDir string

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

var (
	configInstance *Config
	once           sync.Once
)

// Load loads configuration from the environment and an optional .env file.
func Load() *Config {
	once.Do(func() {
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
		viper.AddConfigPath(".")

		viper.SetDefault("RELAY_PORT", "4040")
		viper.SetDefault("RELAY_JWT_SECRET", "secret")
		viper.SetDefault("RELAY_JWT_EXPIRE", "720h")
		viper.SetDefault("MYSQL_USER", "root")
		viper.SetDefault("MYSQL_PASSWORD", "password")
		viper.SetDefault("MYSQL_HOST", "localhost")
		viper.SetDefault("MYSQL_PORT", "3306")
		viper.SetDefault("MYSQL_DB", "chat")
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("KAFKA_BROKERS", "")
		viper.SetDefault("KAFKA_TOPIC", "chat-messages")
		viper.SetDefault("MINIO_ENDPOINT", "")
		viper.SetDefault("MINIO_ACCESS_KEY", "")
		viper.SetDefault("MINIO_SECRET_KEY", "")
		viper.SetDefault("MINIO_BUCKET", "attachments")
		viper.SetDefault("RELAY_UPLOADS_DIR", "uploads")
		viper.SetDefault("RELAY_HEARTBEAT_INTERVAL", "5s")
		viper.SetDefault("RELAY_HEARTBEAT_TIMEOUT", "1s")
		viper.AutomaticEnv()

		if err := viper.ReadInConfig(); err != nil {
			log.Printf("no .env file, using environment variables and defaults")
		}

		expire, err := time.ParseDuration(viper.GetString("RELAY_JWT_EXPIRE"))
		if err != nil {
			log.Fatal("invalid RELAY_JWT_EXPIRE format")
		}
		hbInterval, err := time.ParseDuration(viper.GetString("RELAY_HEARTBEAT_INTERVAL"))
		if err != nil {
			log.Fatal("invalid RELAY_HEARTBEAT_INTERVAL format")
		}
		hbTimeout, err := time.ParseDuration(viper.GetString("RELAY_HEARTBEAT_TIMEOUT"))
		if err != nil {
			log.Fatal("invalid RELAY_HEARTBEAT_TIMEOUT format")
		}

		var brokers []string
		if raw := viper.GetString("KAFKA_BROKERS"); raw != "" {
			brokers = strings.Split(raw, ",")
		}

		configInstance = &Config{
			Port:              viper.GetString("RELAY_PORT"),
			JWTSecret:         viper.GetString("RELAY_JWT_SECRET"),
			JWTExpire:         expire,
			MySQLUser:         viper.GetString("MYSQL_USER"),
			MySQLPassword:     viper.GetString("MYSQL_PASSWORD"),
			MySQLHost:         viper.GetString("MYSQL_HOST"),
			MySQLPort:         viper.GetString("MYSQL_PORT"),
			MySQLDB:           viper.GetString("MYSQL_DB"),
			RedisURL:          viper.GetString("REDIS_URL"),
			KafkaBrokers:      brokers,
			KafkaTopic:        viper.GetString("KAFKA_TOPIC"),
			MinIOEndpoint:     viper.GetString("MINIO_ENDPOINT"),
			MinIOAccessKey:    viper.GetString("MINIO_ACCESS_KEY"),
			MinIOSecretKey:    viper.GetString("MINIO_SECRET_KEY"),
			MinIOBucket:       viper.GetString("MINIO_BUCKET"),
			UploadsDir:        viper.GetString("RELAY_UPLOADS_DIR"),
			HeartbeatInterval: hbInterval,
			HeartbeatTimeout:  hbTimeout,
		}
	})
	return configInstance
}
