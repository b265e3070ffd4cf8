package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

type DBConfig struct {
	// Driver mysql | sqlite
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	AccessSecret  string        `yaml:"access_secret"`
	RefreshSecret string        `yaml:"refresh_secret"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
}

type WeatherConfig struct {
	BaseURL   string  `yaml:"base_url"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type OutboxConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
	MaxRetry  int           `yaml:"max_retry"`
	PurgeCron string        `yaml:"purge_cron"`
	Retention time.Duration `yaml:"retention"`
}

type SeedAccount struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Password string `yaml:"password"`
}

type SeedConfig struct {
	Enabled bool        `yaml:"enabled"`
	Admin   SeedAccount `yaml:"admin"`
	User    SeedAccount `yaml:"user"`
}

type Config struct {
	Server   ServerConfig  `yaml:"server"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	JWT      JWTConfig     `yaml:"jwt"`
	Weather  WeatherConfig `yaml:"weather"`
	Kafka    KafkaConfig   `yaml:"kafka"`
	SMTP     SMTPConfig    `yaml:"smtp"`
	Outbox   OutboxConfig  `yaml:"outbox"`
	Seed     SeedConfig    `yaml:"seed"`
	LogLevel string        `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		DB: DBConfig{
			Driver: "mysql",
			DSN:    "user:password@tcp(127.0.0.1:3306)/townsquare?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		JWT: JWTConfig{
			AccessSecret:  "secret-key",
			RefreshSecret: "refresh-key",
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    24 * time.Hour,
		},
		Weather: WeatherConfig{
			BaseURL:   "https://api.open-meteo.com",
			Latitude:  57.7210,
			Longitude: 12.9401,
			Timezone:  "Europe/Stockholm",
		},
		Kafka: KafkaConfig{Topic: "townsquare.notifications"},
		SMTP:  SMTPConfig{Port: 587},
		Outbox: OutboxConfig{
			Interval:  time.Second,
			BatchSize: 200,
			MaxRetry:  5,
			PurgeCron: "0 3 * * *",
			Retention: 7 * 24 * time.Hour,
		},
		Seed: SeedConfig{
			Enabled: true,
			Admin:   SeedAccount{Email: "admin@townsquare.com", FullName: "Administrator", Password: "admin"},
			User:    SeedAccount{Email: "test@townsquare.com", FullName: "Test User", Password: "testuser"},
		},
		LogLevel: "info",
	}
}

// Load 默认值 -> YAML 文件(TOWNSQUARE_CONFIG) -> .env -> 环境变量
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("TOWNSQUARE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env 不存在不算错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.CORSOrigins = getEnvAsList("CORS_ORIGINS", c.Server.CORSOrigins)

	c.DB.Driver = getEnv("DB_DRIVER", c.DB.Driver)
	c.DB.DSN = getEnv("DB_DSN", c.DB.DSN)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	c.JWT.AccessSecret = getEnv("JWT_ACCESS_SECRET", c.JWT.AccessSecret)
	c.JWT.RefreshSecret = getEnv("JWT_REFRESH_SECRET", c.JWT.RefreshSecret)
	c.JWT.AccessTTL = getEnvAsDuration("JWT_ACCESS_TTL", c.JWT.AccessTTL)
	c.JWT.RefreshTTL = getEnvAsDuration("JWT_REFRESH_TTL", c.JWT.RefreshTTL)

	c.Weather.BaseURL = getEnv("WEATHER_BASE_URL", c.Weather.BaseURL)
	c.Weather.Latitude = getEnvAsFloat("WEATHER_LATITUDE", c.Weather.Latitude)
	c.Weather.Longitude = getEnvAsFloat("WEATHER_LONGITUDE", c.Weather.Longitude)
	c.Weather.Timezone = getEnv("WEATHER_TIMEZONE", c.Weather.Timezone)

	c.Kafka.Brokers = getEnvAsList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.SMTP.Host = getEnv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getEnvAsInt("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Username = getEnv("SMTP_USERNAME", c.SMTP.Username)
	c.SMTP.Password = getEnv("SMTP_PASSWORD", c.SMTP.Password)
	c.SMTP.From = getEnv("SMTP_FROM", c.SMTP.From)

	c.Outbox.Interval = getEnvAsDuration("OUTBOX_INTERVAL", c.Outbox.Interval)
	c.Outbox.BatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", c.Outbox.BatchSize)
	c.Outbox.MaxRetry = getEnvAsInt("OUTBOX_MAX_RETRY", c.Outbox.MaxRetry)
	c.Outbox.PurgeCron = getEnv("OUTBOX_PURGE_CRON", c.Outbox.PurgeCron)
	c.Outbox.Retention = getEnvAsDuration("OUTBOX_RETENTION", c.Outbox.Retention)

	c.Seed.Enabled = getEnvAsBool("SEED_ENABLED", c.Seed.Enabled)
	c.Seed.Admin.Email = getEnv("SEED_ADMIN_EMAIL", c.Seed.Admin.Email)
	c.Seed.Admin.Password = getEnv("SEED_ADMIN_PASSWORD", c.Seed.Admin.Password)
	c.Seed.User.Email = getEnv("SEED_USER_EMAIL", c.Seed.User.Email)
	c.Seed.User.Password = getEnv("SEED_USER_PASSWORD", c.Seed.User.Password)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// SMTPEnabled 未配置 host 时不发邮件
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != ""
}

func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvAsInt(key string, defaultValue int) int {
	val := getEnv(key, strconv.Itoa(defaultValue))
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvAsBool(key string, defaultValue bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvAsList(key string, defaultValue []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
