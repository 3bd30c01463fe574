// Package config loads service settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	Port    int           `yaml:"port"`
	Backend string        `yaml:"backend"`
	Log     LogConfig     `yaml:"log"`
	DB      DBConfig      `yaml:"database"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
	Dynamo  DynamoConfig  `yaml:"dynamodb"`
	NATS    NATSConfig    `yaml:"nats"`
	Tracing TracingConfig `yaml:"tracing"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	Schema      string `yaml:"schema"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// DSN builds the key/value connection string understood by gorm's postgres driver.
func (c DBConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.Username, c.Password, c.Database, c.Port)
	if c.Schema != "" {
		dsn += " search_path=" + c.Schema
	}
	return dsn
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type DynamoConfig struct {
	Table       string `yaml:"table"`
	Endpoint    string `yaml:"endpoint"`
	Region      string `yaml:"region"`
	CreateTable bool   `yaml:"create_table"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type TracingConfig struct {
	Exporter    string `yaml:"exporter"` // none or stdout
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:    8080,
		Backend: BackendPostgres,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		DB: DBConfig{
			Host:        "localhost",
			Port:        "5432",
			AutoMigrate: true,
		},
		SQLite: SQLiteConfig{Path: "todos.db"},
		Dynamo: DynamoConfig{
			Table:  "todos",
			Region: "us-east-1",
		},
		NATS: NATSConfig{Subject: "todos.changes"},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "todo-store",
		},
	}
}

// Load reads the YAML file named by TODO_CONFIG_FILE (if any) over the
// defaults, then applies environment variables on top.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("TODO_CONFIG_FILE"); path != "" {
		if err := LoadYAML(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadYAML decodes a YAML file into target.
func LoadYAML(path string, target *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendPostgres, BackendSQLite, BackendMemory, BackendDynamoDB:
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Err(err).Str("value", v).Int("default", cfg.Port).Msg("Invalid PORT environment variable")
		} else {
			cfg.Port = port
		}
	}

	setString(&cfg.Backend, "TODO_STORE_BACKEND")
	cfg.Backend = strings.ToLower(cfg.Backend)

	setString(&cfg.Log.Level, "TODO_LOG_LEVEL")
	setString(&cfg.Log.Format, "TODO_LOG_FORMAT")

	setString(&cfg.DB.Host, "BLUEPRINT_DB_HOST")
	setString(&cfg.DB.Port, "BLUEPRINT_DB_PORT")
	setString(&cfg.DB.Username, "BLUEPRINT_DB_USERNAME")
	setString(&cfg.DB.Password, "BLUEPRINT_DB_PASSWORD")
	setString(&cfg.DB.Database, "BLUEPRINT_DB_DATABASE")
	setString(&cfg.DB.Schema, "BLUEPRINT_DB_SCHEMA")
	setBool(&cfg.DB.AutoMigrate, "TODO_DB_AUTOMIGRATE")

	setString(&cfg.SQLite.Path, "TODO_SQLITE_PATH")

	setString(&cfg.Dynamo.Table, "TODO_DYNAMODB_TABLE")
	setString(&cfg.Dynamo.Endpoint, "TODO_DYNAMODB_ENDPOINT")
	setString(&cfg.Dynamo.Region, "AWS_REGION")
	setBool(&cfg.Dynamo.CreateTable, "TODO_DYNAMODB_CREATE_TABLE")

	setString(&cfg.NATS.URL, "TODO_NATS_URL")
	setString(&cfg.NATS.Subject, "TODO_NATS_SUBJECT")

	setString(&cfg.Tracing.Exporter, "TODO_TRACING")
	setString(&cfg.Tracing.ServiceName, "TODO_SERVICE_NAME")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Str("value", v).Bool("default", *dst).Msg("Invalid boolean environment variable")
		return
	}
	*dst = b
}
