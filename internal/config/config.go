package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM      LLMConfig
	Database DatabaseConfig
	Agent    AgentConfig
	Server   ServerConfig
	Log      LogConfig
}

// LLMConfig holds the generation service configuration
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig addresses the database the questions are answered from
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Name         string `mapstructure:"name"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"sslmode"`
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// AgentConfig bounds the query loop
type AgentConfig struct {
	RowLimit       int `mapstructure:"row_limit"`
	MaxRowLimit    int `mapstructure:"max_row_limit"`
	MaxSteps       int `mapstructure:"max_steps"`
	FallbackTables int `mapstructure:"fallback_tables"`
	SampleRows     int `mapstructure:"sample_rows"`
	MaxSessions    int `mapstructure:"max_sessions"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Defaults: Groq-hosted llama3 at temperature 0,
// a local chinook database, five rows per answer, ten steps per question.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama3-70b-8192")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "chinook")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.path", "Chinook.db")
	v.SetDefault("database.max_open_conns", 4)

	v.SetDefault("agent.row_limit", 5)
	v.SetDefault("agent.max_row_limit", 100)
	v.SetDefault("agent.max_steps", 10)
	v.SetDefault("agent.fallback_tables", 3)
	v.SetDefault("agent.sample_rows", 3)
	v.SetDefault("agent.max_sessions", 0)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
}

// legacyEnv maps keys to the plain POSTGRES_* and GROQ_API_KEY variables.
var legacyEnv = map[string]string{
	"database.host":     "POSTGRES_HOST",
	"database.port":     "POSTGRES_PORT",
	"database.name":     "POSTGRES_DB",
	"database.user":     "POSTGRES_USER",
	"database.password": "POSTGRES_PASSWORD",
	"llm.api_key":       "GROQ_API_KEY",
}

// Load loads the configuration from config.yaml (or CONFIG_PATH), a .env file
// and NL2SQL_* environment variables, in increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NL2SQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "NL2SQL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if config.Agent.MaxSessions <= 0 {
		config.Agent.MaxSessions = max(config.Database.MaxOpenConns, 1)
	}

	return &config, nil
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("llm.api_key is not set"))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is not set"))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			errs = append(errs, errors.New("database credentials are not properly configured"))
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.Database.Driver))
	}

	if c.Agent.RowLimit <= 0 {
		errs = append(errs, errors.New("agent.row_limit must be positive"))
	}
	if c.Agent.MaxRowLimit < c.Agent.RowLimit {
		errs = append(errs, errors.New("agent.max_row_limit must not be lower than agent.row_limit"))
	}
	if c.Agent.MaxSteps <= 0 {
		errs = append(errs, errors.New("agent.max_steps must be positive"))
	}

	return errors.Join(errs...)
}

// URL assembles the connection URI. User and password are percent-encoded so
// reserved characters such as '@' or '#' survive.
func (d DatabaseConfig) URL() string {
	if d.Driver == DriverSQLite {
		return "file:" + d.Path + "?mode=ro"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}
