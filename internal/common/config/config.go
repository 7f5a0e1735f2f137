// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig               `mapstructure:"app"`
	Server      ServerConfig            `mapstructure:"server"`
	Wizard      WizardConfig            `mapstructure:"wizard"`
	Gateway     GatewayConfig           `mapstructure:"gateway"`
	Session     SessionConfig           `mapstructure:"session"`
	Camunda     CamundaConfig           `mapstructure:"camunda"`
	Origination OriginationConfig       `mapstructure:"origination"`
	Database    DatabaseConfig          `mapstructure:"database"`
	Workers     map[string]WorkerConfig `mapstructure:"workers"`
	Logging     LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the HTTP listeners.
type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	OpsAddress     string   `mapstructure:"ops_address"`
	AllowedOrigins string   `mapstructure:"allowed_origins"`
	BodyLimitBytes int      `mapstructure:"body_limit_bytes"`
	SessionIdleTTL int      `mapstructure:"session_idle_ttl"` // milliseconds
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// WizardConfig tunes the wizard controllers.
type WizardConfig struct {
	SubmitTimeout     int     `mapstructure:"submit_timeout"` // milliseconds
	DefaultAnnualRate float64 `mapstructure:"default_annual_rate"`
}

// GatewayConfig points at the loan-application REST endpoint.
type GatewayConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SubmitPath string `mapstructure:"submit_path"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// SessionConfig selects where tenant/customer/product identifiers come from.
type SessionConfig struct {
	Provider  string `mapstructure:"provider"` // "static" or "redis"
	KeyPrefix string `mapstructure:"key_prefix"`
	Static    struct {
		TenantID   string `mapstructure:"tenant_id"`
		CustomerID string `mapstructure:"customer_id"`
		ProductID  string `mapstructure:"product_id"`
	} `mapstructure:"static"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// OriginationConfig names the process started after a submission.
type OriginationConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BPMNProcessID string `mapstructure:"bpmn_process_id"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
