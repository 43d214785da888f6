// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Wizard       WizardConfig       `mapstructure:"wizard"`
	APIs         APIsConfig         `mapstructure:"apis"`
	Integrations IntegrationConfig  `mapstructure:"integrations"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Notification NotificationConfig `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	ListenAddr  string `mapstructure:"listen_addr"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
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

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// GetURL returns the first configured address.
func (e ElasticsearchConfig) GetURL() string {
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// --- Wizard Configuration ---

// WizardConfig holds settings for the process state machine and its
// persisted snapshots.
type WizardConfig struct {
	KeyPrefix          string `mapstructure:"key_prefix"`
	AutosaveDebounceMs int    `mapstructure:"autosave_debounce_ms"`
	StateTTLHours      int    `mapstructure:"state_ttl_hours"`
	RegistryPath       string `mapstructure:"registry_path"`
}

// --- External API Configuration ---

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	DocAI struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"docai"`
}

// IntegrationConfig holds settings for AWS and other external services.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// NotificationConfig holds settings for post-submission notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
