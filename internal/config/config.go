package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	HTTP          struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Auth struct {
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Stages struct {
		// GraphFile optionally replaces the built-in project workflow.
		GraphFile string `mapstructure:"graph_file"`
	} `mapstructure:"stages"`
	Notifications struct {
		WebhookURL  string        `mapstructure:"webhook_url"`
		Timeout     time.Duration `mapstructure:"timeout"`
		MaxElapsed  time.Duration `mapstructure:"max_elapsed"`
		QueueSize   int           `mapstructure:"queue_size"`
		Workers     int           `mapstructure:"workers"`
		TaskTimeout time.Duration `mapstructure:"task_timeout"`
	} `mapstructure:"notifications"`
	AI struct {
		APIKey    string           `mapstructure:"api_key"`
		Model     string           `mapstructure:"model"`
		MaxTokens int64            `mapstructure:"max_tokens"`
		Quotas    map[string]int64 `mapstructure:"quotas"`
	} `mapstructure:"ai"`
	Contracts struct {
		RenewalWindowDays int `mapstructure:"renewal_window_days"`
		Concurrency       int `mapstructure:"concurrency"`
	} `mapstructure:"contracts"`
	Telemetry struct {
		Enabled bool `mapstructure:"enabled"`
		Stdout  bool `mapstructure:"stdout"`
	} `mapstructure:"telemetry"`
}

// IsDev reports whether the service runs in the development environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "dev")
}

// LoadConfig loads the configuration from a file and the environment.
//
// When path is empty the file config.yaml is searched for in . and ./config;
// a missing file is not an error because every setting has a default or can
// come from BIZOS_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("BIZOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)

	return &config, nil
}

// ConfigFileUsed returns the file LoadConfig would read for path, or "" when
// only defaults and environment apply.
func ConfigFileUsed(path string) string {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "prod")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.name", "business_os")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("notifications.timeout", 10*time.Second)
	v.SetDefault("notifications.max_elapsed", 30*time.Second)
	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("notifications.workers", 4)
	v.SetDefault("notifications.task_timeout", 45*time.Second)
	v.SetDefault("ai.model", "claude-3-5-haiku-latest")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.quotas", map[string]int64{
		"free":       50_000,
		"pro":        1_000_000,
		"enterprise": 0,
	})
	v.SetDefault("contracts.renewal_window_days", 30)
	v.SetDefault("contracts.concurrency", 4)
}

// normalizeOktaIssuer ensures the provided Okta issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact.
func normalizeOktaIssuer(input string) string {
	iss := strings.TrimSpace(input)
	return strings.TrimRight(iss, "/")
}
