package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the service.
type Config struct {
	Environment string `mapstructure:"environment"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Database struct {
		Driver string `mapstructure:"driver"`
		Args   string `mapstructure:"args"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Lock struct {
		Wait time.Duration `mapstructure:"wait"`
		TTL  time.Duration `mapstructure:"ttl"`
	} `mapstructure:"lock"`

	Webhooks struct {
		DefaultURL string        `mapstructure:"defaulturl"`
		Secret     string        `mapstructure:"secret"`
		Timeout    time.Duration `mapstructure:"timeout"`
		Async      bool          `mapstructure:"async"`
		RateLimit  float64       `mapstructure:"ratelimit"`
	} `mapstructure:"webhooks"`

	Subscriptions []Subscription `mapstructure:"subscriptions"`

	// Intents maps an intent name to the id of the workflow definition it starts.
	Intents map[string]string `mapstructure:"intents"`

	Elasticsearch struct {
		Addresses    []string `mapstructure:"addresses"`
		Index        string   `mapstructure:"index"`
		FullSyncCron string   `mapstructure:"fullsynccron"`
	} `mapstructure:"elasticsearch"`

	Tracing struct {
		Enabled     bool   `mapstructure:"enabled"`
		ServiceName string `mapstructure:"servicename"`
	} `mapstructure:"tracing"`
}

// Subscription routes workflow events to a webhook endpoint. An empty environment matches every environment.
type Subscription struct {
	Type        string   `mapstructure:"type" json:"type" validate:"required,eq=webhook"`
	URL         string   `mapstructure:"url" json:"url" validate:"required,url"`
	Events      []string `mapstructure:"events" json:"events" validate:"required,min=1,dive,required"`
	Environment string   `mapstructure:"environment" json:"environment"`
	Secret      string   `mapstructure:"secret" json:"secret"`
}

const (
	KycSignupDefinitionID = "1001"
	KybSignupDefinitionID = "1002"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.addr", ":80")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.args", "file:backoffice.db?cache=shared")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("lock.wait", 5*time.Second)
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("webhooks.defaulturl", "")
	v.SetDefault("webhooks.secret", "")
	v.SetDefault("webhooks.timeout", 10*time.Second)
	v.SetDefault("webhooks.async", false)
	v.SetDefault("webhooks.ratelimit", 0)
	v.SetDefault("intents", map[string]string{
		"kycSignup": KycSignupDefinitionID,
		"kybSignup": KybSignupDefinitionID,
	})
	v.SetDefault("elasticsearch.addresses", []string{})
	v.SetDefault("elasticsearch.index", "workflow_runtimes")
	v.SetDefault("elasticsearch.fullsynccron", "0 0 3 * * *")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.servicename", "backoffice")
}

// Load reads configuration from the optional yaml file and BACKOFFICE_ prefixed environment variables.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file and no environment overrides applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// IntentDefinition looks up the definition id mapped to an intent. Keys are matched case-insensitively
// since viper folds map keys to lower case.
func (c *Config) IntentDefinition(intent string) (string, bool) {
	for name, id := range c.Intents {
		if strings.EqualFold(name, intent) {
			return id, true
		}
	}
	return "", false
}
