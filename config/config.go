package config

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultOrchBaseURL  = "http://task.13.234.74.6.nip.io"
	DefaultAuthnBaseURL = "http://auth.13.234.74.6.nip.io/api"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Backends  BackendsConfig  `yaml:"backends" mapstructure:"backends"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Web       WebConfig       `yaml:"web" mapstructure:"web"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Messaging MessagingConfig `yaml:"messaging" mapstructure:"messaging"`
}

type BackendsConfig struct {
	OrchBaseURL  string `yaml:"orch_base_url" mapstructure:"orch_base_url"`
	AuthnBaseURL string `yaml:"authn_base_url" mapstructure:"authn_base_url"`
	// Timeout of 0 keeps the transport default.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type CacheConfig struct {
	Backend    string        `yaml:"backend" mapstructure:"backend"`
	StaleTime  time.Duration `yaml:"stale_time" mapstructure:"stale_time"`
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Redis      RedisConfig   `yaml:"redis" mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `yaml:"address" mapstructure:"address"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

type WebConfig struct {
	Host          string     `yaml:"host" mapstructure:"host"`
	Port          int        `yaml:"port" mapstructure:"port"`
	SessionSecret string     `yaml:"session_secret" mapstructure:"session_secret"`
	PageSize      int        `yaml:"page_size" mapstructure:"page_size"`
	Operators     []Operator `yaml:"operators" mapstructure:"operators"`
}

// Operator is a console login. PasswordHash is a bcrypt hash.
type Operator struct {
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash"`
}

type LogConfig struct {
	Level       string   `yaml:"level" mapstructure:"level"`
	Encoding    string   `yaml:"encoding" mapstructure:"encoding"`
	OutputPaths []string `yaml:"output_paths" mapstructure:"output_paths"`
}

type MessagingConfig struct {
	Backend       string      `yaml:"backend" mapstructure:"backend"`
	ActivityTopic string      `yaml:"activity_topic" mapstructure:"activity_topic"`
	Kafka         KafkaConfig `yaml:"kafka" mapstructure:"kafka"`
	MQTT          MQTTConfig  `yaml:"mqtt" mapstructure:"mqtt"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Port     int    `yaml:"port" mapstructure:"port"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
}

func Defaults() *Config {
	return &Config{
		Backends: BackendsConfig{
			OrchBaseURL:  DefaultOrchBaseURL,
			AuthnBaseURL: DefaultAuthnBaseURL,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			RetryDelay: time.Second,
			TTL:        10 * time.Minute,
			Redis: RedisConfig{
				Address: "localhost:6379",
			},
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8090,
			SessionSecret: "change-me-in-production",
			PageSize:      10,
		},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "console",
			OutputPaths: []string{"stdout"},
		},
		Messaging: MessagingConfig{
			Backend:       "",
			ActivityTopic: "orchconsole.activity",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "orchconsole",
			},
		},
	}
}

// Load reads the YAML file at path on top of Defaults. A missing file is not
// an error. ORCH_BASE_URL and AUTHN_BASE_URL override the backend URLs, and
// any key can be set with an ORCHCONSOLE_ prefixed variable
// (ORCHCONSOLE_WEB_PORT, ORCHCONSOLE_CACHE_BACKEND, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ORCHCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Defaults())
	if err := v.BindEnv("backends.orch_base_url", "ORCH_BASE_URL", "ORCHCONSOLE_BACKENDS_ORCH_BASE_URL"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("backends.authn_base_url", "AUTHN_BASE_URL", "ORCHCONSOLE_BACKENDS_AUTHN_BASE_URL"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Backends.OrchBaseURL == "" {
		cfg.Backends.OrchBaseURL = DefaultOrchBaseURL
	}
	if cfg.Backends.AuthnBaseURL == "" {
		cfg.Backends.AuthnBaseURL = DefaultAuthnBaseURL
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("backends.orch_base_url", d.Backends.OrchBaseURL)
	v.SetDefault("backends.authn_base_url", d.Backends.AuthnBaseURL)
	v.SetDefault("backends.timeout", d.Backends.Timeout)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.stale_time", d.Cache.StaleTime)
	v.SetDefault("cache.retry_delay", d.Cache.RetryDelay)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.redis.address", d.Cache.Redis.Address)
	v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	v.SetDefault("web.host", d.Web.Host)
	v.SetDefault("web.port", d.Web.Port)
	v.SetDefault("web.session_secret", d.Web.SessionSecret)
	v.SetDefault("web.page_size", d.Web.PageSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.output_paths", d.Log.OutputPaths)
	v.SetDefault("messaging.backend", d.Messaging.Backend)
	v.SetDefault("messaging.activity_topic", d.Messaging.ActivityTopic)
	v.SetDefault("messaging.kafka.brokers", d.Messaging.Kafka.Brokers)
	v.SetDefault("messaging.mqtt.broker", d.Messaging.MQTT.Broker)
	v.SetDefault("messaging.mqtt.port", d.Messaging.MQTT.Port)
	v.SetDefault("messaging.mqtt.client_id", d.Messaging.MQTT.ClientID)
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }
