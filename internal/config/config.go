package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Nats     NatsConfig     `mapstructure:"nats"`
	Jaeger   JaegerConfig   `mapstructure:"jaeger"`
	Log      LogConfig      `mapstructure:"log"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	GRPCPort string `mapstructure:"grpc_port"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	Prefix     string        `mapstructure:"prefix"`
	SuccessTTL time.Duration `mapstructure:"success_ttl"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	Buffer  int    `mapstructure:"buffer"`
}

// BrokerList splits the comma separated broker string.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

type NatsConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type JaegerConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// CheckoutConfig holds the simulated provider timings, expressed in units of TimeUnit.
type CheckoutConfig struct {
	TimeUnit             time.Duration `mapstructure:"time_unit"`
	ProcessingUnits      int           `mapstructure:"processing_units"`
	MessageIntervalUnits int           `mapstructure:"message_interval_units"`
	SuccessDisplayUnits  int           `mapstructure:"success_display_units"`
	CloseResetDelay      time.Duration `mapstructure:"close_reset_delay"`
	PruneInterval        time.Duration `mapstructure:"prune_interval"`
}

func (c CheckoutConfig) ProcessingDuration() time.Duration {
	return time.Duration(c.ProcessingUnits) * c.TimeUnit
}

func (c CheckoutConfig) MessageInterval() time.Duration {
	return time.Duration(c.MessageIntervalUnits) * c.TimeUnit
}

func (c CheckoutConfig) SuccessDisplay() time.Duration {
	return time.Duration(c.SuccessDisplayUnits) * c.TimeUnit
}

// legacyEnv maps config keys to the plain environment names used by the
// deployment manifests, next to the CHECKOUT_ prefixed ones.
var legacyEnv = map[string]string{
	"server.port":     "PORT",
	"database.url":    "DATABASE_URL",
	"redis.url":       "REDIS_URL",
	"kafka.brokers":   "KAFKA_BROKERS",
	"nats.url":        "NATS_URL",
	"jaeger.endpoint": "JAEGER_ENDPOINT",
}

// Load reads defaults, an optional config.yaml and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := "CHECKOUT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects timings the orchestrator cannot run with.
func (c *Config) Validate() error {
	var errs []error
	ck := c.Checkout
	if ck.TimeUnit <= 0 {
		errs = append(errs, errors.New("checkout.time_unit must be positive"))
	}
	if ck.ProcessingUnits <= 0 {
		errs = append(errs, errors.New("checkout.processing_units must be positive"))
	}
	if ck.MessageIntervalUnits <= 0 {
		errs = append(errs, errors.New("checkout.message_interval_units must be positive"))
	}
	if ck.SuccessDisplayUnits <= 0 {
		errs = append(errs, errors.New("checkout.success_display_units must be positive"))
	}
	if ck.CloseResetDelay <= 0 {
		errs = append(errs, errors.New("checkout.close_reset_delay must be positive"))
	}
	if ck.PruneInterval <= 0 {
		errs = append(errs, errors.New("checkout.prune_interval must be positive"))
	}
	if c.Kafka.Buffer <= 0 {
		errs = append(errs, errors.New("kafka.buffer must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8082")
	v.SetDefault("server.grpc_port", "9082")

	v.SetDefault("database.url", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "")
	v.SetDefault("redis.success_ttl", 24*time.Hour)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "checkout.stage.changed")
	v.SetDefault("kafka.buffer", 256)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "checkout.upgrade.succeeded")

	v.SetDefault("jaeger.endpoint", "jaeger:4318")

	v.SetDefault("log.level", "info")

	v.SetDefault("checkout.time_unit", time.Second)
	v.SetDefault("checkout.processing_units", 4)
	v.SetDefault("checkout.message_interval_units", 1)
	v.SetDefault("checkout.success_display_units", 2)
	v.SetDefault("checkout.close_reset_delay", 300*time.Millisecond)
	v.SetDefault("checkout.prune_interval", 5*time.Minute)
}
