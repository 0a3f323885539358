package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"watchtower/internal/engine/check"
)

type AppConfig struct {
	Server   ServerConfig
	State    StateConfig
	Policy   PolicyConfig
	Dispatch DispatchConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Mail     MailConfig
	Webhook  WebhookConfig
}

type ServerConfig struct {
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	ChecksFile    string        `envconfig:"CHECKS_FILE" default:"./checks.yaml"`
	ListenAddr    string        `envconfig:"LISTEN_ADDR" default:":8090"`
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"5s"`
}

type StateConfig struct {
	Backend  string `envconfig:"STATE_BACKEND" default:"file"`
	FilePath string `envconfig:"STATE_FILE" default:"./watchtower-state.json"`
	Prefix   string `envconfig:"STATE_REDIS_PREFIX" default:"watchtower:state:"`
}

type PolicyConfig struct {
	Cooldown       time.Duration `envconfig:"ALERT_COOLDOWN" default:"300s"`
	TwoStrike      bool          `envconfig:"ALERT_TWO_STRIKE" default:"false"`
	NotifyRecovery bool          `envconfig:"ALERT_NOTIFY_RECOVERY" default:"true"`
	CriticalAfter  int           `envconfig:"ALERT_CRITICAL_AFTER" default:"3"`
}

type DispatchConfig struct {
	MaxAttempts    int           `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"5"`
	BaseDelay      time.Duration `envconfig:"DISPATCH_BASE_DELAY" default:"1s"`
	MaxDelay       time.Duration `envconfig:"DISPATCH_MAX_DELAY" default:"30s"`
	RequestTimeout time.Duration `envconfig:"DISPATCH_REQUEST_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	Host string `envconfig:"REDIS_HOST" default:"localhost"`
	Port int    `envconfig:"REDIS_PORT" default:"6379"`
}

// KafkaConfig enables the kafka alert channel when brokers are set.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_ALERT_TOPIC" default:"watchtower.alerts"`
}

// MailConfig enables the mail alert channel when recipients are set.
// Credentials come from the environment, never from check specs.
type MailConfig struct {
	To       []string `envconfig:"MAIL_TO"`
	From     string   `envconfig:"MAIL_FROM"`
	Password string   `envconfig:"MAIL_PASSWORD"`
	Host     string   `envconfig:"MAIL_HOST"`
	Port     int      `envconfig:"MAIL_PORT" default:"587"`
}

// WebhookConfig enables the webhook alert channel when the URL is set.
type WebhookConfig struct {
	URL string `envconfig:"WEBHOOK_URL"`
}

func LoadConfig(path string) (AppConfig, error) {
	_ = godotenv.Load(path)

	var cfg AppConfig
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// specYAML mirrors check.Spec with string durations, since yaml.v3 has no
// native time.Duration decoding.
type specYAML struct {
	Key      string            `yaml:"key"`
	Kind     string            `yaml:"kind"`
	Target   string            `yaml:"target"`
	Timeout  string            `yaml:"timeout"`
	Interval string            `yaml:"interval"`
	Cooldown string            `yaml:"cooldown"`
	Params   map[string]string `yaml:"params"`
}

type checksFile struct {
	Checks []specYAML `yaml:"checks"`
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}

// LoadSpecs reads the check list from the yaml file at path and validates it.
// Any problem here is a configuration error: the engine refuses to start
// rather than run with a partial check set.
func LoadSpecs(path string) ([]check.Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadSpecs: %w", err)
	}
	var file checksFile
	if err = yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("LoadSpecs: parsing %s: %w", path, err)
	}
	if len(file.Checks) == 0 {
		return nil, fmt.Errorf("LoadSpecs: %s defines no checks", path)
	}

	validate := validator.New()
	specs := make([]check.Spec, 0, len(file.Checks))
	seen := make(map[string]struct{}, len(file.Checks))
	for i, raw := range file.Checks {
		spec := check.Spec{
			Key:    raw.Key,
			Kind:   raw.Kind,
			Target: raw.Target,
			Params: raw.Params,
		}
		if spec.Timeout, err = parseDuration("timeout", raw.Timeout); err != nil {
			return nil, fmt.Errorf("LoadSpecs: check %d (key %q): %w", i, raw.Key, err)
		}
		if spec.Interval, err = parseDuration("interval", raw.Interval); err != nil {
			return nil, fmt.Errorf("LoadSpecs: check %d (key %q): %w", i, raw.Key, err)
		}
		if spec.Cooldown, err = parseDuration("cooldown", raw.Cooldown); err != nil {
			return nil, fmt.Errorf("LoadSpecs: check %d (key %q): %w", i, raw.Key, err)
		}
		if err = validate.Struct(spec); err != nil {
			return nil, fmt.Errorf("LoadSpecs: check %d (key %q): %w", i, raw.Key, err)
		}
		if _, ok := seen[spec.Key]; ok {
			return nil, fmt.Errorf("LoadSpecs: duplicate check key %q", spec.Key)
		}
		seen[spec.Key] = struct{}{}
		specs = append(specs, spec)
	}
	return specs, nil
}
