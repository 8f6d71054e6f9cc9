// Package config loads ada's configuration from embedded defaults, an
// optional YAML file, ADA_* environment variables and explicit overrides,
// in increasing order of priority.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "ADA_"

//go:embed defaults.yaml
var defaults []byte

type Config struct {
	HTTP       HTTP       `koanf:"http"`
	DB         DB         `koanf:"db"`
	Log        Log        `koanf:"log"`
	Scheduler  Scheduler  `koanf:"scheduler"`
	Notify     Notify     `koanf:"notify"`
	Events     Events     `koanf:"events"`
	Email      Email      `koanf:"email"`
	Sources    Sources    `koanf:"sources"`
	HTTPClient HTTPClient `koanf:"http_client"`
}

type HTTP struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}

type DB struct {
	Path        string        `koanf:"path" validate:"required"`
	BusyTimeout time.Duration `koanf:"busy_timeout" validate:"gte=0"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

type Scheduler struct {
	Interval        time.Duration `koanf:"interval" validate:"gt=0"`
	Timezone        string        `koanf:"timezone" validate:"required"`
	TaskTimeout     time.Duration `koanf:"task_timeout" validate:"gte=0"`
	// FetchTimeout bounds the fetch stage alone. It must leave part of
	// TaskTimeout for formatting and delivery.
	FetchTimeout    time.Duration `koanf:"fetch_timeout" validate:"gte=0"`
	MaxCatchUp      time.Duration `koanf:"max_catch_up" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	Concurrency     int           `koanf:"concurrency" validate:"gte=0"`
}

// Location resolves Timezone; "Local" is the device timezone.
func (s Scheduler) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

type Notify struct {
	QueueSize int  `koanf:"queue_size" validate:"gt=0"`
	AMQP      AMQP `koanf:"amqp"`
}

type AMQP struct {
	URL      string `koanf:"url" validate:"omitempty,url"`
	Exchange string `koanf:"exchange" validate:"required_with=URL"`
}

type Events struct {
	Retention     time.Duration `koanf:"retention" validate:"gte=0"`
	PruneSchedule string        `koanf:"prune_schedule"`
}

type Email struct {
	Adapter    string   `koanf:"adapter" validate:"oneof=log sendgrid"`
	From       string   `koanf:"from" validate:"required,email"`
	FromName   string   `koanf:"from_name"`
	RatePerSec float64  `koanf:"rate_per_sec" validate:"gte=0"`
	Sendgrid   Sendgrid `koanf:"sendgrid"`
}

type Sendgrid struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url" validate:"required,url"`
}

type Sources struct {
	Guardian Source `koanf:"guardian"`
	Weather  Source `koanf:"weather"`
	LastFM   Source `koanf:"lastfm"`
}

type Source struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url" validate:"required,url"`
}

type HTTPClient struct {
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints plus the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	if s := c.Scheduler; s.TaskTimeout > 0 && (s.FetchTimeout == 0 || s.FetchTimeout >= s.TaskTimeout) {
		return errors.New("scheduler.fetch_timeout must be shorter than scheduler.task_timeout")
	}
	if c.Email.Adapter == "sendgrid" && c.Email.Sendgrid.APIKey == "" {
		return errors.New("email.sendgrid.api_key is required when email.adapter is sendgrid")
	}
	return nil
}

// Load builds the configuration. path may be empty, in which case no file is
// read; a named file that does not exist is an error. overrides use dotted
// keys, e.g. "http.addr".
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	known := envKeys(k.Keys())

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			if dotted, ok := known[name]; ok {
				return dotted, value
			}
			// Unknown variables are dropped.
			return "", nil
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKeys maps the env form of every known key (scheduler_task_timeout) to
// its dotted form (scheduler.task_timeout). Keys may contain underscores, so
// splitting the variable name on "_" would be ambiguous.
func envKeys(keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[strings.ReplaceAll(k, ".", "_")] = k
	}
	return out
}
