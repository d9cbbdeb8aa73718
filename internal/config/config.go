package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"commercial-analytics/internal/abc"
)

// EnvPrefix prefixes every environment variable, e.g. CASCADE_SERVER_PORT.
const EnvPrefix = "CASCADE"

type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Data     DataConfig     `yaml:"data" envconfig:"DATA"`
	Logger   LoggerConfig   `yaml:"logger" envconfig:"LOG"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// DataConfig locates the dataset and its companions. MappingFile and
// GoalsFile are optional.
type DataConfig struct {
	File        string        `yaml:"file" envconfig:"FILE" validate:"required"`
	MappingFile string        `yaml:"mapping_file" envconfig:"MAPPING_FILE"`
	GoalsFile   string        `yaml:"goals_file" envconfig:"GOALS_FILE"`
	CacheDir    string        `yaml:"cache_dir" envconfig:"CACHE_DIR"`
	LoadTimeout time.Duration `yaml:"load_timeout" envconfig:"LOAD_TIMEOUT" validate:"gt=0"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `yaml:"enable_rate_limit" envconfig:"RATE_LIMIT_ENABLED"`
	RateLimitRPS    int      `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst  int      `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gt=0"`
	AllowedOrigins  []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	TrustedProxies  []string `yaml:"trusted_proxies" envconfig:"TRUSTED_PROXIES"`
}

// AnalysisConfig tunes the engine. Threshold tables are file-only.
type AnalysisConfig struct {
	ActiveDays       int             `yaml:"active_days" envconfig:"ACTIVE_DAYS" validate:"gte=0"`
	AtRiskDays       int             `yaml:"at_risk_days" envconfig:"AT_RISK_DAYS" validate:"gtfield=ActiveDays"`
	UnspecifiedLabel string          `yaml:"unspecified_label" envconfig:"UNSPECIFIED_LABEL" validate:"required"`
	CriticalSharePct float64         `yaml:"critical_share_pct" envconfig:"CRITICAL_SHARE_PCT" validate:"gte=0,lte=100"`
	WorkingWeekdays  []string        `yaml:"working_weekdays" envconfig:"WORKING_WEEKDAYS" validate:"min=1,dive,oneof=sun mon tue wed thu fri sat"`
	ABCThresholds    []abc.Threshold `yaml:"abc_thresholds" ignored:"true"`
	ItemThresholds   []abc.Threshold `yaml:"item_thresholds" ignored:"true"`
}

// Default is the configuration before any file or environment overlay.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Data: DataConfig{
			File:        "data.csv",
			CacheDir:    ".cache",
			LoadTimeout: 60 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  10,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
		Analysis: AnalysisConfig{
			ActiveDays:       60,
			AtRiskDays:       90,
			UnspecifiedLabel: "Unspecified",
			CriticalSharePct: 1,
			WorkingWeekdays:  []string{"mon", "tue", "wed", "thu", "fri"},
			ABCThresholds:    slices.Clone(abc.DefaultThresholds),
			ItemThresholds:   slices.Clone(abc.ItemThresholds),
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by CASCADE_CONFIG_FILE, and the environment, in increasing precedence. A
// .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadFile(os.Getenv(EnvPrefix + "_CONFIG_FILE"))
}

// LoadFile is Load without the .env step; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Logger.Level = strings.ToLower(strings.TrimSpace(c.Logger.Level))
	c.Logger.Format = strings.ToLower(strings.TrimSpace(c.Logger.Format))
	for i, d := range c.Analysis.WorkingWeekdays {
		d = strings.ToLower(strings.TrimSpace(d))
		if len(d) > 3 {
			d = d[:3]
		}
		c.Analysis.WorkingWeekdays[i] = d
	}
}

var structValidator = validator.New()

func (c *Config) validate() error {
	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if err := validThresholds(c.Analysis.ABCThresholds); err != nil {
		return fmt.Errorf("abc_thresholds: %w", err)
	}
	if err := validThresholds(c.Analysis.ItemThresholds); err != nil {
		return fmt.Errorf("item_thresholds: %w", err)
	}
	return nil
}

func validThresholds(ts []abc.Threshold) error {
	if len(ts) == 0 {
		return nil
	}
	prev := 0.0
	for _, t := range ts {
		if t.Class == "" {
			return errors.New("empty class name")
		}
		if t.UpperBound <= prev {
			return fmt.Errorf("bound %.2f of class %s is not ascending", t.UpperBound, t.Class)
		}
		prev = t.UpperBound
	}
	if prev < 100 {
		return fmt.Errorf("last bound %.2f must reach 100", prev)
	}
	return nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// Weekdays converts WorkingWeekdays into time.Weekday values.
func (a AnalysisConfig) Weekdays() []time.Weekday {
	out := make([]time.Weekday, 0, len(a.WorkingWeekdays))
	for _, d := range a.WorkingWeekdays {
		if wd, ok := weekdays[d]; ok {
			out = append(out, wd)
		}
	}
	return out
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
