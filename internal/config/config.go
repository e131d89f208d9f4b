package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jwtly10/signalbook/internal/backtest"
	"github.com/jwtly10/signalbook/internal/gateway"
	"github.com/jwtly10/signalbook/internal/indicator"
	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/marketdata"
	"github.com/jwtly10/signalbook/internal/optimizer"
	"github.com/jwtly10/signalbook/internal/report"
	"github.com/jwtly10/signalbook/internal/risk"
	"github.com/jwtly10/signalbook/internal/signal"
	"github.com/jwtly10/signalbook/internal/sizing"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Symbols []string `yaml:"symbols"`

	Log        logging.Config     `yaml:"log"`
	Indicators indicator.Config   `yaml:"indicators"`
	Scoring    signal.Config      `yaml:"scoring"`
	Sizing     sizing.Config      `yaml:"sizing"`
	Risk       risk.Config        `yaml:"risk"`
	Simulation backtest.SimConfig `yaml:"simulation"`
	Optimizer  optimizer.Config   `yaml:"optimizer"`

	Account    AccountConfig    `yaml:"account"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Claims     ClaimsConfig     `yaml:"claims"`
	Report     ReportConfig     `yaml:"report"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type AccountConfig struct {
	StartingBalance float64 `yaml:"starting_balance" default:"10000" validate:"gt=0"`
}

type MarketDataConfig struct {
	Source string                 `yaml:"source" default:"csv" validate:"oneof=csv oanda"`
	CSVDir string                 `yaml:"csv_dir" default:"data"`
	Oanda  marketdata.OandaConfig `yaml:"oanda"`
}

type GatewayConfig struct {
	Type  string              `yaml:"type" default:"log" validate:"oneof=log kafka"`
	Kafka gateway.KafkaConfig `yaml:"kafka"`
}

type ClaimsConfig struct {
	Type  string                 `yaml:"type" default:"memory" validate:"oneof=memory redis"`
	Redis risk.RedisClaimsConfig `yaml:"redis"`
}

type ReportConfig struct {
	Output     string                  `yaml:"output" default:"-"`
	PinePath   string                  `yaml:"pine_path"`
	ClickHouse report.ClickHouseConfig `yaml:"clickhouse"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	c.Optimizer.Ranges = optimizer.DefaultRanges()
	return &c, nil
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadWithEnv is Load with environment overrides applied before validation.
// An empty path loads the defaults.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func read(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SIGNALBOOK_SYMBOLS"); v != "" {
		c.Symbols = SplitList(v)
	}
	if v := os.Getenv("SIGNALBOOK_KAFKA_BROKERS"); v != "" {
		c.Gateway.Kafka.Brokers = SplitList(v)
	}
	if v := os.Getenv("SIGNALBOOK_REDIS_ADDR"); v != "" {
		c.Claims.Redis.Addr = v
	}
	if v := os.Getenv("SIGNALBOOK_CLICKHOUSE_DSN"); v != "" {
		c.Report.ClickHouse.DSN = v
	}
	if v := os.Getenv("OANDA_ACCOUNT_ID"); v != "" {
		c.MarketData.Oanda.AccountID = v
	}
	if v := os.Getenv("OANDA_API_KEY"); v != "" {
		c.MarketData.Oanda.APIKey = v
	}
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate runs the struct tag rules and then the cross-field rules each
// component owns. Every error wraps ErrInvalid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalid, fieldMessage(fieldErrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	checks := []struct {
		section string
		check   func() error
	}{
		{"indicators", c.Indicators.Validate},
		{"scoring", c.Scoring.Validate},
		{"sizing", c.Sizing.Validate},
		{"risk", c.Risk.Validate},
		{"optimizer.ranges", c.Optimizer.Ranges.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, ch.section, err)
		}
	}

	if c.Scoring.RSIBuyThreshold > c.Scoring.RSISellThreshold {
		return fmt.Errorf("%w: scoring: rsi_buy_threshold (%.2f) must not exceed rsi_sell_threshold (%.2f)",
			ErrInvalid, c.Scoring.RSIBuyThreshold, c.Scoring.RSISellThreshold)
	}
	if c.Gateway.Type == "kafka" && len(c.Gateway.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: gateway: kafka needs at least one broker", ErrInvalid)
	}
	if c.Claims.Type == "redis" && c.Claims.Redis.Addr == "" {
		return fmt.Errorf("%w: claims: redis needs an addr", ErrInvalid)
	}
	if c.MarketData.Source == "oanda" && c.MarketData.Oanda.AccountID == "" {
		return fmt.Errorf("%w: market_data: oanda needs an account id (OANDA_ACCOUNT_ID)", ErrInvalid)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// Base is the fixed configuration the optimizer layers samples on.
func (c *Config) Base() optimizer.Base {
	return optimizer.Base{
		Indicators: c.Indicators,
		Scoring:    c.Scoring,
		Simulation: c.Simulation,
		Sizing:     c.Sizing,
	}
}

func (c *Config) IndicatorConfig() indicator.Config { return c.Indicators }
func (c *Config) ScoringConfig() signal.Config      { return c.Scoring }
func (c *Config) SizingConfig() sizing.Config       { return c.Sizing }
func (c *Config) RiskConfig() risk.Config           { return c.Risk }
func (c *Config) SimConfig() backtest.SimConfig     { return c.Simulation }
