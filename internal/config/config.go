package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/perceptrader/mt5-trader/internal/capital"
)

// Defaults applied when the file leaves a field unset.
const (
	DefaultDeviation = 20
	DefaultMagic     = 234000
	DefaultComment   = "PerceptraderAI"
)

// ExchangeConfig holds broker connection credentials. Values may be
// overridden from the environment so keys stay out of config files.
type ExchangeConfig struct {
	Name    string `json:"name"`
	APIKey  string `json:"api_key"`
	Secret  string `json:"secret"`
	Testnet bool   `json:"testnet"`
	Demo    bool   `json:"demo"`
}

// NotificationConfig enables trade notifications over Telegram.
type NotificationConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// MonitoringConfig controls the Prometheus metrics endpoint.
type MonitoringConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Config is the top-level trading configuration.
type Config struct {
	Symbols []string `json:"symbols"`

	// Risk sizing.
	Balance  float64 `json:"balance"`
	VarConf  float64 `json:"var_conf"`
	CvarConf float64 `json:"cvar_conf"`
	SlPips   float64 `json:"sl_pips"`
	PipValue float64 `json:"pip_value"`

	// Capital allocation.
	MaxAllocPerTrade float64 `json:"max_alloc_per_trade"`
	Policy           string  `json:"policy"`

	// Order routing.
	Deviation int    `json:"deviation"`
	Magic     int    `json:"magic"`
	Comment   string `json:"comment"`

	Exchange      ExchangeConfig     `json:"exchange"`
	Notifications NotificationConfig `json:"notifications"`
	Monitoring    MonitoringConfig   `json:"monitoring"`

	// Reporting.
	ExcelReport string `json:"excel_report"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{
		VarConf:          0.95,
		CvarConf:         0.95,
		MaxAllocPerTrade: 0.05,
		Policy:           "flat",
		Deviation:        DefaultDeviation,
		Magic:            DefaultMagic,
		Comment:          DefaultComment,
		Monitoring: MonitoringConfig{
			Port: 8080,
			Path: "/metrics",
		},
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		c.Exchange.Secret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notifications.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notifications.ChatID = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Balance <= 0 {
		return fmt.Errorf("balance must be positive, got %v", c.Balance)
	}
	if c.VarConf <= 0 || c.VarConf >= 1 {
		return fmt.Errorf("var_conf must be in (0, 1), got %v", c.VarConf)
	}
	if c.CvarConf <= 0 || c.CvarConf >= 1 {
		return fmt.Errorf("cvar_conf must be in (0, 1), got %v", c.CvarConf)
	}
	if c.SlPips <= 0 {
		return fmt.Errorf("sl_pips must be positive, got %v", c.SlPips)
	}
	if c.PipValue <= 0 {
		return fmt.Errorf("pip_value must be positive, got %v", c.PipValue)
	}
	if c.MaxAllocPerTrade <= 0 || c.MaxAllocPerTrade > 1 {
		return fmt.Errorf("max_alloc_per_trade must be in (0, 1], got %v", c.MaxAllocPerTrade)
	}
	if _, err := capital.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.Deviation < 0 {
		return fmt.Errorf("deviation must not be negative, got %d", c.Deviation)
	}
	if c.Notifications.Enabled && (c.Notifications.BotToken == "" || c.Notifications.ChatID == "") {
		return fmt.Errorf("notifications enabled but bot_token or chat_id missing")
	}
	return nil
}
