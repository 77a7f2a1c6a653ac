package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment and an optional .env file.
type Config struct {
	HTTPAddr   string `env:"LOTTERY_HTTP_ADDR,default=:8080"`
	AdminToken string `env:"LOTTERY_ADMIN_TOKEN"`
	LogVerbose bool   `env:"LOTTERY_LOG_VERBOSE,default=true"` // echo info and warnings to stdout
	LogFile    string `env:"LOTTERY_LOG_FILE"`

	TicketPrice           int64 `env:"LOTTERY_TICKET_PRICE,default=2"`
	BaseJackpot           int64 `env:"LOTTERY_BASE_JACKPOT,default=1000000"`
	MaxTicketsPerPurchase int   `env:"LOTTERY_MAX_TICKETS,default=10"`
	SeedAccounts          bool  `env:"LOTTERY_SEED_ACCOUNTS,default=true"`

	AutoDrawingEnabled bool          `env:"LOTTERY_AUTO_DRAWING_ENABLED,default=true"`
	DrawWeekday        string        `env:"LOTTERY_DRAW_WEEKDAY,default=friday"`
	DrawHour           int           `env:"LOTTERY_DRAW_HOUR,default=21"`
	DrawMinute         int           `env:"LOTTERY_DRAW_MINUTE,default=0"`
	Timezone           string        `env:"LOTTERY_TIMEZONE,default=Local"`
	CheckInterval      time.Duration `env:"LOTTERY_CHECK_INTERVAL,default=1m"`

	PurchaseRate  float64 `env:"LOTTERY_PURCHASE_RATE,default=5"`
	PurchaseBurst int     `env:"LOTTERY_PURCHASE_BURST,default=10"`
}

// Load reads envFile if it exists and decodes the environment into a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.TicketPrice <= 0 {
		return fmt.Errorf("ticket price must be positive, got %d", c.TicketPrice)
	}
	if c.BaseJackpot <= 0 {
		return fmt.Errorf("base jackpot must be positive, got %d", c.BaseJackpot)
	}
	if c.MaxTicketsPerPurchase <= 0 {
		return fmt.Errorf("max tickets per purchase must be positive, got %d", c.MaxTicketsPerPurchase)
	}
	if _, err := c.Weekday(); err != nil {
		return err
	}
	if c.DrawHour < 0 || c.DrawHour > 23 {
		return fmt.Errorf("draw hour must be 0-23, got %d", c.DrawHour)
	}
	if c.DrawMinute < 0 || c.DrawMinute > 59 {
		return fmt.Errorf("draw minute must be 0-59, got %d", c.DrawMinute)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive, got %s", c.CheckInterval)
	}
	return nil
}

// Weekday parses DrawWeekday, accepting English day names or their three-letter abbreviations.
func (c *Config) Weekday() (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(c.DrawWeekday))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown draw weekday %q", c.DrawWeekday)
}

// Location loads the time zone drawings are scheduled in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
