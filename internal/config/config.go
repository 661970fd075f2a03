// Package config loads and validates the bot configuration. Validation is
// deliberately strict: a bad parameter set must stop the process before the
// first trading cycle.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	ModePaper   = "paper"
	ModeBinance = "binance"
)

type Config struct {
	Symbol              string `yaml:"symbol"`
	Timeframe           string `yaml:"timeframe"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	HistoryCandles      int    `yaml:"history_candles"`
	Mode                string `yaml:"mode"`

	Binance struct {
		APIKey    string `yaml:"api_key"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"binance"`

	Paper struct {
		InitialBalance float64 `yaml:"initial_balance"`
	} `yaml:"paper"`

	Strategy struct {
		Volatility struct {
			ATRPeriod            int     `yaml:"atr_period"`
			CompressionPeriod    int     `yaml:"compression_period"`
			CompressionThreshold float64 `yaml:"compression_threshold"`
			ExpansionMultiplier  float64 `yaml:"expansion_multiplier"`
			ExpansionMaxAge      int     `yaml:"expansion_max_age"`
		} `yaml:"volatility"`
		Breakout struct {
			Lookback       int     `yaml:"lookback"`
			MinBreakoutATR float64 `yaml:"min_breakout_atr"`
		} `yaml:"breakout"`
		Momentum struct {
			Period int `yaml:"period"`
		} `yaml:"momentum"`
	} `yaml:"strategy"`

	Risk struct {
		MaxRiskPerTrade     float64 `yaml:"max_risk_per_trade"`
		StopLossATRMultiple float64 `yaml:"stop_loss_atr_multiple"`
		MaxDailyDrawdown    float64 `yaml:"max_daily_drawdown"`
		MaxTotalDrawdown    float64 `yaml:"max_total_drawdown"`
	} `yaml:"risk"`

	TakeProfit struct {
		Levels []ProfitLevel `yaml:"levels"`

		Trailing struct {
			ActivationATRMultiple float64 `yaml:"activation_atr_multiple"`
			DistanceATRMultiple   float64 `yaml:"distance_atr_multiple"`
		} `yaml:"trailing"`
	} `yaml:"take_profit"`

	Sessions []Session `yaml:"sessions"`

	NewsBlackouts []Blackout `yaml:"news_blackouts"`
}

type ProfitLevel struct {
	TargetATRMultiple float64 `yaml:"target_atr_multiple"`
	CloseFraction     float64 `yaml:"close_fraction"`
}

type Session struct {
	Name      string `yaml:"name"`
	StartHour int    `yaml:"start_hour"`
	EndHour   int    `yaml:"end_hour"`
}

type Blackout struct {
	Name          string `yaml:"name"`
	Weekday       int    `yaml:"weekday"` // 0=Sunday .. 6=Saturday, time.Weekday numbering
	Hour          int    `yaml:"hour"`
	Minute        int    `yaml:"minute"`
	BeforeMinutes int    `yaml:"before_minutes"`
	AfterMinutes  int    `yaml:"after_minutes"`
}

// Load reads the YAML config, overlays credentials from the environment and
// validates everything. Any error here is fatal to the caller.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		cfg.Binance.APIKey = key
	}
	if secret := os.Getenv("BINANCE_SECRET_KEY"); secret != "" {
		cfg.Binance.SecretKey = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timeframe == "" {
		c.Timeframe = "15m"
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 60
	}
	if c.HistoryCandles == 0 {
		c.HistoryCandles = 200
	}
	if c.Mode == "" {
		c.Mode = ModePaper
	}
	if c.Paper.InitialBalance == 0 {
		c.Paper.InitialBalance = 10000
	}

	v := &c.Strategy.Volatility
	if v.ATRPeriod == 0 {
		v.ATRPeriod = 14
	}
	if v.CompressionPeriod == 0 {
		v.CompressionPeriod = 20
	}
	if v.CompressionThreshold == 0 {
		v.CompressionThreshold = 0.6
	}
	if v.ExpansionMultiplier == 0 {
		v.ExpansionMultiplier = 1.5
	}
	if v.ExpansionMaxAge == 0 {
		v.ExpansionMaxAge = 3
	}

	b := &c.Strategy.Breakout
	if b.Lookback == 0 {
		b.Lookback = 10
	}
	if b.MinBreakoutATR == 0 {
		b.MinBreakoutATR = 0.3
	}
	if c.Strategy.Momentum.Period == 0 {
		c.Strategy.Momentum.Period = 10
	}

	r := &c.Risk
	if r.MaxRiskPerTrade == 0 {
		r.MaxRiskPerTrade = 0.02
	}
	if r.StopLossATRMultiple == 0 {
		r.StopLossATRMultiple = 2.0
	}
	if r.MaxDailyDrawdown == 0 {
		r.MaxDailyDrawdown = 0.05
	}
	if r.MaxTotalDrawdown == 0 {
		r.MaxTotalDrawdown = 0.15
	}

	tp := &c.TakeProfit
	if len(tp.Levels) == 0 {
		tp.Levels = []ProfitLevel{
			{TargetATRMultiple: 2.0, CloseFraction: 0.5},
			{TargetATRMultiple: 3.5, CloseFraction: 0.3},
			{TargetATRMultiple: 5.0, CloseFraction: 0.2},
		}
	}
	if tp.Trailing.ActivationATRMultiple == 0 {
		tp.Trailing.ActivationATRMultiple = 2.5
	}
	if tp.Trailing.DistanceATRMultiple == 0 {
		tp.Trailing.DistanceATRMultiple = 1.5
	}

	if len(c.Sessions) == 0 {
		c.Sessions = []Session{
			{Name: "london", StartHour: 8, EndHour: 16},
			{Name: "newyork", StartHour: 13, EndHour: 21},
		}
	}
	if len(c.NewsBlackouts) == 0 {
		c.NewsBlackouts = []Blackout{
			{Name: "eia", Weekday: 3, Hour: 15, Minute: 30, BeforeMinutes: 30, AfterMinutes: 60},
		}
	}
}

// Validate fails fast on absent or out-of-range parameters.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.Mode != ModePaper && c.Mode != ModeBinance {
		return fmt.Errorf("mode must be %q or %q, got %q", ModePaper, ModeBinance, c.Mode)
	}
	if c.Mode == ModeBinance && (c.Binance.APIKey == "" || c.Binance.SecretKey == "") {
		return fmt.Errorf("binance mode requires api_key and secret_key")
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be positive")
	}

	v := c.Strategy.Volatility
	if v.ATRPeriod <= 0 || v.CompressionPeriod <= 0 || v.ExpansionMaxAge <= 0 {
		return fmt.Errorf("volatility periods must be positive")
	}
	if v.CompressionThreshold <= 0 || v.CompressionThreshold >= 1 {
		return fmt.Errorf("compression_threshold must be in (0, 1), got %v", v.CompressionThreshold)
	}
	if v.ExpansionMultiplier <= 1 {
		return fmt.Errorf("expansion_multiplier must exceed 1, got %v", v.ExpansionMultiplier)
	}

	if c.Strategy.Breakout.Lookback <= 0 || c.Strategy.Momentum.Period <= 0 {
		return fmt.Errorf("breakout lookback and momentum period must be positive")
	}
	if c.Strategy.Breakout.MinBreakoutATR <= 0 {
		return fmt.Errorf("min_breakout_atr must be positive")
	}

	need := max(v.ATRPeriod, v.CompressionPeriod) + 1
	if c.HistoryCandles < need {
		return fmt.Errorf("history_candles %d cannot warm up indicators needing %d candles", c.HistoryCandles, need)
	}

	r := c.Risk
	for name, f := range map[string]float64{
		"max_risk_per_trade": r.MaxRiskPerTrade,
		"max_daily_drawdown": r.MaxDailyDrawdown,
		"max_total_drawdown": r.MaxTotalDrawdown,
	} {
		if f <= 0 || f >= 1 {
			return fmt.Errorf("%s must be a fraction in (0, 1), got %v", name, f)
		}
	}
	if r.StopLossATRMultiple <= 0 {
		return fmt.Errorf("stop_loss_atr_multiple must be positive")
	}

	tp := c.TakeProfit
	if len(tp.Levels) == 0 {
		return fmt.Errorf("take_profit.levels must not be empty")
	}
	for i, lvl := range tp.Levels {
		if lvl.TargetATRMultiple <= 0 {
			return fmt.Errorf("take_profit level %d: target_atr_multiple must be positive", i)
		}
		if lvl.CloseFraction <= 0 || lvl.CloseFraction > 1 {
			return fmt.Errorf("take_profit level %d: close_fraction must be in (0, 1], got %v", i, lvl.CloseFraction)
		}
		if i > 0 && lvl.TargetATRMultiple <= tp.Levels[i-1].TargetATRMultiple {
			return fmt.Errorf("take_profit levels must have strictly ascending targets")
		}
	}
	sum := lo.SumBy(tp.Levels, func(l ProfitLevel) float64 { return l.CloseFraction })
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("take_profit close fractions must sum to 1.0, got %v", sum)
	}
	if tp.Trailing.ActivationATRMultiple <= 0 || tp.Trailing.DistanceATRMultiple <= 0 {
		return fmt.Errorf("trailing parameters must be positive")
	}

	for _, s := range c.Sessions {
		if s.StartHour < 0 || s.StartHour > 23 || s.EndHour < 1 || s.EndHour > 24 || s.StartHour >= s.EndHour {
			return fmt.Errorf("session %q: hours must satisfy 0 <= start < end <= 24", s.Name)
		}
	}
	for _, b := range c.NewsBlackouts {
		if b.Weekday < 0 || b.Weekday > 6 {
			return fmt.Errorf("blackout %q: weekday must be 0..6", b.Name)
		}
		if b.Hour < 0 || b.Hour > 23 || b.Minute < 0 || b.Minute > 59 {
			return fmt.Errorf("blackout %q: invalid time of day", b.Name)
		}
		if b.BeforeMinutes < 0 || b.AfterMinutes < 0 {
			return fmt.Errorf("blackout %q: margins must not be negative", b.Name)
		}
	}

	return nil
}

// PollInterval returns the configured cycle interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}
