package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/newthinker/orb/internal/backtest"
	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/cost"
	"github.com/newthinker/orb/internal/execution"
	"github.com/newthinker/orb/internal/outcome"
	"github.com/newthinker/orb/internal/session"
	"github.com/newthinker/orb/internal/storage/archive"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Session     SessionConfig               `mapstructure:"session"`
	Engine      EngineConfig                `mapstructure:"engine"`
	Policies    execution.Params            `mapstructure:"policies"`
	Instruments map[string]InstrumentConfig `mapstructure:"instruments"`
	Blocked     map[string][]string         `mapstructure:"blocked"`
	Batch       backtest.Config             `mapstructure:"batch"`
	Storage     StorageConfig               `mapstructure:"storage"`
	Metrics     MetricsConfig               `mapstructure:"metrics"`
	Log         LogConfig                   `mapstructure:"log"`
}

type SessionConfig struct {
	Timezone        string       `mapstructure:"timezone"`
	ReferenceOpen   string       `mapstructure:"reference_open"`
	OvernightCutoff string       `mapstructure:"overnight_cutoff"`
	RangeMinutes    int          `mapstructure:"range_minutes"`
	Granularity     string       `mapstructure:"granularity"`
	Slots           []SlotConfig `mapstructure:"slots"`
}

type SlotConfig struct {
	Name         string `mapstructure:"name"`
	Start        string `mapstructure:"start"`
	RangeMinutes int    `mapstructure:"range_minutes"` // 0 uses the session default
}

// EngineConfig holds the cost gate and the parameter grid a backtest sweeps.
type EngineConfig struct {
	CostGateThreshold float64            `mapstructure:"cost_gate_threshold"`
	Stress            map[string]float64 `mapstructure:"stress"`
	Grid              GridConfig         `mapstructure:"grid"`
}

// GridConfig lists the values of each parameter axis. The grid is their
// cartesian product.
type GridConfig struct {
	Policies  []string  `mapstructure:"policies"`
	RR        []float64 `mapstructure:"rr"`
	StopModes []string  `mapstructure:"stop_modes"`
	Anchors   []string  `mapstructure:"anchors"`
	Stress    []string  `mapstructure:"stress"`
}

// InstrumentConfig is one contract specification. The map key is the symbol.
type InstrumentConfig struct {
	TickSize      float64  `mapstructure:"tick_size"`
	TickValue     float64  `mapstructure:"tick_value"`
	PointValue    float64  `mapstructure:"point_value"`
	CommissionRT  float64  `mapstructure:"commission_rt"`
	SpreadTicks   float64  `mapstructure:"spread_ticks"`
	SlippageTicks float64  `mapstructure:"slippage_ticks"`
	Status        string   `mapstructure:"status"`
	Aliases       []string `mapstructure:"aliases"`
}

type StorageConfig struct {
	Bars    BarsConfig    `mapstructure:"bars"`
	Results ResultsConfig `mapstructure:"results"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

type BarsConfig struct {
	Backend string            `mapstructure:"backend"` // "csv", "clickhouse" or "yahoo"
	CSV     map[string]string `mapstructure:"csv"`     // symbol -> file
	DSN     string            `mapstructure:"dsn"`     // For clickhouse
}

type ResultsConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "postgres"
	DSN     string `mapstructure:"dsn"`
}

type ArchiveConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Type    string           `mapstructure:"type"` // "localfs" or "s3"
	Path    string           `mapstructure:"path"` // For localfs
	S3      archive.S3Config `mapstructure:"s3"`   // For S3
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("ORB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	// Lists replace the defaults rather than merging element by element
	cfg := Defaults()
	if v.IsSet("session.slots") {
		cfg.Session.Slots = nil
	}
	for key, list := range map[string]*[]string{
		"engine.grid.policies":   &cfg.Engine.Grid.Policies,
		"engine.grid.stop_modes": &cfg.Engine.Grid.StopModes,
		"engine.grid.anchors":    &cfg.Engine.Grid.Anchors,
		"engine.grid.stress":     &cfg.Engine.Grid.Stress,
	} {
		if v.IsSet(key) {
			*list = nil
		}
	}
	if v.IsSet("engine.grid.rr") {
		cfg.Engine.Grid.RR = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	slots := make([]SlotConfig, 0, len(session.DefaultSlots()))
	for _, s := range session.DefaultSlots() {
		slots = append(slots, SlotConfig{Name: s.Name, Start: s.Start.String()})
	}

	stress := make(map[string]float64)
	for k, m := range cost.DefaultStress() {
		stress[string(k)] = m
	}

	return &Config{
		Session: SessionConfig{
			Timezone:        session.DefaultTimezone,
			ReferenceOpen:   "09:00",
			OvernightCutoff: "06:00",
			RangeMinutes:    5,
			Granularity:     string(core.Granularity1m),
			Slots:           slots,
		},
		Engine: EngineConfig{
			CostGateThreshold: cost.DefaultGateThreshold,
			Stress:            stress,
			Grid: GridConfig{
				Policies:  []string{string(execution.KindMarketOnConfirm)},
				RR:        []float64{2},
				StopModes: []string{string(outcome.StopFull)},
				Anchors:   []string{string(outcome.AnchorFill)},
				Stress:    []string{string(cost.StressNormal)},
			},
		},
		Policies: execution.DefaultParams(),
		Batch:    backtest.DefaultConfig(),
		Storage: StorageConfig{
			Bars:    BarsConfig{Backend: "csv"},
			Results: ResultsConfig{Backend: "memory"},
			Archive: ArchiveConfig{Type: "localfs", Path: "reports"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Session validation
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Session.RangeMinutes <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("range_minutes must be positive, got %d", c.Session.RangeMinutes))
	}
	if _, err := core.ParseGranularity(c.Session.Granularity); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if len(c.Session.Slots) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("at least one session slot is required"))
	}
	if _, err := c.Resolver(); err != nil {
		return err
	}

	// Instrument validation
	reg, err := c.Registry()
	if err != nil {
		return err
	}

	// Engine validation
	if c.Engine.CostGateThreshold <= 0 || c.Engine.CostGateThreshold >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cost_gate_threshold must be between 0 and 1, got %f", c.Engine.CostGateThreshold))
	}
	if _, err := c.CostModel(reg); err != nil {
		return err
	}
	if _, err := c.Grid(); err != nil {
		return err
	}

	// Batch validation
	if c.Batch.Workers <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("batch workers must be positive, got %d", c.Batch.Workers))
	}
	if c.Batch.Budget < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("batch budget cannot be negative, got %s", c.Batch.Budget))
	}

	// Storage validation - if a backend is set, check its settings exist
	switch c.Storage.Bars.Backend {
	case "csv", "yahoo":
	case "clickhouse":
		if c.Storage.Bars.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("bars dsn required when backend is clickhouse"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown bars backend %q", c.Storage.Bars.Backend))
	}
	switch c.Storage.Results.Backend {
	case "", "memory":
	case "postgres":
		if c.Storage.Results.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("results dsn required when backend is postgres"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown results backend %q", c.Storage.Results.Backend))
	}
	if c.Storage.Archive.Enabled {
		switch c.Storage.Archive.Type {
		case "localfs":
			if c.Storage.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive path required for localfs"))
			}
		case "s3":
			if c.Storage.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive s3 bucket required"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type %q", c.Storage.Archive.Type))
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	return nil
}

// Location loads the session timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Session.Timezone == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("session timezone is required"))
	}
	loc, err := time.LoadLocation(c.Session.Timezone)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("session timezone: %w", err))
	}
	return loc, nil
}
