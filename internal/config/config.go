package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Log             LogConfig        `yaml:"log"`
	Database        DatabaseConfig   `yaml:"database"`
	Status          StatusConfig     `yaml:"status"`
	EventBus        EventBusConfig   `yaml:"eventbus"`
	Ledger          LedgerConfig     `yaml:"ledger"`
	Controller      ControllerConfig `yaml:"controller"`
	Paths           PathsConfig      `yaml:"paths"`
	Source          SourceConfig     `yaml:"source"`
	Dispatch        DispatchConfig   `yaml:"dispatch"`
	ShutdownTimeout Duration         `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StatusConfig contains status API server settings
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// Retention returns the ledger retention as a duration.
func (c LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// ControllerConfig tunes the detection loop.
type ControllerConfig struct {
	ROI              []int    `yaml:"roi"` // x, y, w, h
	FPS              int      `yaml:"fps"`
	UseCalibrated    bool     `yaml:"use_calibrated"`
	MinCoverage      float64  `yaml:"min_coverage"` // fraction of the ROI a color must cover
	HistoryRetention Duration `yaml:"history_retention"`
	SequenceWindow   Duration `yaml:"sequence_window"` // time_window of rules that omit one
	InitialMode      string   `yaml:"initial_mode"`
	ResumeMode       bool     `yaml:"resume_mode"` // start in the mode active at last shutdown
}

// PathsConfig locates the JSON documents the controller reads.
type PathsConfig struct {
	Global      string `yaml:"global"`    // optional JSON overlay for roi, fps and use_calibrated
	ModesDir    string `yaml:"modes_dir"` // one <mode>.json per mode
	ColorsDir   string `yaml:"colors_dir"`
	Calibration string `yaml:"calibration"`
	Watchlist   string `yaml:"watchlist"`
}

// Source kinds
const (
	SourceCamera     = "camera"
	SourceScreen     = "screen"
	SourceSimulation = "simulation"
)

// Classifier backends
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

// SourceConfig selects where labels come from.
type SourceConfig struct {
	Kind          string `yaml:"kind"`
	Device        string `yaml:"device"`  // camera index
	Display       int    `yaml:"display"` // screen index
	Backend       string `yaml:"backend"`
	SkipUnchanged bool   `yaml:"skip_unchanged"` // skip classification when the ROI hash is unchanged
	HashDistance  int    `yaml:"hash_distance"`
}

// Browser kinds
const (
	BrowserSystem = "system"
	BrowserRod    = "rod"
)

// DispatchConfig contains action dispatch settings
type DispatchConfig struct {
	RateLimitRPS  float64  `yaml:"rate_limit_rps"`
	InputTool     string   `yaml:"input_tool"` // xdotool binary
	DryRun        bool     `yaml:"dry_run"`    // log input and browser commands instead of running them
	Browser       string   `yaml:"browser"`
	BrowserURL    string   `yaml:"browser_url"` // DevTools websocket of a running Chrome, rod only
	OpenSettle    Duration `yaml:"open_settle"`
	ScriptTimeout Duration `yaml:"script_timeout"` // upper bound for one script action
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Paths.Global != "" {
		if err := cfg.ApplyGlobal(cfg.Paths.Global); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./chromad.sqlite"
	}

	// Status server defaults
	if cfg.Status.Host == "" {
		cfg.Status.Host = "127.0.0.1"
	}
	if cfg.Status.Port == 0 {
		cfg.Status.Port = 9090
	}

	if cfg.EventBus.Workers <= 0 {
		cfg.EventBus.Workers = 4
	}
	if cfg.EventBus.QueueSize <= 0 {
		cfg.EventBus.QueueSize = 100
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Controller defaults
	if cfg.Controller.FPS <= 0 {
		cfg.Controller.FPS = 30
	}
	if cfg.Controller.MinCoverage == 0 {
		cfg.Controller.MinCoverage = 0.2
	}
	if cfg.Controller.HistoryRetention == 0 {
		cfg.Controller.HistoryRetention = Duration(5 * time.Second)
	}
	if cfg.Controller.SequenceWindow <= 0 {
		cfg.Controller.SequenceWindow = Duration(2500 * time.Millisecond)
	}
	if cfg.Controller.InitialMode == "" {
		cfg.Controller.InitialMode = "main"
	}

	// Path defaults
	if cfg.Paths.ModesDir == "" {
		cfg.Paths.ModesDir = "./modes"
	}
	if cfg.Paths.ColorsDir == "" {
		cfg.Paths.ColorsDir = "./colors"
	}
	if cfg.Paths.Calibration == "" {
		cfg.Paths.Calibration = "./calibration.json"
	}

	// Source defaults
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourceCamera
	}
	if cfg.Source.Device == "" {
		cfg.Source.Device = "0"
	}
	if cfg.Source.Backend == "" {
		cfg.Source.Backend = BackendNative
	}
	if cfg.Source.HashDistance == 0 {
		cfg.Source.HashDistance = 2
	}

	// Dispatch defaults
	if cfg.Dispatch.RateLimitRPS == 0 {
		cfg.Dispatch.RateLimitRPS = 5.0
	}
	if cfg.Dispatch.ScriptTimeout <= 0 {
		cfg.Dispatch.ScriptTimeout = Duration(5 * time.Second)
	}
	if cfg.Dispatch.InputTool == "" {
		cfg.Dispatch.InputTool = "xdotool"
	}
	if cfg.Dispatch.Browser == "" {
		cfg.Dispatch.Browser = BrowserSystem
	}
	if cfg.Dispatch.OpenSettle == 0 {
		cfg.Dispatch.OpenSettle = Duration(time.Second)
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate rejects values no component can work with.
func (cfg *Config) Validate() error {
	if n := len(cfg.Controller.ROI); n != 0 && n != 4 {
		return fmt.Errorf("controller.roi: expected [x, y, w, h], got %d values", n)
	}
	if c := cfg.Controller.MinCoverage; c <= 0 || c > 1 {
		return fmt.Errorf("controller.min_coverage: must be in (0, 1], got %v", c)
	}
	switch cfg.Source.Kind {
	case SourceCamera, SourceScreen, SourceSimulation:
	default:
		return fmt.Errorf("source.kind: unknown kind %q", cfg.Source.Kind)
	}
	switch cfg.Source.Backend {
	case BackendNative, BackendOpenCV:
	default:
		return fmt.Errorf("source.backend: unknown backend %q", cfg.Source.Backend)
	}
	switch cfg.Dispatch.Browser {
	case BrowserSystem, BrowserRod:
	default:
		return fmt.Errorf("dispatch.browser: unknown browser %q", cfg.Dispatch.Browser)
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
