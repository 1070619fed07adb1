package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete filter configuration
type Config struct {
	VAD     VADConfig     `yaml:"vad"`
	Audio   AudioConfig   `yaml:"audio"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// VADConfig contains the windowing and classification parameters
type VADConfig struct {
	LookAhead  int     `yaml:"look_ahead"`  // packets
	LookBack   int     `yaml:"look_back"`   // packets
	PacketSize int     `yaml:"packet_size"` // samples
	MinFreq    float64 `yaml:"min_freq"`    // lower bound of the voice magnitude band
	MaxFreq    float64 `yaml:"max_freq"`    // upper bound of the voice magnitude band
	Workers    int     `yaml:"workers"`
	BatchSize  int     `yaml:"batch_size"` // packets
}

// AudioConfig describes the input and output sample streams
type AudioConfig struct {
	SampleRate   int    `yaml:"sample_rate"`
	InputFormat  string `yaml:"input_format"`  // "raw" or "wav"
	OutputFormat string `yaml:"output_format"` // "raw" or "wav"
}

// OutputConfig controls where results are written
type OutputConfig struct {
	Directory   string `yaml:"directory"`
	DataSuffix  string `yaml:"data_suffix"`
	FlagsSuffix string `yaml:"flags_suffix"`
	ReportPath  string `yaml:"report_path"`
	MetricsPath string `yaml:"metrics_path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		VAD: VADConfig{
			LookAhead:  1,
			LookBack:   1,
			PacketSize: 160,
			MinFreq:    200,
			MaxFreq:    3400,
			Workers:    1,
			BatchSize:  64,
		},
		Audio: AudioConfig{
			SampleRate:   8000,
			InputFormat:  "raw",
			OutputFormat: "raw",
		},
		Output: OutputConfig{
			Directory:   ".",
			DataSuffix:  ".vad.data",
			FlagsSuffix: ".vad.txt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.LookAhead < 0 {
		return fmt.Errorf("look_ahead cannot be negative, got %d", v.LookAhead)
	}

	if v.LookBack < 0 {
		return fmt.Errorf("look_back cannot be negative, got %d", v.LookBack)
	}

	if v.PacketSize < 1 {
		return fmt.Errorf("packet_size must be at least 1 sample, got %d", v.PacketSize)
	}

	if v.MinFreq < 0 {
		return fmt.Errorf("min_freq cannot be negative, got %f", v.MinFreq)
	}

	if v.MaxFreq <= v.MinFreq {
		return fmt.Errorf("max_freq (%f) must be greater than min_freq (%f)", v.MaxFreq, v.MinFreq)
	}

	if v.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", v.Workers)
	}

	if v.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", v.BatchSize)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", a.SampleRate)
	}

	validFormats := map[string]bool{"raw": true, "wav": true}
	if !validFormats[a.InputFormat] {
		return fmt.Errorf("input_format must be 'raw' or 'wav', got '%s'", a.InputFormat)
	}

	if !validFormats[a.OutputFormat] {
		return fmt.Errorf("output_format must be 'raw' or 'wav', got '%s'", a.OutputFormat)
	}

	return nil
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	if o.DataSuffix == "" {
		return fmt.Errorf("data_suffix cannot be empty")
	}

	if o.FlagsSuffix == "" {
		return fmt.Errorf("flags_suffix cannot be empty")
	}

	if o.DataSuffix == o.FlagsSuffix {
		return fmt.Errorf("data_suffix and flags_suffix must differ, both are '%s'", o.DataSuffix)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output may be stdout, stderr or a file path
	return nil
}
