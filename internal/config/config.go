// Package config provides the configuration structure for the voicebatch service.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Storage backends.
const (
	StorageNone = "none"
	StorageNATS = "nats"
	StorageS3   = "s3"
)

// envWeightRoot overrides paths.weight_root, matching the variable the conversion
// tooling has always honored.
const envWeightRoot = "weight_root"

var (
	// ErrUnknownStorageBackend indicates an unsupported storage.backend value.
	ErrUnknownStorageBackend = errors.New("unknown storage backend")
	// ErrNegativeValue indicates a timeout, size or worker count below zero.
	ErrNegativeValue = errors.New("value must be non-negative")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir     string `toml:"base_logs_dir"`
	AudioRoot       string `toml:"audio_root"`
	WeightRoot      string `toml:"weight_root"`
	SpeakerRoot     string `toml:"speaker_root"`
	SpeakerRegistry string `toml:"speaker_registry"`
	OutputDir       string `toml:"output_dir"`
}

// TranscriptionConfig holds the speech-to-text backend settings.
type TranscriptionConfig struct {
	BaseURL            string `toml:"base_url"`
	APIKeyEnv          string `toml:"api_key_env"`
	Model              string `toml:"model"`
	Language           string `toml:"language"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	ItemTimeoutSeconds int    `toml:"item_timeout_seconds"`
	ModelCacheSize     int    `toml:"model_cache_size"`
}

// SynthesisConfig holds the voice-cloning TTS service settings.
type SynthesisConfig struct {
	BaseURL        string  `toml:"base_url"`
	Language       string  `toml:"language"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// ConversionConfig holds the voice-conversion inference settings.
type ConversionConfig struct {
	Binary         string `toml:"binary"`
	Script         string `toml:"script"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	BatchSubject           string `toml:"batch_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// StorageConfig selects where synthesized audio is published.
type StorageConfig struct {
	Backend  string `toml:"backend"`
	S3Bucket string `toml:"s3_bucket"`
	S3Region string `toml:"s3_region"`
	S3Prefix string `toml:"s3_prefix"`
}

// PoolConfig sizes the model execution pool.
type PoolConfig struct {
	Workers int `toml:"workers"`
}

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Paths         PathsConfig         `toml:"paths"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Synthesis     SynthesisConfig     `toml:"synthesis"`
	Conversion    ConversionConfig    `toml:"conversion"`
	NATS          NATSConfig          `toml:"nats"`
	Storage       StorageConfig       `toml:"storage"`
	Pool          PoolConfig          `toml:"pool"`
}

// Default returns a configuration that runs against local services.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":5000"},
		Paths: PathsConfig{
			BaseLogsDir:     os.TempDir(),
			AudioRoot:       "..",
			WeightRoot:      "weights",
			SpeakerRoot:     "training_audio",
			SpeakerRegistry: "speakers.yaml",
			OutputDir:       "public",
		},
		Transcription: TranscriptionConfig{
			BaseURL:            "http://127.0.0.1:9000/v1/audio/transcriptions",
			APIKeyEnv:          "OPENAI_API_KEY",
			Model:              "tiny",
			Language:           "en",
			TimeoutSeconds:     300,
			ItemTimeoutSeconds: 600,
			ModelCacheSize:     0,
		},
		Synthesis: SynthesisConfig{
			BaseURL:        "http://127.0.0.1:8000",
			Language:       "en",
			Temperature:    0.75,
			TimeoutSeconds: 300,
		},
		Conversion: ConversionConfig{
			Binary:         "python3",
			Script:         "tools/infer_cli.py",
			TimeoutSeconds: 0,
		},
		NATS: NATSConfig{
			URL:                    "",
			BatchSubject:           "audio.transcribe.batch",
			AudioObjectStoreBucket: "AUDIO_FILES",
		},
		Storage: StorageConfig{Backend: StorageNone},
		Pool:    PoolConfig{Workers: 4},
	}
}

// Load loads the configuration for the service through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	err := configurator.Load(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finalize(cfg)
}

// LoadDefaults returns the defaults with environment overrides applied.
func LoadDefaults() (*Config, error) {
	return finalize(Default())
}

// LoadFile decodes a TOML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	cfg := Default()

	err = toml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	return finalize(cfg)
}

func finalize(cfg *Config) (*Config, error) {
	if weightRoot := os.Getenv(envWeightRoot); weightRoot != "" {
		cfg.Paths.WeightRoot = weightRoot
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	counts := map[string]int{
		"transcription.timeout_seconds":      c.Transcription.TimeoutSeconds,
		"transcription.item_timeout_seconds": c.Transcription.ItemTimeoutSeconds,
		"transcription.model_cache_size":     c.Transcription.ModelCacheSize,
		"synthesis.timeout_seconds":          c.Synthesis.TimeoutSeconds,
		"conversion.timeout_seconds":         c.Conversion.TimeoutSeconds,
		"pool.workers":                       c.Pool.Workers,
	}

	for name, value := range counts {
		if value < 0 {
			return fmt.Errorf("%w: %s = %d", ErrNegativeValue, name, value)
		}
	}

	switch c.Storage.Backend {
	case "", StorageNone, StorageNATS, StorageS3:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageBackend, c.Storage.Backend)
	}
}

// ItemTimeout returns the per-item transcription deadline, zero meaning none.
func (c *Config) ItemTimeout() time.Duration {
	return time.Duration(c.Transcription.ItemTimeoutSeconds) * time.Second
}

// Seconds converts a configured second count into a duration.
func Seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}
