// Package config resolves runtime settings from the environment. Flags in
// main override whatever is loaded here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultServerURL  = "ws://localhost:8000/ws"
	DefaultSampleRate = 48000
)

type Config struct {
	ServerURL     string
	SampleRate    int
	Language      string
	MicDevice     string
	ExportDir     string
	RecordingType string
}

func (c Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("config: server URL must not be empty")
	}
	if !strings.HasPrefix(c.ServerURL, "ws://") && !strings.HasPrefix(c.ServerURL, "wss://") {
		return fmt.Errorf("config: server URL must be ws:// or wss://, got %q", c.ServerURL)
	}
	if c.SampleRate < 8000 {
		return fmt.Errorf("config: sample rate %d too low", c.SampleRate)
	}
	return nil
}

// Loader loads configuration from environment variables. Tests can
// override Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		ServerURL:     DefaultServerURL,
		SampleRate:    DefaultSampleRate,
		RecordingType: "meeting",
	}

	overrideString(l.Lookup, "MINUTE_SERVER_URL", &cfg.ServerURL)
	overrideString(l.Lookup, "MINUTE_LANGUAGE", &cfg.Language)
	overrideString(l.Lookup, "MINUTE_DEVICE", &cfg.MicDevice)
	overrideString(l.Lookup, "MINUTE_EXPORT_DIR", &cfg.ExportDir)
	overrideString(l.Lookup, "MINUTE_RECORDING_TYPE", &cfg.RecordingType)
	if err := overrideInt(l.Lookup, "MINUTE_SAMPLE_RATE", &cfg.SampleRate); err != nil {
		return Config{}, err
	}

	if cfg.ExportDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, err
		}
		cfg.ExportDir = wd
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = n
	return nil
}
