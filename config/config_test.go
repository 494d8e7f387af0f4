package config

import (
	"strings"
	"testing"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Loader{Lookup: mapLookup(nil)}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.SampleRate != DefaultSampleRate {
		t.Errorf("SampleRate = %d", cfg.SampleRate)
	}
	if cfg.RecordingType != "meeting" {
		t.Errorf("RecordingType = %q", cfg.RecordingType)
	}
	if cfg.ExportDir == "" {
		t.Error("ExportDir not defaulted")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Loader{Lookup: mapLookup(map[string]string{
		"MINUTE_SERVER_URL":     "wss://transcribe.example.com/ws",
		"MINUTE_SAMPLE_RATE":    "16000",
		"MINUTE_LANGUAGE":       "de",
		"MINUTE_DEVICE":         "USB Mic",
		"MINUTE_EXPORT_DIR":     "/tmp/exports",
		"MINUTE_RECORDING_TYPE": "interview",
	})}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "wss://transcribe.example.com/ws" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d", cfg.SampleRate)
	}
	if cfg.Language != "de" || cfg.MicDevice != "USB Mic" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ExportDir != "/tmp/exports" || cfg.RecordingType != "interview" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadTrimsAndIgnoresEmpty(t *testing.T) {
	cfg, err := Loader{Lookup: mapLookup(map[string]string{
		"MINUTE_SERVER_URL": "  ws://10.0.0.5:8000/ws  ",
		"MINUTE_LANGUAGE":   "   ",
	})}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "ws://10.0.0.5:8000/ws" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.Language != "" {
		t.Errorf("Language = %q, blank override must not stick", cfg.Language)
	}
}

func TestLoadBadSampleRate(t *testing.T) {
	_, err := Loader{Lookup: mapLookup(map[string]string{
		"MINUTE_SAMPLE_RATE": "fast",
	})}.Load()
	if err == nil || !strings.Contains(err.Error(), "MINUTE_SAMPLE_RATE") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{ServerURL: DefaultServerURL, SampleRate: DefaultSampleRate}, true},
		{"wss", Config{ServerURL: "wss://h/ws", SampleRate: 16000}, true},
		{"empty url", Config{SampleRate: 16000}, false},
		{"http url", Config{ServerURL: "http://h/ws", SampleRate: 16000}, false},
		{"rate too low", Config{ServerURL: DefaultServerURL, SampleRate: 4000}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
