// Package audio owns source acquisition: negotiating access to the
// microphone and to system (meeting) audio, and handing back live capture
// devices. Platform backends live in audio_linux.go (PulseAudio) and
// audio_other.go (miniaudio); tests use the fake in fake.go.
package audio

import (
	"errors"
	"strings"
)

// Kind identifies one audio origin.
type Kind string

const (
	KindMicrophone Kind = "microphone"
	KindSystem     Kind = "system"
)

// Mode is the user-selected capture mode for a session.
type Mode string

const (
	ModeMicrophone Mode = "microphone"
	ModeScreen     Mode = "screen"
	ModeMixed      Mode = "mixed"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeMicrophone, ModeScreen, ModeMixed:
		return true
	}
	return false
}

// WantsSystem reports whether the mode asks for system/meeting audio.
func (m Mode) WantsSystem() bool { return m == ModeScreen || m == ModeMixed }

var (
	ErrPermissionDenied  = errors.New("audio: permission denied")
	ErrDeviceNotFound    = errors.New("audio: device not found")
	ErrSourceUnavailable = errors.New("audio: source unavailable")
)

const (
	// Preferred and minimum capture rates. The mic path negotiates down
	// from SampleRateIdeal; SampleRateMin is the floor.
	SampleRateIdeal = 48000
	SampleRateMin   = 16000
)

type DataCallback func(data []byte, frameCount uint32)

// CaptureConfig describes the processing profile requested from the
// platform. Voice capture wants the processed profile; system audio wants
// the raw one so meeting playback is not mangled by echo cancellation.
type CaptureConfig struct {
	SampleRate    uint32
	Channels      uint32
	EchoCancel    bool
	NoiseSuppress bool
	AutoGain      bool
}

// MicConfig is the processed mono profile for the "you" channel.
func MicConfig(rate uint32) CaptureConfig {
	return CaptureConfig{
		SampleRate:    rate,
		Channels:      1,
		EchoCancel:    true,
		NoiseSuppress: true,
		AutoGain:      true,
	}
}

// SystemConfig is the unprocessed profile for meeting audio, stereo
// preferred.
func SystemConfig(rate uint32) CaptureConfig {
	return CaptureConfig{SampleRate: rate, Channels: 2}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(kind Kind, device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a Bluetooth
// headset, which typically records at degraded quality.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
