package audio

import (
	"errors"
	"strings"
	"testing"
)

func TestAcquireMicrophoneMode(t *testing.T) {
	fc := NewFakeContext(false)
	src, err := Acquire(fc, ModeMicrophone, AcquireConfig{SampleRate: 16000})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer src.Close()

	if src.Microphone == nil {
		t.Fatal("no microphone device")
	}
	if src.System != nil {
		t.Error("microphone mode acquired system audio")
	}
	if len(fc.Captures()) != 1 {
		t.Errorf("captures = %d, want 1", len(fc.Captures()))
	}
}

func TestAcquireMicrophoneModeHardFailure(t *testing.T) {
	fc := NewFakeContext(false)
	fc.FailWith(KindMicrophone, ErrPermissionDenied)
	src, err := Acquire(fc, ModeMicrophone, AcquireConfig{SampleRate: 16000})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if src != nil {
		t.Errorf("src = %+v, want nil", src)
	}
}

func TestAcquireMixedMode(t *testing.T) {
	fc := NewFakeContext(false)
	src, err := Acquire(fc, ModeMixed, AcquireConfig{SampleRate: 16000})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer src.Close()

	if src.Microphone == nil || src.System == nil {
		t.Errorf("sources = mic:%v sys:%v, want both", src.Microphone != nil, src.System != nil)
	}
	if src.SystemErr != nil || src.MicErr != nil {
		t.Errorf("errs = %v / %v", src.SystemErr, src.MicErr)
	}
}

func TestAcquireSystemDeniedFallsBackToMic(t *testing.T) {
	fc := NewFakeContext(false)
	fc.FailWith(KindSystem, ErrPermissionDenied)
	src, err := Acquire(fc, ModeScreen, AcquireConfig{SampleRate: 16000})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer src.Close()

	if src.System != nil {
		t.Error("system device present despite denial")
	}
	if src.Microphone == nil {
		t.Fatal("mic fallback missing")
	}
	if !errors.Is(src.SystemErr, ErrSourceUnavailable) {
		t.Errorf("SystemErr = %v, want ErrSourceUnavailable", src.SystemErr)
	}
}

func TestAcquireMicDeniedInScreenMode(t *testing.T) {
	fc := NewFakeContext(false)
	fc.FailWith(KindMicrophone, ErrPermissionDenied)
	src, err := Acquire(fc, ModeScreen, AcquireConfig{SampleRate: 16000})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer src.Close()

	if src.System == nil {
		t.Fatal("system device missing")
	}
	if src.Microphone != nil {
		t.Error("mic present despite denial")
	}
	if src.MicErr == nil {
		t.Error("MicErr not recorded")
	}
}

func TestAcquireAllSourcesFail(t *testing.T) {
	fc := NewFakeContext(false)
	fc.FailWith(KindMicrophone, ErrDeviceNotFound)
	fc.FailWith(KindSystem, ErrPermissionDenied)
	_, err := Acquire(fc, ModeMixed, AcquireConfig{SampleRate: 16000})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestSourcesCloseIdempotent(t *testing.T) {
	fc := NewFakeContext(false)
	src, err := Acquire(fc, ModeMixed, AcquireConfig{SampleRate: 16000})
	if err != nil {
		t.Fatal(err)
	}
	src.Close()
	src.Close()
	for i, c := range fc.Captures() {
		if !c.Closed() {
			t.Errorf("capture %d not closed", i)
		}
	}
	if !src.Empty() {
		t.Error("sources not empty after Close")
	}
}

func TestGuidance(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrPermissionDenied, "permission denied"},
		{ErrDeviceNotFound, "device not found"},
		{ErrSourceUnavailable, "audio sharing"},
		{errors.New("weird"), "weird"},
	} {
		got := Guidance(tt.err)
		if tt.want == "" {
			if got != "" {
				t.Errorf("Guidance(nil) = %q", got)
			}
			continue
		}
		if !strings.Contains(strings.ToLower(got), tt.want) {
			t.Errorf("Guidance(%v) = %q, missing %q", tt.err, got, tt.want)
		}
	}
}

func TestIsBluetooth(t *testing.T) {
	for name, want := range map[string]bool{
		"AirPods Pro":           true,
		"Jabra Elite 85t":       true,
		"WH-1000XM5":            true,
		"Built-in Audio Analog": false,
		"USB Condenser Mic":     false,
		"Headset (Bluetooth)":   true,
	} {
		if got := IsBluetooth(name); got != want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestModeHelpers(t *testing.T) {
	if ModeMicrophone.WantsSystem() {
		t.Error("microphone mode wants system audio")
	}
	if !ModeScreen.WantsSystem() || !ModeMixed.WantsSystem() {
		t.Error("screen modes must want system audio")
	}
	if Mode("video").Valid() {
		t.Error("unknown mode valid")
	}
}
