package audio

import (
	"errors"
	"fmt"

	"minute/log"
)

// AcquireConfig carries the caller's device preferences.
type AcquireConfig struct {
	MicDevice  *DeviceInfo // nil = system default
	SampleRate uint32      // 0 = SampleRateIdeal with SampleRateMin fallback
}

// Sources is whichever subset of {microphone, system} acquisition produced.
// SystemErr records why system audio is missing when the caller asked for
// it; microphone-only operation is still valid in that case.
type Sources struct {
	Microphone CaptureDevice
	System     CaptureDevice
	SystemErr  error
	MicErr     error
}

// Close tears down every device the acquisition produced. Devices and any
// state layered on top of them always go away together.
func (s *Sources) Close() {
	if s.Microphone != nil {
		s.Microphone.Close()
		s.Microphone = nil
	}
	if s.System != nil {
		s.System.Close()
		s.System = nil
	}
}

func (s *Sources) Empty() bool { return s.Microphone == nil && s.System == nil }

// Acquire obtains live capture devices for the given mode.
//
// Microphone mode asks only for the mic, processed profile, and failure is
// hard. Screen and mixed modes try system audio first at full fidelity,
// retry with a narrower audio-only profile, and fall back to mic-only when
// both attempts fail; the mic itself is best effort there. Only the
// all-sources-failed case is an error.
func Acquire(actx Context, mode Mode, cfg AcquireConfig) (*Sources, error) {
	rate := cfg.SampleRate
	if rate == 0 {
		rate = SampleRateIdeal
	}

	src := &Sources{}

	if mode.WantsSystem() {
		sys, err := acquireSystem(actx, rate)
		if err != nil {
			log.Warnf("system audio unavailable: %v", err)
			src.SystemErr = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		} else {
			src.System = sys
		}
	}

	mic, err := acquireMic(actx, cfg.MicDevice, rate)
	if err != nil {
		if mode == ModeMicrophone {
			return nil, err
		}
		// Screen modes keep going without the "you" channel.
		log.Warnf("microphone unavailable: %v", err)
		src.MicErr = err
	} else {
		src.Microphone = mic
	}

	if src.Empty() {
		src.Close()
		if src.SystemErr != nil {
			return nil, src.SystemErr
		}
		return nil, fmt.Errorf("%w: no capture source could be acquired", ErrSourceUnavailable)
	}
	return src, nil
}

func acquireMic(actx Context, dev *DeviceInfo, rate uint32) (CaptureDevice, error) {
	mic, err := actx.NewCapture(KindMicrophone, dev, MicConfig(rate))
	if err != nil && rate > SampleRateMin {
		log.Warnf("mic capture at %d Hz failed, retrying at %d Hz: %v", rate, SampleRateMin, err)
		mic, err = actx.NewCapture(KindMicrophone, dev, MicConfig(SampleRateMin))
	}
	if err != nil {
		return nil, fmt.Errorf("microphone: %w", err)
	}
	return mic, nil
}

func acquireSystem(actx Context, rate uint32) (CaptureDevice, error) {
	// First attempt: full-fidelity stereo, processing disabled.
	sys, err := actx.NewCapture(KindSystem, nil, SystemConfig(rate))
	if err == nil {
		return sys, nil
	}
	// Retry with the narrower audio-only profile some platforms insist on.
	sys, retryErr := actx.NewCapture(KindSystem, nil, CaptureConfig{SampleRate: rate, Channels: 1})
	if retryErr == nil {
		return sys, nil
	}
	return nil, fmt.Errorf("system audio: %w", err)
}

// Guidance turns an acquisition error into the actionable text shown to
// the user.
func Guidance(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Audio permission denied. Grant microphone access to this app and try again."
	case errors.Is(err, ErrDeviceNotFound):
		return "Audio device not found. Check that the device is connected and not in use."
	case errors.Is(err, ErrSourceUnavailable):
		return "Meeting audio could not be captured. Enable audio sharing when selecting a tab or window, or continue microphone-only."
	default:
		return err.Error()
	}
}
