package hotkey

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/voicedapp/voiced/internal/apperr"
)

// rawCapture writes PCM at the device's native sample rate straight to a
// WAV file with no VAD and no resampling. It opens the device with a single
// capture channel, so a multi-channel device is downmixed to mono by
// miniaudio and the file never carries the device's native channel count.
// Hotkey capture trades the
// continuous pipeline's framing and classification for dependency-light
// simplicity, since a press-to-talk utterance is transcribed whole
// regardless of silence within it.
type rawCapture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	path   string

	mu      sync.Mutex
	samples []int
	format  *audio.Format

	stopOnce sync.Once
}

// startRawCapture opens the named device (or the default) and begins
// writing 16-bit PCM samples to an in-memory buffer, flushed to a WAV
// file on stop.
func startRawCapture(deviceName, dir string) (*rawCapture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.DeviceError, "initialize audio context", err)
	}

	info, err := selectCaptureDevice(ctx, deviceName)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("create capture dir: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = nativeSampleRateOf(ctx, info)
	deviceConfig.Capture.DeviceID = info.ID.Pointer()

	rc := &rawCapture{
		ctx:  ctx,
		path: filepath.Join(dir, fmt.Sprintf("ptt-%s.wav", uuid.NewString())),
		format: &audio.Format{
			NumChannels: 1,
			SampleRate:  int(deviceConfig.SampleRate),
		},
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSamples []byte, _ uint32) {
			rc.onSamples(pSamples)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, apperr.Wrap(apperr.DeviceError, "initialize capture device", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, apperr.Wrap(apperr.DeviceError, "start capture device", err)
	}
	rc.device = device

	return rc, nil
}

// fallbackSampleRate is used when the backend can't report the device's
// native rate at all; it matches the rest of the system's target rate so
// the fallback path still produces a usable recording.
const fallbackSampleRate = 16000

// nativeSampleRateOf queries the device's own mix rate via the backend's
// detailed capability probe, so this path genuinely captures at the
// device's native rate rather than requesting a fixed one and relying on
// miniaudio's internal conversion, per this package's no-resampling
// contract.
func nativeSampleRateOf(ctx *malgo.AllocatedContext, info malgo.DeviceInfo) uint32 {
	full, err := ctx.DeviceInfo(malgo.Capture, info.ID, malgo.Shared)
	if err != nil {
		return fallbackSampleRate
	}
	var maxSampleRate uint32
	for _, f := range full.Formats {
		if f.SampleRate > maxSampleRate {
			maxSampleRate = f.SampleRate
		}
	}
	if maxSampleRate == 0 {
		return fallbackSampleRate
	}
	return maxSampleRate
}

func selectCaptureDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, apperr.Wrap(apperr.DeviceError, "enumerate capture devices", err)
	}
	if len(devices) == 0 {
		return malgo.DeviceInfo{}, apperr.New(apperr.DeviceError, "no capture devices available")
	}
	if name != "" {
		for _, d := range devices {
			if d.Name() == name {
				return d, nil
			}
		}
	}
	for _, d := range devices {
		if d.IsDefault != 0 {
			return d, nil
		}
	}
	return devices[0], nil
}

func (rc *rawCapture) onSamples(pSamples []byte) {
	n := len(pSamples) / 2
	rc.mu.Lock()
	for i := 0; i < n; i++ {
		lo, hi := pSamples[i*2], pSamples[i*2+1]
		v := int16(uint16(lo) | uint16(hi)<<8)
		rc.samples = append(rc.samples, int(v))
	}
	rc.mu.Unlock()
}

// stop halts the device and encodes the buffered samples to WAV,
// returning the file path.
func (rc *rawCapture) stop() (string, error) {
	rc.stopOnce.Do(func() {
		if rc.device.IsStarted() {
			_ = rc.device.Stop()
		}
		rc.device.Uninit()
		rc.ctx.Uninit()
		rc.ctx.Free()
	})

	rc.mu.Lock()
	samples := rc.samples
	rc.mu.Unlock()

	f, err := os.Create(rc.path)
	if err != nil {
		return "", fmt.Errorf("create capture wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rc.format.SampleRate, captureBitDepth, rc.format.NumChannels, captureAudioFormat)
	buf := &audio.IntBuffer{Format: rc.format, Data: samples, SourceBitDepth: captureBitDepth}
	if err := enc.Write(buf); err != nil {
		return "", fmt.Errorf("encode capture wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalize capture wav: %w", err)
	}
	return rc.path, nil
}

const (
	captureBitDepth    = 16
	captureAudioFormat = 1
)
