// Package frameproducer bridges a physical audio input device to a bounded
// stream of fixed-size, 16kHz mono float32 frames. It owns the only code in
// the system that runs on the OS driver's real-time callback thread: that
// callback does no allocation beyond an unavoidable copy and never blocks.
package frameproducer

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/voicedapp/voiced/internal/apperr"
)

// Frame is one fixed-size window of 16kHz mono PCM, ready for VAD.
type Frame struct {
	Samples []float32
	Seq     uint64
}

// Producer captures from a single input device at 16kHz mono and emits
// fixed-size frames on a bounded channel.
type Producer struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	deviceName string
	deviceID   malgo.DeviceID
	sampleRate int
	frameSize  int

	outCh chan Frame
	seq   atomic.Uint64

	dropped atomic.Uint64
	rms     atomic.Uint32 // bit-encoded float32, latest RMS of the most recent frame

	carry []float32 // partial-frame remainder between callbacks
	mu    sync.Mutex

	stopOnce sync.Once
}

// New opens the named capture device (or the system default when name is
// empty) and prepares a Producer. The device is always opened at
// TargetSampleRate, mono; miniaudio performs the conversion from the
// device's own native format internally.
func New(deviceName string, frameSize, queueDepth int) (*Producer, error) {
	if frameSize <= 0 {
		frameSize = FrameSize
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.DeviceError, "initialize audio context", err)
	}

	info, err := selectDevice(ctx, deviceName)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, err
	}

	return &Producer{
		ctx:        ctx,
		deviceName: info.Name(),
		deviceID:   info.ID,
		sampleRate: TargetSampleRate,
		frameSize:  frameSize,
		outCh:      make(chan Frame, queueDepth),
	}, nil
}

// selectDevice finds the capture device with exactly the requested name,
// falling back to the system default (or the first enumerated device when
// the backend flags none as default) when name is empty or unmatched.
func selectDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
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
		slog.Warn("frameproducer: device not found, using default", "device", name)
	}
	for _, d := range devices {
		if d.IsDefault != 0 {
			return d, nil
		}
	}
	return devices[0], nil
}

// Device describes one enumerable capture device for UI device pickers.
type Device struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// ListDevices enumerates the capture devices the OS currently exposes.
// It opens and releases its own short-lived audio context so it can be
// called while no Producer exists.
func ListDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.DeviceError, "initialize audio context", err)
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, apperr.Wrap(apperr.DeviceError, "enumerate capture devices", err)
	}
	devices := make([]Device, len(infos))
	for i, d := range infos {
		devices[i] = Device{Name: d.Name(), IsDefault: d.IsDefault != 0}
	}
	return devices, nil
}

// Output returns the channel of emitted frames.
func (p *Producer) Output() <-chan Frame {
	return p.outCh
}

// Dropped returns the number of frames dropped because the output channel
// was full.
func (p *Producer) Dropped() uint64 {
	return p.dropped.Load()
}

// RMS returns the root-mean-square amplitude of the most recently emitted
// frame, for level-meter display. Safe for concurrent reads.
func (p *Producer) RMS() float32 {
	return math.Float32frombits(p.rms.Load())
}

// Start opens and starts the device at TargetSampleRate, mono. The
// real-time Data callback converts raw bytes to float32 and re-chunks
// into fixed FrameSize windows, buffering any remainder for the next
// callback.
func (p *Producer) Start(ctx context.Context) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(p.sampleRate)
	deviceConfig.Capture.DeviceID = p.deviceID.Pointer()

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSamples []byte, _ uint32) {
			samples := bytesToFloat32(pSamples)
			if len(samples) == 0 {
				return
			}
			p.onSamples(samples)
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return apperr.Wrap(apperr.DeviceError, "initialize capture device", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return apperr.Wrap(apperr.DeviceError, "start capture device", err)
	}
	p.device = device

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// onSamples runs on the driver's real-time thread. It must not block or
// allocate beyond the fixed conversions below.
func (p *Producer) onSamples(samples []float32) {
	p.mu.Lock()
	buf := append(p.carry, samples...)
	n := len(buf) / p.frameSize
	for i := 0; i < n; i++ {
		chunk := buf[i*p.frameSize : (i+1)*p.frameSize]
		frame := Frame{Samples: append([]float32(nil), chunk...), Seq: p.seq.Add(1)}
		p.rms.Store(math.Float32bits(rms(frame.Samples)))
		select {
		case p.outCh <- frame:
		default:
			p.dropped.Add(1)
		}
	}
	p.carry = append([]float32(nil), buf[n*p.frameSize:]...)
	p.mu.Unlock()
}

// Stop halts capture and releases the device. Safe to call multiple times.
func (p *Producer) Stop() {
	p.stopOnce.Do(func() {
		if p.device != nil {
			if p.device.IsStarted() {
				_ = p.device.Stop()
			}
			p.device.Uninit()
		}
		p.ctx.Uninit()
		p.ctx.Free()
	})
}

func rms(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

func bytesToFloat32(b []byte) []float32 {
	const sz = 4
	if len(b)%sz != 0 {
		return nil
	}
	samples := make([]float32, len(b)/sz)
	for i := range samples {
		raw := binary.LittleEndian.Uint32(b[i*sz : i*sz+sz])
		samples[i] = math.Float32frombits(raw)
	}
	return samples
}
