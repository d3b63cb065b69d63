package frameproducer

// TargetSampleRate is the rate every downstream consumer (VAD, segmenter,
// sidecar) expects. The capture device is negotiated directly at this
// rate; miniaudio performs any conversion from the device's own native
// rate internally, so this package never resamples in-process.
const TargetSampleRate = 16000

// FrameSize is the number of samples per emitted Frame. The VAD model
// operates on fixed 512-sample windows at 16kHz (32ms).
const FrameSize = 512

// DefaultQueueDepth is the default capacity of the frame channel. Once
// full, new frames are dropped rather than blocking the capture callback.
const DefaultQueueDepth = 256
