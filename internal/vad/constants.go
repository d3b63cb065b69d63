package vad

// SampleRate is the only sample rate the engine accepts. Frames captured
// at any other rate must be resampled upstream in frameproducer.
const SampleRate = 16000

// FrameSize is the number of samples per Predict/Classify call, matching
// frameproducer.FrameSize (32ms at 16kHz).
const FrameSize = 512

// DefaultThreshold is the speech-probability cutoff used by Classify when
// none is configured.
const DefaultThreshold = 0.5
