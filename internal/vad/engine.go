// Package vad provides streaming voice activity detection over fixed-size
// 16kHz mono frames. The default build uses a dependency-free energy/
// zero-crossing heuristic; building with the "onnx" tag swaps in a Silero
// ONNX Runtime model for materially better accuracy on noisy input.
package vad

import "github.com/voicedapp/voiced/internal/apperr"

// Engine is a stateful, recurrent voice-activity model. Callers must feed
// it frames of exactly FrameSize samples, in order, and call Reset between
// unrelated audio streams (e.g. after finalizing a segment) so history
// from one utterance does not bias the next.
type Engine interface {
	// Predict returns the probability, in [0, 1], that frame contains speech.
	Predict(frame []float32) (float32, error)
	// Classify is Predict thresholded at the engine's configured cutoff.
	Classify(frame []float32) (bool, error)
	// Reset clears recurrent state accumulated by prior Predict calls.
	Reset()
	// Close releases any resources (model sessions, native buffers).
	Close() error
}

// validateFrame is shared by every Engine implementation: both the stub
// and the ONNX model require exactly FrameSize samples per call.
func validateFrame(frame []float32) error {
	if len(frame) != FrameSize {
		return apperr.Newf(apperr.ModelError, "frame has %d samples, want %d", len(frame), FrameSize)
	}
	return nil
}
