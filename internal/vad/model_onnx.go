//go:build onnx

package vad

import (
	_ "embed"
	"os"
)

// sileroModelData holds the Silero VAD v5 ONNX graph. The placeholder file
// at models/silero_vad.onnx is not shipped with this repository; a real
// build must replace it with the actual model weights before compiling
// with the onnx tag.
//
//go:embed models/silero_vad.onnx
var sileroModelData []byte

// resolveORTLibPath returns the configured path to libonnxruntime, if any.
// An empty result lets onnxruntime_go fall back to the system loader.
func resolveORTLibPath() string {
	return os.Getenv("VOICED_ORT_LIB_PATH")
}
