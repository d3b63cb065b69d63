//go:build onnx

package vad

import (
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/voicedapp/voiced/internal/apperr"
)

// sileroStateSize is the hidden state dimension per layer; Silero VAD v5
// uses a combined state tensor of shape [2, 1, 128].
const sileroStateSize = 128

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// sileroEngine runs Silero VAD v5 inference via ONNX Runtime. Tensors are
// allocated once and reused across calls to avoid per-frame allocation.
type sileroEngine struct {
	session *ort.AdvancedSession

	inputTensor *ort.Tensor[float32] // [1, 512]
	stateTensor *ort.Tensor[float32] // [2, 1, 128]
	srTensor    *ort.Tensor[int64]   // scalar
	output      *ort.Tensor[float32] // [1, 1]
	stateN      *ort.Tensor[float32] // [2, 1, 128]

	threshold float64
	mu        sync.Mutex
}

// New loads the embedded Silero ONNX model and returns an Engine backed by
// ONNX Runtime. Requires libonnxruntime to be resolvable at the path given
// by VOICED_ORT_LIB_PATH, or on the system library search path.
func New(threshold float64) (Engine, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if len(sileroModelData) == 0 {
		return nil, apperr.New(apperr.ModelError, "onnx build requires an embedded silero model")
	}

	ortInitOnce.Do(func() {
		if path := resolveORTLibPath(); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, apperr.Wrap(apperr.ModelError, "initialize onnx runtime", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, FrameSize))
	if err != nil {
		return nil, apperr.Wrap(apperr.ModelError, "create input tensor", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, apperr.Wrap(apperr.ModelError, "create state tensor", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{SampleRate})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, apperr.Wrap(apperr.ModelError, "create sample-rate tensor", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, apperr.Wrap(apperr.ModelError, "create output tensor", err)
	}
	stateN, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		output.Destroy()
		return nil, apperr.Wrap(apperr.ModelError, "create stateN tensor", err)
	}

	session, err := ort.NewAdvancedSessionWithONNXData(
		sileroModelData,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{output, stateN},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		output.Destroy()
		stateN.Destroy()
		return nil, apperr.Wrap(apperr.ModelError, "create onnx session", err)
	}

	return &sileroEngine{
		session:     session,
		inputTensor: inputTensor,
		stateTensor: stateTensor,
		srTensor:    srTensor,
		output:      output,
		stateN:      stateN,
		threshold:   threshold,
	}, nil
}

func (e *sileroEngine) Predict(frame []float32) (float32, error) {
	if err := validateFrame(frame); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.inputTensor.GetData(), frame)
	if err := e.session.Run(); err != nil {
		return 0, apperr.Wrap(apperr.ModelError, "onnx inference", err)
	}
	prob := e.output.GetData()[0]
	copy(e.stateTensor.GetData(), e.stateN.GetData())
	return prob, nil
}

func (e *sileroEngine) Classify(frame []float32) (bool, error) {
	prob, err := e.Predict(frame)
	if err != nil {
		return false, err
	}
	return float64(prob) >= e.threshold, nil
}

func (e *sileroEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clearFloat32(e.stateTensor.GetData())
}

func (e *sileroEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.stateTensor != nil {
		e.stateTensor.Destroy()
		e.stateTensor = nil
	}
	if e.srTensor != nil {
		e.srTensor.Destroy()
		e.srTensor = nil
	}
	if e.output != nil {
		e.output.Destroy()
		e.output = nil
	}
	if e.stateN != nil {
		e.stateN.Destroy()
		e.stateN = nil
	}
	return nil
}

func clearFloat32(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
