//go:build !onnx

package vad

import (
	"math"
	"sync"
)

// New returns the dependency-free heuristic Engine. It combines frame
// energy, zero-crossing rate, and a simplified spectral centroid into a
// speech-probability score — no model weights, no native dependency, good
// enough to exercise the segmenter and sidecar during development or on
// platforms without an ONNX Runtime build.
func New(threshold float64) (Engine, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &heuristicEngine{threshold: threshold}, nil
}

const (
	energyThreshold = 0.01
	zcrThreshold    = 0.1
)

type heuristicEngine struct {
	threshold float64
	mu        sync.Mutex
}

func (e *heuristicEngine) Predict(frame []float32) (float32, error) {
	if err := validateFrame(frame); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	energy := energyOf(frame)
	if energy < energyThreshold {
		// Below the energy floor nothing else matters: a silent frame's
		// zero-crossing and centroid scores are meaningless.
		return 0, nil
	}
	zcr := zeroCrossingRate(frame)
	centroid := spectralCentroid(frame)

	energyScore := math.Min(energy/energyThreshold, 2.0) / 2.0

	zcrScore := 0.0
	if zcr < zcrThreshold {
		zcrScore = 1.0 - (zcr / zcrThreshold)
	}

	spectralScore := math.Min(centroid/2000.0, 1.0)

	prob := energyScore*0.5 + zcrScore*0.3 + spectralScore*0.2
	return float32(prob), nil
}

func (e *heuristicEngine) Classify(frame []float32) (bool, error) {
	prob, err := e.Predict(frame)
	if err != nil {
		return false, err
	}
	return float64(prob) >= e.threshold, nil
}

// Reset is a no-op: the heuristic carries no state across frames.
func (e *heuristicEngine) Reset() {}

func (e *heuristicEngine) Close() error { return nil }

func energyOf(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return sum / float64(len(frame))
}

func zeroCrossingRate(frame []float32) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

func spectralCentroid(frame []float32) float64 {
	var weightedSum, magnitudeSum float64
	for i, s := range frame {
		mag := math.Abs(float64(s))
		weightedSum += mag * float64(i)
		magnitudeSum += mag
	}
	if magnitudeSum == 0 {
		return 0
	}
	return weightedSum / magnitudeSum
}
