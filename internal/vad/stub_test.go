//go:build !onnx

package vad

import "testing"

func silence() []float32 {
	return make([]float32, FrameSize)
}

func tone() []float32 {
	frame := make([]float32, FrameSize)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = 0.8
		} else {
			frame[i] = -0.8
		}
	}
	return frame
}

func TestNewDefaultsThreshold(t *testing.T) {
	e, err := New(0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	he := e.(*heuristicEngine)
	if he.threshold != DefaultThreshold {
		t.Errorf("threshold = %v, want %v", he.threshold, DefaultThreshold)
	}
}

func TestPredictRejectsWrongFrameSize(t *testing.T) {
	e, _ := New(DefaultThreshold)
	_, err := e.Predict(make([]float32, 10))
	if err == nil {
		t.Fatal("expected error for wrong frame size")
	}
}

func TestPredictSilenceIsLowProbability(t *testing.T) {
	e, _ := New(DefaultThreshold)
	prob, err := e.Predict(silence())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if prob > 0.2 {
		t.Errorf("Predict(silence) = %v, want < 0.2", prob)
	}
}

func TestClassifySilenceIsFalse(t *testing.T) {
	e, _ := New(DefaultThreshold)
	speech, err := e.Classify(silence())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if speech {
		t.Error("Classify(silence) = true, want false")
	}
}

func TestResetIsNoopButCallable(t *testing.T) {
	e, _ := New(DefaultThreshold)
	e.Reset() // must not panic
}

func TestCloseIsNoop(t *testing.T) {
	e, _ := New(DefaultThreshold)
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestEnergyOfSilenceIsZero(t *testing.T) {
	if got := energyOf(silence()); got != 0 {
		t.Errorf("energyOf(silence) = %v, want 0", got)
	}
}

func TestZeroCrossingRateAlternatingSignal(t *testing.T) {
	// An alternating +/- signal crosses zero on every sample transition.
	zcr := zeroCrossingRate(tone())
	if zcr < 0.9 {
		t.Errorf("zeroCrossingRate(alternating) = %v, want close to 1.0", zcr)
	}
}

func TestZeroCrossingRateShortFrame(t *testing.T) {
	if got := zeroCrossingRate([]float32{1}); got != 0 {
		t.Errorf("zeroCrossingRate(single sample) = %v, want 0", got)
	}
}

func TestSpectralCentroidSilenceIsZero(t *testing.T) {
	if got := spectralCentroid(silence()); got != 0 {
		t.Errorf("spectralCentroid(silence) = %v, want 0", got)
	}
}
