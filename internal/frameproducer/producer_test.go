package frameproducer

import "testing"

func TestRMSSilence(t *testing.T) {
	samples := make([]float32, FrameSize)
	if got := rms(samples); got != 0 {
		t.Errorf("rms(silence) = %v, want 0", got)
	}
}

func TestRMSConstantAmplitude(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 0.5
	}
	got := rms(samples)
	if got < 0.49 || got > 0.51 {
		t.Errorf("rms(constant 0.5) = %v, want ~0.5", got)
	}
}

func TestBytesToFloat32RoundTrip(t *testing.T) {
	// 1.0f little-endian = 00 00 80 3F
	b := []byte{0x00, 0x00, 0x80, 0x3F}
	out := bytesToFloat32(b)
	if len(out) != 1 || out[0] != 1.0 {
		t.Errorf("bytesToFloat32 = %v, want [1.0]", out)
	}
}

func TestBytesToFloat32OddLength(t *testing.T) {
	b := []byte{0x00, 0x00, 0x80}
	if out := bytesToFloat32(b); out != nil {
		t.Errorf("bytesToFloat32(odd length) = %v, want nil", out)
	}
}

func TestProducerFramingRechunksAcrossCallbacks(t *testing.T) {
	p := &Producer{
		sampleRate: TargetSampleRate,
		frameSize:  4,
		outCh:      make(chan Frame, 16),
	}

	p.onSamples([]float32{1, 2})    // partial frame, buffered
	p.onSamples([]float32{3, 4, 5}) // completes frame {1,2,3,4}, carries {5}

	select {
	case f := <-p.outCh:
		want := []float32{1, 2, 3, 4}
		if len(f.Samples) != len(want) {
			t.Fatalf("frame len = %d, want %d", len(f.Samples), len(want))
		}
		for i, v := range want {
			if f.Samples[i] != v {
				t.Errorf("Samples[%d] = %v, want %v", i, f.Samples[i], v)
			}
		}
	default:
		t.Fatal("expected a frame on output channel")
	}

	if len(p.carry) != 1 || p.carry[0] != 5 {
		t.Errorf("carry = %v, want [5]", p.carry)
	}
}

func TestProducerDropsWhenChannelFull(t *testing.T) {
	p := &Producer{
		sampleRate: TargetSampleRate,
		frameSize:  2,
		outCh:      make(chan Frame, 1),
	}

	p.onSamples([]float32{1, 2})
	p.onSamples([]float32{3, 4})

	if got := p.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestProducerRMSTracksLatestFrame(t *testing.T) {
	p := &Producer{
		sampleRate: TargetSampleRate,
		frameSize:  2,
		outCh:      make(chan Frame, 4),
	}
	p.onSamples([]float32{0, 0})
	if p.RMS() != 0 {
		t.Errorf("RMS() = %v, want 0", p.RMS())
	}
	p.onSamples([]float32{1, 1})
	if p.RMS() == 0 {
		t.Error("RMS() should be non-zero after a loud frame")
	}
}
