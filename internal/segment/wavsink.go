package segment

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// WAVSink writes finalized segments as 16-bit PCM mono WAV files under a
// directory, named uniquely so concurrent segments never collide.
type WAVSink struct {
	dir string
}

// NewWAVSink returns a Sink that writes into dir, creating it if absent.
func NewWAVSink(dir string) (*WAVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}
	return &WAVSink{dir: dir}, nil
}

// Write encodes samples as 16-bit PCM WAV and returns the file path.
func (w *WAVSink) Write(samples []float32, sampleRate int) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("segment-%s.wav", uuid.NewString()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create wav file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, numChannels, wavAudioFormat)

	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(clampToInt16(s))
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
		Data:           ints,
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalize wav: %w", err)
	}

	return path, nil
}

func clampToInt16(s float32) int16 {
	const maxInt16 = 32767
	const minInt16 = -32768
	v := s * 32768
	if v > maxInt16 {
		return maxInt16
	}
	if v < minInt16 {
		return minInt16
	}
	return int16(v)
}
