package segment

import "time"

// DefaultSilenceTail is how long a run of non-speech frames must persist
// before an in-progress segment is finalized.
const DefaultSilenceTail = 1500 * time.Millisecond

// DefaultMaxSegment forces a finalize even mid-speech once a segment has
// run this long, so a single continuous utterance cannot stall the
// transcription queue indefinitely.
const DefaultMaxSegment = 60 * time.Second

// DefaultPreRoll is how much audio immediately preceding a detected
// speech onset is prepended to the segment, recovering the soft leading
// edge that VAD models routinely miss.
const DefaultPreRoll = 300 * time.Millisecond

// DefaultMinSegmentSeconds is the shortest finalized segment worth
// transcribing. Shorter segments are discarded without advancing the
// segment index.
const DefaultMinSegmentSeconds = 0.5

// bitDepth and numChannels describe the PCM format written to WAV files.
const (
	bitDepth       = 16
	numChannels    = 1
	wavAudioFormat = 1 // PCM
)
