// Package segment turns a continuous stream of VAD-classified frames into
// discrete speech segments, each written out as a 16kHz mono WAV file
// ready for transcription.
package segment

import (
	"time"

	"github.com/voicedapp/voiced/internal/apperr"
	"github.com/voicedapp/voiced/internal/vad"
)

// Segment describes a finalized span of speech ready for transcription.
type Segment struct {
	Index    int
	Path     string
	Duration time.Duration
}

// Sink persists a finalized segment's PCM samples and returns the path it
// was written to. The production Sink writes a WAV file under the cache
// directory; tests can substitute an in-memory Sink.
type Sink interface {
	Write(samples []float32, sampleRate int) (path string, err error)
}

// State is the current phase of the segmenter.
type State int

const (
	Idle State = iota
	InSpeech
)

func (s State) String() string {
	if s == InSpeech {
		return "in_speech"
	}
	return "idle"
}

// Config holds the thresholds controlling segmentation.
type Config struct {
	SampleRate     int
	SilenceTail    time.Duration
	MaxSegment     time.Duration
	PreRoll        time.Duration
	MinSegmentSecs float64
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = vad.SampleRate
	}
	if c.SilenceTail <= 0 {
		c.SilenceTail = DefaultSilenceTail
	}
	if c.MaxSegment <= 0 {
		c.MaxSegment = DefaultMaxSegment
	}
	if c.PreRoll <= 0 {
		c.PreRoll = DefaultPreRoll
	}
	if c.MinSegmentSecs <= 0 {
		c.MinSegmentSecs = DefaultMinSegmentSeconds
	}
	return c
}

// Segmenter runs the speech/silence state machine over a stream of
// VAD-classified frames. It is not safe for concurrent use; callers drive
// it from a single goroutine (typically the VAD consumer).
type Segmenter struct {
	cfg    Config
	engine vad.Engine
	sink   Sink

	state State

	preRoll      [][]float32 // ring buffer of recent frames while Idle
	preRollCap   int
	speechFrames [][]float32
	silenceRun   time.Duration
	speechRun    time.Duration
	frameDur     time.Duration

	index int
}

// New constructs a Segmenter. engine drives the per-frame speech
// classification; sink persists finalized segments.
func New(cfg Config, engine vad.Engine, sink Sink) *Segmenter {
	cfg = cfg.withDefaults()
	frameDur := time.Duration(float64(vad.FrameSize) / float64(cfg.SampleRate) * float64(time.Second))
	preRollCap := int(cfg.PreRoll / frameDur)
	if preRollCap < 1 {
		preRollCap = 1
	}
	return &Segmenter{
		cfg:        cfg,
		engine:     engine,
		sink:       sink,
		frameDur:   frameDur,
		preRollCap: preRollCap,
	}
}

// Index returns the number of segments successfully finalized so far.
func (s *Segmenter) Index() int {
	return s.index
}

// State returns the segmenter's current phase.
func (s *Segmenter) State() State {
	return s.state
}

// Process classifies one frame and advances the state machine. It returns
// a non-nil Segment when a finalize occurred — forced by a silence run
// past SilenceTail, or by the segment reaching MaxSegment duration.
func (s *Segmenter) Process(samples []float32) (*Segment, error) {
	speech, err := s.engine.Classify(samples)
	if err != nil {
		return nil, err
	}

	switch s.state {
	case Idle:
		if speech {
			s.enterSpeech(samples)
		} else {
			s.pushPreRoll(samples)
		}
		return nil, nil

	case InSpeech:
		s.speechFrames = append(s.speechFrames, samples)
		s.speechRun += s.frameDur

		if speech {
			s.silenceRun = 0
		} else {
			s.silenceRun += s.frameDur
		}

		if s.silenceRun >= s.cfg.SilenceTail {
			return s.finalize()
		}
		if s.speechRun >= s.cfg.MaxSegment {
			return s.finalize()
		}
		return nil, nil
	}

	return nil, nil
}

// Flush forces a finalize of any in-progress segment, used on shutdown so
// a trailing utterance is not silently dropped.
func (s *Segmenter) Flush() (*Segment, error) {
	if s.state != InSpeech || len(s.speechFrames) == 0 {
		return nil, nil
	}
	return s.finalize()
}

func (s *Segmenter) enterSpeech(trigger []float32) {
	s.state = InSpeech
	s.speechFrames = append(s.speechFrames, s.preRoll...)
	s.speechFrames = append(s.speechFrames, trigger)
	s.preRoll = nil
	s.silenceRun = 0
	s.speechRun = time.Duration(len(s.speechFrames)) * s.frameDur
}

func (s *Segmenter) pushPreRoll(samples []float32) {
	s.preRoll = append(s.preRoll, samples)
	if len(s.preRoll) > s.preRollCap {
		s.preRoll = s.preRoll[len(s.preRoll)-s.preRollCap:]
	}
}

// finalize writes out the accumulated speech frames, resets the state
// machine, and always resets the VAD's recurrent state — both for a
// silence-triggered finalize and a forced max-duration split — so the
// next segment starts from a clean slate. A segment shorter than
// MinSegmentSecs is discarded and does not advance the segment index.
func (s *Segmenter) finalize() (*Segment, error) {
	frames := s.speechFrames
	s.resetState()
	s.engine.Reset()

	if len(frames) == 0 {
		return nil, nil
	}

	samples := flatten(frames)
	duration := time.Duration(float64(len(samples)) / float64(s.cfg.SampleRate) * float64(time.Second))

	if duration.Seconds() < s.cfg.MinSegmentSecs {
		return nil, apperr.Newf(apperr.SegmentTooShort, "segment duration %.2fs below minimum %.2fs",
			duration.Seconds(), s.cfg.MinSegmentSecs)
	}

	path, err := s.sink.Write(samples, s.cfg.SampleRate)
	if err != nil {
		return nil, apperr.Wrap(apperr.DeviceError, "write segment", err)
	}

	s.index++
	return &Segment{Index: s.index, Path: path, Duration: duration}, nil
}

func (s *Segmenter) resetState() {
	s.state = Idle
	s.speechFrames = nil
	s.silenceRun = 0
	s.speechRun = 0
}

func flatten(frames [][]float32) []float32 {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	out := make([]float32, 0, total)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}
