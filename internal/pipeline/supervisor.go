// Package pipeline implements the Pipeline Supervisor (C7): it owns the
// Frame and Segment queues and the three long-lived goroutines (frame
// producer, VAD+segmenter, transcription worker) that make up continuous
// listening, and orchestrates their coordinated start and shutdown.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/voicedapp/voiced/internal/apperr"
	"github.com/voicedapp/voiced/internal/eventbus"
	"github.com/voicedapp/voiced/internal/frameproducer"
	"github.com/voicedapp/voiced/internal/segment"
	"github.com/voicedapp/voiced/internal/vad"
	"github.com/voicedapp/voiced/internal/worker"
)

// ErrAlreadyRunning is returned by Start when a session is already active.
var ErrAlreadyRunning = errors.New("pipeline: already running")

// FrameSource is the capture side of the graph. frameproducer.Producer
// satisfies this structurally; tests substitute a fake that emits
// synthetic frames without touching a real audio device.
type FrameSource interface {
	Start(ctx context.Context) error
	Output() <-chan frameproducer.Frame
	Stop()
}

// Config controls one listening session.
type Config struct {
	DeviceName      string
	FrameSize       int
	FrameQueueDepth int
	SegmentQueueCap int
	Segment         segment.Config
	VADThreshold    float64
	Language        string
	ModelName       string
}

func (c Config) withDefaults() Config {
	if c.FrameSize <= 0 {
		c.FrameSize = frameproducer.FrameSize
	}
	if c.FrameQueueDepth <= 0 {
		c.FrameQueueDepth = frameproducer.DefaultQueueDepth
	}
	if c.SegmentQueueCap <= 0 {
		c.SegmentQueueCap = DefaultSegmentQueueCap
	}
	return c
}

// DefaultSegmentQueueCap bounds the segment queue to 10
// finalized-but-not-yet-transcribed segments before the segmenter blocks.
const DefaultSegmentQueueCap = 10

// Handle represents one running listening session.
type Handle struct {
	sup     *Supervisor
	source  FrameSource
	segCh   chan *segment.Segment
	stopCh  chan struct{}
	vadDone chan struct{}
	wkrDone chan struct{}
	engine  vad.Engine

	finalCount int
}

// Stop tears the session down: stops the frame source, lets the VAD/
// segmenter goroutine drain and flush any in-progress segment, lets the
// worker drain the segment queue, then joins everything and returns the
// number of segments emitted this session. Safe to call more than once;
// the second call is a no-op.
func (h *Handle) Stop() int {
	h.sup.mu.Lock()
	if h.sup.handle != h {
		h.sup.mu.Unlock()
		return h.finalCount
	}
	h.sup.handle = nil
	h.sup.mu.Unlock()

	h.source.Stop()
	close(h.stopCh)
	<-h.vadDone
	<-h.wkrDone
	_ = h.engine.Close()
	return h.finalCount
}

// Supervisor coordinates Start/Stop for at most one listening session at a
// time and supplies the transcription backend shared across sessions.
type Supervisor struct {
	Transcriber worker.Transcriber
	Store       worker.Store
	Bus         *eventbus.Bus

	// NewSource constructs the frame source for a session; defaults to a
	// real frameproducer.Producer. Tests override it with a fake.
	NewSource func(deviceName string, frameSize, queueDepth int) (FrameSource, error)
	// NewVAD constructs the VAD engine for a session; defaults to
	// vad.New. Tests override it with a deterministic fake.
	NewVAD func(threshold float64) (vad.Engine, error)
	// NewSink constructs the per-session segment sink. It has no default:
	// Start returns an error when it is nil.
	NewSink func() (segment.Sink, error)

	mu       sync.Mutex
	starting bool
	handle   *Handle
}

// New constructs a Supervisor. transcriber, store, and bus wire the
// worker goroutine each session spawns.
func New(transcriber worker.Transcriber, store worker.Store, bus *eventbus.Bus) *Supervisor {
	return &Supervisor{Transcriber: transcriber, Store: store, Bus: bus}
}

// Start spins up the three-stage graph: frame producer -> VAD/segmenter ->
// worker. It returns ErrAlreadyRunning if a session is already active.
func (s *Supervisor) Start(ctx context.Context, cfg Config) (*Handle, error) {
	cfg = cfg.withDefaults()

	// Reserve the supervisor before the slow device/model setup below, so
	// two concurrent Starts cannot both pass the running check.
	s.mu.Lock()
	if s.starting || s.handle != nil {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s.starting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	newSource := s.NewSource
	if newSource == nil {
		newSource = func(deviceName string, frameSize, queueDepth int) (FrameSource, error) {
			return frameproducer.New(deviceName, frameSize, queueDepth)
		}
	}
	newVAD := s.NewVAD
	if newVAD == nil {
		newVAD = vad.New
	}

	source, err := newSource(cfg.DeviceName, cfg.FrameSize, cfg.FrameQueueDepth)
	if err != nil {
		return nil, err
	}
	engine, err := newVAD(cfg.VADThreshold)
	if err != nil {
		return nil, err
	}

	if s.NewSink == nil {
		_ = engine.Close()
		return nil, errors.New("pipeline: NewSink is not configured")
	}
	sink, err := s.NewSink()
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	segmenter := segment.New(cfg.Segment, engine, sink)

	if err := source.Start(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}

	h := &Handle{
		sup:     s,
		source:  source,
		segCh:   make(chan *segment.Segment, cfg.SegmentQueueCap),
		stopCh:  make(chan struct{}),
		vadDone: make(chan struct{}),
		wkrDone: make(chan struct{}),
		engine:  engine,
	}

	go h.runVADSegmenter(source, segmenter)

	w := &worker.Worker{
		In:          h.segCh,
		Transcriber: s.Transcriber,
		Store:       s.Store,
		Bus:         s.Bus,
		Language:    cfg.Language,
		ModelName:   cfg.ModelName,
	}
	// The worker's own completion is gated by h.segCh closing (driven by
	// Stop(), below), not by ctx. It runs on a context independent of the
	// caller's so canceling ctx to stop the producer/VAD goroutines can
	// never also cancel an in-flight persist of a segment still draining.
	go func() {
		w.Run(context.Background())
		close(h.wkrDone)
	}()

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()

	return h, nil
}

// StopIfRunning stops the active session, if any, and reports whether a
// session was actually running. The press-to-talk controller uses this to
// record whether continuous listening must be resumed afterward.
func (s *Supervisor) StopIfRunning() bool {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h.Stop()
	return true
}

// runVADSegmenter is T_vad: it classifies every frame and advances the
// segmenter's state machine, forwarding finalized segments to the worker
// queue. On stop it drains any frames still buffered in the frame source's
// channel, flushes an in-progress utterance, then closes the segment
// queue so the worker can drain and exit.
func (h *Handle) runVADSegmenter(source FrameSource, segmenter *segment.Segmenter) {
	defer close(h.vadDone)
	defer close(h.segCh)

	frames := source.Output()
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				h.flush(segmenter)
				return
			}
			h.process(segmenter, frame)
		case <-h.stopCh:
			h.drainRemaining(frames, segmenter)
			h.flush(segmenter)
			return
		}
	}
}

func (h *Handle) drainRemaining(frames <-chan frameproducer.Frame, segmenter *segment.Segmenter) {
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			h.process(segmenter, frame)
		default:
			return
		}
	}
}

func (h *Handle) process(segmenter *segment.Segmenter, frame frameproducer.Frame) {
	seg, err := segmenter.Process(frame.Samples)
	if err != nil {
		// SegmentTooShort is not an error worth logging loudly; anything
		// else (e.g. a write failure) is worth a warning but must not
		// stop the stream.
		if apperr.IsCode(err, apperr.SegmentTooShort) {
			slog.Debug("pipeline: segment discarded", "error", err)
		} else {
			slog.Warn("pipeline: segment dropped", "error", err)
		}
		return
	}
	if seg != nil {
		h.finalCount++
		select {
		case h.segCh <- seg:
		case <-time.After(segmentEnqueueTimeout):
			slog.Warn("pipeline: segment queue full, applying backpressure", "segment", seg.Index)
			h.segCh <- seg
		}
	}
}

func (h *Handle) flush(segmenter *segment.Segmenter) {
	seg, err := segmenter.Flush()
	if err != nil {
		slog.Debug("pipeline: flush discarded trailing segment", "error", err)
		return
	}
	if seg != nil {
		h.finalCount++
		h.segCh <- seg
	}
}

// segmentEnqueueTimeout bounds how long the VAD thread logs a warning
// before blocking outright on a full segment queue; this backpressure is
// acceptable because segment production is seconds apart.
const segmentEnqueueTimeout = 2 * time.Second
