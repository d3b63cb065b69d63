// Package worker implements the Transcription Worker (C5): it drains
// finalized segments from the bounded segment queue, calls the sidecar
// client synchronously, persists successful results, publishes events,
// and always removes the segment's temporary audio file. Segments are
// never retried — real-time semantics over completeness, matching the
// rest of the pipeline.
package worker

import (
	"context"
	"log/slog"
	"os"

	"github.com/voicedapp/voiced/internal/eventbus"
	"github.com/voicedapp/voiced/internal/history"
	"github.com/voicedapp/voiced/internal/segment"
	"github.com/voicedapp/voiced/internal/sidecar"
	"github.com/voicedapp/voiced/internal/trace"
)

// Transcriber is the subset of sidecar.Client the worker calls. Accepting
// an interface keeps the worker unit-testable without a real subprocess.
type Transcriber interface {
	Transcribe(audioPath, language string) (sidecar.TranscriptionResult, error)
}

// Store is the subset of history.Store the worker writes through.
type Store interface {
	Insert(ctx context.Context, entry history.Entry) (int64, error)
}

// Worker consumes segment.Segment values from In, transcribes each, and
// persists successful non-empty results. It is not safe to run more than
// one Worker over the same segment queue: the store preserves segment
// order only because exactly one goroutine drives it.
type Worker struct {
	In          <-chan *segment.Segment
	Transcriber Transcriber
	Store       Store
	Bus         *eventbus.Bus
	Language    string
	ModelName   string

	// Remove deletes a segment's temp file once the worker is done with
	// it, win or lose. Defaults to os.Remove; overridable for tests.
	Remove func(path string) error
}

// Run drains In until it is closed (the supervisor closes it after the
// segmenter has flushed any in-flight segment), transcribing and
// persisting each segment in arrival order. Run returns once In is
// closed and every received segment has been fully handled, so callers
// can rely on it to fully drain on shutdown.
func (w *Worker) Run(ctx context.Context) {
	remove := w.Remove
	if remove == nil {
		remove = os.Remove
	}

	for seg := range w.In {
		w.handle(ctx, seg, remove)
	}
}

func (w *Worker) handle(ctx context.Context, seg *segment.Segment, remove func(string) error) {
	ctx, span := trace.StartSpan(ctx, "transcribe_segment")
	span.SetAttr("segment", seg.Index)
	defer func() {
		if err := remove(seg.Path); err != nil && !os.IsNotExist(err) {
			slog.Warn("worker: failed to remove segment temp file", "path", seg.Path, "error", err)
		}
		span.End()
		trace.Logger(ctx).Debug("worker: segment handled", "span", span)
	}()

	result, err := w.Transcriber.Transcribe(seg.Path, w.Language)
	if err != nil {
		slog.Error("worker: transcription failed, skipping segment", "segment", seg.Index, "error", err)
		w.publish(false, "", "", false, err.Error())
		return
	}
	if !result.Success {
		slog.Warn("worker: sidecar reported failure", "segment", seg.Index)
		w.publish(false, "", "", false, "transcription failed")
		return
	}
	if result.NoSpeech || isBlank(result.Text) {
		// Not errors: an empty or no-speech transcription is silently
		// absorbed rather than surfaced or persisted.
		w.publish(true, result.Text, result.Language, result.NoSpeech, "")
		return
	}

	durationSecs := seg.Duration.Seconds()
	entry := history.Entry{
		Text:            result.Text,
		DurationSeconds: &durationSecs,
		Language:        nonEmptyPtr(result.Language),
		ModelName:       nonEmptyPtr(w.ModelName),
	}
	id, err := w.Store.Insert(ctx, entry)
	if err != nil {
		slog.Error("worker: failed to persist transcription", "segment", seg.Index, "error", err)
		w.publish(false, result.Text, result.Language, false, err.Error())
		return
	}

	w.publish(true, result.Text, result.Language, false, "")
	if w.Bus != nil {
		w.Bus.Publish(eventbus.Event{
			Type: eventbus.ContinuousTranscription,
			Payload: eventbus.ContinuousTranscriptionPayload{
				ID:              id,
				Text:            result.Text,
				DurationSeconds: &durationSecs,
				Language:        nonEmptyPtr(result.Language),
				ModelName:       nonEmptyPtr(w.ModelName),
			},
		})
	}
}

func (w *Worker) publish(success bool, text, language string, noSpeech bool, errMsg string) {
	if w.Bus == nil {
		return
	}
	w.Bus.Publish(eventbus.Event{
		Type: eventbus.TranscriptionComplete,
		Payload: eventbus.TranscriptionCompletePayload{
			Success:  success,
			Text:     text,
			Language: language,
			NoSpeech: noSpeech,
			Error:    errMsg,
		},
	})
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
