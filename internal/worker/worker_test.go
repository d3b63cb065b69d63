package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicedapp/voiced/internal/eventbus"
	"github.com/voicedapp/voiced/internal/history"
	"github.com/voicedapp/voiced/internal/segment"
	"github.com/voicedapp/voiced/internal/sidecar"
)

type fakeTranscriber struct {
	result sidecar.TranscriptionResult
	err    error
	calls  []string
}

func (f *fakeTranscriber) Transcribe(audioPath, language string) (sidecar.TranscriptionResult, error) {
	f.calls = append(f.calls, audioPath)
	return f.result, f.err
}

type fakeStore struct {
	inserted []history.Entry
	nextID   int64
}

func (f *fakeStore) Insert(ctx context.Context, entry history.Entry) (int64, error) {
	f.nextID++
	f.inserted = append(f.inserted, entry)
	return f.nextID, nil
}

func run(t *testing.T, w *Worker, segs ...*segment.Segment) {
	t.Helper()
	ch := make(chan *segment.Segment, len(segs))
	for _, s := range segs {
		ch <- s
	}
	close(ch)
	w.In = ch
	done := make(chan struct{})
	go func() { w.Run(context.Background()); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after input channel closed")
	}
}

func TestWorkerPersistsSuccessfulTranscription(t *testing.T) {
	store := &fakeStore{}
	removed := map[string]bool{}
	w := &Worker{
		Transcriber: &fakeTranscriber{result: sidecar.TranscriptionResult{Success: true, Text: "hello there", Language: "en"}},
		Store:       store,
		Remove:      func(p string) error { removed[p] = true; return nil },
	}
	run(t, w, &segment.Segment{Index: 1, Path: "/tmp/segment-1.wav", Duration: 2 * time.Second})

	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d entries, want 1", len(store.inserted))
	}
	if store.inserted[0].Text != "hello there" {
		t.Errorf("Text = %q", store.inserted[0].Text)
	}
	if !removed["/tmp/segment-1.wav"] {
		t.Error("expected temp file to be removed")
	}
}

func TestWorkerSkipsEmptyTranscription(t *testing.T) {
	store := &fakeStore{}
	w := &Worker{
		Transcriber: &fakeTranscriber{result: sidecar.TranscriptionResult{Success: true, Text: "   "}},
		Store:       store,
		Remove:      func(string) error { return nil },
	}
	run(t, w, &segment.Segment{Index: 1, Path: "/tmp/a.wav"})

	if len(store.inserted) != 0 {
		t.Fatalf("inserted %d entries, want 0 for blank transcription", len(store.inserted))
	}
}

func TestWorkerSkipsNoSpeechResult(t *testing.T) {
	store := &fakeStore{}
	w := &Worker{
		Transcriber: &fakeTranscriber{result: sidecar.TranscriptionResult{Success: true, Text: "noise", NoSpeech: true}},
		Store:       store,
		Remove:      func(string) error { return nil },
	}
	run(t, w, &segment.Segment{Index: 1, Path: "/tmp/a.wav"})

	if len(store.inserted) != 0 {
		t.Fatalf("inserted %d entries, want 0 for no_speech result", len(store.inserted))
	}
}

func TestWorkerRemovesTempFileOnTranscribeError(t *testing.T) {
	store := &fakeStore{}
	removed := false
	w := &Worker{
		Transcriber: &fakeTranscriber{err: errors.New("sidecar crashed")},
		Store:       store,
		Remove:      func(string) error { removed = true; return nil },
	}
	run(t, w, &segment.Segment{Index: 1, Path: "/tmp/a.wav"})

	if len(store.inserted) != 0 {
		t.Fatalf("inserted %d entries, want 0 on transcribe error", len(store.inserted))
	}
	if !removed {
		t.Error("expected temp file removal even on error")
	}
}

func TestWorkerPreservesOrderAcrossMultipleSegments(t *testing.T) {
	store := &fakeStore{}
	transcriber := &fakeTranscriber{result: sidecar.TranscriptionResult{Success: true, Text: "ok"}}
	w := &Worker{
		Transcriber: transcriber,
		Store:       store,
		Remove:      func(string) error { return nil },
	}
	run(t, w,
		&segment.Segment{Index: 1, Path: "/tmp/1.wav"},
		&segment.Segment{Index: 2, Path: "/tmp/2.wav"},
		&segment.Segment{Index: 3, Path: "/tmp/3.wav"},
	)

	want := []string{"/tmp/1.wav", "/tmp/2.wav", "/tmp/3.wav"}
	if len(transcriber.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", transcriber.calls, want)
	}
	for i, p := range want {
		if transcriber.calls[i] != p {
			t.Errorf("call %d = %q, want %q", i, transcriber.calls[i], p)
		}
	}
}

func TestWorkerPublishesContinuousTranscriptionEvent(t *testing.T) {
	bus := eventbus.New()
	ch := bus.Subscribe()
	store := &fakeStore{}
	w := &Worker{
		Transcriber: &fakeTranscriber{result: sidecar.TranscriptionResult{Success: true, Text: "published"}},
		Store:       store,
		Bus:         bus,
		Remove:      func(string) error { return nil },
	}
	run(t, w, &segment.Segment{Index: 1, Path: "/tmp/a.wav"})

	var sawComplete, sawContinuous bool
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			switch evt.Type {
			case eventbus.TranscriptionComplete:
				sawComplete = true
			case eventbus.ContinuousTranscription:
				sawContinuous = true
			}
		case <-time.After(time.Second):
			t.Fatal("expected two events")
		}
	}
	if !sawComplete || !sawContinuous {
		t.Errorf("sawComplete=%v sawContinuous=%v", sawComplete, sawContinuous)
	}
}
