package hotkey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicedapp/voiced/internal/eventbus"
	"github.com/voicedapp/voiced/internal/extern"
	"github.com/voicedapp/voiced/internal/sidecar"
)

type fakeCapture struct {
	path string
	err  error
}

func (f *fakeCapture) stop() (string, error) { return f.path, f.err }

type fakeTranscriber struct {
	transcribeResult  sidecar.TranscriptionResult
	transcribeErr     error
	postprocessCalls  []sidecar.PostprocessRequest
	postprocessResult sidecar.PostprocessResult
}

func (f *fakeTranscriber) Transcribe(audioPath, language string) (sidecar.TranscriptionResult, error) {
	return f.transcribeResult, f.transcribeErr
}

func (f *fakeTranscriber) PostprocessText(req sidecar.PostprocessRequest) (sidecar.PostprocessResult, error) {
	f.postprocessCalls = append(f.postprocessCalls, req)
	return f.postprocessResult, nil
}

type fakeSettings struct {
	autoInsert bool
	postproc   bool
}

func (f *fakeSettings) AutoInsert() bool              { return f.autoInsert }
func (f *fakeSettings) DeviceName() string            { return "" }
func (f *fakeSettings) Language() string              { return "en" }
func (f *fakeSettings) PostprocessEnabled() bool      { return f.postproc }
func (f *fakeSettings) Dictionary() map[string]string { return nil }
func (f *fakeSettings) CustomPrompt() string          { return "" }

type fakeClipboard struct {
	contents string
}

func (f *fakeClipboard) Read() (string, error)   { return f.contents, nil }
func (f *fakeClipboard) Write(text string) error { f.contents = text; return nil }

type fakeKeys struct {
	sent int
}

func (f *fakeKeys) SendPaste() error { f.sent++; return nil }

func waitForEvent(t *testing.T, ch <-chan eventbus.Event, want eventbus.Type) eventbus.Event {
	t.Helper()
	for {
		select {
		case evt := <-ch:
			if evt.Type == want {
				return evt
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %v", want)
		}
	}
}

func TestFinishCaptureTranscribesAndPastesWhenAutoInsertEnabled(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe()
	transcriber := &fakeTranscriber{transcribeResult: sidecar.TranscriptionResult{Success: true, Text: "hello world"}}
	clip := &fakeClipboard{contents: "previous"}
	keys := &fakeKeys{}
	settings := &fakeSettings{autoInsert: true}

	c := &Controller{
		Transcriber: transcriber,
		Bus:         bus,
		Clipboard:   clip,
		Keys:        keys,
		Settings:    settings,
	}

	c.finishCapture(&fakeCapture{path: "/tmp/ptt.wav"}, extern.AppInfo{})

	waitForEvent(t, sub, eventbus.RecordingStateChange)
	if keys.sent != 1 {
		t.Errorf("SendPaste called %d times, want 1", keys.sent)
	}
	if clip.contents != "previous" {
		t.Errorf("clipboard = %q, want restored to previous", clip.contents)
	}
}

func TestFinishCaptureSkipsPasteWhenAutoInsertDisabled(t *testing.T) {
	transcriber := &fakeTranscriber{transcribeResult: sidecar.TranscriptionResult{Success: true, Text: "hello"}}
	keys := &fakeKeys{}
	settings := &fakeSettings{autoInsert: false}

	c := &Controller{
		Transcriber: transcriber,
		Clipboard:   &fakeClipboard{},
		Keys:        keys,
		Settings:    settings,
	}
	c.finishCapture(&fakeCapture{path: "/tmp/ptt.wav"}, extern.AppInfo{})

	if keys.sent != 0 {
		t.Errorf("SendPaste called %d times, want 0 when auto-insert is disabled", keys.sent)
	}
}

func TestFinishCaptureAppliesPostprocessingWhenEnabled(t *testing.T) {
	transcriber := &fakeTranscriber{
		transcribeResult:  sidecar.TranscriptionResult{Success: true, Text: "raw text"},
		postprocessResult: sidecar.PostprocessResult{Success: true, ProcessedText: "polished text"},
	}
	clip := &fakeClipboard{}
	keys := &fakeKeys{}
	settings := &fakeSettings{autoInsert: true, postproc: true}

	c := &Controller{
		Transcriber: transcriber,
		Clipboard:   clip,
		Keys:        keys,
		Settings:    settings,
	}
	c.finishCapture(&fakeCapture{path: "/tmp/ptt.wav"}, extern.AppInfo{Name: "Mail", BundleID: "com.apple.mail"})

	if len(transcriber.postprocessCalls) != 1 {
		t.Fatalf("postprocess calls = %d, want 1", len(transcriber.postprocessCalls))
	}
	if transcriber.postprocessCalls[0].AppName != "Mail" {
		t.Errorf("AppName = %q, want Mail", transcriber.postprocessCalls[0].AppName)
	}
}

func TestFinishCaptureHandlesTranscribeErrorGracefully(t *testing.T) {
	transcriber := &fakeTranscriber{transcribeErr: errors.New("sidecar down")}
	keys := &fakeKeys{}
	c := &Controller{
		Transcriber: transcriber,
		Clipboard:   &fakeClipboard{},
		Keys:        keys,
		Settings:    &fakeSettings{autoInsert: true},
	}

	c.finishCapture(&fakeCapture{path: "/tmp/ptt.wav"}, extern.AppInfo{})

	if keys.sent != 0 {
		t.Errorf("SendPaste called %d times, want 0 on transcription error", keys.sent)
	}
}
