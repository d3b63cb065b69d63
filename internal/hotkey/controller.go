// Package hotkey implements the Press-to-Talk Controller (C6): global
// hotkey registration and validation, and the key-down/key-up state
// machine that interrupts continuous listening for a one-shot capture.
package hotkey

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"

	gohotkey "golang.design/x/hotkey"

	"github.com/voicedapp/voiced/internal/apperr"
	"github.com/voicedapp/voiced/internal/eventbus"
	"github.com/voicedapp/voiced/internal/extern"
	"github.com/voicedapp/voiced/internal/pipeline"
	"github.com/voicedapp/voiced/internal/sidecar"
)

// Transcriber is the subset of sidecar.Client the controller calls.
type Transcriber interface {
	Transcribe(audioPath, language string) (sidecar.TranscriptionResult, error)
	PostprocessText(req sidecar.PostprocessRequest) (sidecar.PostprocessResult, error)
}

// Settings is the subset of settings state the controller reads on every
// key-down, so changes the user makes while idle take effect immediately.
type Settings interface {
	AutoInsert() bool
	DeviceName() string
	Language() string
	PostprocessEnabled() bool
	Dictionary() map[string]string
	CustomPrompt() string
}

// Controller owns one registered global hotkey and mediates between it
// and the continuous pipeline: press-to-talk always wins the microphone.
type Controller struct {
	Pipeline    *pipeline.Supervisor
	PipelineCfg pipeline.Config
	Transcriber Transcriber
	Bus         *eventbus.Bus
	Clipboard   extern.Clipboard
	Keys        extern.KeyInjector
	Frontmost   extern.FrontmostApp
	Settings    Settings
	CaptureDir  string

	// startCapture constructs the one-shot capture; overridable in tests.
	startCapture func(deviceName, dir string) (capture, error)

	hk *gohotkey.Hotkey

	wasListening atomic.Bool
	active       capture
}

// capture is the subset of rawCapture the controller drives, narrowed so
// tests can substitute a fake that never touches an audio device.
type capture interface {
	stop() (string, error)
}

// New constructs a Controller. hotkeyStr must already satisfy Validate.
func New(hotkeyStr string, sup *pipeline.Supervisor, cfg pipeline.Config, transcriber Transcriber, bus *eventbus.Bus, settings Settings, captureDir string) (*Controller, error) {
	if err := Validate(hotkeyStr); err != nil {
		return nil, err
	}
	mods, key, err := parse(hotkeyStr)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		Pipeline:    sup,
		PipelineCfg: cfg,
		Transcriber: transcriber,
		Bus:         bus,
		Clipboard:   extern.NewSystemClipboard(),
		Settings:    settings,
		CaptureDir:  captureDir,
		hk:          gohotkey.New(mods, key),
	}
	c.startCapture = func(deviceName, dir string) (capture, error) {
		return startRawCapture(deviceName, dir)
	}
	return c, nil
}

// Start registers the hotkey and spawns T_hotkey, the goroutine fanning
// key-down/key-up events to the press-to-talk state machine.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.hk.Register(); err != nil {
		return apperr.Wrap(apperr.PermissionDenied, "register global hotkey", err)
	}

	go func() {
		keydown := c.hk.Keydown()
		keyup := c.hk.Keyup()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keydown:
				c.onKeyDown()
			case <-keyup:
				c.onKeyUp()
			}
		}
	}()
	return nil
}

// Stop unregisters the hotkey.
func (c *Controller) Stop() error {
	return c.hk.Unregister()
}

func (c *Controller) onKeyDown() {
	if c.active != nil {
		return // key-repeat; already capturing
	}

	c.wasListening.Store(false)
	if c.Pipeline != nil && c.Pipeline.StopIfRunning() {
		c.wasListening.Store(true)
	}

	deviceName := ""
	if c.Settings != nil {
		deviceName = c.Settings.DeviceName()
	}
	rc, err := c.startCapture(deviceName, c.CaptureDir)
	if err != nil {
		slog.Error("hotkey: failed to start capture", "error", err)
		c.publishRecordingState(eventbus.StateIdle)
		return
	}
	c.active = rc
	c.publishRecordingState(eventbus.StateRecording)
}

func (c *Controller) onKeyUp() {
	rc := c.active
	if rc == nil {
		return
	}
	c.active = nil

	var frontmost extern.AppInfo
	if c.Frontmost != nil {
		if info, err := c.Frontmost.Frontmost(); err == nil {
			frontmost = info
		}
	}
	go c.finishCapture(rc, frontmost)
}

// finishCapture runs off the OS callback thread: stop capture, transcribe,
// optionally postprocess, optionally paste, then resume continuous
// listening if it was running before key-down.
func (c *Controller) finishCapture(rc capture, frontmost extern.AppInfo) {
	path, err := rc.stop()
	if err != nil {
		slog.Error("hotkey: failed to finalize capture", "error", err)
		c.publishRecordingState(eventbus.StateIdle)
		c.maybeResume()
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("hotkey: failed to remove capture temp file", "path", path, "error", err)
		}
	}()

	c.publishRecordingState(eventbus.StateTranscribing)

	language := ""
	if c.Settings != nil {
		language = c.Settings.Language()
	}
	result, err := c.Transcriber.Transcribe(path, language)
	if err != nil || !result.Success {
		slog.Error("hotkey: transcription failed", "error", err)
		errMsg := "transcription failed"
		if err != nil {
			errMsg = err.Error()
		}
		c.publishComplete(false, "", "", false, errMsg)
		c.publishRecordingState(eventbus.StateIdle)
		c.maybeResume()
		return
	}

	text := result.Text
	if c.Settings != nil && c.Settings.PostprocessEnabled() && text != "" {
		req := sidecar.PostprocessRequest{
			Text:         text,
			AppName:      frontmost.Name,
			AppBundleID:  frontmost.BundleID,
			Dictionary:   c.Settings.Dictionary(),
			CustomPrompt: c.Settings.CustomPrompt(),
		}
		if pp, err := c.Transcriber.PostprocessText(req); err != nil {
			slog.Warn("hotkey: postprocess failed, using original text", "error", err)
		} else if pp.Success {
			text = pp.ProcessedText
		}
	}

	c.publishComplete(true, text, result.Language, result.NoSpeech, "")
	c.publishRecordingState(eventbus.StateIdle)

	if text != "" && c.Settings != nil && c.Settings.AutoInsert() && c.Clipboard != nil && c.Keys != nil {
		if err := extern.PasteWithPreservation(c.Clipboard, c.Keys, text); err != nil {
			slog.Warn("hotkey: auto-insert failed", "error", err)
		}
	}

	c.maybeResume()
}

func (c *Controller) maybeResume() {
	if !c.wasListening.Load() || c.Pipeline == nil {
		return
	}
	if _, err := c.Pipeline.Start(context.Background(), c.PipelineCfg); err != nil {
		slog.Error("hotkey: failed to resume continuous listening", "error", err)
	}
}

func (c *Controller) publishComplete(success bool, text, language string, noSpeech bool, errMsg string) {
	if c.Bus == nil {
		return
	}
	c.Bus.Publish(eventbus.Event{
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

func (c *Controller) publishRecordingState(state eventbus.RecordingState) {
	if c.Bus == nil {
		return
	}
	c.Bus.Publish(eventbus.Event{
		Type:    eventbus.RecordingStateChange,
		Payload: eventbus.RecordingStateChangePayload{State: state},
	})
}
