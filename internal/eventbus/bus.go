// Package eventbus is the in-process typed publish/subscribe surface the
// core uses to notify external collaborators (the window/tray UI, in
// particular) of state changes. It is a named multi-subscriber bus so
// more than one listener — the tray icon and the websocket bridge in
// internal/server, say — can observe the same events without racing
// for a single channel.
package eventbus

import (
	"log/slog"
	"sync"
)

// Type names one kind of event the bus carries.
type Type string

const (
	RecordingStateChange    Type = "recording-state-change"
	TranscriptionComplete   Type = "transcription-complete"
	ContinuousTranscription Type = "continuous-transcription"
	HotkeyRegistered        Type = "hotkey-registered"
	HotkeyInitError         Type = "hotkey-init-error"
	ModelLoadComplete       Type = "model-load-complete"
	ModelLoadError          Type = "model-load-error"
)

// RecordingState is the value carried by a RecordingStateChange event.
type RecordingState string

const (
	StateIdle         RecordingState = "idle"
	StateRecording    RecordingState = "recording"
	StateTranscribing RecordingState = "transcribing"
)

// RecordingStateChangePayload accompanies RecordingStateChange.
type RecordingStateChangePayload struct {
	State RecordingState `json:"state"`
}

// TranscriptionCompletePayload accompanies TranscriptionComplete, emitted
// after every transcribe call (hotkey or continuous) regardless of outcome.
type TranscriptionCompletePayload struct {
	Success  bool   `json:"success"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	NoSpeech bool   `json:"no_speech,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ContinuousTranscriptionPayload accompanies ContinuousTranscription, fired
// only for persisted continuous-mode results.
type ContinuousTranscriptionPayload struct {
	ID              int64    `json:"id"`
	Text            string   `json:"text"`
	CreatedAt       string   `json:"created_at"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Language        *string  `json:"language,omitempty"`
	ModelName       *string  `json:"model_name,omitempty"`
}

// ModelLoadPayload accompanies ModelLoadComplete / ModelLoadError.
type ModelLoadPayload struct {
	ModelName string `json:"model_name"`
	Error     string `json:"error,omitempty"`
}

// HotkeyPayload accompanies HotkeyRegistered / HotkeyInitError.
type HotkeyPayload struct {
	Hotkey string `json:"hotkey"`
	Error  string `json:"error,omitempty"`
}

// Event is one published message: a Type tag plus its matching payload.
type Event struct {
	Type    Type
	Payload any
}

// defaultSubscriberBuffer bounds how many unconsumed events a slow
// subscriber may accumulate before Publish starts dropping for it.
const defaultSubscriberBuffer = 64

// Bus fans one stream of events out to any number of subscribers. A slow
// or absent subscriber never blocks Publish: the event is dropped for that
// subscriber and a warning is logged, mirroring the real-time-over-
// completeness stance the rest of the core takes toward its queues.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a new listener and returns its receive-only channel.
// The channel is never closed by the bus; callers simply stop reading it
// when done (subscriptions live for the process lifetime in this design —
// there is no unsubscribe, matching the UI/tray's single long-lived
// listener usage pattern).
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, defaultSubscriberBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish fans evt out to every current subscriber, non-blockingly.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			slog.Warn("eventbus: dropping event for slow subscriber", "type", evt.Type)
		}
	}
}
