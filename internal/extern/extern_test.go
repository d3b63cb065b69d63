package extern

import (
	"errors"
	"testing"
)

type fakeClipboard struct {
	contents string
	writes   []string
	readErr  error
	writeErr error
}

func (f *fakeClipboard) Read() (string, error) {
	return f.contents, f.readErr
}

func (f *fakeClipboard) Write(text string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, text)
	f.contents = text
	return nil
}

type fakeKeyInjector struct {
	sent int
	err  error
}

func (f *fakeKeyInjector) SendPaste() error {
	f.sent++
	return f.err
}

func TestPasteWithPreservationRestoresOriginal(t *testing.T) {
	clip := &fakeClipboard{contents: "original"}
	keys := &fakeKeyInjector{}

	if err := PasteWithPreservation(clip, keys, "inserted text"); err != nil {
		t.Fatalf("PasteWithPreservation: %v", err)
	}
	if keys.sent != 1 {
		t.Errorf("SendPaste called %d times, want 1", keys.sent)
	}
	if clip.contents != "original" {
		t.Errorf("final clipboard = %q, want original restored", clip.contents)
	}
	if len(clip.writes) != 2 || clip.writes[0] != "inserted text" || clip.writes[1] != "original" {
		t.Errorf("writes = %v, want [inserted text, original]", clip.writes)
	}
}

func TestPasteWithPreservationRestoresEvenOnKeyInjectionFailure(t *testing.T) {
	clip := &fakeClipboard{contents: "original"}
	keys := &fakeKeyInjector{err: errors.New("accessibility permission denied")}

	err := PasteWithPreservation(clip, keys, "inserted text")
	if err == nil {
		t.Fatal("expected SendPaste error to propagate")
	}
	if clip.contents != "original" {
		t.Errorf("final clipboard = %q, want original restored despite paste failure", clip.contents)
	}
}

func TestPasteWithPreservationTreatsReadFailureAsEmptyOriginal(t *testing.T) {
	clip := &fakeClipboard{readErr: errors.New("clipboard locked")}
	keys := &fakeKeyInjector{}

	if err := PasteWithPreservation(clip, keys, "inserted text"); err != nil {
		t.Fatalf("PasteWithPreservation: %v", err)
	}
	if clip.contents != "" {
		t.Errorf("final clipboard = %q, want empty string restored", clip.contents)
	}
}
