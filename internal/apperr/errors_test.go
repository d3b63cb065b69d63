package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewAndError(t *testing.T) {
	err := New(DeviceError, "no input device")
	if err.Code != DeviceError {
		t.Errorf("Code = %v, want %v", err.Code, DeviceError)
	}
	if err.Error() != "device_error: no input device" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ModelError, "model %q not found", "large")
	want := `model_error: model "large" not found`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("pipe closed")
	err := Wrap(EngineProtocolError, "read failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve cause for errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return cause")
	}
}

func TestWrapf(t *testing.T) {
	cause := errors.New("boom")
	err := Wrapf(EngineNotRunning, cause, "segment %d", 3)
	if err.Message != "segment 3" {
		t.Errorf("Message = %q, want %q", err.Message, "segment 3")
	}
}

func TestWithMetadata(t *testing.T) {
	base := New(NoSpeech, "empty transcript")
	tagged := base.WithMetadata("segment_id", "42")
	if _, ok := base.Metadata["segment_id"]; ok {
		t.Error("WithMetadata must not mutate the receiver")
	}
	if tagged.Metadata["segment_id"] != "42" {
		t.Errorf("Metadata[segment_id] = %q, want %q", tagged.Metadata["segment_id"], "42")
	}
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil error", nil, Unknown},
		{"plain error", errors.New("oops"), Unknown},
		{"app error", New(SegmentTooShort, "too short"), SegmentTooShort},
		{"wrapped app error", fmt.Errorf("context: %w", New(PermissionDenied, "no access")), PermissionDenied},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CodeOf(c.err); got != c.want {
				t.Errorf("CodeOf() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := New(ModelError, "not loaded")
	if !IsCode(err, ModelError) {
		t.Error("IsCode should match ModelError")
	}
	if IsCode(err, DeviceError) {
		t.Error("IsCode should not match DeviceError")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{DeviceError, true},
		{EngineNotRunning, true},
		{EngineProtocolError, true},
		{ModelError, false},
		{SegmentTooShort, false},
		{NoSpeech, false},
		{PermissionDenied, false},
		{Unknown, false},
	}
	for _, c := range cases {
		t.Run(string(c.code), func(t *testing.T) {
			if got := IsRetryable(New(c.code, "x")); got != c.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", c.code, got, c.want)
			}
		})
	}
}
