package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	envVars := []string{
		"VOICED_DEVICE_NAME", "VOICED_SAMPLE_RATE", "VOICED_FRAME_SIZE",
		"VOICED_VAD_THRESHOLD", "VOICED_SILENCE_TAIL_MS", "VOICED_MAX_SEGMENT_MS",
		"VOICED_PRE_ROLL_MS", "VOICED_MIN_SEGMENT_SECS", "VOICED_FRAME_QUEUE_DEPTH",
		"VOICED_SEGMENT_QUEUE_CAP", "VOICED_SIDECAR_BINARY", "VOICED_SIDECAR_HANDSHAKE_MS",
		"VOICED_MODEL_NAME", "VOICED_HOTKEY", "VOICED_AUTO_INSERT",
		"VOICED_POSTPROCESS_ENABLED", "VOICED_POSTPROCESS_MODEL", "VOICED_EVENT_ADDR",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want %d", cfg.SampleRate, 16000)
	}
	if cfg.FrameSize != 512 {
		t.Errorf("FrameSize = %d, want %d", cfg.FrameSize, 512)
	}
	if cfg.VADThreshold != 0.5 {
		t.Errorf("VADThreshold = %f, want %f", cfg.VADThreshold, 0.5)
	}
	if cfg.SilenceTail != 1500*time.Millisecond {
		t.Errorf("SilenceTail = %v, want %v", cfg.SilenceTail, 1500*time.Millisecond)
	}
	if cfg.MaxSegment != 60*time.Second {
		t.Errorf("MaxSegment = %v, want %v", cfg.MaxSegment, 60*time.Second)
	}
	if cfg.PreRoll != 300*time.Millisecond {
		t.Errorf("PreRoll = %v, want %v", cfg.PreRoll, 300*time.Millisecond)
	}
	if cfg.MinSegmentSecs != 0.5 {
		t.Errorf("MinSegmentSecs = %f, want %f", cfg.MinSegmentSecs, 0.5)
	}
	if cfg.FrameQueueDepth != 256 {
		t.Errorf("FrameQueueDepth = %d, want %d", cfg.FrameQueueDepth, 256)
	}
	if cfg.SegmentQueueCap != 10 {
		t.Errorf("SegmentQueueCap = %d, want %d", cfg.SegmentQueueCap, 10)
	}
	if cfg.SidecarBinary != "voiced-sidecar" {
		t.Errorf("SidecarBinary = %q, want %q", cfg.SidecarBinary, "voiced-sidecar")
	}
	if cfg.SidecarHandshake != 60*time.Second {
		t.Errorf("SidecarHandshake = %v, want %v", cfg.SidecarHandshake, 60*time.Second)
	}
	if cfg.ModelName != "small" {
		t.Errorf("ModelName = %q, want %q", cfg.ModelName, "small")
	}
	if cfg.Hotkey != "ctrl+shift+space" {
		t.Errorf("Hotkey = %q, want %q", cfg.Hotkey, "ctrl+shift+space")
	}
	if !cfg.AutoInsert {
		t.Error("AutoInsert should default to true")
	}
	if cfg.PostprocessEnabled {
		t.Error("PostprocessEnabled should default to false")
	}
	if cfg.EventAddr != ":8090" {
		t.Errorf("EventAddr = %q, want %q", cfg.EventAddr, ":8090")
	}
	if cfg.CacheDir == "" {
		t.Error("CacheDir should not be empty")
	}
	if len(cfg.SidecarSearchDir) == 0 {
		t.Error("SidecarSearchDir should not be empty")
	}
}

func TestLoadWithEnv(t *testing.T) {
	os.Setenv("VOICED_DEVICE_NAME", "USB Microphone")
	os.Setenv("VOICED_SAMPLE_RATE", "48000")
	os.Setenv("VOICED_FRAME_SIZE", "1024")
	os.Setenv("VOICED_VAD_THRESHOLD", "0.7")
	os.Setenv("VOICED_SILENCE_TAIL_MS", "2000")
	os.Setenv("VOICED_MAX_SEGMENT_MS", "30000")
	os.Setenv("VOICED_PRE_ROLL_MS", "500")
	os.Setenv("VOICED_MIN_SEGMENT_SECS", "1.0")
	os.Setenv("VOICED_FRAME_QUEUE_DEPTH", "128")
	os.Setenv("VOICED_SEGMENT_QUEUE_CAP", "16")
	os.Setenv("VOICED_SIDECAR_BINARY", "custom-sidecar")
	os.Setenv("VOICED_MODEL_NAME", "large")
	os.Setenv("VOICED_HOTKEY", "f9")
	os.Setenv("VOICED_AUTO_INSERT", "false")
	os.Setenv("VOICED_POSTPROCESS_ENABLED", "true")
	os.Setenv("VOICED_EVENT_ADDR", ":9191")
	defer func() {
		for _, v := range []string{
			"VOICED_DEVICE_NAME", "VOICED_SAMPLE_RATE", "VOICED_FRAME_SIZE",
			"VOICED_VAD_THRESHOLD", "VOICED_SILENCE_TAIL_MS", "VOICED_MAX_SEGMENT_MS",
			"VOICED_PRE_ROLL_MS", "VOICED_MIN_SEGMENT_SECS", "VOICED_FRAME_QUEUE_DEPTH",
			"VOICED_SEGMENT_QUEUE_CAP", "VOICED_SIDECAR_BINARY", "VOICED_MODEL_NAME",
			"VOICED_HOTKEY", "VOICED_AUTO_INSERT", "VOICED_POSTPROCESS_ENABLED",
			"VOICED_EVENT_ADDR",
		} {
			os.Unsetenv(v)
		}
	}()

	cfg := Load()

	if cfg.DeviceName != "USB Microphone" {
		t.Errorf("DeviceName = %q, want %q", cfg.DeviceName, "USB Microphone")
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want %d", cfg.SampleRate, 48000)
	}
	if cfg.FrameSize != 1024 {
		t.Errorf("FrameSize = %d, want %d", cfg.FrameSize, 1024)
	}
	if cfg.VADThreshold != 0.7 {
		t.Errorf("VADThreshold = %f, want %f", cfg.VADThreshold, 0.7)
	}
	if cfg.SilenceTail != 2000*time.Millisecond {
		t.Errorf("SilenceTail = %v, want %v", cfg.SilenceTail, 2000*time.Millisecond)
	}
	if cfg.MaxSegment != 30*time.Second {
		t.Errorf("MaxSegment = %v, want %v", cfg.MaxSegment, 30*time.Second)
	}
	if cfg.PreRoll != 500*time.Millisecond {
		t.Errorf("PreRoll = %v, want %v", cfg.PreRoll, 500*time.Millisecond)
	}
	if cfg.MinSegmentSecs != 1.0 {
		t.Errorf("MinSegmentSecs = %f, want %f", cfg.MinSegmentSecs, 1.0)
	}
	if cfg.FrameQueueDepth != 128 {
		t.Errorf("FrameQueueDepth = %d, want %d", cfg.FrameQueueDepth, 128)
	}
	if cfg.SegmentQueueCap != 16 {
		t.Errorf("SegmentQueueCap = %d, want %d", cfg.SegmentQueueCap, 16)
	}
	if cfg.SidecarBinary != "custom-sidecar" {
		t.Errorf("SidecarBinary = %q, want %q", cfg.SidecarBinary, "custom-sidecar")
	}
	if cfg.ModelName != "large" {
		t.Errorf("ModelName = %q, want %q", cfg.ModelName, "large")
	}
	if cfg.Hotkey != "f9" {
		t.Errorf("Hotkey = %q, want %q", cfg.Hotkey, "f9")
	}
	if cfg.AutoInsert {
		t.Error("AutoInsert should be false")
	}
	if !cfg.PostprocessEnabled {
		t.Error("PostprocessEnabled should be true")
	}
	if cfg.EventAddr != ":9191" {
		t.Errorf("EventAddr = %q, want %q", cfg.EventAddr, ":9191")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("TEST_STRING", "hello")
	defer os.Unsetenv("TEST_STRING")
	if v := getEnv("TEST_STRING", "default"); v != "hello" {
		t.Errorf("getEnv = %q, want %q", v, "hello")
	}
	if v := getEnv("NONEXISTENT", "default"); v != "default" {
		t.Errorf("getEnv = %q, want %q", v, "default")
	}

	os.Setenv("TEST_INT", "42")
	defer os.Unsetenv("TEST_INT")
	if v := getEnvInt("TEST_INT", 0); v != 42 {
		t.Errorf("getEnvInt = %d, want %d", v, 42)
	}
	if v := getEnvInt("NONEXISTENT", 99); v != 99 {
		t.Errorf("getEnvInt = %d, want %d", v, 99)
	}
	os.Setenv("TEST_INT_INVALID", "not-a-number")
	defer os.Unsetenv("TEST_INT_INVALID")
	if v := getEnvInt("TEST_INT_INVALID", 100); v != 100 {
		t.Errorf("getEnvInt with invalid = %d, want %d", v, 100)
	}

	os.Setenv("TEST_FLOAT", "3.14")
	defer os.Unsetenv("TEST_FLOAT")
	if v := getEnvFloat("TEST_FLOAT", 0.0); v != 3.14 {
		t.Errorf("getEnvFloat = %f, want %f", v, 3.14)
	}
	if v := getEnvFloat("NONEXISTENT", 2.71); v != 2.71 {
		t.Errorf("getEnvFloat = %f, want %f", v, 2.71)
	}

	os.Setenv("TEST_BOOL_TRUE", "true")
	os.Setenv("TEST_BOOL_ONE", "1")
	os.Setenv("TEST_BOOL_FALSE", "false")
	defer func() {
		os.Unsetenv("TEST_BOOL_TRUE")
		os.Unsetenv("TEST_BOOL_ONE")
		os.Unsetenv("TEST_BOOL_FALSE")
	}()
	if !getEnvBool("TEST_BOOL_TRUE", false) {
		t.Error("getEnvBool should return true for 'true'")
	}
	if !getEnvBool("TEST_BOOL_ONE", false) {
		t.Error("getEnvBool should return true for '1'")
	}
	if getEnvBool("TEST_BOOL_FALSE", true) {
		t.Error("getEnvBool should return false for 'false'")
	}
	if !getEnvBool("NONEXISTENT", true) {
		t.Error("getEnvBool should return default true")
	}

	os.Setenv("TEST_DURATION_MS", "250")
	defer os.Unsetenv("TEST_DURATION_MS")
	if v := getEnvDuration("TEST_DURATION_MS", 0); v != 250*time.Millisecond {
		t.Errorf("getEnvDuration = %v, want %v", v, 250*time.Millisecond)
	}
	if v := getEnvDuration("NONEXISTENT", 9*time.Second); v != 9*time.Second {
		t.Errorf("getEnvDuration = %v, want %v", v, 9*time.Second)
	}

	os.Setenv("TEST_LIST", "a, b ,c")
	defer os.Unsetenv("TEST_LIST")
	got := getEnvList("TEST_LIST", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("getEnvList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("getEnvList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
