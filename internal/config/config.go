// Package config handles application configuration, loaded from environment
// variables with sane defaults for desktop installs.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime settings for the capture, segmentation, sidecar
// and hotkey subsystems.
type Config struct {
	// Audio capture
	DeviceName string
	SampleRate int
	FrameSize  int

	// Voice activity detection / segmentation
	VADThreshold    float64
	SilenceTail     time.Duration
	MaxSegment      time.Duration
	PreRoll         time.Duration
	MinSegmentSecs  float64
	FrameQueueDepth int
	SegmentQueueCap int

	// Sidecar process
	SidecarBinary    string
	SidecarSearchDir []string
	SidecarHandshake time.Duration
	ModelName        string

	// Hotkey / press-to-talk
	Hotkey     string
	AutoInsert bool

	// Postprocessing
	PostprocessEnabled bool
	PostprocessModel   string

	// Storage
	CacheDir    string
	HistoryPath string

	// Event surface
	EventAddr string
}

func Load() *Config {
	return &Config{
		DeviceName: getEnv("VOICED_DEVICE_NAME", ""),
		SampleRate: getEnvInt("VOICED_SAMPLE_RATE", 16000),
		FrameSize:  getEnvInt("VOICED_FRAME_SIZE", 512),

		VADThreshold:    getEnvFloat("VOICED_VAD_THRESHOLD", 0.5),
		SilenceTail:     getEnvDuration("VOICED_SILENCE_TAIL_MS", 1500*time.Millisecond),
		MaxSegment:      getEnvDuration("VOICED_MAX_SEGMENT_MS", 60*time.Second),
		PreRoll:         getEnvDuration("VOICED_PRE_ROLL_MS", 300*time.Millisecond),
		MinSegmentSecs:  getEnvFloat("VOICED_MIN_SEGMENT_SECS", 0.5),
		FrameQueueDepth: getEnvInt("VOICED_FRAME_QUEUE_DEPTH", 256),
		SegmentQueueCap: getEnvInt("VOICED_SEGMENT_QUEUE_CAP", 10),

		SidecarBinary:    getEnv("VOICED_SIDECAR_BINARY", "voiced-sidecar"),
		SidecarSearchDir: getEnvList("VOICED_SIDECAR_SEARCH_DIRS", defaultSidecarSearchDirs()),
		SidecarHandshake: getEnvDuration("VOICED_SIDECAR_HANDSHAKE_MS", 60*time.Second),
		ModelName:        getEnv("VOICED_MODEL_NAME", "small"),

		Hotkey:     getEnv("VOICED_HOTKEY", "ctrl+shift+space"),
		AutoInsert: getEnvBool("VOICED_AUTO_INSERT", true),

		PostprocessEnabled: getEnvBool("VOICED_POSTPROCESS_ENABLED", false),
		PostprocessModel:   getEnv("VOICED_POSTPROCESS_MODEL", ""),

		CacheDir:    getEnv("VOICED_CACHE_DIR", defaultCacheDir()),
		HistoryPath: getEnv("VOICED_HISTORY_PATH", ""),

		EventAddr: getEnv("VOICED_EVENT_ADDR", ":8090"),
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return dir + "/voiced"
	}
	return ".voiced-cache"
}

func defaultSidecarSearchDirs() []string {
	var dirs []string
	exe, err := os.Executable()
	if err == nil {
		dirs = append(dirs, exe+"/../sidecar")
	}
	dirs = append(dirs, ".")
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		dirs = append(dirs, dir+"/voiced/sidecar")
	}
	return dirs
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
