package resilience

import "time"

// Tuning constants for the breaker wrapping the sidecar's JSON-RPC calls.
const (
	// DefaultConfig's tuning: tolerates an occasional dropped frame or
	// slow transcription without tripping.
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3
	DefaultFailureWindow     = 60 * time.Second
	DefaultMaxBackoff        = 5 * time.Minute

	// SidecarStartupConfig's tuning: the sidecar process takes a moment
	// to come up, so the first few RPCs after launch are expected to
	// fail fast and retry rather than wait out a long reset timeout.
	FastThreshold         = 3
	FastResetTimeout      = 10 * time.Second
	FastHalfOpenSuccesses = 2

	// BatchConfig's tuning: used for bulk re-transcription jobs where a
	// slower recovery is an acceptable trade for not flapping on noisy
	// batches of audio.
	SlowThreshold         = 10
	SlowResetTimeout      = 60 * time.Second
	SlowHalfOpenSuccesses = 5
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
	FailureWindow     time.Duration // sliding window for counting failures
	MaxBackoff        time.Duration // cap on exponential backoff growth
}

// DefaultConfig returns the tuning the sidecar client wraps its RPC calls
// with in steady state.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// SidecarStartupConfig returns tighter tuning for the window right after
// the sidecar process is spawned, before its model has finished loading.
func SidecarStartupConfig() Config {
	return Config{
		Threshold:         FastThreshold,
		ResetTimeout:      FastResetTimeout,
		HalfOpenSuccesses: FastHalfOpenSuccesses,
	}
}

// BatchConfig returns more lenient tuning for bulk re-transcription jobs.
func BatchConfig() Config {
	return Config{
		Threshold:         SlowThreshold,
		ResetTimeout:      SlowResetTimeout,
		HalfOpenSuccesses: SlowHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = DefaultFailureWindow
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return c
}
