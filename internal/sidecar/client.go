// Package sidecar owns the lifecycle of and line-delimited JSON-RPC
// exchange with the external model-serving process: spawn, health-check,
// one request/response pair per call, and teardown. The child's stdin and
// stdout pair is a single logical resource — calls are serialized behind
// one mutex rather than split into independent readable/writable halves.
package sidecar

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voicedapp/voiced/internal/apperr"
	"github.com/voicedapp/voiced/internal/resilience"
	"github.com/voicedapp/voiced/internal/trace"
)

// Config controls how the sidecar binary is located and started.
type Config struct {
	// Binary is the executable name to search for, e.g. "voiced-sidecar".
	Binary string
	// SearchDirs are tried in order: the application-bundle executable
	// directory first (production), then development binary directories
	// relative to the working directory.
	SearchDirs []string
	// Handshake bounds how long Start waits for the ready line.
	Handshake time.Duration
	// CacheDir is exported to the child as a model-cache root so models
	// land somewhere the app can clean up wholesale on uninstall.
	CacheDir string
	// Breaker guards RPC calls against a failing sidecar. Optional; a
	// breaker built from resilience.DefaultConfig is used if nil.
	Breaker *resilience.Breaker
}

// Client owns one sidecar subprocess and its JSON-RPC stream.
type Client struct {
	cfg Config

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	reader  *bufio.Scanner
	exited  atomic.Bool
	exitCh  chan struct{}
	nextID  atomic.Uint64
}

// New constructs a Client. It does not spawn the process; call Start first.
func New(cfg Config) *Client {
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.New(resilience.DefaultConfig())
	}
	if cfg.Handshake <= 0 {
		cfg.Handshake = DefaultHandshakeTimeout
	}
	return &Client{cfg: cfg}
}

// locateBinary searches cfg.SearchDirs in order for cfg.Binary.
func (c *Client) locateBinary() (string, error) {
	for _, dir := range c.cfg.SearchDirs {
		candidate := filepath.Join(dir, c.cfg.Binary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", apperr.Newf(apperr.EngineNotRunning,
		"sidecar binary %q not found in any of %v", c.cfg.Binary, c.cfg.SearchDirs)
}

// Start locates, spawns, and handshakes with the sidecar process. It blocks
// until a {"status":"ready"} line is read or the handshake timeout elapses.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return nil
	}

	bin, err := c.locateBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("VOICED_MODEL_CACHE_DIR=%s/models", c.cfg.CacheDir),
		fmt.Sprintf("VOICED_VAD_CACHE_DIR=%s/vad", c.cfg.CacheDir),
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return apperr.Wrap(apperr.EngineNotRunning, "open sidecar stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return apperr.Wrap(apperr.EngineNotRunning, "open sidecar stdout", err)
	}

	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.EngineNotRunning, "start sidecar process", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	ready := make(chan error, 1)
	go func() {
		for scanner.Scan() {
			var probe struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(scanner.Bytes(), &probe); err != nil {
				continue
			}
			if probe.Status == "ready" {
				ready <- nil
				return
			}
		}
		ready <- apperr.Wrap(apperr.EngineProtocolError, "sidecar stdout closed during handshake", scanner.Err())
	}()

	// The timeout fires here rather than in the reader goroutine: a sidecar
	// that never writes anything would otherwise block Scan forever.
	select {
	case err := <-ready:
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return err
		}
	case <-time.After(c.cfg.Handshake):
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return apperr.New(apperr.EngineNotRunning, "sidecar handshake timed out")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return ctx.Err()
	}

	c.cmd = cmd
	c.stdin = stdin
	c.reader = scanner
	c.exited.Store(false)
	c.exitCh = make(chan struct{})

	// Reap the child asynchronously so try_wait-style liveness checks
	// never block: a non-blocking load of c.exited is all call() needs.
	exitCh := c.exitCh
	go func() {
		_ = cmd.Wait()
		c.exited.Store(true)
		close(exitCh)
	}()

	slog.Info("sidecar ready", "binary", bin, "pid", cmd.Process.Pid)
	return nil
}

// runningLocked reports whether the child is still alive, dropping the
// handle (per the fatal-error policy: a dead child means the next call
// diagnoses via EngineNotRunning rather than hanging on a closed pipe) if
// not. Caller must hold mu.
func (c *Client) runningLocked() bool {
	if c.cmd == nil {
		return false
	}
	if c.exited.Load() {
		c.dropLocked()
		return false
	}
	return true
}

func (c *Client) dropLocked() {
	c.cmd = nil
	c.stdin = nil
	c.reader = nil
}

// call writes one request line and reads back exactly one response line,
// serialized behind mu so two callers can never interleave on the shared
// stdin/stdout pair. It is wrapped in the circuit breaker, so once calls
// keep failing, later callers fail fast without touching the process; a
// call that never returns still holds mu, and later callers wait behind it.
// A result carrying "success": false is returned as a ModelError.
func (c *Client) call(command string, fields map[string]any) (json.RawMessage, error) {
	tc := trace.New()
	return resilience.ExecuteWithResult(c.cfg.Breaker, func() (json.RawMessage, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if !c.runningLocked() {
			return nil, apperr.New(apperr.EngineNotRunning, "sidecar is not running")
		}

		id := c.nextID.Add(1)
		req := request{Command: command, ID: id, Fields: merge(fields, tc.ToMap())}
		line, err := json.Marshal(req)
		if err != nil {
			return nil, apperr.Wrap(apperr.EngineProtocolError, "marshal request", err)
		}
		line = append(line, '\n')

		if _, err := c.stdin.Write(line); err != nil {
			c.dropLocked()
			trace.Logger(trace.WithContext(context.Background(), tc)).Error("sidecar write failed", "command", command, "error", err)
			return nil, apperr.Wrap(apperr.EngineProtocolError, "write request", err)
		}

		if !c.reader.Scan() {
			err := c.reader.Err()
			c.dropLocked()
			trace.Logger(trace.WithContext(context.Background(), tc)).Error("sidecar read failed", "command", command, "error", err)
			return nil, apperr.Wrap(apperr.EngineProtocolError, "read response", err)
		}

		var resp response
		if err := json.Unmarshal(c.reader.Bytes(), &resp); err != nil {
			return nil, apperr.Wrap(apperr.EngineProtocolError, "decode response", err)
		}
		if resp.ID != id {
			return nil, apperr.Newf(apperr.EngineProtocolError, "response id %d does not match request id %d", resp.ID, id)
		}
		if resp.Error != nil {
			trace.Logger(trace.WithContext(context.Background(), tc)).Warn("sidecar command failed", "command", command, "error", *resp.Error)
			return nil, apperr.New(apperr.ModelError, *resp.Error)
		}
		var status struct {
			Success *bool  `json:"success"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(resp.Result, &status) == nil && status.Success != nil && !*status.Success {
			msg := status.Error
			if msg == "" {
				msg = command + " reported success: false"
			}
			trace.Logger(trace.WithContext(context.Background(), tc)).Warn("sidecar command failed", "command", command, "error", msg)
			return nil, apperr.New(apperr.ModelError, msg)
		}
		return resp.Result, nil
	})
}

// merge returns a new map containing base's entries overlaid with the
// trace metadata, leaving both inputs untouched.
func merge(base map[string]any, extra map[string]string) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func decodeInto[T any](raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if raw == nil {
		return out, nil
	}
	if uerr := json.Unmarshal(raw, &out); uerr != nil {
		return out, apperr.Wrap(apperr.EngineProtocolError, "decode result", uerr)
	}
	return out, nil
}

// Ping checks liveness; any non-null result is treated as success.
func (c *Client) Ping() error {
	_, err := c.call("ping", nil)
	return err
}

// GetStatus reports the active ASR model's load state.
func (c *Client) GetStatus() (StatusResult, error) {
	return decodeInto[StatusResult](c.call("get_status", nil))
}

// LoadModel preloads the active ASR model into memory.
func (c *Client) LoadModel() (ModelResult, error) {
	return decodeInto[ModelResult](c.call("load_model", nil))
}

// SetModel changes the active ASR model; a subsequent LoadModel call is
// required to actually load it.
func (c *Client) SetModel(modelName string) (ModelResult, error) {
	return decodeInto[ModelResult](c.call("set_model", map[string]any{"model_name": modelName}))
}

// IsModelCached reports whether the named model's weights are on disk.
// modelName may be empty to ask about the active model.
func (c *Client) IsModelCached(modelName string) (CachedResult, error) {
	var fields map[string]any
	if modelName != "" {
		fields = map[string]any{"model_name": modelName}
	}
	return decodeInto[CachedResult](c.call("is_model_cached", fields))
}

// WarmupModel runs a dummy inference to JIT-warm the active ASR model.
func (c *Client) WarmupModel() (ModelResult, error) {
	return decodeInto[ModelResult](c.call("warmup_model", nil))
}

// LoadVAD preloads the sidecar-side VAD model.
func (c *Client) LoadVAD() (ModelResult, error) {
	return decodeInto[ModelResult](c.call("load_vad", nil))
}

// WarmupVAD runs a dummy inference to JIT-warm the VAD model.
func (c *Client) WarmupVAD() (ModelResult, error) {
	return decodeInto[ModelResult](c.call("warmup_vad", nil))
}

// Transcribe sends a finalized segment's audio file path for ASR. language
// may be empty, meaning auto-detect.
func (c *Client) Transcribe(audioPath, language string) (TranscriptionResult, error) {
	fields := map[string]any{"audio_path": audioPath}
	if language != "" {
		fields["language"] = language
	}
	return decodeInto[TranscriptionResult](c.call("transcribe", fields))
}

// LoadPostprocessModel preloads the sidecar-side rewrite LLM.
func (c *Client) LoadPostprocessModel() (ModelResult, error) {
	return decodeInto[ModelResult](c.call("load_postprocess_model", nil))
}

// UnloadPostprocessModel frees the sidecar-side rewrite LLM.
func (c *Client) UnloadPostprocessModel() (ModelResult, error) {
	return decodeInto[ModelResult](c.call("unload_postprocess_model", nil))
}

// IsPostprocessModelCached reports whether the rewrite LLM's weights are on disk.
func (c *Client) IsPostprocessModelCached(modelName string) (CachedResult, error) {
	var fields map[string]any
	if modelName != "" {
		fields = map[string]any{"model_name": modelName}
	}
	return decodeInto[CachedResult](c.call("is_postprocess_model_cached", fields))
}

// SetPostprocessModel changes the active rewrite LLM.
func (c *Client) SetPostprocessModel(modelName string) (ModelResult, error) {
	return decodeInto[ModelResult](c.call("set_postprocess_model", map[string]any{"model_name": modelName}))
}

// GetPostprocessStatus reports the rewrite LLM's load state.
func (c *Client) GetPostprocessStatus() (StatusResult, error) {
	return decodeInto[StatusResult](c.call("get_postprocess_status", nil))
}

// PostprocessRequest carries one utterance plus the contextual hints the
// sidecar LLM uses to specialize its rewrite style.
type PostprocessRequest struct {
	Text         string
	AppName      string
	AppBundleID  string
	Dictionary   map[string]string
	CustomPrompt string
}

// PostprocessText rewrites one utterance.
func (c *Client) PostprocessText(req PostprocessRequest) (PostprocessResult, error) {
	fields := map[string]any{"text": req.Text}
	if req.AppName != "" {
		fields["app_name"] = req.AppName
	}
	if req.AppBundleID != "" {
		fields["app_bundle_id"] = req.AppBundleID
	}
	if len(req.Dictionary) > 0 {
		fields["dictionary"] = req.Dictionary
	}
	if req.CustomPrompt != "" {
		fields["custom_prompt"] = req.CustomPrompt
	}
	return decodeInto[PostprocessResult](c.call("postprocess_text", fields))
}

// SummarizeTranscriptions digests a history window into a single summary.
func (c *Client) SummarizeTranscriptions(texts []TimedText, languageHint, customPrompt string) (SummaryResult, error) {
	fields := map[string]any{"texts": texts}
	if languageHint != "" {
		fields["language_hint"] = languageHint
	}
	if customPrompt != "" {
		fields["custom_prompt"] = customPrompt
	}
	return decodeInto[SummaryResult](c.call("summarize_transcriptions", fields))
}

// Close sends quit, waits QuitGrace for a clean exit, then force-kills.
// Safe to call on an already-stopped client. An orphaned sidecar process
// is a resource leak, so this always attempts teardown even if quit's RPC
// round-trip fails (the process may already be exiting).
func (c *Client) Close() error {
	c.mu.Lock()
	cmd := c.cmd
	exitCh := c.exitCh
	if cmd == nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	_, _ = c.call("quit", nil)

	select {
	case <-exitCh:
	case <-time.After(QuitGrace):
		_ = cmd.Process.Kill()
		<-exitCh
	}

	c.mu.Lock()
	c.dropLocked()
	c.mu.Unlock()
	return nil
}
