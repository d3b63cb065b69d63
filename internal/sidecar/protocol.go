package sidecar

import "encoding/json"

// request is the wire shape written to the sidecar's stdin: one JSON object
// per line, newline-terminated. Command-specific fields are merged in
// alongside Command/ID so each typed method can supply only what it needs,
// with no nested "fields" wrapper on the wire.
type request struct {
	Command string
	ID      uint64
	Fields  map[string]any
}

func (r request) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		m[k] = v
	}
	m["command"] = r.Command
	m["id"] = r.ID
	return json.Marshal(m)
}

// response is the wire shape read back from the sidecar's stdout: one line,
// whose "result" carries command-specific fields as a raw object so callers
// can decode into the shape they expect.
type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// StatusResult is the result of get_status.
type StatusResult struct {
	ModelName        string   `json:"model_name"`
	Loaded           bool     `json:"loaded"`
	Loading          bool     `json:"loading"`
	Error            string   `json:"error,omitempty"`
	AvailableModels  []string `json:"available_models"`
}

// ModelResult is the shared result shape of load_model / set_model /
// warmup-style commands that report success plus an optional error string.
type ModelResult struct {
	Success       bool   `json:"success"`
	ModelName     string `json:"model_name,omitempty"`
	Error         string `json:"error,omitempty"`
	WarmupTimeMs  int64  `json:"warmup_time_ms,omitempty"`
}

// CachedResult is the result of is_model_cached / is_postprocess_model_cached.
type CachedResult struct {
	Cached    bool   `json:"cached"`
	ModelName string `json:"model_name"`
}

// SegmentTiming is one entry of a TranscriptionResult's segment breakdown.
type SegmentTiming struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the result of transcribe.
type TranscriptionResult struct {
	Success  bool            `json:"success"`
	Text     string          `json:"text"`
	Segments []SegmentTiming `json:"segments"`
	Language string          `json:"language"`
	NoSpeech bool            `json:"no_speech"`
	Error    string          `json:"error,omitempty"`
}

// PostprocessResult is the result of postprocess_text.
type PostprocessResult struct {
	Success          bool   `json:"success"`
	ProcessedText    string `json:"processed_text"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
	Error            string `json:"error,omitempty"`
}

// SummaryResult is the result of summarize_transcriptions.
type SummaryResult struct {
	Success          bool   `json:"success"`
	Summary          string `json:"summary"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
	Error            string `json:"error,omitempty"`
}

// TimedText is one entry of the history window handed to
// summarize_transcriptions.
type TimedText struct {
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}
