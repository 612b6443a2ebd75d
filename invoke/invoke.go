// Package invoke assembles model requests for page transcription and entity
// extraction, issues the call, and converts the model's free-text response
// into a validated or degraded outcome.
package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wjbmattingly/iiif-htr/imaging"
	"github.com/wjbmattingly/iiif-htr/providers"
	"github.com/wjbmattingly/iiif-htr/schema"
)

// Call methods. Transcription is the vision mode and requires an image
// source; the others send the prompt text alone.
const (
	MethodTranscription = "transcription"
	MethodEntities      = "entities"
	MethodSynthetic     = "synthetic"
)

const (
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.5
)

// Configuration errors, surfaced before any network I/O.
var (
	ErrNoClient     = errors.New("model client is required")
	ErrMissingImage = errors.New("image URL or path is required for transcription")
)

// Invoker issues model calls and parses their output.
type Invoker struct {
	Client  providers.LLMClient
	Fetcher *imaging.Fetcher // defaults to imaging.NewFetcher()

	Model       string  // default model identifier
	MaxTokens   int     // default 4000
	Temperature float64 // default 0.5

	Logger *slog.Logger
}

// Request describes one invocation.
type Request struct {
	Prompt     string
	Method     string // MethodTranscription (default), MethodEntities, MethodSynthetic
	ImageURL   string
	ImagePath  string
	Definition schema.Definition
	Model      string // overrides the invoker default
	RequestID  string
}

// Outcome is the result of one invocation. Valid outcomes carry the
// schema-conforming record; degraded outcomes carry the raw model text for
// downstream manual review. Branch on Valid rather than probing fields.
type Outcome struct {
	Valid  bool
	Record json.RawMessage // normalized JSON, set when Valid
	Raw    string          // unparsed model output, set when degraded

	RequestID        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	ExecutionTime    time.Duration
}

// Do performs one model call. Configuration errors and transport failures
// return an error; malformed model output never does, it degrades. A single
// hallucinated response must not abort a batch over many pages.
func (i *Invoker) Do(ctx context.Context, req Request) (*Outcome, error) {
	if i.Client == nil {
		return nil, ErrNoClient
	}

	method := req.Method
	if method == "" {
		method = MethodTranscription
	}

	msg := providers.Message{Role: "user", Content: req.Prompt}
	if method == MethodTranscription {
		img, err := i.fetchImage(ctx, req)
		if err != nil {
			return nil, err
		}
		msg.Images = [][]byte{img}
	}

	maxTokens := i.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := i.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	model := req.Model
	if model == "" {
		model = i.Model
	}

	chatReq := &providers.ChatRequest{
		Messages:       []providers.Message{msg},
		Model:          model,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: &providers.ResponseFormat{Type: "json_object"},
		RequestID:      req.RequestID,
	}

	result, err := i.Client.Chat(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	return i.outcome(result, req.Definition), nil
}

// fetchImage resolves the single image source for a vision call.
func (i *Invoker) fetchImage(ctx context.Context, req Request) ([]byte, error) {
	fetcher := i.Fetcher
	if fetcher == nil {
		fetcher = imaging.NewFetcher()
	}

	switch {
	case req.ImageURL != "":
		return fetcher.Fetch(ctx, req.ImageURL)
	case req.ImagePath != "":
		return fetcher.FetchFile(req.ImagePath)
	default:
		return nil, ErrMissingImage
	}
}

// outcome validates the model text against the definition, degrading to raw
// text when anything about the output is off.
func (i *Invoker) outcome(result *providers.ChatResult, def schema.Definition) *Outcome {
	out := &Outcome{
		Raw:              result.Content,
		RequestID:        result.RequestID,
		Model:            result.ModelUsed,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		ExecutionTime:    result.ExecutionTime,
	}

	raw, err := parseJSON(StripFences(result.Content))
	if err != nil {
		i.log().Debug("model output is not JSON, degrading",
			"request_id", out.RequestID, "error", err)
		return out
	}

	if err := def.Validate(raw); err != nil {
		i.log().Debug("model output failed schema validation, degrading",
			"request_id", out.RequestID, "error", err)
		return out
	}

	out.Valid = true
	out.Record = raw
	out.Raw = ""
	return out
}

func (i *Invoker) log() *slog.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return slog.Default()
}

// Decode unmarshals a validated outcome into T. The boolean is false for
// degraded outcomes, which have no record to decode.
func Decode[T any](out *Outcome) (T, bool, error) {
	var v T
	if out == nil || !out.Valid {
		return v, false, nil
	}
	if err := json.Unmarshal(out.Record, &v); err != nil {
		return v, true, fmt.Errorf("failed to decode record: %w", err)
	}
	return v, true, nil
}
