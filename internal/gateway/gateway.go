// Package gateway turns per-entry context signals into requests against the
// remote analysis endpoint, wrapped in token freshness checks, a circuit
// breaker, retries, and rate-limit cooldowns. Every public method returns a
// result struct with a deterministic local fallback; no error ever escapes
// to a caller.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timesage/timesage/internal/auth"
	"github.com/timesage/timesage/internal/imaging"
	"github.com/timesage/timesage/internal/signal"
)

// Gateway is the AI task execution surface. One instance per process; its
// methods are safe for concurrent use and share a single resilience state.
type Gateway struct {
	transport *transport
	pre       *imaging.Preprocessor
	log       *zap.Logger
}

// Option configures a Gateway.
type Option func(*options)

type options struct {
	log        *zap.Logger
	httpClient *http.Client
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithHTTPClient sets the HTTP client used for remote calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates a gateway calling the analysis endpoint at endpoint,
// authenticating through provider.
func New(endpoint string, provider auth.Provider, opts ...Option) *Gateway {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Gateway{
		transport: newTransport(endpoint, provider, o.httpClient, o.log),
		pre:       imaging.NewPreprocessor(o.log),
		log:       o.log,
	}
}

// AnalyzeRequest asks for an AI description of a stored screenshot.
type AnalyzeRequest struct {
	Path        string
	AppName     string
	WindowTitle string
	RequestID   string
	Signals     []signal.Signal
}

// AnalyzeResult always carries a usable description: the remote one on
// success, a synthesized one otherwise.
type AnalyzeResult struct {
	Success     bool      `json:"success"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence,omitempty"`
	Fallback    bool      `json:"fallback,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorCode   ErrorCode `json:"errorCode,omitempty"`
}

// ClassifyOption is one candidate the remote model picks from.
type ClassifyOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClassifyResult reports the remote selection. There is no local fallback:
// on failure callers fall through to their own heuristic scorer.
type ClassifyResult struct {
	Success      bool      `json:"success"`
	SelectedID   string    `json:"selectedId,omitempty"`
	SelectedName string    `json:"selectedName,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorCode    ErrorCode `json:"errorCode,omitempty"`
}

// TaskRequest is a signal-driven AI task (summarization, classification,
// account selection, split suggestion).
type TaskRequest struct {
	TaskType           signal.TaskType `json:"taskType"`
	Signals            []signal.Signal `json:"signals"`
	IncludeUserContext bool            `json:"includeUserContext"`
	Duration           time.Duration   `json:"-"`
	StartTime          time.Time       `json:"startTime,omitzero"`
	EndTime            time.Time       `json:"endTime,omitzero"`
}

// TaskResult is a task outcome; on remote failure Summary holds a
// deterministic narrative synthesized from the filtered signals.
type TaskResult struct {
	Success    bool      `json:"success"`
	Summary    string    `json:"summary"`
	Confidence float64   `json:"confidence,omitempty"`
	Fallback   bool      `json:"fallback,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorCode  ErrorCode `json:"errorCode,omitempty"`
}

// Wire payloads for the single POST endpoint.

type imagePayload struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
}

type analyzePayload struct {
	Operation   string          `json:"operation"`
	Image       imagePayload    `json:"image"`
	AppName     string          `json:"appName,omitempty"`
	WindowTitle string          `json:"windowTitle,omitempty"`
	RequestID   string          `json:"requestId"`
	Signals     []signal.Signal `json:"signals,omitempty"`
}

type classifyPayload struct {
	Operation   string           `json:"operation"`
	Description string           `json:"description"`
	Options     []ClassifyOption `json:"options"`
	Context     string           `json:"context,omitempty"`
}

type summarizePayload struct {
	Operation       string          `json:"operation"`
	TaskType        signal.TaskType `json:"taskType"`
	Signals         []signal.Signal `json:"signals"`
	DurationSeconds int64           `json:"durationSeconds,omitempty"`
	StartTime       string          `json:"startTime,omitempty"`
	EndTime         string          `json:"endTime,omitempty"`
}

// AnalyzeScreenshot preprocesses the screenshot at req.Path and asks the
// remote model to describe it. On any failure the result carries a
// description assembled from the app name and window title, so callers
// always get something usable.
func (gw *Gateway) AnalyzeScreenshot(ctx context.Context, req AnalyzeRequest) AnalyzeResult {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	processed, err := gw.pre.Preprocess(req.Path)
	if err != nil {
		gerr := wrapError(CodeImageProcessing, err, "preprocess %s", req.Path)
		gw.log.Warn("screenshot preprocessing failed",
			zap.String("requestId", requestID), zap.Error(gerr))
		return analyzeFallback(req, gerr)
	}

	payload := analyzePayload{
		Operation:   "analyze",
		Image:       imagePayload{Base64: processed.Base64, MimeType: processed.MimeType},
		AppName:     req.AppName,
		WindowTitle: req.WindowTitle,
		RequestID:   requestID,
		Signals:     req.Signals,
	}

	resp, err := gw.transport.call(ctx, payload)
	if err != nil {
		gw.log.Warn("screenshot analysis failed, using fallback description",
			zap.String("requestId", requestID), zap.Error(err))
		return analyzeFallback(req, err)
	}
	if !resp.Success {
		return analyzeFallback(req, newError(CodeInvalidRequest, "remote declined: %s", resp.Error))
	}

	return AnalyzeResult{
		Success:     true,
		Description: resp.Description,
		Confidence:  resp.Confidence,
	}
}

func analyzeFallback(req AnalyzeRequest, err error) AnalyzeResult {
	return AnalyzeResult{
		Success:     false,
		Description: fallbackDescription(req.AppName, req.WindowTitle),
		Fallback:    true,
		Error:       err.Error(),
		ErrorCode:   CodeOf(err),
	}
}

// ClassifyActivity asks the remote model to pick one of options for the
// given activity description. No local fallback: a failed result tells the
// caller to use its heuristic scorer instead.
func (gw *Gateway) ClassifyActivity(ctx context.Context, description string, opts []ClassifyOption, extraContext string) ClassifyResult {
	resp, err := gw.transport.call(ctx, classifyPayload{
		Operation:   "classify",
		Description: description,
		Options:     opts,
		Context:     extraContext,
	})
	if err != nil {
		gw.log.Debug("classification failed", zap.Error(err))
		return ClassifyResult{Success: false, Error: err.Error(), ErrorCode: CodeOf(err)}
	}
	if !resp.Success {
		return ClassifyResult{Success: false, Error: resp.Error, ErrorCode: CodeInvalidRequest}
	}
	return ClassifyResult{
		Success:      true,
		SelectedID:   resp.SelectedID,
		SelectedName: resp.SelectedName,
		Confidence:   resp.Confidence,
	}
}

// ExecuteTask runs a signal-driven task. Requests without meaningful signal
// data short-circuit locally; remote failures produce a deterministic
// rule-based summary from the filtered signal set.
func (gw *Gateway) ExecuteTask(ctx context.Context, req TaskRequest) TaskResult {
	if len(req.Signals) == 0 || !signal.HasMeaningfulData(req.Signals) {
		return TaskResult{Success: false, Summary: "No activity data available."}
	}

	filtered := signal.FilterForTask(req.Signals, req.TaskType, req.IncludeUserContext)

	payload := summarizePayload{
		Operation: "summarize",
		TaskType:  req.TaskType,
		Signals:   filtered,
	}
	if req.Duration > 0 {
		payload.DurationSeconds = int64(req.Duration.Seconds())
	}
	if !req.StartTime.IsZero() {
		payload.StartTime = req.StartTime.Format(time.RFC3339)
	}
	if !req.EndTime.IsZero() {
		payload.EndTime = req.EndTime.Format(time.RFC3339)
	}

	resp, err := gw.transport.call(ctx, payload)
	if err != nil {
		gw.log.Warn("task execution failed, synthesizing local summary",
			zap.String("taskType", string(req.TaskType)), zap.Error(err))
		return TaskResult{
			Success:   false,
			Summary:   synthesizeSummary(filtered),
			Fallback:  true,
			Error:     err.Error(),
			ErrorCode: CodeOf(err),
		}
	}
	if !resp.Success {
		return TaskResult{
			Success:   false,
			Summary:   synthesizeSummary(filtered),
			Fallback:  true,
			Error:     resp.Error,
			ErrorCode: CodeInvalidRequest,
		}
	}

	return TaskResult{
		Success:    true,
		Summary:    resp.Summary,
		Confidence: resp.Confidence,
	}
}
