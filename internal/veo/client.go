package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelgen/internal/logging"
	"reelgen/internal/services"
)

const (
	DefaultPollTimeout  = 30 * time.Minute
	DefaultPollInterval = 10 * time.Second
	DefaultModel        = "veo-3.0-generate-001"

	progressLogInterval = 30 * time.Second
	maxErrorBody        = 64 << 10
)

var (
	supportedDurations    = map[int]struct{}{4: {}, 6: {}, 8: {}}
	supportedAspectRatios = map[string]struct{}{"9:16": {}, "16:9": {}}
)

// Platform is the connection surface the client needs. *platform.Context
// satisfies it.
type Platform interface {
	ModelURL(model, method string) string
	Authorize(req *http.Request) error
	HTTPClient() *http.Client
}

// SubmitRequest describes a single clip generation job.
type SubmitRequest struct {
	Model           string
	Prompt          string
	SeedImage       []byte
	SeedMIMEType    string
	DurationSeconds int
	AspectRatio     string
	GenerateAudio   bool
	StorageURI      string
}

// PollOptions bounds Poll. Zero values fall back to the defaults.
type PollOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Client talks to the long-running video generation endpoints.
type Client struct {
	platform Platform
	model    string
	logger   *slog.Logger
	now      func() time.Time
	sleeper  func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(c *Client) {
		if strings.TrimSpace(model) != "" {
			c.model = strings.TrimSpace(model)
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "veo")
	}
}

// WithClock overrides the wall clock used for poll deadlines (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSleeper overrides how poll waits are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client bound to the supplied platform context.
func NewClient(platform Platform, opts ...Option) *Client {
	c := &Client{
		platform: platform,
		model:    DefaultModel,
		logger:   logging.NewComponentLogger(nil, "veo"),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type submitPayload struct {
	Instances  []submitInstance `json:"instances"`
	Parameters submitParameters `json:"parameters"`
}

type submitInstance struct {
	Prompt string       `json:"prompt"`
	Image  *inlineImage `json:"image,omitempty"`
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MIMEType           string `json:"mimeType"`
}

type submitParameters struct {
	DurationSeconds int    `json:"durationSeconds"`
	AspectRatio     string `json:"aspectRatio"`
	SampleCount     int    `json:"sampleCount"`
	GenerateAudio   bool   `json:"generateAudio"`
	StorageURI      string `json:"storageUri,omitempty"`
}

// Submit creates a generation job. The returned operation may already be
// done; callers check Done before polling.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (Operation, error) {
	model := c.modelFor(req.Model)
	if err := validateSubmit(req); err != nil {
		return Operation{}, &SubmissionError{Err: err}
	}

	instance := submitInstance{Prompt: req.Prompt}
	if len(req.SeedImage) > 0 {
		mime := strings.TrimSpace(req.SeedMIMEType)
		if mime == "" {
			mime = "image/png"
		}
		instance.Image = &inlineImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.SeedImage),
			MIMEType:           mime,
		}
	}
	payload := submitPayload{
		Instances: []submitInstance{instance},
		Parameters: submitParameters{
			DurationSeconds: req.DurationSeconds,
			AspectRatio:     req.AspectRatio,
			SampleCount:     1,
			GenerateAudio:   req.GenerateAudio,
			StorageURI:      strings.TrimSpace(req.StorageURI),
		},
	}

	requestID := uuid.NewString()
	logger := logging.WithContext(services.WithRequestID(ctx, requestID), c.logger)
	logger.Info("submitting video job",
		logging.String("model", model),
		logging.Int("duration_seconds", req.DurationSeconds),
		logging.String("aspect_ratio", req.AspectRatio),
		logging.Bool("seeded", instance.Image != nil),
	)

	body, status, err := c.post(ctx, c.platform.ModelURL(model, "predictLongRunning"), requestID, payload)
	if err != nil {
		if services.IsFatal(err) {
			return Operation{}, err
		}
		return Operation{}, &SubmissionError{StatusCode: status, Body: string(body), Err: err}
	}
	op, err := decodeOperation(body, model)
	if err != nil {
		return Operation{}, &SubmissionError{StatusCode: status, Body: summarize(body), Err: err}
	}
	if op.Name == "" && !op.Done {
		return Operation{}, &SubmissionError{StatusCode: status, Body: summarize(body), Err: errors.New("response missing operation name")}
	}
	logger.Info("video job submitted", logging.String("operation", op.Name), logging.Bool("done", op.Done))
	return op, nil
}

func validateSubmit(req SubmitRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return services.Wrap(services.ErrValidation, "veo", "submit", "prompt is required", nil)
	}
	if _, ok := supportedDurations[req.DurationSeconds]; !ok {
		return services.Wrap(services.ErrValidation, "veo", "submit",
			fmt.Sprintf("duration %ds not supported (want 4, 6 or 8)", req.DurationSeconds), nil)
	}
	if _, ok := supportedAspectRatios[req.AspectRatio]; !ok {
		return services.Wrap(services.ErrValidation, "veo", "submit",
			fmt.Sprintf("aspect ratio %q not supported", req.AspectRatio), nil)
	}
	return nil
}

// Poll fetches op until it is done or opts.Timeout elapses. Server errors
// back off for twice the interval, client errors abort with *PollError, and
// any other failure is logged and retried after the interval.
func (c *Client) Poll(ctx context.Context, op Operation, opts PollOptions) (Operation, error) {
	if op.Done {
		return op, nil
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	model := c.modelFor(op.Model)
	logger := logging.WithContext(ctx, c.logger).With(logging.String("operation", op.Name))

	start := c.now()
	deadline := start.Add(timeout)
	var lastProgress time.Time

	for c.now().Before(deadline) {
		wait := interval
		body, status, err := c.post(ctx, c.platform.ModelURL(model, "fetchPredictOperation"), "", map[string]string{"operationName": op.Name})
		switch {
		case err == nil:
			next, decodeErr := decodeOperation(body, model)
			if decodeErr != nil {
				logger.Warn("poll response unreadable", logging.Error(decodeErr))
				break
			}
			if next.Name == "" {
				next.Name = op.Name
			}
			if next.Done {
				logger.Info("video job finished",
					logging.String("outcome", next.Outcome.Kind.String()),
					logging.Duration("elapsed", c.now().Sub(start).Round(time.Second)),
				)
				return next, nil
			}
			op = next
			if now := c.now(); now.Sub(lastProgress) >= progressLogInterval {
				logger.Info("still generating", logging.Duration("elapsed", now.Sub(start).Round(time.Second)))
				lastProgress = now
			}
		case services.IsFatal(err):
			return op, err
		case ctx.Err() != nil:
			return op, ctx.Err()
		case status >= http.StatusInternalServerError:
			logger.Debug("server error while polling", logging.Int("status", status))
			wait = 2 * interval
		case status >= http.StatusBadRequest:
			return op, &PollError{Operation: op.Name, StatusCode: status, Body: summarize(body)}
		default:
			logging.WarnWithContext(logger, "polling error", "poll_retry",
				logging.Error(err),
				logging.String(logging.FieldImpact, "poll retried after interval"),
			)
		}
		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			break
		}
		if err := c.sleep(ctx, min(wait, remaining)); err != nil {
			return op, err
		}
	}
	return op, &TimeoutError{Operation: op.Name, Timeout: timeout}
}

// Extract turns a finished operation into an artifact. Filtered and empty
// responses are reported through the outcome with a nil error.
func (c *Client) Extract(op Operation) (Artifact, Outcome, error) {
	outcome := op.Outcome
	logger := c.logger.With(logging.String("operation", op.Name))
	switch outcome.Kind {
	case OutcomePending:
		return Artifact{}, outcome, services.Wrap(services.ErrValidation, "veo", "extract", "operation is not done", nil)
	case OutcomeFailed:
		return Artifact{}, outcome, &GenerationError{Operation: op.Name, Code: outcome.ErrorCode, Message: outcome.ErrorMessage}
	case OutcomeFiltered:
		logging.WarnWithContext(logger, "video filtered by safety policy", "content_filtered",
			logging.Int("filtered_count", outcome.FilteredCount),
			logging.String("reasons", strings.Join(outcome.FilteredReasons, "; ")),
			logging.String(logging.FieldImpact, "beat produces no clip"),
		)
		return Artifact{}, outcome, nil
	case OutcomeArtifact:
		if outcome.Inline != "" {
			data, err := base64.StdEncoding.DecodeString(outcome.Inline)
			if err != nil {
				return Artifact{}, outcome, &DecodeError{Operation: op.Name, Err: err}
			}
			logger.Info("received video", logging.Float64("size_mb", float64(len(data))/(1024*1024)))
			return Artifact{Data: data, MIMEType: outcome.MIMEType}, outcome, nil
		}
		logger.Info("video stored remotely", logging.String("uri", outcome.URI))
		return Artifact{URI: outcome.URI, MIMEType: outcome.MIMEType}, outcome, nil
	default:
		logging.WarnWithContext(logger, "no video in response", "empty_response",
			logging.String(logging.FieldImpact, "beat produces no clip"),
		)
		return Artifact{}, outcome, nil
	}
}

func (c *Client) modelFor(model string) string {
	if trimmed := strings.TrimSpace(model); trimmed != "" {
		return trimmed
	}
	return c.model
}

// post returns the response body and status. A non-2xx status is reported as
// an error together with the body.
func (c *Client) post(ctx context.Context, url, requestID string, payload any) ([]byte, int, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	if err := c.platform.Authorize(req); err != nil {
		return nil, 0, err
	}
	resp, err := c.platform.HTTPClient().Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return body, resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func summarize(body []byte) string {
	clean := strings.Join(strings.Fields(string(body)), " ")
	const limit = 512
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
