// Package imagegen renders character portraits with the platform's image
// model. The reference portrait fixes the character's identity; per-beat
// portraits reuse it with a beat-specific seed.
package imagegen

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

	"reelgen/internal/logging"
	"reelgen/internal/services"
)

// DefaultModel is the image model used when none is configured.
const DefaultModel = "imagegeneration@005"

// ErrNoImage reports a response without a usable image, usually because the
// output was filtered.
var ErrNoImage = fmt.Errorf("%w: no image returned", services.ErrGeneration)

// Platform is the connection surface the client needs. *platform.Context
// satisfies it.
type Platform interface {
	ModelURL(model, method string) string
	Authorize(req *http.Request) error
	HTTPClient() *http.Client
}

// RequestError is a non-2xx response from the predict endpoint.
type RequestError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("image request: http %d %s: %s", e.StatusCode, e.Status, e.Message)
}

func (e *RequestError) Unwrap() error {
	return services.ErrGeneration
}

// Request describes one image.
type Request struct {
	Prompt         string
	NegativePrompt string
	Seed           *int
	AspectRatio    string
}

// Client calls the synchronous predict endpoint.
type Client struct {
	platform Platform
	model    string
	aspect   string
	policy   RetryPolicy
	logger   *slog.Logger
	sleeper  func(time.Duration)
}

// Option customizes a Client.
type Option func(*Client)

// WithModel overrides the image model.
func WithModel(model string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			c.model = trimmed
		}
	}
}

// WithAspectRatio sets the default aspect ratio.
func WithAspectRatio(aspect string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(aspect); trimmed != "" {
			c.aspect = trimmed
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleeper replaces time.Sleep between retries.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient builds an image client.
func NewClient(platform Platform, opts ...Option) *Client {
	c := &Client{
		platform: platform,
		model:    DefaultModel,
		aspect:   "9:16",
		policy:   DefaultRetryPolicy(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logging.NewComponentLogger(c.logger, "imagegen")
	return c
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount    int    `json:"sampleCount"`
	AspectRatio    string `json:"aspectRatio"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	Seed           *int   `json:"seed,omitempty"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MIMEType           string `json:"mimeType"`
		RAIFilteredReason  string `json:"raiFilteredReason"`
	} `json:"predictions"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate renders req, retrying according to the policy. Safety blocks
// rewrite the prompt; a seed rejected because of watermarking is dropped.
func (c *Client) Generate(ctx context.Context, req Request) ([]byte, error) {
	current := req
	if strings.TrimSpace(current.AspectRatio) == "" {
		current.AspectRatio = c.aspect
	}
	logger := logging.WithContext(ctx, c.logger)
	var lastErr error
	for attempt := 0; attempt < c.policy.Attempts(); attempt++ {
		image, err := c.predict(ctx, current)
		if err == nil {
			return image, nil
		}
		if services.IsFatal(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err

		if current.Seed != nil && IsSeedConflict(err) {
			logger.Info("seed rejected with watermark enabled; retrying without seed")
			current.Seed = nil
			image, err = c.predict(ctx, current)
			if err == nil {
				return image, nil
			}
			lastErr = err
			if sleepErr := c.sleep(ctx, c.policy.ErrorDelay); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		if IsPolicyBlock(err) {
			logging.WarnWithContext(logger, "image prompt blocked by safety policy", "prompt_sanitized",
				logging.Int("attempt", attempt+1),
				logging.String(logging.FieldImpact, "retrying with a sanitized prompt"),
			)
			current.Prompt = c.policy.SanitizedPrompt(req.Prompt, attempt)
		} else {
			logger.Debug("image attempt failed", logging.Int("attempt", attempt+1), logging.Error(err))
		}
		if sleepErr := c.sleep(ctx, c.policy.Delay(err)); sleepErr != nil {
			return nil, sleepErr
		}
	}
	return nil, lastErr
}

func (c *Client) predict(ctx context.Context, req Request) ([]byte, error) {
	payload := predictRequest{
		Instances: []predictInstance{{Prompt: req.Prompt}},
		Parameters: predictParameters{
			SampleCount:    1,
			AspectRatio:    req.AspectRatio,
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
			Seed:           req.Seed,
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.platform.ModelURL(c.model, "predict"), bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := c.platform.Authorize(httpReq); err != nil {
		return nil, err
	}
	resp, err := c.platform.HTTPClient().Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "imagegen", "predict", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "imagegen", "predict", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		reqErr := &RequestError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var envelope errorEnvelope
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			reqErr.Message = envelope.Error.Message
			reqErr.Status = envelope.Error.Status
		}
		return nil, reqErr
	}
	var decoded predictResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrDecode, "imagegen", "predict", "decode response", err)
	}
	for _, prediction := range decoded.Predictions {
		if prediction.BytesBase64Encoded == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(prediction.BytesBase64Encoded)
		if err != nil {
			return nil, services.Wrap(services.ErrDecode, "imagegen", "predict", "decode image", err)
		}
		return data, nil
	}
	return nil, ErrNoImage
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
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

// isNoImage reports whether err means the model produced nothing usable.
func isNoImage(err error) bool {
	return errors.Is(err, ErrNoImage)
}
