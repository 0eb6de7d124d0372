package veo_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelgen/internal/services"
	"reelgen/internal/veo"
)

type fakePlatform struct {
	baseURL string
}

func (p fakePlatform) ModelURL(model, method string) string {
	return p.baseURL + "/models/" + model + ":" + method
}

func (p fakePlatform) Authorize(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer test-token")
	return nil
}

func (p fakePlatform) HTTPClient() *http.Client { return http.DefaultClient }

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(d time.Duration) {
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
}

func newClient(t *testing.T, handler http.HandlerFunc) (*veo.Client, *fakeClock) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	client := veo.NewClient(fakePlatform{baseURL: server.URL}, veo.WithClock(clock.Now), veo.WithSleeper(clock.Sleep))
	return client, clock
}

func TestSubmitEncodesSeedImageAndParameters(t *testing.T) {
	seed := []byte("\x89PNG fake image bytes")
	var captured map[string]any
	var path, auth string
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"name":"projects/demo/operations/op-1"}`))
	})

	op, err := client.Submit(context.Background(), veo.SubmitRequest{
		Prompt:          "Animate this character",
		SeedImage:       seed,
		DurationSeconds: 6,
		AspectRatio:     "9:16",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if op.Name != "projects/demo/operations/op-1" || op.Done {
		t.Fatalf("unexpected operation: %+v", op)
	}
	if op.Model != veo.DefaultModel {
		t.Fatalf("expected default model, got %q", op.Model)
	}
	if !strings.HasSuffix(path, ":predictLongRunning") {
		t.Fatalf("unexpected path %q", path)
	}
	if auth != "Bearer test-token" {
		t.Fatalf("unexpected authorization %q", auth)
	}

	instances := captured["instances"].([]any)
	instance := instances[0].(map[string]any)
	if instance["prompt"] != "Animate this character" {
		t.Fatalf("unexpected prompt %v", instance["prompt"])
	}
	image := instance["image"].(map[string]any)
	if image["bytesBase64Encoded"] != base64.StdEncoding.EncodeToString(seed) {
		t.Fatalf("seed image not base64 encoded: %v", image["bytesBase64Encoded"])
	}
	if image["mimeType"] != "image/png" {
		t.Fatalf("unexpected mime type %v", image["mimeType"])
	}
	params := captured["parameters"].(map[string]any)
	if params["durationSeconds"] != float64(6) || params["aspectRatio"] != "9:16" || params["sampleCount"] != float64(1) {
		t.Fatalf("unexpected parameters %v", params)
	}
	if audio, ok := params["generateAudio"]; !ok || audio != false {
		t.Fatalf("expected generateAudio=false, got %v", params["generateAudio"])
	}
	if _, ok := params["storageUri"]; ok {
		t.Fatalf("storageUri should be omitted when empty")
	}
}

func TestSubmitWithoutSeedSendsTextOnlyInstance(t *testing.T) {
	var captured map[string]any
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = w.Write([]byte(`{"name":"op-2"}`))
	})
	if _, err := client.Submit(context.Background(), veo.SubmitRequest{
		Prompt: "text only", DurationSeconds: 4, AspectRatio: "16:9", StorageURI: "gs://bucket/out",
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	instance := captured["instances"].([]any)[0].(map[string]any)
	if _, ok := instance["image"]; ok {
		t.Fatalf("expected no image in text-only request")
	}
	params := captured["parameters"].(map[string]any)
	if params["storageUri"] != "gs://bucket/out" {
		t.Fatalf("expected storageUri, got %v", params["storageUri"])
	}
}

func TestSubmitRejectsUnsupportedParametersWithoutRequest(t *testing.T) {
	var hits int32
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	cases := []veo.SubmitRequest{
		{Prompt: "p", DurationSeconds: 5, AspectRatio: "9:16"},
		{Prompt: "p", DurationSeconds: 8, AspectRatio: "1:1"},
		{Prompt: "", DurationSeconds: 8, AspectRatio: "9:16"},
	}
	for _, req := range cases {
		_, err := client.Submit(context.Background(), req)
		var subErr *veo.SubmissionError
		if !errors.As(err, &subErr) {
			t.Fatalf("expected SubmissionError for %+v, got %v", req, err)
		}
		if !errors.Is(err, services.ErrSubmission) || !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected submission+validation markers, got %v", err)
		}
	}
	if hits != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}
}

func TestSubmitPropagatesStatusAndBody(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"permission denied"}}`, http.StatusForbidden)
	})
	_, err := client.Submit(context.Background(), veo.SubmitRequest{Prompt: "p", DurationSeconds: 8, AspectRatio: "9:16"})
	var subErr *veo.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status %d", subErr.StatusCode)
	}
	if !strings.Contains(subErr.Body, "permission denied") {
		t.Fatalf("expected body in error, got %q", subErr.Body)
	}
}

func TestSubmitReturnsImmediatelyDoneOperation(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("clip"))
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"op-3","done":true,"response":{"videos":[{"bytesBase64Encoded":"` + payload + `","mimeType":"video/mp4"}]}}`))
	})
	op, err := client.Submit(context.Background(), veo.SubmitRequest{Prompt: "p", DurationSeconds: 8, AspectRatio: "9:16"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !op.Done || op.Outcome.Kind != veo.OutcomeArtifact {
		t.Fatalf("expected done artifact operation, got %+v", op)
	}
}

func TestPollTimesOutWhenNeverDone(t *testing.T) {
	var hits int32
	client, clock := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"name":"op-slow","done":false}`))
	})

	_, err := client.Poll(context.Background(), veo.Operation{Name: "op-slow"}, veo.PollOptions{Timeout: time.Minute, Interval: 10 * time.Second})
	var timeoutErr *veo.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout marker")
	}
	if hits != 6 {
		t.Fatalf("expected 6 polls, got %d", hits)
	}
	for _, d := range clock.sleeps {
		if d != 10*time.Second {
			t.Fatalf("expected fixed cadence, got sleeps %v", clock.sleeps)
		}
	}
}

func TestPollDoneOnFirstRequestDoesNotSleep(t *testing.T) {
	var path string
	var body map[string]string
	client, clock := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"name":"op-4","done":true,"response":{"videos":[]}}`))
	})

	op, err := client.Poll(context.Background(), veo.Operation{Name: "op-4", Model: "veo-custom"}, veo.PollOptions{})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !op.Done || op.Outcome.Kind != veo.OutcomeEmpty {
		t.Fatalf("unexpected operation %+v", op)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected zero sleeps, got %v", clock.sleeps)
	}
	if path != "/models/veo-custom:fetchPredictOperation" {
		t.Fatalf("unexpected poll path %q", path)
	}
	if body["operationName"] != "op-4" {
		t.Fatalf("unexpected poll body %v", body)
	}
}

func TestPollSkipsRequestForDoneOperation(t *testing.T) {
	var hits int32
	client, clock := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	in := veo.Operation{Name: "op-done", Done: true, Outcome: veo.Outcome{Kind: veo.OutcomeEmpty}}
	out, err := client.Poll(context.Background(), in, veo.PollOptions{})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if out.Name != in.Name || !out.Done {
		t.Fatalf("expected operation returned unchanged, got %+v", out)
	}
	if hits != 0 || len(clock.sleeps) != 0 {
		t.Fatalf("expected no requests or sleeps, got hits=%d sleeps=%v", hits, clock.sleeps)
	}
}

func TestPollBacksOffOnServerError(t *testing.T) {
	var hits int32
	client, clock := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"name":"op-5","done":true}`))
	})

	op, err := client.Poll(context.Background(), veo.Operation{Name: "op-5"}, veo.PollOptions{Timeout: time.Hour, Interval: 10 * time.Second})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !op.Done {
		t.Fatalf("expected done operation")
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 20*time.Second {
		t.Fatalf("expected a single 2x interval sleep, got %v", clock.sleeps)
	}
}

func TestPollStopsAtDeadlineWhenBackingOff(t *testing.T) {
	var hits int32
	client, clock := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	start := clock.now

	_, err := client.Poll(context.Background(), veo.Operation{Name: "op-busy"}, veo.PollOptions{Timeout: 25 * time.Second, Interval: 10 * time.Second})
	var timeoutErr *veo.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if elapsed := clock.now.Sub(start); elapsed != 25*time.Second {
		t.Fatalf("expected poll to end at the deadline, elapsed %s (sleeps %v)", elapsed, clock.sleeps)
	}
	if hits != 2 {
		t.Fatalf("expected 2 polls, got %d", hits)
	}
	if len(clock.sleeps) != 2 || clock.sleeps[0] != 20*time.Second || clock.sleeps[1] != 5*time.Second {
		t.Fatalf("expected backoff clamped to the deadline, got %v", clock.sleeps)
	}
}

func TestPollAbortsOnClientError(t *testing.T) {
	var hits int32
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.Poll(context.Background(), veo.Operation{Name: "op-6"}, veo.PollOptions{})
	var pollErr *veo.PollError
	if !errors.As(err, &pollErr) {
		t.Fatalf("expected PollError, got %v", err)
	}
	if pollErr.StatusCode != http.StatusNotFound || !errors.Is(err, services.ErrPoll) {
		t.Fatalf("unexpected poll error %+v", pollErr)
	}
	if hits != 1 {
		t.Fatalf("expected a single request, got %d", hits)
	}
}

func TestPollRetriesAfterUnreadableResponse(t *testing.T) {
	var hits int32
	client, clock := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			_, _ = w.Write([]byte("<html>proxy</html>"))
			return
		}
		_, _ = w.Write([]byte(`{"name":"op-7","done":true}`))
	})
	if _, err := client.Poll(context.Background(), veo.Operation{Name: "op-7"}, veo.PollOptions{Interval: 5 * time.Second, Timeout: time.Minute}); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 5*time.Second {
		t.Fatalf("expected a single interval sleep, got %v", clock.sleeps)
	}
}

func TestPollStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		_, _ = w.Write([]byte(`{"name":"op-8","done":false}`))
	})
	_, err := client.Poll(ctx, veo.Operation{Name: "op-8"}, veo.PollOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
