package reel_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"reelgen/internal/veo"
)

type fakeResult struct {
	submitErr  error
	pollErr    error
	extractErr error
	pending    bool
	artifact   veo.Artifact
	outcome    veo.Outcome
}

func clipResult(data string) fakeResult {
	return fakeResult{
		artifact: veo.Artifact{Data: []byte(data), MIMEType: "video/mp4"},
		outcome:  veo.Outcome{Kind: veo.OutcomeArtifact},
	}
}

type fakeVideo struct {
	mu       sync.Mutex
	results  []fakeResult
	requests []veo.SubmitRequest
	polls    int
	current  int
}

func (f *fakeVideo) Submit(_ context.Context, req veo.SubmitRequest) (veo.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	idx := len(f.requests) - 1
	f.current = idx
	if idx >= len(f.results) {
		return veo.Operation{}, errors.New("unexpected submit")
	}
	r := f.results[idx]
	if r.submitErr != nil {
		return veo.Operation{}, r.submitErr
	}
	op := veo.Operation{Name: fmt.Sprintf("operations/op-%d", idx+1), Done: !r.pending}
	if op.Done {
		op.Outcome = r.outcome
	}
	return op, nil
}

func (f *fakeVideo) Poll(_ context.Context, op veo.Operation, _ veo.PollOptions) (veo.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	r := f.results[f.current]
	if r.pollErr != nil {
		return op, r.pollErr
	}
	op.Done = true
	op.Outcome = r.outcome
	return op, nil
}

func (f *fakeVideo) Extract(op veo.Operation) (veo.Artifact, veo.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[f.current]
	if r.extractErr != nil {
		return veo.Artifact{}, op.Outcome, r.extractErr
	}
	return r.artifact, op.Outcome, nil
}

func (f *fakeVideo) submitted() []veo.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]veo.SubmitRequest(nil), f.requests...)
}

// fakeFrames writes "frame:<clip name>" as the last frame. Clip names in
// failOn fail extraction.
type fakeFrames struct {
	err    error
	failOn map[string]bool
	calls  []string
}

func (f *fakeFrames) ExtractLastFrame(_ context.Context, videoPath, framePath string) error {
	f.calls = append(f.calls, videoPath)
	if f.err != nil {
		return f.err
	}
	if f.failOn[filepath.Base(videoPath)] {
		return errors.New("no frame decoded")
	}
	return os.WriteFile(framePath, []byte("frame:"+filepath.Base(videoPath)), 0o644)
}

type fakeFetcher struct {
	uris []string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, uri, dest string) (int64, error) {
	f.uris = append(f.uris, uri)
	if f.err != nil {
		return 0, f.err
	}
	data := []byte("remote:" + uri)
	return int64(len(data)), os.WriteFile(dest, data, 0o644)
}
