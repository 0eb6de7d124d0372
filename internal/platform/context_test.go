package platform_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"reelgen/internal/platform"
	"reelgen/internal/services"
)

func writeServiceAccount(t *testing.T, dir, name, tokenURL string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	payload := map[string]string{
		"type":           "service_account",
		"project_id":     "demo",
		"private_key_id": "key-1",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		"client_email":   "reels@demo.iam.gserviceaccount.com",
		"client_id":      "123",
		"token_uri":      tokenURL,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal service account: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write service account: %v", err)
	}
	return path
}

func newTokenServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"minted-token","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewRequiresProjectAndLocation(t *testing.T) {
	if _, err := platform.New(platform.Config{Location: "us-central1"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing project, got %v", err)
	}
	if _, err := platform.New(platform.Config{ProjectID: "demo"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing location, got %v", err)
	}
}

func TestModelURL(t *testing.T) {
	pc, err := platform.New(platform.Config{ProjectID: "demo", Location: "us-central1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := pc.ModelURL("veo-3.0-generate-001", "predictLongRunning")
	want := "https://us-central1-aiplatform.googleapis.com/v1/projects/demo/locations/us-central1/publishers/google/models/veo-3.0-generate-001:predictLongRunning"
	if got != want {
		t.Fatalf("unexpected url:\n got %s\nwant %s", got, want)
	}
}

func TestTokenUsesStaticSource(t *testing.T) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "static-token", Expiry: time.Now().Add(time.Hour)})
	pc, err := platform.New(platform.Config{ProjectID: "demo", Location: "us-central1"}, platform.WithTokenSource(ts))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	token, err := pc.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "static-token" {
		t.Fatalf("unexpected token %q", token)
	}

	req := httptest.NewRequest(http.MethodPost, "https://example.invalid", nil)
	if err := pc.Authorize(req); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer static-token" {
		t.Fatalf("unexpected authorization header %q", got)
	}

	tok, err := pc.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("TokenSource: %v", err)
	}
	if tok.AccessToken != "static-token" || tok.Type() != "Bearer" {
		t.Fatalf("unexpected oauth2 token %+v", tok)
	}
}

func TestTokenDiscoversCandidateKeyFileAndReusesToken(t *testing.T) {
	var hits int32
	server := newTokenServer(t, &hits)
	dir := t.TempDir()
	path := writeServiceAccount(t, dir, "gcp-key.json", server.URL)

	pc, err := platform.New(platform.Config{ProjectID: "demo", Location: "us-central1", SearchDirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		token, err := pc.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if token != "minted-token" {
			t.Fatalf("unexpected token %q", token)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected a single token exchange, got %d", got)
	}
	if pc.CredentialSource() != path {
		t.Fatalf("unexpected credential source %q", pc.CredentialSource())
	}
}

func TestExplicitCredentialsFileWinsOverCandidates(t *testing.T) {
	var hits int32
	server := newTokenServer(t, &hits)
	dir := t.TempDir()
	writeServiceAccount(t, dir, "service-account.json", server.URL)
	explicit := writeServiceAccount(t, t.TempDir(), "explicit.json", server.URL)

	pc, err := platform.New(platform.Config{
		ProjectID:       "demo",
		Location:        "us-central1",
		CredentialsFile: explicit,
		SearchDirs:      []string{dir},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := pc.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if pc.CredentialSource() != explicit {
		t.Fatalf("expected explicit credentials, got %q", pc.CredentialSource())
	}
}

func TestTokenReportsAuthErrorForBrokenCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	pc, err := platform.New(platform.Config{ProjectID: "demo", Location: "us-central1", CredentialsFile: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = pc.Token(context.Background())
	var authErr *platform.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected ErrAuth marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken.json") {
		t.Fatalf("expected source in message, got %q", err.Error())
	}
}

func TestTokenReportsAuthErrorWhenExchangeFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()
	path := writeServiceAccount(t, t.TempDir(), "sa.json", server.URL)

	pc, err := platform.New(platform.Config{ProjectID: "demo", Location: "us-central1", CredentialsFile: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := pc.Token(context.Background()); !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
