package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/oauth2"

	"reelgen/internal/config"
	"reelgen/internal/platform"
	"reelgen/internal/testsupport"
)

const fakeProbeScript = `cat <<'JSON'
{"streams":[{"codec_name":"h264","codec_type":"video","width":720,"height":1280}],"format":{"duration":"12.0","size":"2048"}}
JSON
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

// setupCLITestEnv writes a config pointing at temp directories and stub
// ffmpeg/ffprobe binaries. mutate runs before the file is written.
func setupCLITestEnv(t *testing.T, mutate func(*config.Config)) *cliTestEnv {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT",
		"GOOGLE_CLOUD_LOCATION", "GOOGLE_APPLICATION_CREDENTIALS", "VIDEO_MODEL",
		"ASPECT_RATIO", "IDENTITY_SEED", "THEME", "DURATION",
	} {
		t.Setenv(key, "")
	}

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	binDir := filepath.Join(base, "bin")
	testsupport.WriteScript(t, filepath.Join(binDir, "ffmpeg"), testsupport.FakeFFmpegScript)
	testsupport.WriteScript(t, filepath.Join(binDir, "ffprobe"), fakeProbeScript)
	cfg.Media.FFmpegBinary = filepath.Join(binDir, "ffmpeg")
	cfg.Media.FFprobeBinary = filepath.Join(binDir, "ffprobe")
	cfg.Logging.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	configPath := filepath.Join(base, "reelgen.toml")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(withPlatformOptions(
		platform.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})),
	))
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// fakePlatform serves the image predict and video predictLongRunning
// endpoints. Clips complete immediately; beats listed in filtered come back
// blocked by the safety filter.
type fakePlatform struct {
	mu       sync.Mutex
	filtered map[int]bool
	submits  []submitBody
	images   int
}

type submitBody struct {
	Instances []struct {
		Prompt string `json:"prompt"`
		Image  *struct {
			BytesBase64Encoded string `json:"bytesBase64Encoded"`
		} `json:"image"`
	} `json:"instances"`
}

func newFakePlatform(t *testing.T, filtered ...int) (*fakePlatform, *httptest.Server) {
	t.Helper()
	fp := &fakePlatform{filtered: map[int]bool{}}
	for _, id := range filtered {
		fp.filtered[id] = true
	}
	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)
	return fp, srv
}

func (fp *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	body, _ := io.ReadAll(r.Body)
	fp.mu.Lock()
	defer fp.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, ":predict"):
		fp.images++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{
				{"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("portrait")), "mimeType": "image/png"},
			},
		})
	case strings.HasSuffix(r.URL.Path, ":predictLongRunning"):
		var submit submitBody
		_ = json.Unmarshal(body, &submit)
		fp.submits = append(fp.submits, submit)
		beat := len(fp.submits)
		response := map[string]any{
			"videos": []map[string]any{
				{"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("clip")), "mimeType": "video/mp4"},
			},
		}
		if fp.filtered[beat] {
			response = map[string]any{
				"raiMediaFilteredCount":   1,
				"raiMediaFilteredReasons": []string{"blocked"},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":     "operations/op-" + string(rune('0'+beat)),
			"done":     true,
			"response": response,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fp *fakePlatform) imageCount() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.images
}

func (fp *fakePlatform) submitted() []submitBody {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]submitBody(nil), fp.submits...)
}

// newStoryServer answers chat completions with a fixed two-beat story.
func newStoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	story := `{"theme":"lost keys","total_duration":12,"main_character":"a red fox","setting":"a snowy forest","cinematic_style":"warm handheld","beats":[{"id":1,"character_action":"searches the snow","duration":6},{"id":2,"character_action":"finds the keys","duration":6}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer story-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": story}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}
