package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"reelgen/internal/logging"
	"reelgen/internal/services"
)

const (
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
	defaultTimeout     = 120 * time.Second
)

// candidateKeyFiles are probed in the search directories when no explicit
// credentials file is configured.
var candidateKeyFiles = []string{"gcp-key.json", "service-account.json"}

// Config describes how to reach the platform.
type Config struct {
	ProjectID       string
	Location        string
	CredentialsFile string
	// BaseURL replaces https://{location}-aiplatform.googleapis.com.
	BaseURL        string
	RequestTimeout time.Duration
	// SearchDirs lists directories probed for candidate key files. Defaults
	// to the working directory.
	SearchDirs []string
}

// Option customizes a Context.
type Option func(*Context)

// WithTokenSource bypasses credential discovery.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Context) {
		if ts != nil {
			c.source = oauth2.ReuseTokenSource(nil, ts)
			c.credentialSource = "static"
			c.once.Do(func() {})
		}
	}
}

// WithHTTPClient overrides the client used for platform requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Context) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for discovery diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.logger = logging.NewComponentLogger(logger, "platform")
	}
}

// Context is the explicit per-process platform handle. It is safe for
// concurrent use once constructed.
type Context struct {
	projectID       string
	location        string
	baseURL         string
	credentialsFile string
	searchDirs      []string
	httpClient      *http.Client
	logger          *slog.Logger

	once             sync.Once
	source           oauth2.TokenSource
	credentialSource string
	initErr          error
}

// New validates cfg and returns a Context. Credentials are not touched until
// the first Token call.
func New(cfg Config, opts ...Option) (*Context, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	location := strings.TrimSpace(cfg.Location)
	if projectID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "platform", "new", "project id is required", nil)
	}
	if location == "" {
		return nil, services.Wrap(services.ErrConfiguration, "platform", "new", "location is required", nil)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	searchDirs := cfg.SearchDirs
	if len(searchDirs) == 0 {
		searchDirs = []string{"."}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com", location)
	}

	c := &Context{
		projectID:       projectID,
		location:        location,
		baseURL:         baseURL,
		credentialsFile: strings.TrimSpace(cfg.CredentialsFile),
		searchDirs:      searchDirs,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          logging.NewComponentLogger(nil, "platform"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ProjectID returns the configured project.
func (c *Context) ProjectID() string { return c.projectID }

// Location returns the configured region.
func (c *Context) Location() string { return c.location }

// HTTPClient returns the client used for platform requests.
func (c *Context) HTTPClient() *http.Client { return c.httpClient }

// ModelURL returns the publisher model endpoint for method, e.g.
// ".../models/veo-3.0-generate-001:predictLongRunning".
func (c *Context) ModelURL(model, method string) string {
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.baseURL, c.projectID, c.location, model, method)
}

// CredentialSource describes where the credential came from. Empty until
// discovery has run.
func (c *Context) CredentialSource() string {
	return c.credentialSource
}

// Token returns a valid bearer token, refreshing it when expired.
func (c *Context) Token(ctx context.Context) (string, error) {
	c.once.Do(func() { c.discover(ctx) })
	if c.initErr != nil {
		return "", c.initErr
	}
	token, err := c.source.Token()
	if err != nil {
		return "", &AuthError{Source: c.credentialSource, Err: err}
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return "", &AuthError{Source: c.credentialSource, Err: errors.New("empty access token")}
	}
	return token.AccessToken, nil
}

// TokenSource exposes the discovered credential to Google API clients.
func (c *Context) TokenSource(ctx context.Context) oauth2.TokenSource {
	return contextTokenSource{ctx: context.WithoutCancel(ctx), platform: c}
}

type contextTokenSource struct {
	ctx      context.Context
	platform *Context
}

func (s contextTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.platform.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// Authorize stamps the bearer token onto req.
func (c *Context) Authorize(req *http.Request) error {
	token, err := c.Token(req.Context())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (c *Context) discover(ctx context.Context) {
	// Token refreshes outlive the request that triggered discovery.
	base := context.WithoutCancel(ctx)

	if c.credentialsFile != "" {
		c.source, c.initErr = c.fromFile(base, c.credentialsFile)
		return
	}
	for _, dir := range c.searchDirs {
		for _, name := range candidateKeyFiles {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err != nil || info.IsDir() {
				continue
			}
			c.source, c.initErr = c.fromFile(base, path)
			return
		}
	}

	creds, err := google.FindDefaultCredentials(base, cloudPlatformScope)
	if err != nil {
		c.credentialSource = "application-default"
		c.initErr = &AuthError{Source: c.credentialSource, Err: err}
		return
	}
	c.credentialSource = "application-default"
	c.logger.Debug("using application default credentials")
	c.source = oauth2.ReuseTokenSource(nil, creds.TokenSource)
}

func (c *Context) fromFile(ctx context.Context, path string) (oauth2.TokenSource, error) {
	c.credentialSource = path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &AuthError{Source: path, Err: err}
	}
	creds, err := google.CredentialsFromJSON(ctx, data, cloudPlatformScope)
	if err != nil {
		return nil, &AuthError{Source: path, Err: err}
	}
	c.logger.Debug("using credentials file", logging.String("path", path))
	return oauth2.ReuseTokenSource(nil, creds.TokenSource), nil
}
