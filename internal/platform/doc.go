// Package platform holds the explicit connection context for the remote
// generation platform: project, region, HTTP client and a lazily discovered,
// self-refreshing OAuth2 bearer token.
//
// A single Context is created per process and handed to every client that
// talks to the platform (video jobs, image generation, storage downloads).
package platform
