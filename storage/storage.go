// Package storage resolves lead magnet object keys to URLs a browser can
// fetch. The download handler redirects to whatever URL the configured store
// produces: a static file path in development, a short-lived presigned S3
// URL in production.
package storage

import (
	"context"
	"net/url"
)

type Store interface {
	// ResolveURL returns a fetchable URL for the object at key.
	ResolveURL(ctx context.Context, key string) (string, error)
}

// LocalStore serves objects from a static file base URL. No signing; the
// gating happens at the download route, not at the file host.
type LocalStore struct {
	baseURL string
}

func NewLocalStore(baseURL string) *LocalStore {
	return &LocalStore{baseURL: baseURL}
}

func (s *LocalStore) ResolveURL(_ context.Context, key string) (string, error) {
	return url.JoinPath(s.baseURL, key)
}
