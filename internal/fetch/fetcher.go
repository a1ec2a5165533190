// Package fetch downloads pinned artifacts while hashing them in flight.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openercot/pinion/internal/logging"
	"github.com/openercot/pinion/internal/manifest"
)

// Fetcher streams artifacts from https:// or file:// sources.
//
// Transient network failures are retried with exponential backoff. Integrity
// checking is the store's job: the fetcher only reports the observed digest.
type Fetcher struct {
	Client  *http.Client
	Logger  *slog.Logger
	Retries uint64
}

// NewFetcher constructs a Fetcher with sane timeouts.
func NewFetcher(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		Client:  &http.Client{Timeout: 5 * time.Minute},
		Logger:  logging.Ensure(logger).With("component", "fetch"),
		Retries: 3,
	}
}

// permanentError marks failures that must not be retried (bad scheme, 4xx).
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Fetch streams the source into the file at dstPath and returns the observed
// content hash. The destination is truncated on every attempt so a retried
// download never leaves appended garbage behind.
func (f *Fetcher) Fetch(ctx context.Context, source string, dstPath string) (manifest.Hash, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse source %q: %w", source, err)
	}

	operation := func() (manifest.Hash, error) {
		hash, err := f.fetchOnce(ctx, parsed, dstPath)
		if err != nil {
			var permanent *permanentError
			if errors.As(err, &permanent) {
				return "", backoff.Permanent(permanent.err)
			}
			f.Logger.Warn("fetch attempt failed, retrying", "source", source, "error", err)
			return "", err
		}
		return hash, nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.retries()), ctx)
	hash, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", source, err)
	}
	return hash, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, source *url.URL, dstPath string) (manifest.Hash, error) {
	var body io.ReadCloser

	switch source.Scheme {
	case "file", "":
		file, err := os.Open(source.Path)
		if err != nil {
			return "", &permanentError{err: err}
		}
		body = file
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.String(), nil)
		if err != nil {
			return "", &permanentError{err: err}
		}
		resp, err := f.client().Do(req)
		if err != nil {
			return "", err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			err := fmt.Errorf("unexpected status %s", resp.Status)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return "", &permanentError{err: err}
			}
			return "", err
		}
		body = resp.Body
	default:
		return "", &permanentError{err: fmt.Errorf("unsupported source scheme %q", source.Scheme)}
	}
	defer body.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", &permanentError{err: err}
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, hasher), body); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return manifest.Hash("sha256:" + hex.EncodeToString(hasher.Sum(nil))), nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) retries() uint64 {
	if f.Retries == 0 {
		return 3
	}
	return f.Retries
}
