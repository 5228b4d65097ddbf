// Package refresh drives fetch → extract → install cycles for an inventory
// source and schedules them.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/starford/sowilo/internal/apperr"
)

// Defaults for the HTTP fetcher.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 32 << 20
)

var errBodyTooLarge = errors.New("response body exceeds limit")

// Fetcher retrieves the raw document behind a source URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, force bool) ([]byte, error)
}

// HTTPFetcher issues a plain GET with no authentication.
type HTTPFetcher struct {
	client  *http.Client
	maxBody int64
	now     func() time.Time
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher with the given timeout and body limit.
// Zero values select the defaults.
func NewHTTPFetcher(timeout time.Duration, maxBody int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		maxBody: maxBody,
		now:     time.Now,
	}
}

// Fetch downloads rawURL. When force is set, cache-busting parameters t
// (unix seconds) and r (random) are added to the query. Any status other
// than 200 and any transport failure is returned as *apperr.NetworkError.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, force bool) ([]byte, error) {
	target := rawURL
	if force {
		busted, err := CacheBust(rawURL, f.now(), rand.Uint64())
		if err != nil {
			return nil, err
		}
		target = busted
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &apperr.ValidationError{Field: "url", Reason: err.Error()}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &apperr.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &apperr.NetworkError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, &apperr.NetworkError{Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > f.maxBody {
		return nil, &apperr.NetworkError{Err: errBodyTooLarge}
	}
	return data, nil
}

// CacheBust returns rawURL with t and r query parameters set.
func CacheBust(rawURL string, now time.Time, r uint64) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &apperr.ValidationError{Field: "url", Reason: err.Error()}
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now.Unix(), 10))
	q.Set("r", strconv.FormatUint(r, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
