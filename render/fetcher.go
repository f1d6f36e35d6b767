package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storecanvas/core"

	"github.com/sirupsen/logrus"
)

// maxSourceBytes bounds a single fetched layer source.
const maxSourceBytes = 32 << 20

// SourceFetcher resolves a layer source URL to raw bytes.
type SourceFetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// HTTPFetcher fetches http(s) and data: URLs, caching remote bodies.
type HTTPFetcher struct {
	client *http.Client
	cache  *SourceCache
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout. cache may be nil.
func NewHTTPFetcher(timeout time.Duration, cache *SourceCache) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		cache:  cache,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "data:") {
		return decodeDataURL(src)
	}

	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: unsupported source url %q", core.ErrNetwork, truncate(src))
	}

	if f.cache != nil {
		if b, ok := f.cache.Get(src); ok {
			return b, nil
		}
	}

	log := logrus.WithField("url", src)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch layer source")
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("Layer source returned non-200 response")
		return nil, fmt.Errorf("%w: %s returned status %d", core.ErrNetwork, src, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	if len(body) > maxSourceBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", core.ErrNetwork, src, maxSourceBytes)
	}

	if f.cache != nil {
		f.cache.Set(src, body)
	}
	log.WithField("size", len(body)).Debug("Fetched layer source")
	return body, nil
}

// decodeDataURL decodes data:[<mediatype>][;base64],<data>.
func decodeDataURL(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data url", core.ErrNetwork)
	}
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed base64 data url: %v", core.ErrNetwork, err)
		}
		return b, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed data url: %v", core.ErrNetwork, err)
	}
	return []byte(s), nil
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
