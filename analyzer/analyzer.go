package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seo-engine/backend/cache"
	"github.com/seo-engine/backend/stats"
)

const (
	// DefaultFetchTimeout bounds a single page fetch
	DefaultFetchTimeout = 12 * time.Second
	defaultUserAgent    = "SEOEngine/1.0"
	maxBodyBytes        = 10 << 20
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Options configures an Analyzer. Zero values fall back to defaults; Cache and Stats are optional.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Cache     cache.Cache
	Stats     *stats.Storage
	Logger    zerolog.Logger
	Transport http.RoundTripper
}

// Analyzer fetches pages and extracts their SEO features
type Analyzer struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	cache     cache.Cache
	stats     *stats.Storage
	logger    zerolog.Logger
}

// New creates a new Analyzer instance
func New(opts Options) *Analyzer {
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	// The default client follows redirects; the per-request context carries the timeout.
	return &Analyzer{
		client:    &http.Client{Transport: transport},
		timeout:   timeout,
		userAgent: userAgent,
		cache:     opts.Cache,
		stats:     opts.Stats,
		logger:    opts.Logger,
	}
}

// FetchHTML downloads pageURL with the analyzer's timeout and returns the
// final status code and body. Redirects are followed.
func (a *Analyzer) FetchHTML(ctx context.Context, pageURL string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if _, err := io.Copy(buf, io.LimitReader(resp.Body, maxBodyBytes)); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	body := make([]byte, buf.Len())
	copy(body, buf.Bytes())
	return resp.StatusCode, body, nil
}

// ExtractPageFeatures fetches pageURL and extracts its feature record,
// serving a cached record when one is available. It returns nil when the
// page cannot be fetched, times out, answers with a status other than 200 or
// cannot be parsed; callers treat that as "page unavailable".
func (a *Analyzer) ExtractPageFeatures(ctx context.Context, pageURL string) *PageFeatures {
	return a.extract(ctx, pageURL, true)
}

// ExtractFreshPageFeatures is ExtractPageFeatures without the cache lookup.
// The fresh record still replaces the cached one.
func (a *Analyzer) ExtractFreshPageFeatures(ctx context.Context, pageURL string) *PageFeatures {
	return a.extract(ctx, pageURL, false)
}

func (a *Analyzer) extract(ctx context.Context, pageURL string, useCache bool) *PageFeatures {
	key := cache.Key(pageURL)
	if a.cache != nil && useCache {
		if data, ok := a.cache.Get(ctx, key); ok {
			var cached PageFeatures
			if err := json.Unmarshal(data, &cached); err == nil {
				a.stats.RecordCacheHit()
				return &cached
			}
		}
		a.stats.RecordCacheMiss()
	}

	log := a.logger.With().Str("url", pageURL).Logger()

	status, body, err := a.FetchHTML(ctx, pageURL)
	if err != nil {
		log.Debug().Err(err).Msg("page fetch failed")
		a.stats.RecordFetchFailure()
		return nil
	}
	if status != http.StatusOK {
		log.Debug().Int("status", status).Msg("page fetch returned non-200 status")
		a.stats.RecordFetchFailure()
		return nil
	}

	features, err := ParseFeatures(pageURL, body)
	if err != nil {
		log.Debug().Err(err).Msg("page could not be parsed")
		a.stats.RecordFetchFailure()
		return nil
	}
	a.stats.RecordExtraction()

	if a.cache != nil {
		if data, err := json.Marshal(features); err == nil {
			a.cache.Set(ctx, key, data)
		}
	}

	return features
}
