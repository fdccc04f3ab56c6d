// Package fetch downloads remote sources over HTTP.
//
// Each Fetch is a single round trip unless retries are configured; retry
// and response caching live here, in the transport, never in the combiner.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher downloads the resource at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ErrTooLarge is returned when a response body exceeds Config.MaxBodyBytes.
var ErrTooLarge = errors.New("response body too large")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Config holds the HTTP fetcher configuration.
type Config struct {
	// Timeout bounds a single round trip.
	Timeout time.Duration

	UserAgent string

	// MaxRetries is the number of retries after the first attempt; 0 disables retry.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxBodyBytes caps the downloaded size; 0 means unlimited.
	MaxBodyBytes int64
}

// DefaultConfig returns a single-attempt configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		UserAgent:      "pdfcombine/1.0",
		MaxRetries:     0,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		MaxBodyBytes:   256 << 20,
	}
}

// HTTPFetcher is a Fetcher backed by net/http.
type HTTPFetcher struct {
	client *http.Client
	cfg    Config
	cache  Cache
	logger zerolog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option { return func(f *HTTPFetcher) { f.client = c } }

// WithCache enables a response cache consulted before each download.
func WithCache(c Cache) Option { return func(f *HTTPFetcher) { f.cache = c } }

func WithLogger(l zerolog.Logger) Option { return func(f *HTTPFetcher) { f.logger = l } }

func New(cfg Config, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: log.With().Str("component", "fetch").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.cache != nil {
		data, ok, err := f.cache.Get(ctx, url)
		switch {
		case err != nil:
			ResponseCache.WithLabelValues("error").Inc()
			f.logger.Warn().Err(err).Str("url", url).Msg("Response cache get failed")
		case ok:
			ResponseCache.WithLabelValues("hit").Inc()
			f.logger.Debug().Str("url", url).Int("bytes", len(data)).Msg("Response cache hit")
			return data, nil
		default:
			ResponseCache.WithLabelValues("miss").Inc()
		}
	}

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		data, err := f.once(ctx, url)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = data
		return nil
	}
	notify := func(err error, wait time.Duration) {
		FetchRetries.Inc()
		f.logger.Warn().Err(err).Str("url", url).Int("attempt", attempt).Dur("backoff", wait).Msg("Retrying fetch")
	}
	if err := backoff.RetryNotify(op, f.policy(ctx), notify); err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, url, body); err != nil {
			f.logger.Warn().Err(err).Str("url", url).Msg("Response cache set failed")
		}
	}
	return body, nil
}

func (f *HTTPFetcher) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if f.cfg.InitialBackoff > 0 {
		eb.InitialInterval = f.cfg.InitialBackoff
	}
	if f.cfg.MaxBackoff > 0 {
		eb.MaxInterval = f.cfg.MaxBackoff
	}
	eb.MaxElapsedTime = 0
	retries := f.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

func (f *HTTPFetcher) once(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	defer func() { FetchDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		FetchRequests.WithLabelValues("network_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	FetchRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var r io.Reader = resp.Body
	if f.cfg.MaxBodyBytes > 0 {
		r = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.cfg.MaxBodyBytes > 0 && int64(len(data)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", url, ErrTooLarge, f.cfg.MaxBodyBytes)
	}
	FetchBytes.Add(float64(len(data)))

	f.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Fetched remote source")
	return data, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTooLarge) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
