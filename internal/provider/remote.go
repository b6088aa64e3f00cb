package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"navigation-platform/internal/directions"
	"navigation-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RemoteProvider computes routes against a directions HTTP API.
//
// When a redis client is supplied, successful responses are cached under the
// query equality key so equivalent reroutes within the TTL skip the network.
// Results with an empty ID are never cached.
type RemoteProvider struct {
	baseURL  string
	client   *http.Client
	rdb      *redis.Client
	cacheTTL time.Duration
	log      *slog.Logger
}

type RemoteOption func(*RemoteProvider)

// WithResponseCache enables redis-backed caching of serialized responses.
func WithResponseCache(rdb *redis.Client, ttl time.Duration) RemoteOption {
	return func(p *RemoteProvider) {
		p.rdb = rdb
		p.cacheTTL = ttl
	}
}

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(p *RemoteProvider) { p.client = c }
}

func NewRemoteProvider(baseURL string, log *slog.Logger, opts ...RemoteOption) *RemoteProvider {
	p := &RemoteProvider{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL: time.Minute,
		log:      log,
	}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

func (p *RemoteProvider) Name() string { return "remote-directions" }

func (p *RemoteProvider) HealthCheck(ctx context.Context) error {
	if p.baseURL == "" {
		return errors.New("provider: remote base url not configured")
	}
	return nil
}

func (p *RemoteProvider) ComputeRoute(ctx context.Context, q directions.RouteQuery, creds directions.Credentials) (directions.RouteResult, error) {
	cacheKey := "directions:resp:" + q.Key()

	if p.rdb != nil {
		raw, err := utils.CacheGetString(ctx, p.rdb, cacheKey)
		if err == nil {
			res, derr := directions.DecodeResponse(raw, q, creds)
			if derr == nil {
				p.log.DebugContext(ctx, "directions cache hit", "profile", q.Profile)
				return res, nil
			}
			// Poisoned entry; fall through to the network.
			p.log.WarnContext(ctx, "dropping undecodable cached response", "error", derr)
		} else if !errors.Is(err, utils.ErrCacheMiss) {
			p.log.WarnContext(ctx, "directions cache read failed", "error", err)
		}
	}

	requestURL, err := directions.EncodeRequest(p.baseURL, q, creds)
	if err != nil {
		return directions.RouteResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return directions.RouteResult{}, fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return directions.RouteResult{}, fmt.Errorf("provider: directions request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return directions.RouteResult{}, fmt.Errorf("provider: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return directions.RouteResult{}, fmt.Errorf("provider: directions status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	result, err := directions.DecodeResponse(string(body), q, creds)
	if err != nil {
		return directions.RouteResult{}, err
	}

	if p.rdb != nil && result.ID != "" {
		if cerr := utils.CacheSetString(ctx, p.rdb, cacheKey, string(body), p.cacheTTL); cerr != nil {
			p.log.WarnContext(ctx, "directions cache write failed", "error", cerr)
		}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
