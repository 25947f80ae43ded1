package matchsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/elevenvotes/consensus/pkg/logger"
)

// httpClient wraps http.Client with the service's base URL.
type httpClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (c *httpClient) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *httpClient) post(ctx context.Context, path string, body any) (int, []byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *httpClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// submitSnapshot posts s, retrying while the service reports backpressure.
func submitSnapshot(ctx context.Context, client *httpClient, s Snapshot) (string, error) { //nolint:gocritic // snapshots travel by value
	for attempt := 1; ; attempt++ {
		status, body, err := client.post(ctx, "/snapshots", s)
		if err != nil {
			return resultFailed, err
		}
		switch status {
		case http.StatusAccepted:
			return resultAccepted, nil
		case http.StatusOK:
			var ack AckResponse
			if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
				return resultDuplicate, nil
			}
			return resultFailed, fmt.Errorf("unexpected 200 response: %s", body)
		case http.StatusTooManyRequests:
			if attempt == maxAttempts {
				return resultThrottled, nil
			}
			select {
			case <-ctx.Done():
				return resultFailed, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		default:
			return resultFailed, fmt.Errorf("status %d: %s", status, bytes.TrimSpace(body))
		}
	}
}

// counters tallies submission outcomes across workers.
type counters struct {
	submitted, accepted, duplicates, throttled, failed atomic.Int64
}

func (c *counters) add(result string) {
	c.submitted.Add(1)
	switch result {
	case resultAccepted:
		c.accepted.Add(1)
	case resultDuplicate:
		c.duplicates.Add(1)
	case resultThrottled:
		c.throttled.Add(1)
	default:
		c.failed.Add(1)
	}
}

func (c *counters) apply(stats *Stats) {
	stats.Submitted += int(c.submitted.Load())
	stats.Accepted += int(c.accepted.Load())
	stats.Duplicates += int(c.duplicates.Load())
	stats.Throttled += int(c.throttled.Load())
	stats.Failed += int(c.failed.Load())
}

// submitSnapshots posts snapshots with at most cfg.Workers requests in
// flight, paced by limiter when it is not nil.
func submitSnapshots(ctx context.Context, cfg *Config, client *httpClient, limiter *rate.Limiter, snapshots []Snapshot, c *counters) error {
	log := logger.Get().Named("matchsim")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))

	for _, s := range snapshots {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				break
			}
		}
		g.Go(func() error {
			result, err := submitSnapshot(gctx, client, s)
			c.add(result)
			if err != nil && cfg.Verbose {
				log.Warn(gctx, "snapshot not accepted",
					logger.String("snapshotID", s.ID),
					logger.String("kind", s.Kind),
					logger.String("result", result),
					logger.Error(err),
				)
			}
			// A single rejected snapshot does not stop the run.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
