package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/internal/domain/types"
	"github.com/okian/flightdelay/pkg/logger"
)

// errThrottled marks a 429 answer; the batch may be retried.
var errThrottled = errors.New("service throttled the batch")

// HTTPClient talks to the service's JSON API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client with a per-request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Health checks GET /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// PostRecords submits one batch to POST /api/records.
func (c *HTTPClient) PostRecords(ctx context.Context, batch []normalize.Input) (types.IngestResult, error) {
	body, err := json.Marshal(struct {
		Records []normalize.Input `json:"records"`
	}{Records: batch})
	if err != nil {
		return types.IngestResult{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/records", bytes.NewReader(body))
	if err != nil {
		return types.IngestResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return types.IngestResult{}, fmt.Errorf("failed to post records: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.IngestResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		var res types.IngestResult
		if err := json.Unmarshal(data, &res); err != nil {
			return types.IngestResult{}, fmt.Errorf("failed to decode response: %w", err)
		}
		return res, nil
	case http.StatusTooManyRequests:
		return types.IngestResult{}, errThrottled
	default:
		return types.IngestResult{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
}

// Recommendation fetches GET /api/recommendation. found is false on 404.
func (c *HTTPClient) Recommendation(ctx context.Context, origin, destination string) (rec types.Recommendation, found bool, err error) {
	q := url.Values{"origin": {origin}, "destination": {destination}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/recommendation?"+q.Encode(), nil)
	if err != nil {
		return rec, false, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return rec, false, fmt.Errorf("failed to get recommendation: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return rec, false, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.Unmarshal(data, &rec); err != nil {
			return rec, false, fmt.Errorf("failed to decode recommendation: %w", err)
		}
		return rec, true, nil
	case http.StatusNotFound:
		return rec, false, nil
	default:
		return rec, false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
}

// submitRecords posts inputs in batches using cfg.Workers submitters.
// Throttled batches are retried with a linear backoff.
func submitRecords(ctx context.Context, cfg Config, client *HTTPClient, inputs []normalize.Input, stats *Stats) error {
	log := logger.Get().Named("seed")
	log.Info(ctx, "submitting records",
		logger.Int("records", len(inputs)),
		logger.Int("batchSize", cfg.BatchSize),
		logger.Int("workers", cfg.Workers))

	batches := make(chan []normalize.Input, cfg.Workers*2)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				res, throttled, err := postWithRetry(ctx, cfg, client, batch)

				mu.Lock()
				stats.BatchesSubmitted++
				stats.BatchesThrottled += throttled
				if err != nil {
					stats.BatchesFailed++
				} else {
					stats.RecordsAccepted += res.Accepted
					stats.RecordsDuplicate += res.Duplicates
					stats.RecordsRejected += len(res.Rejected)
				}
				submitted := stats.BatchesSubmitted
				mu.Unlock()

				if err != nil {
					log.Warn(ctx, "batch failed", logger.Int("records", len(batch)), logger.Error(err))
				} else if cfg.Verbose {
					log.Debug(ctx, "batch submitted",
						logger.Int("batch", submitted),
						logger.Int("accepted", res.Accepted),
						logger.Int("rejected", len(res.Rejected)))
				}
			}
		}()
	}

	go func() {
		defer close(batches)
		for start := 0; start < len(inputs); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(inputs))
			select {
			case <-ctx.Done():
				return
			case batches <- inputs[start:end]:
			}
		}
	}()

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.RecordsAccepted),
		logger.Int("duplicates", stats.RecordsDuplicate),
		logger.Int("rejected", stats.RecordsRejected),
		logger.Int("failedBatches", stats.BatchesFailed))
	return nil
}

func postWithRetry(ctx context.Context, cfg Config, client *HTTPClient, batch []normalize.Input) (types.IngestResult, int, error) {
	throttled := 0
	for attempt := 1; ; attempt++ {
		res, err := client.PostRecords(ctx, batch)
		if !errors.Is(err, errThrottled) {
			return res, throttled, err
		}
		throttled++
		if attempt >= cfg.Retries {
			return res, throttled, fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return res, throttled, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
}
