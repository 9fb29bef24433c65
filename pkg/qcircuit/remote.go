package qcircuit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrRemote indicates the remote execution service failed after retries.
var ErrRemote = errors.New("remote execution failed")

// RemoteDevice submits jobs to a queued execution service over HTTP and
// polls for the result. Every Execute call blocks on at least one network
// round trip, so remote-backed training should use far smaller batch sizes
// and step counts than simulator-backed training.
type RemoteDevice struct {
	baseURL string
	token   string
	client  *http.Client

	maxRetries   int
	pollInterval time.Duration
}

// RemoteOption configures a RemoteDevice.
type RemoteOption func(*RemoteDevice)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(d *RemoteDevice) {
		d.client = c
	}
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) RemoteOption {
	return func(d *RemoteDevice) {
		d.maxRetries = n
	}
}

// WithPollInterval sets the base interval between result polls.
func WithPollInterval(interval time.Duration) RemoteOption {
	return func(d *RemoteDevice) {
		d.pollInterval = interval
	}
}

// NewRemoteDevice creates a device talking to the service at baseURL,
// authenticating with the given access token.
func NewRemoteDevice(baseURL, token string, opts ...RemoteOption) *RemoteDevice {
	d := &RemoteDevice{
		baseURL:      baseURL,
		token:        token,
		client:       &http.Client{Timeout: 30 * time.Second},
		maxRetries:   3,
		pollInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type jobStatus struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Expectations []float64 `json:"expectations"`
	Error        string    `json:"error"`
}

// Execute submits the job, polls until it completes, and returns the
// expectations. Transient submission failures are retried with exponential
// backoff; exhaustion or a failed job surfaces ErrRemote.
func (d *RemoteDevice) Execute(ctx context.Context, job Job) ([]float64, error) {
	var lastErr error
	backoff := d.pollInterval

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Err(lastErr).
				Msg("retrying remote circuit submission")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		id, err := d.submit(ctx, job)
		if err != nil {
			lastErr = err
			continue
		}

		exps, err := d.await(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		return exps, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrRemote, lastErr)
}

func (d *RemoteDevice) submit(ctx context.Context, job Job) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("submission rejected with status %d", resp.StatusCode)
	}

	var status jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", err
	}
	if status.ID == "" {
		return "", errors.New("submission response missing job id")
	}
	return status.ID, nil
}

func (d *RemoteDevice) await(ctx context.Context, id string) ([]float64, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/jobs/"+id, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+d.token)

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}

		var status jobStatus
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "done":
			return status.Expectations, nil
		case "error":
			return nil, fmt.Errorf("job %s failed: %s", id, status.Error)
		}

		select {
		case <-time.After(d.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
