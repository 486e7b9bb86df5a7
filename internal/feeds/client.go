// Package feeds fetches the external alert list and the data logger's sensor
// log over HTTP.
package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	FeedAlerts = "alerts"
	FeedSensor = "sensor"
)

// DefaultTimeout bounds a single feed request when none is configured.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a feed response is read.
const maxBody = 32 << 20

// FeedError reports a feed that could not be read. It is recoverable: the
// caller keeps its last-known-good state.
type FeedError struct {
	Feed string
	URL  string
	Err  error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("%s feed %s: %v", e.Feed, e.URL, e.Err)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// ErrNotConfigured is wrapped in a FeedError when a feed has no URL.
var ErrNotConfigured = errors.New("feed URL not configured")

// Client reads both feeds.
type Client struct {
	AlertsURL string
	SensorURL string
	http      *http.Client
}

// NewClient creates a feed client. A zero timeout means DefaultTimeout.
func NewClient(alertsURL, sensorURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		AlertsURL: alertsURL,
		SensorURL: sensorURL,
		http:      &http.Client{Timeout: timeout},
	}
}

// FetchAlerts retrieves the alert list: a JSON array of strings, or the
// MessagePack equivalent when the server answers application/x-msgpack.
func (c *Client) FetchAlerts(ctx context.Context) ([]string, error) {
	body, contentType, err := c.get(ctx, FeedAlerts, c.AlertsURL)
	if err != nil {
		return nil, err
	}

	var alerts []string
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-msgpack" {
		err = msgpack.Unmarshal(body, &alerts)
	} else {
		err = json.Unmarshal(body, &alerts)
	}
	if err != nil {
		return nil, &FeedError{Feed: FeedAlerts, URL: c.AlertsURL, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return alerts, nil
}

// FetchSensorLog retrieves the sensor log CSV as text.
func (c *Client) FetchSensorLog(ctx context.Context) (string, error) {
	body, _, err := c.get(ctx, FeedSensor, c.SensorURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, feed, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", &FeedError{Feed: feed, Err: ErrNotConfigured}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &FeedError{Feed: feed, URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", &FeedError{Feed: feed, URL: url, Err: fmt.Errorf("failed to connect: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &FeedError{Feed: feed, URL: url, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, "", &FeedError{Feed: feed, URL: url, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, resp.Header.Get("Content-Type"), nil
}
