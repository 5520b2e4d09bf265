// Package telemetry carries traffic to and from the remote broker: feed
// publishes out, control commands in. The streaming transport is primary;
// a plain HTTPS request is the fallback, and a publish counts as successful
// if either path got through.
package telemetry

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"boxguard/internal/config"
)

// maxPhotoBytes caps uploaded images; the broker rejects larger values.
const maxPhotoBytes = 100_000

type Client struct {
	cfg       *config.Manager
	writer    *kafka.Writer
	http      *http.Client
	logger    *slog.Logger
	connected atomic.Bool
}

func NewClient(cfg *config.Manager, logger *slog.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
	current := cfg.Get().Telemetry
	if current.Enabled && len(current.Brokers) > 0 {
		c.writer = &kafka.Writer{
			Addr:                   kafka.TCP(current.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		}
		c.connected.Store(true)
	}
	return c
}

func (c *Client) Close() error {
	if c.writer != nil {
		return c.writer.Close()
	}
	return nil
}

// Connected reports whether the last streaming publish succeeded.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) Publish(ctx context.Context, feed string, value any) bool {
	payload, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		return false
	}
	return c.publishPayload(ctx, feed, payload)
}

func (c *Client) publishPayload(ctx context.Context, feed string, payload []byte) bool {
	current := c.cfg.Get().Telemetry
	if !current.Enabled {
		return false
	}
	feedKey, ok := current.Feeds[feed]
	if !ok {
		if c.logger != nil {
			c.logger.Warn("unknown telemetry feed", "feed", feed)
		}
		return false
	}

	// The stream is always attempted while a writer exists: the writer
	// manages its own connections, so a past failure must not demote the
	// primary transport for the rest of the process. The connected flag is
	// reporting only.
	success := false
	if c.writer != nil {
		writeCtx, cancel := context.WithTimeout(ctx, current.PublishTimeout)
		err := c.writer.WriteMessages(writeCtx, kafka.Message{
			Topic: current.TopicPrefix + feedKey,
			Value: payload,
		})
		cancel()
		if err != nil {
			c.connected.Store(false)
			if c.logger != nil {
				c.logger.Warn("stream publish failed", "feed", feed, "err", err)
			}
		} else {
			c.connected.Store(true)
			success = true
		}
	}

	if !success && current.RESTEndpoint != "" {
		if err := c.restPublish(ctx, current, feedKey, payload); err != nil {
			if c.logger != nil {
				c.logger.Error("rest publish failed", "feed", feed, "err", err)
			}
		} else {
			success = true
		}
	}
	return success
}

func (c *Client) restPublish(ctx context.Context, cfg config.TelemetryConfig, feedKey string, payload []byte) error {
	endpoint := fmt.Sprintf("%s/feeds/%s/data", cfg.RESTEndpoint, url.PathEscape(feedKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.RESTKey != "" {
		req.Header.Set("X-API-Key", cfg.RESTKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("rest publish status %d", resp.StatusCode)
	}
	return nil
}

// UploadPhoto publishes a captured image, base64-encoded, to the photos feed.
func (c *Client) UploadPhoto(ctx context.Context, filename, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) > maxPhotoBytes {
		return fmt.Errorf("image too large to upload: %d bytes", len(data))
	}
	payload, err := json.Marshal(map[string]any{
		"value": filename,
		"image": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return err
	}
	if !c.publishPayload(ctx, "photos", payload) {
		return fmt.Errorf("photo publish failed on all transports")
	}
	return nil
}

type DataPoint struct {
	Value     any    `json:"value"`
	CreatedAt string `json:"created_at"`
}

// History fetches feed data points from the broker's REST API for the
// dashboard charts.
func (c *Client) History(ctx context.Context, feed string, start, end time.Time, limit int) ([]DataPoint, error) {
	current := c.cfg.Get().Telemetry
	if current.RESTEndpoint == "" {
		return nil, fmt.Errorf("rest endpoint not configured")
	}
	feedKey, ok := current.Feeds[feed]
	if !ok {
		return nil, fmt.Errorf("unknown feed: %s", feed)
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	endpoint := fmt.Sprintf("%s/feeds/%s/data", current.RESTEndpoint, url.PathEscape(feedKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	if !start.IsZero() {
		q.Set("start_time", start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("end_time", end.UTC().Format(time.RFC3339))
	}
	req.URL.RawQuery = q.Encode()
	if current.RESTKey != "" {
		req.Header.Set("X-API-Key", current.RESTKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history fetch status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var points []DataPoint
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, err
	}
	return points, nil
}
