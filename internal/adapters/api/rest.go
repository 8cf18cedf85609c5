// Package api implements the poll path of the wire contract: the stats
// endpoint and the paginated job-list endpoint.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pressline.sync/internal/core/domain"
	"pressline.sync/internal/core/ports"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	base string
	hc   *http.Client
}

var _ ports.Snapshotter = (*Client)(nil)

func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) FetchStats(ctx context.Context) (*domain.QueueStats, error) {
	var stats domain.QueueStats
	if err := c.getJSON(ctx, c.base+"/api/queue/stats", &stats); err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	return &stats, nil
}

func (c *Client) FetchRecentJobs(ctx context.Context, page, pageSize int) (*domain.JobPage, error) {
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("sort_by", "created_at")
	q.Set("order", "desc")

	var jp domain.JobPage
	if err := c.getJSON(ctx, c.base+"/api/jobs?"+q.Encode(), &jp); err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	return &jp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
