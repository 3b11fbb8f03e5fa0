package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"blackout-watch/internal/models"
	"blackout-watch/internal/netprobe"
	"blackout-watch/internal/schedule"
)

// fetchTimeout covers the whole request. The upstream parser renders pages
// with a headless browser and can take tens of seconds.
const fetchTimeout = 35 * time.Second

// Client fetches outage schedules for an address from the parser service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch requests the current schedule for the address. groupHint, when known
// from an earlier fetch, lets the parser skip address resolution.
func (c *Client) Fetch(ctx context.Context, addr models.AddressKey, groupHint string) (*schedule.Snapshot, error) {
	q := url.Values{}
	q.Set("city", addr.City)
	q.Set("street", addr.Street)
	q.Set("house", addr.House)
	if groupHint != "" {
		q.Set("group", groupHint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/schedule?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[provider] fetch for %s failed (%s): %v",
			addr.Display(), netprobe.ClassifyFetchFailure(c.baseURL), err)
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch schedule: status %d: %s", resp.StatusCode, body)
	}

	var snap schedule.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	snap.FetchedAt = time.Now()
	return &snap, nil
}
