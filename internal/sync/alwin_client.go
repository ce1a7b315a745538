// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/portier-bms/portier/internal/config"
	"github.com/portier-bms/portier/internal/metrics"
	"github.com/portier-bms/portier/internal/models/alwin"
)

// ErrUpstream marks transport and server-side failures of the Alwin
// service. The scheduler uses it to distinguish upstream outages from
// other cycle errors; both abandon the cycle without a watermark
// advance.
var ErrUpstream = errors.New("alwin upstream error")

// maxErrorBodySize limits the amount of response body read for error
// reporting.
const maxErrorBodySize = 64 * 1024 // 64KB

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// Client is the source boundary consumed by the sync engine. Both fetch
// operations return events oldest-first with vendor dates already
// parsed; records with unparseable dates carry a nil timestamp and are
// dropped by the watermark filter.
type Client interface {
	FetchAccessEvents(ctx context.Context) ([]alwin.AccessEvent, error)
	FetchAlarmEvents(ctx context.Context) ([]alwin.AlarmEvent, error)
}

// AlwinClient talks to the Alwin access-control web service.
//
// The vendor service tolerates very little concurrency, so requests are
// paced through a rate limiter instead of being parallelized. Each
// request carries HTTP Basic auth plus the X-API-KEY header.
//
// Thread safety: safe for concurrent use; each request creates its own
// HTTP request and the limiter serializes access to the upstream.
type AlwinClient struct {
	baseURL  string
	username string
	password string
	apiKey   string
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter
}

// NewAlwinClient creates an Alwin API client from the configuration.
func NewAlwinClient(cfg *config.AlwinConfig) *AlwinClient {
	return &AlwinClient{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// endpointURL builds the request URL for one log endpoint. Results are
// requested most-recent-first so the newest events are always inside
// the first page.
func (c *AlwinClient) endpointURL(endpoint string) string {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("pageNumber", "1")
	params.Set("pageSize", fmt.Sprintf("%d", c.pageSize))
	params.Set("sortByExpression", "datetime1 desc")
	return fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
}

// doRequest performs one paced, authenticated GET against the upstream.
func (c *AlwinClient) doRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(endpoint), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned HTTP %d: %s", ErrUpstream, endpoint, resp.StatusCode, body)
	}
	return resp, nil
}

// FetchAccessEvents fetches the latest access log page and returns its
// events oldest-first.
func (c *AlwinClient) FetchAccessEvents(ctx context.Context) ([]alwin.AccessEvent, error) {
	start := time.Now()
	resp, err := c.doRequest(ctx, "getlogaccess")
	if err != nil {
		metrics.FetchErrors.WithLabelValues("access").Inc()
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var payload alwin.AccessLogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.FetchErrors.WithLabelValues("access").Inc()
		return nil, fmt.Errorf("failed to decode getlogaccess response: %w", err)
	}
	if payload.OperationResult.Status != "" && payload.OperationResult.Status != "OK" {
		metrics.FetchErrors.WithLabelValues("access").Inc()
		return nil, fmt.Errorf("%w: getlogaccess status %q", ErrUpstream, payload.OperationResult.Status)
	}

	records := payload.Records()
	metrics.FetchDuration.WithLabelValues("access").Observe(time.Since(start).Seconds())
	metrics.FetchedRecords.WithLabelValues("access").Add(float64(len(records)))

	// Upstream delivers most-recent-first; reverse so downstream
	// processing is chronological.
	events := make([]alwin.AccessEvent, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		events = append(events, alwin.ParseAccessEvent(&records[i]))
	}
	return events, nil
}

// FetchAlarmEvents fetches the latest alarm log page and returns its
// events oldest-first.
func (c *AlwinClient) FetchAlarmEvents(ctx context.Context) ([]alwin.AlarmEvent, error) {
	start := time.Now()
	resp, err := c.doRequest(ctx, "getlogalarm")
	if err != nil {
		metrics.FetchErrors.WithLabelValues("alarm").Inc()
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var payload alwin.AlarmLogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.FetchErrors.WithLabelValues("alarm").Inc()
		return nil, fmt.Errorf("failed to decode getlogalarm response: %w", err)
	}
	if payload.OperationResult.Status != "" && payload.OperationResult.Status != "OK" {
		metrics.FetchErrors.WithLabelValues("alarm").Inc()
		return nil, fmt.Errorf("%w: getlogalarm status %q", ErrUpstream, payload.OperationResult.Status)
	}

	records := payload.Records()
	metrics.FetchDuration.WithLabelValues("alarm").Observe(time.Since(start).Seconds())
	metrics.FetchedRecords.WithLabelValues("alarm").Add(float64(len(records)))

	events := make([]alwin.AlarmEvent, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		events = append(events, alwin.ParseAlarmEvent(&records[i]))
	}
	return events, nil
}
