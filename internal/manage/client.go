// Package manage is a client of the cluster management service API.
package manage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/firecamp/redis-cfn-resource/internal/config"
	"github.com/firecamp/redis-cfn-resource/internal/domain"
)

// Operations are passed as the raw query of the management URL.
const (
	specialOpPrefix      = "?"
	catalogCreateRedisOp = specialOpPrefix + "Catalog-Create-Redis"
	catalogCheckInitOp   = specialOpPrefix + "Catalog-Check-Service-Init"
	deleteServiceOp      = specialOpPrefix + "Delete-Service"
)

// maxResponseBytes bounds how much of a management response is read.
const maxResponseBytes = 1 << 20

// StatusError is a non-200 answer from the management service.
type StatusError struct {
	Code   int
	Reason string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("status %d %s: %s", e.Code, e.Reason, e.Body)
	}
	return fmt.Sprintf("status %d %s", e.Code, e.Reason)
}

// Client calls the management API. Every method makes exactly one request.
type Client struct {
	httpClient    *http.Client
	createTimeout time.Duration
	initTimeout   time.Duration
	deleteTimeout time.Duration
}

// New creates a management client.
func New(cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient:    httpClient,
		createTimeout: cfg.CreateTimeout,
		initTimeout:   cfg.InitTimeout,
		deleteTimeout: cfg.DeleteTimeout,
	}
}

// CreateRedis asks the management service to create a Redis service.
func (c *Client) CreateRedis(ctx context.Context, baseURL string, req *domain.CreateRedisRequest) error {
	return c.do(ctx, http.MethodPut, baseURL+"/"+catalogCreateRedisOp, c.createTimeout, req, nil)
}

// CheckServiceInit fetches the initialization status of a catalog service.
func (c *Client) CheckServiceInit(ctx context.Context, baseURL string, req *domain.CheckServiceInitRequest) (*domain.CheckServiceInitResponse, error) {
	var resp domain.CheckServiceInitResponse
	if err := c.do(ctx, http.MethodGet, baseURL+"/"+catalogCheckInitOp, c.initTimeout, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteService deletes a service and returns the volumes it leaves behind.
func (c *Client) DeleteService(ctx context.Context, baseURL string, req *domain.DeleteServiceRequest) (*domain.DeleteServiceResponse, error) {
	var resp domain.DeleteServiceResponse
	if err := c.do(ctx, http.MethodDelete, baseURL+"/"+deleteServiceOp, c.deleteTimeout, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, url string, timeout time.Duration, in, out interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{
			Code:   resp.StatusCode,
			Reason: reasonPhrase(resp),
			Body:   strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// reasonPhrase extracts "Not Found" from a status line like "404 Not Found".
func reasonPhrase(resp *http.Response) string {
	if _, reason, ok := strings.Cut(resp.Status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
