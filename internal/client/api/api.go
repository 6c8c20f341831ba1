// Package api is the HTTP client of the sync protocol. Non-2xx responses are
// mapped back onto the sentinels of the models package.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/patric-chuzhbe/scratchpad/internal/models"
)

// ErrTransport reports that the server could not be reached or did not answer.
var ErrTransport = errors.New("server unreachable")

// ErrUnexpectedStatus is used for statuses the protocol does not define.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// StatusError carries the status and the server message of a failed call.
type StatusError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.kind, e.StatusCode)
	}
	return e.Message
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

// New returns a client for the server at baseURL, e.g. "http://localhost:3000".
// Credentials travel only as the token set by SetToken; session cookies the
// server sets are not kept.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetCookieJar(nil).
			SetHeader("Accept", "application/json"),
	}
}

// SetToken makes later requests carry token; an empty token stops sending one.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Register creates an account and returns it with the issued session token.
func (c *Client) Register(ctx context.Context, username, pin string) (models.UserInfo, string, error) {
	return c.authenticate(ctx, "/api/register", username, pin)
}

// Login authenticates and returns the account with the issued session token.
func (c *Client) Login(ctx context.Context, username, pin string) (models.UserInfo, string, error) {
	return c.authenticate(ctx, "/api/login", username, pin)
}

// ListTabs pulls every tab of userID, ordered by tab id.
func (c *Client) ListTabs(ctx context.Context, userID string) (models.Tabs, error) {
	var result models.TabsResponse
	resp, err := c.request(ctx).
		SetPathParam("userId", userID).
		SetResult(&result).
		Get("/api/tabs/{userId}")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	return result.Tabs, nil
}

// SaveTab upserts one tab.
func (c *Client) SaveTab(ctx context.Context, tab models.SaveTabRequest) error {
	resp, err := c.request(ctx).
		SetBody(tab).
		Post("/api/tabs")

	return checkResponse(resp, err)
}

// DeleteTab removes one tab of userID.
func (c *Client) DeleteTab(ctx context.Context, userID, tabID string) error {
	resp, err := c.request(ctx).
		SetPathParams(map[string]string{
			"userId": userID,
			"tabId":  tabID,
		}).
		Delete("/api/tabs/{userId}/{tabId}")

	return checkResponse(resp, err)
}

// DeleteAllTabs removes every tab of userID.
func (c *Client) DeleteAllTabs(ctx context.Context, userID string) error {
	resp, err := c.request(ctx).
		SetPathParam("userId", userID).
		Delete("/api/tabs/{userId}")

	return checkResponse(resp, err)
}

// Health queries the liveness endpoint.
func (c *Client) Health(ctx context.Context) (models.HealthResponse, error) {
	var result models.HealthResponse
	resp, err := c.request(ctx).
		SetResult(&result).
		Get("/api/health")
	if err := checkResponse(resp, err); err != nil {
		return models.HealthResponse{}, err
	}

	return result, nil
}

func (c *Client) authenticate(ctx context.Context, path, username, pin string) (models.UserInfo, string, error) {
	var result models.AuthResponse
	resp, err := c.request(ctx).
		SetBody(models.CredentialsRequest{
			Username: username,
			Pin:      pin,
		}).
		SetResult(&result).
		Post(path)
	if err := checkResponse(resp, err); err != nil {
		return models.UserInfo{}, "", err
	}

	return result.User, resp.Header().Get("Authorization"), nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().
		SetContext(ctx).
		SetError(&models.ErrorResponse{})

	c.mu.RLock()
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	c.mu.RUnlock()

	return req
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if !resp.IsError() {
		return nil
	}

	statusErr := &StatusError{
		StatusCode: resp.StatusCode(),
		kind:       kindOf(resp.StatusCode()),
	}
	if failure, ok := resp.Error().(*models.ErrorResponse); ok && failure != nil {
		statusErr.Message = failure.Error
	}

	return statusErr
}

func kindOf(statusCode int) error {
	switch {
	case statusCode == http.StatusBadRequest:
		return models.ErrValidation
	case statusCode == http.StatusUnauthorized:
		return models.ErrAuth
	case statusCode == http.StatusForbidden:
		return models.ErrForbidden
	case statusCode == http.StatusConflict:
		return models.ErrConflict
	case statusCode >= http.StatusInternalServerError:
		return models.ErrStorage
	}

	return ErrUnexpectedStatus
}
