// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/huddle-chat/huddle/lib/netutil"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL of the Matrix homeserver (e.g., "https://matrix.huddle.chat").
	HomeserverURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// DeviceDisplayName is sent with Login. Defaults to "huddle".
	DeviceDisplayName string
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is a Matrix client-server API client. Authenticated calls take
// the access token explicitly.
type Client struct {
	baseURL           string
	httpClient        *http.Client
	deviceDisplayName string
	logger            *slog.Logger
}

// NewClient creates a new Matrix client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL is required")
	}

	// Request URLs are built by direct concatenation onto the trimmed
	// string form, so only the structure is validated here.
	if _, err := url.Parse(config.HomeserverURL); err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	displayName := config.DeviceDisplayName
	if displayName == "" {
		displayName = "huddle"
	}

	return &Client{
		baseURL:           strings.TrimRight(config.HomeserverURL, "/"),
		httpClient:        httpClient,
		deviceDisplayName: displayName,
		logger:            logger,
	}, nil
}

// HomeserverURL returns the base URL requests are sent to.
func (c *Client) HomeserverURL() string {
	return c.baseURL
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a network disruption to
// force subsequent requests to establish fresh TCP connections instead
// of reusing a poisoned pooled connection.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// ServerVersions returns the Matrix protocol versions supported by the
// homeserver. This is an unauthenticated endpoint, used as a
// reachability probe.
func (c *Client) ServerVersions(ctx context.Context) (*ServerVersionsResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/versions", "", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: server versions failed: %w", err)
	}

	var response ServerVersionsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse versions response: %w", err)
	}
	return &response, nil
}

// Login authenticates with username and password and asks for a
// refresh token.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	if username == "" {
		return nil, fmt.Errorf("messaging: username is required for login")
	}
	if password == "" {
		return nil, fmt.Errorf("messaging: password is required for login")
	}

	loginRequest := LoginRequest{
		Type:                     "m.login.password",
		Identifier:               Identifier{Type: "m.id.user", User: username},
		Password:                 password,
		InitialDeviceDisplayName: c.deviceDisplayName,
		RefreshToken:             true,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/login", "", loginRequest, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: login failed: %w", err)
	}

	var authResponse AuthResponse
	if err := json.Unmarshal(body, &authResponse); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse login response: %w", err)
	}
	if authResponse.AccessToken == "" {
		return nil, fmt.Errorf("messaging: login response has no access token")
	}

	c.logger.Info("logged in to matrix",
		"user_id", authResponse.UserID,
		"device_id", authResponse.DeviceID,
		"expires_in_ms", authResponse.ExpiresInMS,
	)
	return &authResponse, nil
}

// Refresh exchanges a refresh token for a new access token. The server
// may rotate the refresh token; callers must persist the returned one
// when it is non-empty.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("messaging: refresh token is required")
	}

	request := map[string]string{"refresh_token": refreshToken}
	body, err := c.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/refresh", "", request, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: refresh failed: %w", err)
	}

	var response RefreshResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse refresh response: %w", err)
	}
	if response.AccessToken == "" {
		return nil, fmt.Errorf("messaging: refresh response has no access token")
	}
	return &response, nil
}

// WhoAmI returns the user the access token belongs to.
func (c *Client) WhoAmI(ctx context.Context, accessToken string) (*WhoAmIResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", accessToken, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: whoami failed: %w", err)
	}

	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	return &response, nil
}

// Sync performs one /sync request.
// For initial sync, leave options.Since empty.
// For long-polling, set options.Timeout to the desired wait in milliseconds.
func (c *Client) Sync(ctx context.Context, accessToken string, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}
	if options.SetPresence != "" {
		query.Set("set_presence", options.SetPresence)
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: sync failed: %w", err)
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse sync response: %w", err)
	}
	return &response, nil
}

// doRequest performs an HTTP request to the homeserver and returns the response body.
// On 2xx, returns the body. On 4xx/5xx, returns a *MatrixError.
// accessToken may be empty for unauthenticated endpoints.
// query may be nil for endpoints without query parameters.
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("messaging: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to create request: %w", err)
	}

	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+accessToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All Matrix error responses use the same JSON shape.
	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil || matrixErr.Code == "" {
		return nil, fmt.Errorf("messaging: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode

	return nil, &matrixErr
}
