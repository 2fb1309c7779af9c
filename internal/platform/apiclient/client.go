// Package apiclient is the HTTP client for the medhya platform API. It
// attaches the bearer token to every request, unwraps the {"data": ...}
// envelope, maps error bodies to *Error and performs exactly one
// refresh-and-retry cycle when the server answers 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRefreshPath is the token refresh route of the platform API.
const DefaultRefreshPath = "/api/auth/refresh"

// Credentials holds the access and refresh tokens of the logged-in user.
type Credentials interface {
	Token() string
	RefreshToken() string
	Update(token, refreshToken string) error
	Clear() error
}

// Client talks to the platform REST API.
type Client struct {
	baseURL     string
	http        *http.Client
	creds       Credentials
	logger      zerolog.Logger
	refreshPath string

	refreshMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for transport failures.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRefreshPath overrides DefaultRefreshPath.
func WithRefreshPath(p string) Option {
	return func(c *Client) { c.refreshPath = p }
}

// New creates a Client for baseURL using creds for authentication.
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: 30 * time.Second},
		creds:       creds,
		logger:      zerolog.Nop(),
		refreshPath: DefaultRefreshPath,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Get issues an authenticated GET and decodes the data envelope into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// Patch issues an authenticated PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, out)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = b
	}
	return c.do(ctx, method, path, "application/json", payload, out)
}

// do sends the request and, on 401, refreshes the tokens once and retries.
func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte, out interface{}) error {
	sentWith := c.creds.Token()
	resp, err := c.send(ctx, method, path, contentType, payload, sentWith)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if err := c.refresh(ctx, sentWith); err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, contentType, payload, c.creds.Token())
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	return decodeResponse(resp, method, path, out)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("api request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Token        string `json:"token"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refresh exchanges the refresh token for a new pair. If another request
// already refreshed since staleToken was sent, the new token is reused.
func (c *Client) refresh(ctx context.Context, staleToken string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if cur := c.creds.Token(); cur != "" && cur != staleToken {
		return nil
	}

	rt := c.creds.RefreshToken()
	if rt == "" {
		c.logout()
		return ErrLoggedOut
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: rt})
	if err != nil {
		return fmt.Errorf("encode refresh request: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, c.refreshPath, "application/json", payload, "")
	if err != nil {
		c.logout()
		return fmt.Errorf("%w: %v", ErrLoggedOut, err)
	}
	defer resp.Body.Close()

	var out refreshResponse
	if err := decodeResponse(resp, http.MethodPost, c.refreshPath, &out); err != nil {
		c.logger.Warn().Err(err).Msg("token refresh rejected")
		c.logout()
		return ErrLoggedOut
	}

	token := out.Token
	if token == "" {
		token = out.AccessToken
	}
	if token == "" {
		c.logout()
		return ErrLoggedOut
	}
	if out.RefreshToken == "" {
		out.RefreshToken = rt
	}
	if err := c.creds.Update(token, out.RefreshToken); err != nil {
		return fmt.Errorf("store refreshed credentials: %w", err)
	}
	c.logger.Debug().Msg("access token refreshed")
	return nil
}

func (c *Client) logout() {
	if err := c.creds.Clear(); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear credentials")
	}
}

func decodeResponse(resp *http.Response, method, path string, out interface{}) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Method: method, Path: path}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = eb.Message
			if apiErr.Message == "" {
				apiErr.Message = eb.Error
			}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		raw = env.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
