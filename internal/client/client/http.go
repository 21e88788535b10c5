package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/common"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4 << 10

// HTTPClient implements Client over JSON/HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// NewHTTPClient returns a client for the server at baseURL
// (e.g. "http://127.0.0.1:8080"). A zero timeout disables the per-request
// timeout.
func NewHTTPClient(baseURL, accessToken string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		accessToken: accessToken,
	}, nil
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *HTTPClient) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// do sends a JSON request and decodes a JSON response into out (when not nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := c.token(); t != "" {
		req.Header.Set("Authorization", common.BearerPrefix+t)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return mapStatus(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

// mapStatus turns a non-2xx response into a sentinel error carrying the
// server's message.
func mapStatus(resp *http.Response) error {
	msg := resp.Status
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var e api.ErrorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		msg = e.Error
	}

	var sentinel error
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		sentinel = ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		sentinel = ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		sentinel = ErrUnavailable
	default:
		sentinel = ErrBadRequest
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func (c *HTTPClient) Register(ctx context.Context) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/users", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *HTTPClient) GetChatKey(ctx context.Context, chatID string) (string, error) {
	var resp api.ChatKeyResponse
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID)+"/keys", nil, &resp); err != nil {
		return "", err
	}
	return resp.EncryptedKey, nil
}

func (c *HTTPClient) GetMessages(ctx context.Context, chatID string, page, limit int) ([]api.Message, error) {
	q := url.Values{}
	q.Set(api.PageParam, strconv.Itoa(page))
	q.Set(api.LimitParam, strconv.Itoa(limit))

	var msgs []api.Message
	path := "/chats/" + url.PathEscape(chatID) + "/messages?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, req api.SendMessageRequest) (*api.Message, error) {
	var msg api.Message
	if err := c.do(ctx, http.MethodPost, "/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *HTTPClient) UploadPublicKey(ctx context.Context, publicKey string) error {
	return c.do(ctx, http.MethodPost, "/user/keys", api.PublicKeyRequest{PublicKey: publicKey}, nil)
}

func (c *HTTPClient) CreateChat(ctx context.Context, name string, participants []string) (string, error) {
	var resp api.CreateChatResponse
	req := api.CreateChatRequest{Name: name, Participants: participants}
	if err := c.do(ctx, http.MethodPost, "/chats", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
