// Package api is the single point of outbound HTTP traffic for the
// attendance client. It attaches bearer tokens, enforces request timeouts
// and maps non-2xx responses onto typed errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/crewmark/attendance-client/internal/app/metrics"
	"github.com/crewmark/attendance-client/pkg/logger"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultUploadTimeout = 60 * time.Second
)

// TokenSource yields the current access token. An empty token means the
// request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string {
	if f == nil {
		return ""
	}
	return f()
}

// Config configures the API client.
type Config struct {
	BaseURL string
	Tokens  TokenSource
	// Timeout applies to JSON calls, UploadTimeout to multipart uploads.
	Timeout       time.Duration
	UploadTimeout time.Duration
	// RequestsPerSecond caps outbound traffic; 0 disables the limiter.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *logger.Logger
}

// Client wraps HTTP requests with bearer-token auth headers, timeouts and
// JSON (de)serialization. There is no retry logic; a single failed attempt
// surfaces to the caller.
type Client struct {
	baseURL       string
	tokens        TokenSource
	timeout       time.Duration
	uploadTimeout time.Duration
	httpClient    *http.Client
	limiter       *rate.Limiter
	log           *logger.Logger
}

// New creates an API client for the given backend.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout == 0 {
		uploadTimeout = defaultUploadTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Per-request deadlines come from contexts, not the client.
		httpClient = &http.Client{}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("api")
	}

	return &Client{
		baseURL:       base,
		tokens:        cfg.Tokens,
		timeout:       timeout,
		uploadTimeout: uploadTimeout,
		httpClient:    httpClient,
		limiter:       limiter,
		log:           log,
	}, nil
}

// Response is a raw API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Envelope is the uniform `{success, message, data}` wrapper the backend
// returns for all endpoints except login and facial recognition.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Envelope decodes the response body as the uniform envelope.
func (r *Response) Envelope() (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}

// Get sends a GET request with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(ctx, req, c.timeout)
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(ctx, req, c.timeout)
}

// FormFile is one file part of a multipart upload.
type FormFile struct {
	Field       string
	Name        string
	ContentType string
	Content     []byte
}

// PostMultipart sends a multipart/form-data POST, used for photo uploads.
// It applies the longer upload timeout.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []FormFile) (*Response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, fmt.Errorf("create form file %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("write form file %s: %w", f.Field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(ctx, req, c.uploadTimeout)
}

func (c *Client) do(ctx context.Context, req *http.Request, timeout time.Duration) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(reqCtx)

	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRequest(req.Method, req.URL.Path, 0, time.Since(start))
		return nil, c.classifyTransport(ctx, reqCtx, req, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	metrics.ObserveRequest(req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(body, resp.StatusCode)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}

// classifyTransport distinguishes the request timeout from other network
// failures so callers can tell them apart.
func (c *Client) classifyTransport(parent, reqCtx context.Context, req *http.Request, err error) error {
	if parent.Err() != nil {
		// Caller cancelled or its own deadline fired; pass that through.
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || IsTimeout(err) {
		c.log.WithField("path", req.URL.Path).Warn("request timed out")
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrTimeout)
	}
	c.log.WithField("path", req.URL.Path).WithError(err).Warn("request failed")
	return fmt.Errorf("%s %s: %w: %v", req.Method, req.URL.Path, ErrUnreachable, err)
}

// parseAPIError extracts the backend's message and machine code out of an
// error payload. Backends emit either the uniform envelope or a bare
// `{detail}` / `{error}` object.
func parseAPIError(body []byte, status int) error {
	var payload struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	msg := payload.Message
	if msg == "" {
		msg = payload.Detail
	}
	if msg == "" {
		msg = payload.Error
	}
	return &APIError{Status: status, Code: payload.Code, Message: msg}
}
