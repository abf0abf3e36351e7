// Package apiclient is the single request pipeline to the remote content API.
// It attaches the session's bearer credential to every call and tears the
// session down when the API answers 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/middleware/requestid"
	"github.com/noah-isme/clinic-dashboard/pkg/strapi"
)

const maxResponseBytes = 16 << 20

// Observer receives timing for every upstream call.
type Observer interface {
	ObserveUpstream(method, label string, status int, duration time.Duration)
}

// Config configures the pipeline.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Observer   Observer
}

// Client dispatches requests to the remote API.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *zap.Logger
	observer Observer
}

// New builds a Client. The timeout applies uniformly to every call.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     httpClient,
		logger:   logger,
		observer: cfg.Observer,
	}
}

// FilePart is a binary part of a multipart body.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// Multipart is an ordered multipart/form-data body.
type Multipart struct {
	Files  []FilePart
	Fields [][2]string
}

// Request is one call to the remote API.
type Request struct {
	Method    string
	Path      string
	Body      interface{}
	Multipart *Multipart
	// Label names the operation in metrics; defaults to the path without query.
	Label string

	unauthorizedHandled bool
}

// StatusError is a non-2xx response other than 401.
type StatusError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote api status %d", e.Status)
}

// Get is a shorthand for a GET request.
func (c *Client) Get(ctx context.Context, scope *session.Scope, path string, out interface{}) error {
	return c.Do(ctx, scope, &Request{Method: http.MethodGet, Path: path}, out)
}

// Do dispatches req and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) Do(ctx context.Context, scope *session.Scope, req *Request, out interface{}) error {
	httpReq, err := c.build(ctx, scope, req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build remote request")
	}

	label := req.Label
	if label == "" {
		label = stripQuery(req.Path)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		c.observe(req.Method, label, 0, duration)
		c.logger.Warn("remote api call failed", zap.String("method", req.Method), zap.String("endpoint", label), zap.Duration("latency", duration), zap.Error(err))
		return transportError(ctx, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(req.Method, label, resp.StatusCode, duration)
	c.logger.Debug("remote api call", zap.String("method", req.Method), zap.String("endpoint", label), zap.Int("status", resp.StatusCode), zap.Duration("latency", duration))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read remote response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return c.unauthorized(scope, req, body)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{Status: resp.StatusCode, Message: strapi.ErrorMessage(body), Body: body}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "invalid response from remote service")
	}
	return nil
}

func (c *Client) build(ctx context.Context, scope *session.Scope, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Multipart != nil:
		buf, ct, err := encodeMultipart(req.Multipart)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.Body != nil:
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body, contentType = bytes.NewReader(payload), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+ensureSlash(req.Path), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if id := requestid.FromContext(ctx); id != "" {
		httpReq.Header.Set(requestid.Header, id)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if scope != nil && scope.Session != nil {
		if token := scope.Session.Credential(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

// unauthorized clears the session and sends the client to sign-in, once per request.
func (c *Client) unauthorized(scope *session.Scope, req *Request, body []byte) error {
	cause := &StatusError{Status: http.StatusUnauthorized, Message: strapi.ErrorMessage(body), Body: body}
	if req.unauthorizedHandled {
		return appErrors.Wrap(cause, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, appErrors.ErrUnauthorized.Message)
	}
	req.unauthorizedHandled = true

	if scope != nil {
		if scope.Session != nil {
			c.logger.Info("remote api rejected credential, ending session", zap.String("session_id", scope.Session.ID()))
			scope.Session.Logout()
		}
		if scope.Navigator != nil {
			scope.Navigator.Navigate(session.RouteSignIn)
		}
	}
	return appErrors.Wrap(cause, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, appErrors.ErrUnauthorized.Message)
}

func (c *Client) observe(method, label string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(method, label, status, duration)
	}
}

func transportError(ctx context.Context, err error) error {
	var timeout interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout()) {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "remote service timed out")
	}
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "remote service unreachable")
}

func encodeMultipart(m *Multipart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for _, file := range m.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(file.Field), escapeQuotes(file.Filename)))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create multipart file %s: %w", file.Field, err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", fmt.Errorf("copy multipart file %s: %w", file.Field, err)
		}
	}
	for _, field := range m.Fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write multipart field %s: %w", field[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func ensureSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
