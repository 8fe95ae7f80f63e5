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

	"github.com/google/uuid"
)

// IdempotencyHeader is set on every mutating request.
const IdempotencyHeader = "Idempotency-Key"

// Sentinel errors matched against *Error with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// Is lets callers match on ErrUnauthorized and ErrNotFound.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// DetailOf returns the backend's detail message if err carries one.
func DetailOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// Client is an HTTP client for the verification backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
	newKey     func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// WithTokenSource makes the client read its bearer token from fn on every
// request. An empty token sends no Authorization header.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

// WithIdempotencyKeys replaces the key generator. Tests use it to get
// deterministic keys.
func WithIdempotencyKeys(fn func() string) Option {
	return func(c *Client) { c.newKey = fn }
}

// NewClient creates a new backend client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		token:  func() string { return "" },
		newKey: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that always sends token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = func() string { return token }
	return &cp
}

// Login calls POST /auth/login.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, false, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("login: empty access token")
	}
	return &resp, nil
}

// Me calls GET /auth/me.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, false, &user); err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	return &user, nil
}

// Register calls POST /auth/register.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", req, true, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// ListSessions calls GET /sessions.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, false, &sessions); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

// CreateSession calls POST /sessions.
func (c *Client) CreateSession(ctx context.Context, req NewSession) (*Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", req, true, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// UploadScript calls POST /sessions/{id}/script with a multipart file field.
func (c *Client) UploadScript(ctx context.Context, sessionID, filename string, r io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("upload script: create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("upload script: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("upload script: close form: %w", err)
	}

	path := "/sessions/" + url.PathEscape(sessionID) + "/script"
	if err := c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), true, nil); err != nil {
		return fmt.Errorf("upload script: %w", err)
	}
	return nil
}

// StartSession calls POST /sessions/{id}/start.
func (c *Client) StartSession(ctx context.Context, sessionID string) (*StartTokens, error) {
	var tokens StartTokens
	path := "/sessions/" + url.PathEscape(sessionID) + "/start"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, true, &tokens); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	tokens.normalize()
	return &tokens, nil
}

// GetReport calls GET /sessions/{id}/report.
func (c *Client) GetReport(ctx context.Context, sessionID string) (*SessionReport, error) {
	var report SessionReport
	path := "/sessions/" + url.PathEscape(sessionID) + "/report"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, false, &report); err != nil {
		return nil, fmt.Errorf("fetch report: %w", err)
	}
	return &report, nil
}

// CertifyReport calls POST /sessions/{id}/certify.
func (c *Client) CertifyReport(ctx context.Context, sessionID string) (*SessionReport, error) {
	var report SessionReport
	path := "/sessions/" + url.PathEscape(sessionID) + "/certify"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, true, &report); err != nil {
		return nil, fmt.Errorf("certify report: %w", err)
	}
	return &report, nil
}

// AnalyzeScript calls POST /analyze-script.
func (c *Client) AnalyzeScript(ctx context.Context, content string) (*ScriptAnalysis, error) {
	var analysis ScriptAnalysis
	if err := c.doJSON(ctx, http.MethodPost, "/analyze-script", AnalyzeScriptRequest{ScriptContent: content}, false, &analysis); err != nil {
		return nil, fmt.Errorf("analyze script: %w", err)
	}
	return &analysis, nil
}

// Join calls the public POST /client/join. No bearer token is sent.
func (c *Client) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	var result JoinResult
	if err := c.WithToken("").doJSON(ctx, http.MethodPost, "/client/join", req, false, &result); err != nil {
		return nil, fmt.Errorf("join session: %w", err)
	}
	if result.Token == "" {
		return nil, fmt.Errorf("join session: empty token")
	}
	return &result, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, mutating bool, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, mutating, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, mutating bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if mutating {
		req.Header.Set(IdempotencyHeader, c.newKey())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := &Error{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil {
			apiErr.Detail = errResp.Detail
			if apiErr.Detail == "" {
				apiErr.Detail = errResp.Error
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
