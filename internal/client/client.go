package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sweetcrumb/storefront/internal/auth"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/types"
)

const (
	defaultTimeout       = 15 * time.Second
	errorBodyReadLimit   = 4 << 10
	sessionKey           = "auth:session"
	idempotencyKeyHeader = "Idempotency-Key"
	apiPrefix            = "/api/v1"
)

var errBaseURLRequired = errors.New("storefront api base url is required")

// SessionStore persists the signed-in session between runs.
type SessionStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Client talks to the storefront HTTP API on behalf of one shopper. It keeps
// the shopper's session and refreshes it transparently when the access
// token expires.
type Client struct {
	httpClient *http.Client
	baseURL    string
	store      SessionStore
	isNotFound func(error) bool

	mu      sync.Mutex
	session *auth.Session
	loaded  bool

	subsMu sync.RWMutex
	nextID int
	subs   map[int]func(auth.SessionChange)
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSessionStore persists the session in store. isNotFound reports whether
// an error from store.Get means "nothing saved yet".
func WithSessionStore(store SessionStore, isNotFound func(error) bool) Option {
	return func(c *Client) {
		c.store = store
		c.isNotFound = isNotFound
	}
}

// New builds a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    trimmed,
		subs:       map[int]func(auth.SessionChange){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type request struct {
	method         string
	path           string
	body           any
	bearer         string
	idempotencyKey string
}

// do sends req and decodes a 2xx body into out. Non-2xx responses become
// typed errors carrying the API's code and message.
func (c *Client) do(ctx context.Context, req request, out any) error {
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+apiPrefix+req.path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set(idempotencyKeyHeader, req.idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", req.method, req.path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Code == "" {
		return pkgerrors.New(codeForStatus(resp.StatusCode), fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	apiErr := pkgerrors.New(pkgerrors.Code(envelope.Code), envelope.Error)
	if envelope.Details != nil {
		apiErr = apiErr.WithDetails(envelope.Details)
	}
	return apiErr
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case status == http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		return pkgerrors.CodeConflict
	case status == http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case status >= 400 && status < 500:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}
