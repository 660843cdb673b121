// Package client implements the typed HTTP client used by every console screen to talk to the
// institution's REST backend.
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
	"time"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/pkg/middleware/requestid"
)

// Operation names reported to observers and carried by errors.
const (
	OpList       = "list"
	OpCreate     = "create"
	OpUpdate     = "update"
	OpRemove     = "remove"
	OpActivate   = "activate"
	OpDeactivate = "deactivate"
)

const defaultTimeout = 15 * time.Second

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Endpoint locates an entity collection upstream.
type Endpoint struct {
	Entity string
	// BaseURL is the absolute collection URL, e.g. https://backend/api/course.
	BaseURL  string
	ListKeys []string
}

// Observer is notified after every upstream call. status is 0 for transport failures.
type Observer func(entity, op string, status int, duration time.Duration, err error)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	observer   Observer
}

// Option customises a Client.
type Option func(*options)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithObserver registers a hook called after each request.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Client performs CRUD and status calls for one entity type.
type Client[T any] struct {
	endpoint Endpoint
	tokens   TokenSource
	http     *http.Client
	timeout  time.Duration
	observer Observer
}

// New constructs a client for endpoint. tokens may be nil for unauthenticated access.
func New[T any](endpoint Endpoint, tokens TokenSource, opts ...Option) *Client[T] {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client[T]{
		endpoint: endpoint,
		tokens:   tokens,
		http:     httpClient,
		timeout:  o.timeout,
		observer: o.observer,
	}
}

// Entity returns the entity name the client serves.
func (c *Client[T]) Entity() string {
	return c.endpoint.Entity
}

// List fetches one page of the collection.
func (c *Client[T]) List(ctx context.Context, query models.ListQuery) (models.ListResult[T], error) {
	params := url.Values{}
	params.Set("search", query.Search)
	params.Set("page", strconv.Itoa(query.Page))
	params.Set("pageSize", strconv.Itoa(query.PageSize))

	body, err := c.do(ctx, OpList, http.MethodGet, c.endpoint.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.ListResult[T]{}, err
	}
	items, total, err := normalizeList[T](body, c.endpoint.ListKeys)
	if err != nil {
		return models.ListResult[T]{}, fmt.Errorf("%s %s: %w", OpList, c.endpoint.Entity, err)
	}
	return models.ListResult[T]{Items: items, Total: total}, nil
}

// Create posts a new record and returns the server's representation.
func (c *Client[T]) Create(ctx context.Context, payload any) (T, error) {
	body, err := c.do(ctx, OpCreate, http.MethodPost, c.endpoint.BaseURL, payload)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.record(body)
}

// Update replaces the record identified by id.
func (c *Client[T]) Update(ctx context.Context, id string, payload any) (T, error) {
	body, err := c.do(ctx, OpUpdate, http.MethodPut, c.itemURL(id), payload)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.record(body)
}

// Remove deletes the record identified by id.
func (c *Client[T]) Remove(ctx context.Context, id string) error {
	_, err := c.do(ctx, OpRemove, http.MethodDelete, c.itemURL(id), nil)
	return err
}

// SetActive toggles the activity flag via the activate/deactivate sub-resources.
func (c *Client[T]) SetActive(ctx context.Context, id string, active bool) error {
	op := OpDeactivate
	if active {
		op = OpActivate
	}
	_, err := c.do(ctx, op, http.MethodPatch, c.itemURL(id)+"/"+op, nil)
	return err
}

func (c *Client[T]) itemURL(id string) string {
	return strings.TrimRight(c.endpoint.BaseURL, "/") + "/" + url.PathEscape(id)
}

func (c *Client[T]) record(body json.RawMessage) (T, error) {
	var out T
	if isNull(body) {
		return out, nil
	}
	if err := decode(unwrapRecord(body, c.endpoint.Entity), &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", c.endpoint.Entity, err)
	}
	return out, nil
}

func (c *Client[T]) do(ctx context.Context, op, method, target string, payload any) (json.RawMessage, error) {
	start := time.Now()
	status, body, err := c.send(ctx, op, method, target, payload)
	if c.observer != nil {
		c.observer(c.endpoint.Entity, op, status, time.Since(start), err)
	}
	return body, err
}

func (c *Client[T]) send(ctx context.Context, op, method, target string, payload any) (int, json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("%s %s: encode payload: %w", op, c.endpoint.Entity, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, &NetworkError{Op: op, Method: method, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, nil, fmt.Errorf("%s %s: resolve token: %w", op, c.endpoint.Entity, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Op: op, Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusLine := resp.Status
		if statusLine == "" {
			statusLine = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		message := errorMessage(raw)
		if message == "" {
			message = statusLine
		}
		return resp.StatusCode, nil, &HTTPError{Op: op, Status: resp.StatusCode, StatusLine: statusLine, Message: message}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &NetworkError{Op: op, Method: method, URL: target, Err: err}
	}
	return resp.StatusCode, raw, nil
}
