// Package client is the Go SDK for the dreams-exit HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zym9863/Dream-s-Exit/internal/model"
)

const (
	ownerHeader        = "X-Dreams-Owner"
	rowsAffectedHeader = "X-Rows-Affected"
)

// Echo is a listed echo including its remaining-time text.
type Echo struct {
	model.EchoEntry
	Remaining string `json:"remaining"`
}

// apiError mirrors the server's error body.
type apiError struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client talks to one dreams-exit server. It never retries; every failure is
// returned once, classified as validation, not-found or transport.
type Client struct {
	rc *resty.Client
}

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithHTTPTimeout bounds the total time spent on a single request.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.rc.SetTimeout(d)
		return nil
	}
}

// WithDebugLogging logs each request and response through resty.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		c.rc.SetDebug(enabled)
		return nil
	}
}

// New constructs a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	c := &Client{
		rc: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx).SetError(&apiError{})
}

// ListMemories returns every memory, newest first.
func (c *Client) ListMemories(ctx context.Context) ([]*model.MemoryEntry, error) {
	var out struct {
		Memories []*model.MemoryEntry `json:"memories"`
	}
	resp, err := c.req(ctx).SetResult(&out).Get("/api/memories")
	if err := classify("list memories", resp, err); err != nil {
		return nil, err
	}
	if out.Memories == nil {
		out.Memories = []*model.MemoryEntry{}
	}
	return out.Memories, nil
}

func (c *Client) GetMemory(ctx context.Context, id string) (*model.MemoryEntry, error) {
	var out model.MemoryEntry
	resp, err := c.req(ctx).SetPathParam("id", id).SetResult(&out).Get("/api/memories/{id}")
	if err := classify("get memory", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMemory stores a new memory attributed to owner.
func (c *Client) CreateMemory(ctx context.Context, owner string, f model.MemoryFields) (*model.MemoryEntry, error) {
	var out model.MemoryEntry
	r := c.req(ctx).SetBody(f).SetResult(&out)
	if owner != "" {
		r.SetHeader(ownerHeader, owner)
	}
	resp, err := r.Post("/api/memories")
	if err := classify("create memory", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateMemory(ctx context.Context, id string, f model.MemoryFields) (*model.MemoryEntry, error) {
	var out model.MemoryEntry
	resp, err := c.req(ctx).SetPathParam("id", id).SetBody(f).SetResult(&out).Put("/api/memories/{id}")
	if err := classify("update memory", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMemory removes id and returns the number of rows the server deleted.
func (c *Client) DeleteMemory(ctx context.Context, id string) (int64, error) {
	resp, err := c.req(ctx).SetPathParam("id", id).Delete("/api/memories/{id}")
	if err := classify("delete memory", resp, err); err != nil {
		return 0, err
	}
	n, perr := strconv.ParseInt(resp.Header().Get(rowsAffectedHeader), 10, 64)
	if perr != nil {
		return 0, model.Transport("delete memory", fmt.Errorf("bad %s header: %w", rowsAffectedHeader, perr))
	}
	return n, nil
}

// ListEchoes returns the currently visible echoes, newest first.
func (c *Client) ListEchoes(ctx context.Context) ([]Echo, error) {
	var out struct {
		Echoes []Echo `json:"echoes"`
	}
	resp, err := c.req(ctx).SetResult(&out).Get("/api/echoes")
	if err := classify("list echoes", resp, err); err != nil {
		return nil, err
	}
	if out.Echoes == nil {
		out.Echoes = []Echo{}
	}
	return out.Echoes, nil
}

// PostEcho publishes content anonymously.
func (c *Client) PostEcho(ctx context.Context, content string) (*model.EchoEntry, error) {
	var out model.EchoEntry
	resp, err := c.req(ctx).SetBody(map[string]string{"content": content}).SetResult(&out).Post("/api/echoes")
	if err := classify("post echo", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports the server's own health verdict.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := c.req(ctx).SetResult(&out).Get("/api/health")
	if err := classify("health", resp, err); err != nil {
		return false, err
	}
	return out.Status == "healthy", nil
}

// classify turns a resty outcome into a model error.
func classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		return model.Transport(op, err)
	}
	if !resp.IsError() {
		return nil
	}
	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.Message != "" {
		msg = e.Message
	}
	switch resp.StatusCode() {
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %s: %w", op, msg, model.ErrValidation)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, msg, model.ErrNotFound)
	default:
		return model.Transport(op, fmt.Errorf("server returned %d: %s", resp.StatusCode(), msg))
	}
}
