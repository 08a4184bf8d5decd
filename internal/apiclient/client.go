// Package apiclient talks to the expense backend over its JSON contract.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"smartexpense/internal/contract"
	"smartexpense/internal/core"
	"smartexpense/internal/middleware/trace"
	"smartexpense/internal/ports"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxResponseSize = 4 << 20
)

// Client calls the backend. It never retries: a failed call is reported once
// and the caller decides whether to try again.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithTimeout bounds every call made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &APIError{Message: "encode request: " + err.Error(), Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{Message: "build request: " + err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := trace.GetRequestID(ctx); id != "" {
		req.Header.Set(trace.RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: "backend unreachable: " + unwrapURLError(err).Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}

	var env contract.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		msg := http.StatusText(resp.StatusCode)
		if resp.StatusCode < 400 {
			msg = "malformed response from backend"
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Err: err}
	}

	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if msg == "" {
			msg = "request failed"
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Status: resp.StatusCode, Message: "malformed response data", Err: err}
		}
	}
	return nil
}

func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func expensePath(id int64) string {
	return "/api/expenses/" + strconv.FormatInt(id, 10)
}

// ListExpenses reads every expense, in the order the backend returns them.
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	var wire []contract.Expense
	if err := c.do(ctx, http.MethodGet, "/api/expenses", nil, &wire); err != nil {
		return nil, err
	}
	list, err := contract.ToExpenses(wire)
	if err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: "malformed expense in response", Err: err}
	}
	return list, nil
}

// CreateExpense posts a new expense and returns it as stored by the backend.
func (c *Client) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var wire contract.Expense
	if err := c.do(ctx, http.MethodPost, "/api/expenses", contract.InputFromExpense(e), &wire); err != nil {
		return core.Expense{}, err
	}
	return decodeStored(wire, e)
}

func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, expensePath(id), nil, nil)
}

// UpdateExpense replaces an expense in place. Backends without an update
// route answer 405; the edit then falls back to ReplaceExpense.
func (c *Client) UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	var wire contract.Expense
	err := c.do(ctx, http.MethodPut, expensePath(id), contract.InputFromExpense(e), &wire)
	if unsupported(err) {
		return c.ReplaceExpense(ctx, id, e)
	}
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id
	return decodeStored(wire, e)
}

// ReplaceExpense edits by creating the new version and then deleting the
// original. The new expense gets a new id. If the delete fails, the created
// expense is returned together with the error.
func (c *Client) ReplaceExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	created, err := c.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}
	if err := c.DeleteExpense(ctx, id); err != nil {
		return created, fmt.Errorf("remove original expense %d: %w", id, err)
	}
	return created, nil
}

// decodeStored prefers the backend's echo of the expense; older backends
// reply with only an id or nothing at all.
func decodeStored(wire contract.Expense, sent core.Expense) (core.Expense, error) {
	if wire.Date == "" {
		if wire.ID != 0 {
			sent.ID = wire.ID
		}
		return sent, nil
	}
	stored, err := wire.Core()
	if err != nil {
		return core.Expense{}, &APIError{Status: http.StatusOK, Message: "malformed expense in response", Err: err}
	}
	return stored, nil
}

func (c *Client) MonthlySummary(ctx context.Context) ([]core.MonthSummary, error) {
	var wire []contract.MonthlySummary
	if err := c.do(ctx, http.MethodGet, "/api/analytics/monthly", nil, &wire); err != nil {
		return nil, err
	}
	return contract.ToMonthSummaries(wire), nil
}

func (c *Client) CategorySummary(ctx context.Context) ([]core.CategoryAmount, error) {
	var wire []contract.CategoryTotal
	if err := c.do(ctx, http.MethodGet, "/api/analytics/categories", nil, &wire); err != nil {
		return nil, err
	}
	return contract.ToCategoryTotals(wire), nil
}

func (c *Client) SpendingAlert(ctx context.Context) (core.AlertReport, error) {
	var wire contract.SpendingAlert
	if err := c.do(ctx, http.MethodGet, "/api/analytics/spending-alert", nil, &wire); err != nil {
		return core.AlertReport{}, err
	}
	return contract.ToAlertReport(wire), nil
}

// Analytics bundles the three analytics views.
type Analytics struct {
	Monthly    []core.MonthSummary
	Categories []core.CategoryAmount
	Alert      core.AlertReport
}

// FetchAnalytics issues the analytics calls concurrently. The first failure
// cancels the others and is returned.
func FetchAnalytics(ctx context.Context, r ports.AnalyticsReader) (Analytics, error) {
	var out Analytics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monthly, err := r.MonthlySummary(gctx)
		out.Monthly = monthly
		return err
	})
	g.Go(func() error {
		cats, err := r.CategorySummary(gctx)
		out.Categories = cats
		return err
	})
	g.Go(func() error {
		alert, err := r.SpendingAlert(gctx)
		out.Alert = alert
		return err
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, err
	}
	return out, nil
}

// Analytics fetches every analytics view from the backend.
func (c *Client) Analytics(ctx context.Context) (Analytics, error) {
	return FetchAnalytics(ctx, c)
}
