// Package rest is the request/response side of the CHECK API: one POST
// endpoint per data series, converted into translated tables.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tradingiq/koscom-client/translate"
	"github.com/tradingiq/koscom-client/types"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://checkapi.koscom.co.kr"
	DefaultTimeout = 10 * time.Second
)

// APIError is returned when the vendor answers with success=false.
type APIError struct {
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("check api %s failed: %s", e.Endpoint, e.Message)
}

// HTTPError is returned for non-200 responses.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

type envelope struct {
	Success bool            `json:"success"`
	Results json.RawMessage `json:"results"`
	Message string          `json:"message"`
}

type Client struct {
	baseURL    string
	creds      types.Credentials
	table      *translate.Table
	httpClient *http.Client
	logger     *zap.Logger
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(creds types.Credentials, table *translate.Table, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = translate.New(nil)
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		creds:      creds,
		table:      table,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch posts params (plus credentials) to endpoint and converts the results.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values, index IndexKind) (*Table, error) {
	rows, err := c.post(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	return buildTable(rows, c.table, index)
}

func (c *Client) post(ctx context.Context, endpoint string, params url.Values) ([]map[string]interface{}, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("cust_id", c.creds.UserID)
	form.Set("auth_key", c.creds.UserKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if !env.Success {
		c.logger.Debug("Fetch data failed", zap.String("endpoint", endpoint), zap.String("message", env.Message))
		return nil, &APIError{Endpoint: endpoint, Message: env.Message}
	}

	rows, err := decodeResults(env.Results)
	if err != nil {
		return nil, fmt.Errorf("decode results of %s: %w", endpoint, err)
	}

	c.logger.Debug("Fetched data",
		zap.String("endpoint", endpoint),
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)),
	)
	return rows, nil
}

// decodeResults accepts either a list of objects or a single object.
func decodeResults(raw json.RawMessage) ([]map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '{' {
		var row map[string]interface{}
		if err := dec.Decode(&row); err != nil {
			return nil, err
		}
		return []map[string]interface{}{row}, nil
	}

	var rows []map[string]interface{}
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
