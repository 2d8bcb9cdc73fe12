// Package httpmirror talks to a mirror exposed as a JSON REST API.
package httpmirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/lifeplan/internal/mirror"
)

// Client is a thin HTTP client for the mirror REST API. It handles
// Bearer token authentication and JSON marshaling, and classifies
// failures so mirror.Retrying can retry them.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new mirror client. The baseURL is the API root
// (e.g., https://mirror.example.com); token is sent as a Bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type rowsResponse struct {
	Rows []mirror.Row `json:"rows"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (c *Client) UpsertCollection(ctx context.Context, key string, schema mirror.Schema) (mirror.Collection, error) {
	var out mirror.Collection
	err := c.do(ctx, http.MethodPut, "/v0/collections/"+url.PathEscape(key),
		map[string]any{"schema": schema}, &out)
	return out, err
}

func (c *Client) LoadAllRows(ctx context.Context, collectionID string) ([]mirror.Row, error) {
	var out rowsResponse
	if err := c.do(ctx, http.MethodGet, c.rowsPath(collectionID), nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (c *Client) UpsertRow(ctx context.Context, collectionID string, row mirror.Row) (mirror.Row, error) {
	var out mirror.Row
	if row.ExternalID == "" {
		err := c.do(ctx, http.MethodPost, c.rowsPath(collectionID), row, &out)
		return out, err
	}
	err := c.do(ctx, http.MethodPut, c.rowsPath(collectionID)+"/"+url.PathEscape(row.ExternalID), row, &out)
	return out, err
}

func (c *Client) DeleteRow(ctx context.Context, collectionID, externalID string) error {
	return c.do(ctx, http.MethodDelete, c.rowsPath(collectionID)+"/"+url.PathEscape(externalID), nil, nil)
}

func (c *Client) rowsPath(collectionID string) string {
	return "/v0/collections/" + url.PathEscape(collectionID) + "/rows"
}

// do builds the request, handles auth and JSON (de)serialization, and
// maps status codes onto the mirror error taxonomy.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	op := method + " " + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &mirror.TransientError{
			Op:           op,
			Err:          err,
			Acknowledged: method == http.MethodPost && !isDialError(err),
		}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &mirror.TransientError{Op: op, Err: readErr, Acknowledged: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &mirror.TransientError{
			Op:         op,
			Err:        fmt.Errorf("status %d: %s", resp.StatusCode, message(respBody)),
			RetryAfter: retryAfter(resp),
			// A rate limited request was never processed.
			Acknowledged: resp.StatusCode != http.StatusTooManyRequests,
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &mirror.AuthError{
			Message: fmt.Sprintf("%s rejected the token (%d): %s", c.baseURL, resp.StatusCode, message(respBody)),
		}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, mirror.ErrRowNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("unexpected status %d on %s: %s", resp.StatusCode, op, message(respBody))
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s: %w", op, err)
	}

	return nil
}

func message(body []byte) string {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}

// retryAfter reads the Retry-After header in seconds, zero when absent.
func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// isDialError reports whether the request failed before a connection
// existed, in which case nothing reached the server.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
