// Package apiclient talks to the rfacto REST API on behalf of the command
// line tools.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	authdomain "github.com/smallbiznis/rfacto/internal/auth/domain"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
)

var ErrMissingBaseURL = errors.New("apiclient: base url is required")

// Error is a non-2xx answer decoded from the API error envelope.
type Error struct {
	Status  int
	Type    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Type)
}

// IsStatus reports whether err is an API error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Whoami returns the identity the API resolved from the token, or nil when
// the API treats the caller as anonymous.
func (c *Client) Whoami(ctx context.Context) (*authdomain.Identity, error) {
	var resp struct {
		User *authdomain.Identity `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) ListClaims(ctx context.Context) ([]claimdomain.Claim, error) {
	var out []claimdomain.Claim
	if err := c.doData(ctx, http.MethodGet, "/api/claims", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]projectdomain.Response, error) {
	var out []projectdomain.Response
	if err := c.doData(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListTaxes(ctx context.Context) ([]taxdomain.Response, error) {
	var out []taxdomain.Response
	if err := c.doData(ctx, http.MethodGet, "/api/taxes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateClaim sends a partial update. Unset fields of edit are omitted from
// the body and left untouched by the server.
func (c *Client) UpdateClaim(ctx context.Context, id int64, edit claimdomain.Edit) (*claimdomain.Claim, error) {
	var out claimdomain.Claim
	path := "/api/claims/" + strconv.FormatInt(id, 10)
	if err := c.doData(ctx, http.MethodPut, path, edit, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doData(ctx context.Context, method, path string, body any, out any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, method, path, body, &envelope); err != nil {
		return err
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode, Type: "request_failed"}
	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return apiErr
	}
	if t := strings.TrimSpace(envelope.Error.Type); t != "" {
		apiErr.Type = t
	}
	apiErr.Message = strings.TrimSpace(envelope.Error.Message)
	return apiErr
}
