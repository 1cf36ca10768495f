package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TokenSource loads the Admin API access token from persistent storage.
// The client calls it on every request and never caches the result, so a
// revoked or rotated token takes effect immediately.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TransportError reports a failure to reach the Admin API or a non-2xx
// HTTP response. GraphQL field-level errors are NOT transport errors;
// those are logged and surface to callers as missing response fields.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shopify transport error: %v", e.Err)
	}
	return fmt.Sprintf("shopify api error %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	shop       string
	apiVersion string
	tokens     TokenSource
	http       *http.Client
	logger     *logrus.Logger
}

func NewClient(tokens TokenSource, logger *logrus.Logger) (*Client, error) {
	shop := strings.TrimSpace(os.Getenv("SHOP"))
	if shop == "" {
		return nil, errors.New("SHOP is not set")
	}
	apiVersion := strings.TrimSpace(os.Getenv("SHOPIFY_API_VERSION"))
	if apiVersion == "" {
		apiVersion = "2025-01"
	}
	if tokens == nil {
		return nil, errors.New("token source is nil")
	}

	return &Client{
		shop:       shop,
		apiVersion: apiVersion,
		tokens:     tokens,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

func (c *Client) Shop() string { return c.shop }

func (c *Client) endpoint() string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.shop, c.apiVersion)
}

// Execute posts one GraphQL document to the Admin API and decodes the
// "data" object into out. The access token is re-read from storage on
// every call. Field-level GraphQL errors are logged and out is left
// untouched; callers must check for the fields they expect.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("load access token: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Body: "invalid json response", Err: err}
	}

	if len(envelope.Errors) > 0 {
		if c.logger != nil {
			c.logger.WithFields(logrus.Fields{
				"module": "shopify",
				"errors": envelope.Errors,
			}).Error("graphql errors")
		}
		return nil
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}
