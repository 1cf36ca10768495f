package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// AuthorizeURL builds the merchant-facing OAuth install URL.
func AuthorizeURL() string {
	shop := strings.TrimSpace(os.Getenv("SHOP"))
	clientID := strings.TrimSpace(os.Getenv("CLIENT_ID"))
	scopes := strings.TrimSpace(os.Getenv("SCOPES"))
	redirectURI := strings.TrimRight(strings.TrimSpace(os.Getenv("APP_URL")), "/") + "/auth/callback"

	return fmt.Sprintf("https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s",
		shop, clientID, scopes, url.QueryEscape(redirectURI))
}

// ExchangeCode trades an OAuth authorization code for a permanent Admin API
// access token.
func ExchangeCode(ctx context.Context, code string) (string, error) {
	shop := strings.TrimSpace(os.Getenv("SHOP"))
	if shop == "" {
		return "", errors.New("SHOP is not set")
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     os.Getenv("CLIENT_ID"),
		"client_secret": os.Getenv("CLIENT_SECRET"),
		"code":          code,
	})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", errors.New("no access token received")
	}
	return parsed.AccessToken, nil
}
