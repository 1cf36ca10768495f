package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type staticTokens string

func (s staticTokens) AccessToken(ctx context.Context) (string, error) {
	return string(s), nil
}

func testClient(srv *httptest.Server) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Client{
		shop:       strings.TrimPrefix(srv.URL, "https://"),
		apiVersion: "2025-01",
		tokens:     staticTokens("shpat_test"),
		http:       srv.Client(),
		logger:     logger,
	}
}

func TestExecuteDecodesData(t *testing.T) {
	var gotToken string
	var gotPayload map[string]any
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data": {"shop": {"id": "gid://shopify/Shop/1"}}}`)
	}))
	defer srv.Close()

	c := testClient(srv)
	var out struct {
		Shop struct {
			ID string `json:"id"`
		} `json:"shop"`
	}
	err := c.Execute(context.Background(), `{ shop { id } }`, map[string]any{"x": 1}, &out)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Shop.ID != "gid://shopify/Shop/1" {
		t.Errorf("shop id = %q", out.Shop.ID)
	}
	if gotToken != "shpat_test" {
		t.Errorf("access token header = %q, want the token source value", gotToken)
	}
	if gotPayload["query"] != `{ shop { id } }` {
		t.Errorf("query payload = %v", gotPayload["query"])
	}
}

func TestExecuteGraphQLErrorsLeaveOutputUntouched(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"errors": [{"message": "Field 'bogus' doesn't exist"}]}`)
	}))
	defer srv.Close()

	c := testClient(srv)
	var out struct {
		Shop *struct{} `json:"shop"`
	}
	err := c.Execute(context.Background(), `{ bogus }`, nil, &out)
	if err != nil {
		t.Fatalf("field-level errors must not be returned as transport errors, got %v", err)
	}
	if out.Shop != nil {
		t.Errorf("output must stay untouched on graphql errors")
	}
}

func TestExecuteNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "throttled")
	}))
	defer srv.Close()

	c := testClient(srv)
	err := c.Execute(context.Background(), `{ shop { id } }`, nil, nil)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("got %v, want *TransportError", err)
	}
	if terr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", terr.StatusCode)
	}
	if !strings.Contains(terr.Error(), "throttled") {
		t.Errorf("error message should carry the body: %v", terr)
	}
}

func TestExecuteNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := srv.Client()
	srv.Close()

	c := &Client{
		shop:       "closed.invalid",
		apiVersion: "2025-01",
		tokens:     staticTokens("shpat_test"),
		http:       client,
	}
	err := c.Execute(context.Background(), `{ shop { id } }`, nil, nil)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("got %v, want *TransportError", err)
	}
	if terr.Unwrap() == nil {
		t.Errorf("network failures should wrap the underlying error")
	}
}

func TestNewClientRequiresShop(t *testing.T) {
	t.Setenv("SHOP", "")
	if _, err := NewClient(staticTokens("x"), nil); err == nil {
		t.Fatal("expected error when SHOP is unset")
	}

	t.Setenv("SHOP", "example.myshopify.com")
	t.Setenv("SHOPIFY_API_VERSION", "")
	c, err := NewClient(staticTokens("x"), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Shop() != "example.myshopify.com" {
		t.Errorf("shop = %q", c.Shop())
	}
	if got := c.endpoint(); got != "https://example.myshopify.com/admin/api/2025-01/graphql.json" {
		t.Errorf("endpoint = %q", got)
	}
}
