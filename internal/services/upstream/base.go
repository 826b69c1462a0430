package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	xhttp "SignalPilot/pkg/http"
)

// HTTPServiceBase is the shared client for JSON services behind a base URL.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPServiceBase builds a client with timeout. apiKey, when set, is sent
// as a bearer token.
func NewHTTPServiceBase(baseURL string, timeout time.Duration, apiKey string) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	opts := []xhttp.ClientOption{xhttp.WithTimeout(timeout)}
	if apiKey != "" {
		opts = append(opts, xhttp.WithHeader("Authorization", "Bearer "+apiKey))
	}
	return &HTTPServiceBase{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(opts...),
	}
}

// PostJSON posts payload to path under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	return b.PostJSONWithRetry(ctx, path, payload, dest, 1)
}

// PostJSONWithRetry posts JSON, retrying network errors, 429 and 5xx.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("upstream http client not initialized")
	}
	err := b.client.SendAndParseWithRetry(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Body:   payload,
	}, dest, attempts)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}
