package buildium

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Matheus920/ledger-loader/internal/logger"
)

const (
	defaultBaseURL = "https://api.buildium.com/v1"

	clientIDEnvVar     = "BUILDIUM_CLIENT_ID"
	clientSecretEnvVar = "BUILDIUM_CLIENT_SECRET"

	maxRetries     = 5
	initialBackoff = 2 * time.Second
)

// Client calls the Buildium general ledger API. Rate-limit responses (429)
// are retried with exponential backoff; other non-2xx statuses fail the call.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	backoff      time.Duration
}

// NewClient builds a client with credentials from the environment.
func NewClient() *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBaseURL,
		clientID:     os.Getenv(clientIDEnvVar),
		clientSecret: os.Getenv(clientSecretEnvVar),
		backoff:      initialBackoff,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fake server.
func NewClientWithBaseURL(baseURL string, httpClient *http.Client) *Client {
	c := NewClient()
	c.baseURL = baseURL
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

// GeneralLedgerAccounts fetches the full account tree as raw JSON.
func (c *Client) GeneralLedgerAccounts(ctx context.Context) ([]byte, error) {
	return c.get(ctx, "/generalledger/accounts", nil)
}

// GeneralLedgerTransactions fetches transactions in the date range as raw
// JSON.
func (c *Client) GeneralLedgerTransactions(ctx context.Context, start, end civil.Date) ([]byte, error) {
	params := url.Values{}
	params.Set("startdate", start.String())
	params.Set("enddate", end.String())
	return c.get(ctx, "/generalledger/transactions", params)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	log := logger.FromContext(ctx)

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	backoff := c.backoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("Client.get: building request: %w", err)
		}
		req.Header.Set("x-buildium-client-id", c.clientID)
		req.Header.Set("x-buildium-client-secret", c.clientSecret)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("Client.get: %s: %w", path, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			log.Warn().
				Str("path", path).
				Dur("backoff", backoff).
				Int("attempt", attempt+1).
				Msg("rate limit exceeded, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("Client.get: %s: unexpected status %d", path, resp.StatusCode)
		}
		if readErr != nil {
			return nil, fmt.Errorf("Client.get: reading body: %w", readErr)
		}
		return body, nil
	}

	return nil, fmt.Errorf("Client.get: %s: max retries exceeded after rate limiting", path)
}
