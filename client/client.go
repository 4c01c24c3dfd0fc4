// Package client is the Go client for the tipgate relay gateway. It wraps
// both surfaces of the service: the JSON-RPC submission endpoint and the
// REST ledger routes.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
)

// Transaction is a relayed transaction record as reported by the server.
type Transaction struct {
	ID          string     `json:"id"`
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	Amount      uint64     `json:"amount"`
	Memo        string     `json:"memo,omitempty"`
	Status      string     `json:"status"` // pending, confirmed, failed
	Signature   string     `json:"signature"`
	CreatedAt   time.Time  `json:"created_at"`
	BlockTime   *time.Time `json:"block_time,omitempty"`
}

// Client is the HTTP client for the tipgate service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new tipgate service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Submit sends a base64-encoded signed transaction through the gateway and
// returns the transaction signature. Policy and rate-limit rejections come
// back as *jrpc2.Error values with the server's application error codes.
func (c *Client) Submit(ctx context.Context, txBase64 string) (string, error) {
	ch := jhttp.NewChannel(c.baseURL, &jhttp.ChannelOptions{
		Client: c.httpClient,
	})
	rpcClient := jrpc2.NewClient(ch, nil)
	defer rpcClient.Close()

	var signature string
	params := []interface{}{txBase64, map[string]string{"encoding": "base64"}}
	if err := rpcClient.CallResult(ctx, "sendTransaction", params, &signature); err != nil {
		return "", fmt.Errorf("sendTransaction failed: %w", err)
	}

	c.logger.Debug("transaction submitted", "signature", signature)
	return signature, nil
}

// ListTransactions retrieves relayed transactions, newest first. If address
// is non-empty, only records involving that address are returned.
func (c *Client) ListTransactions(ctx context.Context, address string) ([]*Transaction, error) {
	u := c.baseURL + "/api/v1/transactions"
	if address != "" {
		u += "?address=" + url.QueryEscape(address)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Transactions []*Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Transactions, nil
}

// GetTransaction retrieves a single relayed transaction by record id.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	u := fmt.Sprintf("%s/api/v1/transactions/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var txn Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txn); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &txn, nil
}

// ClearTransactions removes every record from the server-side ledger.
func (c *Client) ClearTransactions(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/api/v1/transactions", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseErrorResponse(resp)
	}

	c.logger.Debug("transaction ledger cleared")
	return nil
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
