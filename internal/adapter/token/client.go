// Package token talks to the token node that executes USDC movements on
// chain. The ledger treats it as an opaque transfer primitive: one call, one
// movement, errors returned verbatim to the settlement engine.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"usdc-settlement-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.TokenTransferService over the token node's HTTP
// API.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient creates a token node client. timeout bounds each transfer call.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// NewClientWithHTTP creates a client with a caller-supplied HTTP client.
func NewClientWithHTTP(baseURL string, httpClient HTTPClient, log zerolog.Logger) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient, log: log}
}

type transferRequest struct {
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	Mint        string `json:"mint"`
	Amount      uint64 `json:"amount"`
	Authority   string `json:"authority"`
	Reference   string `json:"reference"`
}

type transferResponse struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"tx_hash"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Transfer executes one token movement. The reference is forwarded so the
// node can deduplicate on its side as well.
func (c *Client) Transfer(ctx context.Context, params ports.TransferParams) error {
	body, err := json.Marshal(transferRequest{
		FromAccount: params.FromAccount,
		ToAccount:   params.ToAccount,
		Mint:        params.Mint,
		Amount:      params.Amount,
		Authority:   params.Authority,
		Reference:   params.Reference,
	})
	if err != nil {
		return fmt.Errorf("marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token node unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read transfer response: %w", err)
	}

	var result transferResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("token node returned malformed response (status %d)", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK || !result.Success {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("error_code", result.ErrorCode).
			Str("message", result.Message).
			Msg("token transfer rejected")
		return fmt.Errorf("token transfer rejected: %s (%s)", result.Message, result.ErrorCode)
	}

	c.log.Debug().
		Str("tx_hash", result.TxHash).
		Uint64("amount", params.Amount).
		Msg("token transfer executed")

	return nil
}
