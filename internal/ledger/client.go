// Package ledger is the transaction ledger: the cross-device, cross-session
// memory of submitted purchases. The client half talks to a remote ledger
// service; the server half is a reference implementation of that service.
package ledger

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
)

// Record is one durably recorded purchase submission.
type Record struct {
	TransactionHash string    `json:"transactionHash"`
	Sender          string    `json:"sender"`
	Recipient       string    `json:"recipient"`
	For             string    `json:"for"`
	Data            string    `json:"data,omitempty"`
	Chain           int       `json:"chain"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}

type transactionsResponse struct {
	Transactions []Record `json:"transactions"`
}

// Client is a thin HTTP client for the ledger service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Transactions fetches the recorded submissions made for user, filtered to
// the given recipient lock addresses.
func (c *Client) Transactions(ctx context.Context, user string, recipients []string) ([]Record, error) {
	query := url.Values{}
	query.Set("for", user)
	for _, recipient := range recipients {
		query.Add("recipient[]", recipient)
	}

	endpoint := c.baseURL + "/transactions?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ledger returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed transactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode ledger response: %w", err)
	}
	return parsed.Transactions, nil
}

// RecordTransaction durably records a newly submitted purchase. Callers
// treat this as best effort: a failure is logged by the caller and never
// blocks the purchase flow.
func (c *Client) RecordTransaction(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode ledger record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("ledger returned %d", resp.StatusCode)
	}
	return nil
}
