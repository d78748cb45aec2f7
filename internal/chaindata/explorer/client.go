// Package explorer lists account transaction history from an Etherscan-compatible
// block explorer API (module=account&action=txlist), which JSON-RPC cannot serve.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/eligibility/ports"
	"attestor/pkg/domain"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures an explorer client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	PageSize   int
	MaxPages   int
	HTTPClient HTTPDoer
}

// Client queries the explorer. One client serves every chain the explorer
// indexes; the chain is passed as the chainid parameter.
type Client struct {
	baseURL  string
	apiKey   string
	pageSize int
	maxPages int
	client   HTTPDoer
}

const (
	defaultPageSize = 1000
	// Etherscan-compatible APIs reject page*offset beyond 10000.
	defaultMaxPages = 10
	maxBodyBytes    = 16 << 20
)

// ErrHistoryTruncated reports an address whose history exceeds the page cap.
// It wraps ErrMalformedResponse so the wallet counts as failed rather than
// being judged on a partial history.
var ErrHistoryTruncated = fmt.Errorf("%w: transaction history exceeds page limit", ports.ErrMalformedResponse)

// New creates an explorer client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
		client:   client,
	}
}

// envelope is the common explorer response wrapper. Result is either an
// array of transactions or, on failure, a human-readable string.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type rawTx struct {
	BlockNumber string `json:"blockNumber"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Input       string `json:"input"`
	MethodID    string `json:"methodId"`
	IsError     string `json:"isError"`
}

// Transactions returns the full transaction history of addr, oldest first.
// Pages are fetched until a short page arrives; hitting MaxPages full pages
// returns ErrHistoryTruncated.
func (c *Client) Transactions(ctx context.Context, addr domain.Address, chain domain.ChainID) ([]ports.Transaction, error) {
	q := url.Values{}
	q.Set("chainid", chain.String())
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", addr.String())
	q.Set("startblock", "0")
	q.Set("offset", strconv.Itoa(c.pageSize))
	q.Set("sort", "asc")
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	txs := []ports.Transaction{}
	for page := 1; page <= c.maxPages; page++ {
		q.Set("page", strconv.Itoa(page))
		batch, err := c.fetchPage(ctx, q)
		if err != nil {
			return nil, err
		}
		txs = append(txs, batch...)
		if len(batch) < c.pageSize {
			return txs, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on chain %s", ErrHistoryTruncated, addr, chain)
}

func (c *Client) fetchPage(ctx context.Context, q url.Values) ([]ports.Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build explorer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("explorer txlist: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: explorer txlist: %v", ports.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read explorer response: %v", ports.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: explorer returned 429", ports.ErrRateLimited)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: explorer returned %d", ports.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: explorer returned %d", ports.ErrMalformedResponse, resp.StatusCode)
	}

	return parseTxList(body)
}

func parseTxList(body []byte) ([]ports.Transaction, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ports.ErrMalformedResponse, err)
	}

	var raw []rawTx
	if err := json.Unmarshal(env.Result, &raw); err != nil {
		// Failures carry a string result; "No transactions found" is status 0 with [].
		var msg string
		if json.Unmarshal(env.Result, &msg) == nil {
			if strings.Contains(strings.ToLower(msg), "rate limit") {
				return nil, fmt.Errorf("%w: %s", ports.ErrRateLimited, msg)
			}
			return nil, fmt.Errorf("%w: explorer error: %s", ports.ErrProviderUnavailable, msg)
		}
		return nil, fmt.Errorf("%w: decode result: %v", ports.ErrMalformedResponse, err)
	}
	if env.Status != "1" && len(raw) > 0 {
		return nil, fmt.Errorf("%w: status %q with results", ports.ErrMalformedResponse, env.Status)
	}

	txs := make([]ports.Transaction, 0, len(raw))
	for i, r := range raw {
		tx, err := r.toTransaction()
		if err != nil {
			return nil, fmt.Errorf("%w: tx %d: %v", ports.ErrMalformedResponse, i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (r rawTx) toTransaction() (ports.Transaction, error) {
	if !common.IsHexAddress(r.From) {
		return ports.Transaction{}, errors.New("invalid from address")
	}
	tx := ports.Transaction{
		Hash:   r.Hash,
		From:   domain.Address(common.HexToAddress(r.From)),
		Failed: r.IsError == "1",
	}
	if r.To != "" {
		if !common.IsHexAddress(r.To) {
			return ports.Transaction{}, errors.New("invalid to address")
		}
		tx.To = domain.Address(common.HexToAddress(r.To))
	}
	if r.BlockNumber != "" {
		n, err := strconv.ParseUint(r.BlockNumber, 10, 64)
		if err != nil {
			return ports.Transaction{}, fmt.Errorf("invalid block number %q", r.BlockNumber)
		}
		tx.BlockNumber = n
	}
	tx.MethodID = methodID(r.MethodID, r.Input)
	return tx, nil
}

// methodID prefers the explorer's decoded selector and falls back to the
// first four bytes of calldata.
func methodID(declared, input string) string {
	if len(declared) == 10 && strings.HasPrefix(declared, "0x") {
		return strings.ToLower(declared)
	}
	if len(input) >= 10 && strings.HasPrefix(input, "0x") {
		return strings.ToLower(input[:10])
	}
	return ""
}
