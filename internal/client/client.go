// Package client is the network-facing surface: it submits signed
// transactions, runs signed queries, probes peer health, and consumes the
// event stream. Ledger-level rejections are not transport errors; a
// transaction the peer rejects still submits successfully and reports its
// fate through pipeline events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ternledger/tern-go/internal/builder"
	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/model"
)

// DefaultTimeout bounds each HTTP request when the config does not say
// otherwise.
const DefaultTimeout = 15 * time.Second

// TransportError reports a failure to reach the peer or a non-success HTTP
// response from it. StatusCode is zero for connection-level failures, where
// Err carries the underlying network error.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport failure: %v", e.Err)
	}
	return fmt.Sprintf("peer returned status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Unwrap exposes the underlying network error for errors.Is chains such as
// context.DeadlineExceeded.
func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or client timeout
// rather than, say, a refused connection.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Config carries everything a client needs to talk to one peer.
type Config struct {
	// PeerURL is the peer's HTTP base, e.g. http://127.0.0.1:8080.
	PeerURL string

	// EventsURL is the websocket endpoint for the event stream. Derived
	// from PeerURL when empty.
	EventsURL string

	// Account identifies the submitting account.
	Account model.AccountID

	// KeyPair signs transactions and queries on behalf of Account.
	KeyPair *crypto.KeyPair

	// Timeout bounds each HTTP request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the transport, primarily for tests.
	HTTPClient *http.Client
}

// Client talks to a single peer. Safe for concurrent use; the underlying
// HTTP client is shared across goroutines.
type Client struct {
	peerURL   string
	eventsURL string
	account   model.AccountID
	kp        *crypto.KeyPair
	http      *http.Client
}

// New validates the config and builds a client.
func New(cfg Config) (*Client, error) {
	if cfg.PeerURL == "" {
		return nil, fmt.Errorf("peer URL cannot be empty")
	}
	if cfg.Account.Name == "" || cfg.Account.Domain.Name == "" {
		return nil, fmt.Errorf("invalid account id %q", cfg.Account)
	}
	if cfg.KeyPair == nil {
		return nil, builder.ErrNilKeyPair
	}

	peerURL := strings.TrimRight(cfg.PeerURL, "/")
	eventsURL := cfg.EventsURL
	if eventsURL == "" {
		eventsURL = deriveEventsURL(peerURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		peerURL:   peerURL,
		eventsURL: eventsURL,
		account:   cfg.Account,
		kp:        cfg.KeyPair,
		http:      httpClient,
	}, nil
}

// deriveEventsURL maps the HTTP base to the websocket events endpoint.
func deriveEventsURL(peerURL string) string {
	ws := peerURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/events"
}

// Account returns the account this client submits as.
func (c *Client) Account() model.AccountID {
	return c.account
}

// Submit builds, signs, and submits a transaction, returning its hash. The
// hash identifies the transaction in pipeline events; a nil error means the
// peer accepted the envelope, not that the ledger committed it.
func (c *Client) Submit(ctx context.Context, instructions []model.Instruction, opts ...builder.TransactionOption) (crypto.Hash, error) {
	tx, err := builder.BuildTransaction(c.kp, c.account, instructions, opts...)
	if err != nil {
		return crypto.Hash{}, err
	}
	return c.SubmitSigned(ctx, tx)
}

// SubmitSigned submits a pre-built envelope, for multi-signature flows where
// signing happens elsewhere.
func (c *Client) SubmitSigned(ctx context.Context, tx *builder.SignedTransaction) (crypto.Hash, error) {
	if _, err := c.post(ctx, "/transaction", tx.Encode()); err != nil {
		return crypto.Hash{}, err
	}
	return tx.Hash(), nil
}

// Query builds, signs, and runs a query, returning the decoded and
// shape-checked result.
func (c *Client) Query(ctx context.Context, q model.QueryBox, opts ...builder.QueryOption) (model.Value, error) {
	sq, err := builder.BuildQuery(c.kp, c.account, q, opts...)
	if err != nil {
		return nil, err
	}
	body, err := c.post(ctx, "/query", sq.Encode())
	if err != nil {
		return nil, err
	}
	return model.DecodeQueryResult(q, body)
}

// Health probes the peer's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/health")
	return err
}

// Status reports the peer's runtime counters.
type Status struct {
	UptimeMs             uint64 `json:"uptime_ms"`
	TransactionsAccepted uint64 `json:"transactions_accepted"`
	TransactionsRejected uint64 `json:"transactions_rejected"`
	QueriesServed        uint64 `json:"queries_served"`
	EventSubscribers     int    `json:"event_subscribers"`
}

// Status fetches the peer's runtime counters.
func (c *Client) Status(ctx context.Context) (Status, error) {
	body, err := c.get(ctx, "/status")
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		return Status{}, &TransportError{Err: fmt.Errorf("malformed status response: %w", err)}
	}
	return st, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.peerURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.peerURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("request to %s failed: %w", req.URL.Path, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response from %s: %w", req.URL.Path, err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
