package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/db"
	"github.com/ternledger/tern-go/internal/model"
	"github.com/ternledger/tern-go/internal/peer"
)

const testSeed = "7f2c91d4a6e8350b1c7d9e2f4a6b8c0d1e3f5a7b9c0d2e4f6a8b0c1d3e5f7a9b"

// newTestPeer starts an in-process peer over a fresh SQLite store with the
// test account seeded as genesis.
func newTestPeer(t *testing.T) (*httptest.Server, model.AccountID) {
	t.Helper()

	conn, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.MigrateUp(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		t.Fatalf("load queries: %v", err)
	}
	store, err := peer.NewStore(queries)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	kp, err := crypto.KeyPairFromSeedHex(testSeed)
	if err != nil {
		t.Fatalf("key pair: %v", err)
	}
	defer kp.Close()

	account, err := model.ParseAccountID("alice@wonderland")
	if err != nil {
		t.Fatalf("parse account: %v", err)
	}
	if err := peer.SeedGenesis(store, account, kp.PublicKey()); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	server, err := peer.NewServer(store)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, account
}

func newTestClient(t *testing.T) (*Client, model.AccountID) {
	t.Helper()
	ts, account := newTestPeer(t)

	kp, err := crypto.KeyPairFromSeedHex(testSeed)
	if err != nil {
		t.Fatalf("key pair: %v", err)
	}
	t.Cleanup(kp.Close)

	c, err := New(Config{
		PeerURL: ts.URL,
		Account: account,
		KeyPair: kp,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, account
}

// waitForSubscribers blocks until the peer reports at least n live event
// subscribers, so tests do not race the subscription handshake.
func waitForSubscribers(t *testing.T, c *Client, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := c.Status(context.Background())
		if err == nil && st.EventSubscribers >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("peer never reported %d event subscribers", n)
}

func TestNew_Validation(t *testing.T) {
	kp, err := crypto.KeyPairFromSeedHex(testSeed)
	if err != nil {
		t.Fatalf("key pair: %v", err)
	}
	defer kp.Close()
	account, _ := model.ParseAccountID("alice@wonderland")

	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty peer URL", Config{Account: account, KeyPair: kp}},
		{"empty account", Config{PeerURL: "http://localhost:1", KeyPair: kp}},
		{"nil key pair", Config{PeerURL: "http://localhost:1", Account: account}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDeriveEventsURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"http://peer:8080", "ws://peer:8080/events"},
		{"https://peer", "wss://peer/events"},
	}
	for _, tc := range cases {
		if got := deriveEventsURL(tc.in); got != tc.want {
			t.Errorf("deriveEventsURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClient_HealthAndStatus(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.TransactionsAccepted != 0 {
		t.Errorf("fresh peer accepted = %d, want 0", st.TransactionsAccepted)
	}
}

func TestClient_SubmitAndQuery(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	dom, err := model.NewDomain("looking_glass", nil)
	if err != nil {
		t.Fatalf("new domain: %v", err)
	}
	hash, err := c.Submit(ctx, []model.Instruction{model.NewRegister(dom)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if hash.IsZero() {
		t.Fatal("submit returned zero hash")
	}

	result, err := c.Query(ctx, model.FindAllDomains{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	vec := result.(model.VecValue)
	if len(vec) != 2 {
		t.Fatalf("got %d domains, want 2", len(vec))
	}
	names := map[string]bool{}
	for _, item := range vec {
		d := item.(model.IdentifiableValue).Box.(model.Domain)
		names[d.ID.Name] = true
	}
	if !names["wonderland"] || !names["looking_glass"] {
		t.Errorf("domains = %v, want wonderland and looking_glass", names)
	}
}

func TestClient_QueryMissingEntityIsTransportError(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Query(context.Background(), model.FindDomainByID{ID: model.DomainID{Name: "nowhere"}})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %v, want TransportError", err)
	}
	if te.StatusCode != 404 {
		t.Errorf("status = %d, want 404", te.StatusCode)
	}
}

func TestClient_ConnectionRefusedIsTransportError(t *testing.T) {
	kp, err := crypto.KeyPairFromSeedHex(testSeed)
	if err != nil {
		t.Fatalf("key pair: %v", err)
	}
	defer kp.Close()
	account, _ := model.ParseAccountID("alice@wonderland")

	// Port 1 is never listening; every request fails before any response.
	c, err := New(Config{
		PeerURL: "http://127.0.0.1:1",
		Account: account,
		KeyPair: kp,
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = c.Health(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %T (%v), want TransportError", err, err)
	}
	if te.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for a connection failure", te.StatusCode)
	}
	if te.Timeout() {
		t.Error("refused connection reported as a timeout")
	}
}

func TestClient_TimeoutIsTransportError(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer ts.Close()
	defer close(block)

	kp, err := crypto.KeyPairFromSeedHex(testSeed)
	if err != nil {
		t.Fatalf("key pair: %v", err)
	}
	defer kp.Close()
	account, _ := model.ParseAccountID("alice@wonderland")

	c, err := New(Config{
		PeerURL: ts.URL,
		Account: account,
		KeyPair: kp,
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = c.Health(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %T (%v), want TransportError", err, err)
	}
	if !te.Timeout() {
		t.Errorf("timed-out request not classified as timeout: %v", err)
	}
}

func TestClient_EventOrdering(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []model.PipelineEvent
	)
	got2 := make(chan struct{})
	sub, err := c.Subscribe(ctx, model.PipelineFilter{}, func(ev model.Event, err error) {
		if err != nil {
			return
		}
		pe, ok := ev.(model.PipelineEvent)
		if !ok {
			return
		}
		mu.Lock()
		events = append(events, pe)
		if len(events) == 2 {
			close(got2)
		}
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	waitForSubscribers(t, c, 1)

	dom, _ := model.NewDomain("looking_glass", nil)
	hash, err := c.Submit(ctx, []model.Instruction{model.NewRegister(dom)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-got2:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pipeline events")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := events[0].Status.(model.StatusValidating); !ok {
		t.Errorf("first status = %T, want StatusValidating", events[0].Status)
	}
	if _, ok := events[1].Status.(model.StatusCommitted); !ok {
		t.Errorf("second status = %T, want StatusCommitted", events[1].Status)
	}
	for i, ev := range events {
		if ev.Hash == nil || *ev.Hash != hash {
			t.Errorf("event %d does not carry the transaction hash", i)
		}
	}
}

func TestClient_RejectionReportedViaEvents(t *testing.T) {
	c, account := newTestClient(t)
	ctx := context.Background()

	// Register a non-mintable definition, then try to mint it.
	defID, _ := model.ParseAssetDefinitionID("frozen#wonderland")
	def, err := model.NewAssetDefinition(defID, model.AssetQuantity, false, nil)
	if err != nil {
		t.Fatalf("new definition: %v", err)
	}
	if _, err := c.Submit(ctx, []model.Instruction{model.NewRegister(def)}); err != nil {
		t.Fatalf("register definition: %v", err)
	}

	rejected := make(chan model.StatusRejected, 1)
	sub, err := c.Subscribe(ctx, model.PipelineFilter{}, func(ev model.Event, err error) {
		if err != nil {
			return
		}
		if pe, ok := ev.(model.PipelineEvent); ok {
			if st, ok := pe.Status.(model.StatusRejected); ok {
				select {
				case rejected <- st:
				default:
				}
			}
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	waitForSubscribers(t, c, 1)

	asset := model.NewAssetID(defID, account)
	if _, err := c.Submit(ctx, []model.Instruction{model.NewMintQuantity(1, asset)}); err != nil {
		t.Fatalf("submit mint: %v", err)
	}

	select {
	case st := <-rejected:
		if !strings.Contains(st.Reason, "mintable") {
			t.Errorf("rejection reason %q does not mention mintability", st.Reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rejection event")
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)

	sub, err := c.Subscribe(context.Background(), model.PipelineFilter{}, func(model.Event, error) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not done after close")
	}
}

func TestSubscription_CloseFromHandler(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	subCh := make(chan *Subscription, 1)
	closed := make(chan error, 1)
	sub, err := c.Subscribe(ctx, model.PipelineFilter{}, func(ev model.Event, err error) {
		if err != nil {
			return
		}
		pe, ok := ev.(model.PipelineEvent)
		if !ok {
			return
		}
		if _, ok := pe.Status.(model.StatusCommitted); !ok {
			return
		}
		select {
		case s := <-subCh:
			closed <- s.Close()
		default:
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	subCh <- sub
	waitForSubscribers(t, c, 1)

	dom, _ := model.NewDomain("looking_glass", nil)
	if _, err := c.Submit(ctx, []model.Instruction{model.NewRegister(dom)}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("close from handler: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close called from the handler never returned")
	}
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not done after handler-initiated close")
	}
}

func TestSubscription_NoDeliveryAfterClose(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		count int
	)
	sub, err := c.Subscribe(ctx, model.PipelineFilter{}, func(ev model.Event, err error) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitForSubscribers(t, c, 1)

	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	mu.Lock()
	closedAt := count
	mu.Unlock()

	// Generate traffic after close; nothing may reach the handler.
	dom, _ := model.NewDomain("looking_glass", nil)
	if _, err := c.Submit(ctx, []model.Instruction{model.NewRegister(dom)}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != closedAt {
		t.Errorf("handler invoked %d times after Close", count-closedAt)
	}
}

func TestSubscription_ContextCancel(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := c.Subscribe(ctx, model.DataFilter{}, func(model.Event, error) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not terminated by context cancellation")
	}
}
