package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"

	"github.com/ternledger/tern-go/internal/builder"
	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/model"
	"github.com/ternledger/tern-go/internal/scale"
)

// maxBodyBytes bounds transaction and query request bodies.
const maxBodyBytes = 1 << 20

// Server is the peer's client-facing surface: transaction submission, signed
// queries, health and status probes, and the websocket event stream.
type Server struct {
	store *Store
	hub   *hub
	start time.Time

	accepted atomic.Uint64
	rejected atomic.Uint64
	queries  atomic.Uint64
}

// NewServer wires a server around a state store.
func NewServer(store *Store) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	return &Server{
		store: store,
		hub:   newHub(),
		start: time.Now(),
	}, nil
}

// Handler returns the peer's HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/transaction", s.handleTransaction)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/events", websocket.Handler(s.handleEvents))
	return mux
}

// SeedGenesis registers the configured genesis domain and account so a fresh
// peer has somewhere to submit from. Idempotent across restarts.
func SeedGenesis(store *Store, account model.AccountID, key crypto.PublicKey) error {
	dom, err := model.NewDomain(account.Domain.Name, nil)
	if err != nil {
		return fmt.Errorf("genesis domain: %w", err)
	}
	if err := store.RegisterDomain(dom); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("genesis domain: %w", err)
	}

	acc, err := model.NewAccount(account, []crypto.PublicKey{key}, nil)
	if err != nil {
		return fmt.Errorf("genesis account: %w", err)
	}
	if err := store.RegisterAccount(acc); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("genesis account: %w", err)
	}
	return nil
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	tx, err := builder.DecodeSignedTransaction(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed transaction: %v", err), http.StatusBadRequest)
		return
	}
	if !tx.VerifySignatures() {
		http.Error(w, ErrBadSignature.Error(), http.StatusBadRequest)
		return
	}

	hash := tx.Hash()
	s.publishStatus(hash, model.StatusValidating{})

	if err := s.applyTransaction(tx); err != nil {
		s.rejected.Add(1)
		log.Printf("transaction %s rejected: %v", hash.Hex(), err)
		s.publishStatus(hash, model.StatusRejected{Reason: err.Error()})
	} else {
		s.accepted.Add(1)
		log.Printf("transaction %s committed (%d instructions)", hash.Hex(), len(tx.Payload.Instructions))
		s.publishStatus(hash, model.StatusCommitted{})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"hash": hash.Hex()})
}

// applyTransaction checks the submitting account's authority and executes
// each instruction in order. The first failure rejects the transaction;
// data events are published only after all instructions succeed.
func (s *Server) applyTransaction(tx *builder.SignedTransaction) error {
	acc, err := s.store.Account(tx.Payload.Account)
	if err != nil {
		return err
	}
	for _, sig := range tx.Signatures {
		if !isSignatory(acc, sig.PublicKey) {
			return fmt.Errorf("%w: signer %s is not a signatory of %s",
				ErrBadSignature, sig.PublicKey.Hex(), acc.ID)
		}
	}

	var dataEvents []model.DataEvent
	for i, isi := range tx.Payload.Instructions {
		evs, err := s.execute(isi)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		dataEvents = append(dataEvents, evs...)
	}
	for _, ev := range dataEvents {
		s.hub.publish(ev)
	}
	return nil
}

func isSignatory(acc model.Account, key crypto.PublicKey) bool {
	for _, pk := range acc.Signatories {
		if pk.Equal(key) {
			return true
		}
	}
	return false
}

func (s *Server) publishStatus(hash crypto.Hash, status model.PipelineStatus) {
	kind := model.EntityTransaction
	h := hash
	s.hub.publish(model.PipelineEvent{
		EntityKind: &kind,
		Hash:       &h,
		Status:     status,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	q, err := builder.DecodeSignedQuery(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed query: %v", err), http.StatusBadRequest)
		return
	}
	if !q.VerifySignature() {
		http.Error(w, ErrBadSignature.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.store.Account(q.Payload.Account); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	s.queries.Add(1)
	result, err := s.runQuery(q.Payload.Query)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrUnsupported):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("query failed: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	e := scale.NewEncoder()
	model.EncodeValue(e, result)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(e.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "healthy")
}

// statusResponse is the JSON body of GET /status.
type statusResponse struct {
	UptimeMs             uint64 `json:"uptime_ms"`
	TransactionsAccepted uint64 `json:"transactions_accepted"`
	TransactionsRejected uint64 `json:"transactions_rejected"`
	QueriesServed        uint64 `json:"queries_served"`
	EventSubscribers     int    `json:"event_subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		UptimeMs:             uint64(time.Since(s.start).Milliseconds()),
		TransactionsAccepted: s.accepted.Load(),
		TransactionsRejected: s.rejected.Load(),
		QueriesServed:        s.queries.Load(),
		EventSubscribers:     s.hub.subscriberCount(),
	})
}

// handleEvents serves one event stream subscription. The first client frame
// carries the encoded filter; every subsequent server frame is one encoded
// event. The subscription lives until either side closes the socket.
func (s *Server) handleEvents(ws *websocket.Conn) {
	defer ws.Close()

	var raw []byte
	if err := websocket.Message.Receive(ws, &raw); err != nil {
		log.Printf("event subscription failed to read filter: %v", err)
		return
	}
	d := scale.NewDecoder(raw)
	filter, err := model.DecodeEventFilter(d)
	if err == nil {
		err = d.Finish()
	}
	if err != nil {
		log.Printf("event subscription rejected: bad filter: %v", err)
		return
	}

	sub := s.hub.subscribe(filter)
	defer s.hub.unsubscribe(sub.id)

	// Drain the read side so a client close unblocks the send loop.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var discard []byte
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-sub.ch:
			e := scale.NewEncoder()
			model.EncodeEvent(e, ev)
			if err := websocket.Message.Send(ws, e.Bytes()); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
