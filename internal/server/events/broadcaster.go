// Package events streams realtime notifications to connected clients over
// websockets. Each connection is bound to the account of its bearer token
// and only receives that account's events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/dmitrijs2005/cbtjournal/internal/logging"
	"github.com/dmitrijs2005/cbtjournal/internal/rpc"
)

const (
	writeTimeout = 5 * time.Second
	clientBuffer = 16
)

var errNoBearer = errors.New("missing bearer token")

// Authenticator resolves an access token to an account id.
type Authenticator func(token string) (string, error)

type client struct {
	msgs chan []byte
}

type Broadcaster struct {
	auth   Authenticator
	logger logging.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func NewBroadcaster(auth Authenticator, l logging.Logger) *Broadcaster {
	return &Broadcaster{
		auth:    auth,
		logger:  l.With("module", "events"),
		clients: make(map[string]map[*client]struct{}),
		done:    make(chan struct{}),
	}
}

// NotifyAnalysis announces a fresh analysis of entryID to accountID's
// connections.
func (b *Broadcaster) NotifyAnalysis(accountID, entryID string) {
	b.Publish(accountID, rpc.Event{Type: rpc.EventTypeAIAnalysis, EntryID: entryID})
}

// Publish queues ev on every connection of accountID and returns how many
// took it. A connection whose buffer is full misses the event.
func (b *Broadcaster) Publish(accountID string, ev rpc.Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error(context.Background(), "failed to marshal event", "error", err)
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for c := range b.clients[accountID] {
		select {
		case c.msgs <- data:
			n++
		default:
			b.logger.Warn(context.Background(), "client buffer full, dropping event", "account", accountID)
		}
	}
	return n
}

// ClientCount returns the number of open connections.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.clients {
		n += len(set)
	}
	return n
}

// Close ends every open connection with StatusGoingAway.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Broadcaster) add(accountID string) *client {
	c := &client{msgs: make(chan []byte, clientBuffer)}
	b.mu.Lock()
	if b.clients[accountID] == nil {
		b.clients[accountID] = make(map[*client]struct{})
	}
	b.clients[accountID][c] = struct{}{}
	b.mu.Unlock()
	return c
}

func (b *Broadcaster) remove(accountID string, c *client) {
	b.mu.Lock()
	delete(b.clients[accountID], c)
	if len(b.clients[accountID]) == 0 {
		delete(b.clients, accountID)
	}
	b.mu.Unlock()
}

// Handler serves /events and /health.
func (b *Broadcaster) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", b.handleEvents)
	mux.HandleFunc("/health", b.handleHealth)
	return mux
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return "", errNoBearer
	}
	return token, nil
}

func (b *Broadcaster) handleEvents(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	accountID, err := b.auth(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		b.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	c := b.add(accountID)
	defer b.remove(accountID, c)
	b.logger.Info(r.Context(), "client connected", "account", accountID)

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			b.logger.Info(ctx, "client disconnected", "account", accountID)
			return
		case <-b.done:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case msg := <-c.msgs:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				b.logger.Warn(ctx, "failed to send to client", "account", accountID, "error", err)
				return
			}
		}
	}
}

func (b *Broadcaster) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": b.ClientCount(),
	})
}
