package delivery

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/solewatch/releasecore/internal/schema"
)

// PushHub is an in-process realtime hub: connected subscriber sessions
// receive a push payload immediately; a user with no connected session
// is a permanent failure with no retry (spec.md §4.10: "Push: single-
// shot delivery; no retry on permanent failure").
type PushHub struct {
	mu       sync.RWMutex
	sessions map[string]*websocket.Conn // userID -> connection
}

// NewPushHub builds an empty hub.
func NewPushHub() *PushHub {
	return &PushHub{sessions: make(map[string]*websocket.Conn)}
}

// ServeHTTP upgrades an incoming request to a websocket session and
// registers it under the caller-supplied user_id query parameter until
// the connection closes.
func (h *PushHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.sessions[userID] = conn
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.sessions[userID] == conn {
			delete(h.sessions, userID)
		}
		h.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// connFor returns the live connection for userID, if any.
func (h *PushHub) connFor(userID string) (*websocket.Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.sessions[userID]
	return conn, ok
}

// PushTransport delivers a DeliveryTask's payload over the hub's live
// websocket session for the task's user.
type PushTransport struct {
	Hub *PushHub
}

func (t *PushTransport) Send(ctx context.Context, task schema.DeliveryTask) Result {
	conn, ok := t.Hub.connFor(task.UserID)
	if !ok {
		return Result{Outcome: OutcomePermanent, Reason: "no_connected_session"}
	}
	if err := wsjson.Write(ctx, conn, task.Payload); err != nil {
		return Result{Outcome: OutcomePermanent, Reason: "write_failed"}
	}
	return Result{Outcome: OutcomeSent}
}
