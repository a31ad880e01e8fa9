package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kalambet/docmind/internal/broadcast"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxFrame   = 4 << 10
)

// clientFrame is a message from a real-time client.
type clientFrame struct {
	Event      string `json:"event"`
	DocumentID string `json:"documentId"`
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := u.Scheme + "://" + u.Host
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSuffix(a, "/"), host) {
				return true
			}
		}
		return false
	}
}

// handleRealtime upgrades to a websocket, relays documentUpdated events for
// the rooms the client joins, and drops the subscription on disconnect.
func handleRealtime(deps Deps) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(deps.AllowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		user := currentUser(r)
		sub := deps.Hub.Subscribe()
		slog.Debug("realtime client connected", "subscriber", sub.ID, "user_id", user.ID)

		go writeLoop(conn, sub)
		readLoop(conn, deps.Hub, sub)

		deps.Hub.Unsubscribe(sub)
		slog.Debug("realtime client disconnected", "subscriber", sub.ID)
	}
}

// readLoop handles join and leave frames until the connection fails.
func readLoop(conn *websocket.Conn, hub *broadcast.Hub, sub *broadcast.Subscription) {
	conn.SetReadLimit(maxFrame)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f clientFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("realtime read failed", "subscriber", sub.ID, "error", err)
			}
			return
		}
		if f.DocumentID == "" {
			continue
		}
		switch f.Event {
		case "join", "joinDocument":
			hub.Join(sub, f.DocumentID)
		case "leave", "leaveDocument":
			hub.Leave(sub, f.DocumentID)
		}
	}
}

// writeLoop is the only writer on conn. It exits when the subscription is
// closed or a write fails, closing the connection either way.
func writeLoop(conn *websocket.Conn, sub *broadcast.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
