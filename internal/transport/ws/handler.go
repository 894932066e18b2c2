package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"chatrelay-backend/internal/auth"
)

// ServeWS authenticates and upgrades realtime connections. A missing or
// invalid token means the connection is refused before the upgrade — no
// error event, since no addressable connection exists yet.
func ServeWS(gateway *Gateway, tokens *auth.Tokens, handshakeTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), handshakeTimeout)
		defer cancel()

		tokenStr := extractToken(r)
		if tokenStr == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		identity, err := tokens.Verify(tokenStr)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r.WithContext(ctx), &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			gateway.log.Debugw("websocket accept failed", "err", err)
			return
		}

		client := NewClient(gateway, conn, identity)
		gateway.register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}

// extractToken takes the bearer token from the query string or, failing
// that, the Authorization header.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
