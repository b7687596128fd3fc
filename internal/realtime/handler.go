package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/onlyif-au/onlyif/internal/auth"
	"github.com/onlyif-au/onlyif/internal/directory"
	"github.com/onlyif-au/onlyif/internal/notify"
)

const writeTimeout = 5 * time.Second

// Handler upgrades authenticated requests to websocket subscriptions. The
// socket is push only; the server decides the rooms from the caller's
// identity and streams events until the peer goes away.
type Handler struct {
	hub     *Hub
	origins []string
}

func NewHandler(hub *Hub, origins []string) *Handler {
	return &Handler{hub: hub, origins: origins}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}
	defer sock.CloseNow()

	rooms := roomsFor(identity)

	// CloseRead drains the read side and cancels the context when the
	// connection closes.
	ctx := sock.CloseRead(r.Context())

	client := h.hub.Join(func(ctx context.Context, event any) error {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()

		return wsjson.Write(ctx, sock, event)
	}, rooms...)
	defer h.hub.Leave(client)

	if err := wsjson.Write(ctx, sock, subscribedEvent{Kind: "subscribed", Rooms: rooms}); err != nil {
		return
	}

	slog.Info("realtime subscriber connected", "user_id", identity.UserID, "rooms", rooms)

	<-ctx.Done()

	sock.Close(websocket.StatusNormalClosure, "")
}

type subscribedEvent struct {
	Kind  string   `json:"kind"`
	Rooms []string `json:"rooms"`
}

// roomsFor lists the rooms an identity subscribes to. Everyone gets their
// personal room; admins also watch the shared feed.
func roomsFor(id auth.Identity) []string {
	rooms := []string{notify.RoomName(id.Role, id.UserID)}

	if id.Role == directory.RoleAdmin {
		rooms = append(rooms, notify.RoomAdmins)
	}

	return rooms
}
