package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/directory"
)

// WebhookSink posts messages to an external notification service.
type WebhookSink struct {
	client *http.Client
	url    string
	token  string
}

func NewWebhookSink(url, token string) *WebhookSink {
	return &WebhookSink{
		client: &http.Client{Timeout: 30 * time.Second},
		url:    url,
		token:  token,
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, msg *Message, _ *directory.User) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.token != "" {
		req.Header.Set("Authorization", "Token "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, s.url)
	}

	return nil
}

// Broadcaster pushes an event to every live connection in a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, room string, event any) int
}

// RealtimeSink forwards messages to the recipient's websocket room. A room
// with no connections is not a failure; realtime delivery is best effort on
// top of the durable queue.
type RealtimeSink struct {
	hub Broadcaster
}

func NewRealtimeSink(hub Broadcaster) *RealtimeSink {
	return &RealtimeSink{hub: hub}
}

func (s *RealtimeSink) Name() string { return "realtime" }

func (s *RealtimeSink) Deliver(ctx context.Context, msg *Message, recipient *directory.User) error {
	s.hub.Broadcast(ctx, RoomFor(recipient), msg)

	// Admin dashboards watch all sales activity, not just their own rooms.
	if msg.Kind == KindStatusChange {
		s.hub.Broadcast(ctx, RoomAdmins, msg)
	}

	return nil
}

// RoomAdmins is the shared room admin dashboards subscribe to.
const RoomAdmins = "admins"

// RoomName names the personal websocket room for a role and user id.
func RoomName(role directory.Role, id uuid.UUID) string {
	return fmt.Sprintf("%s-%s", role, id)
}

// RoomFor names the personal websocket room a user listens on.
func RoomFor(user *directory.User) string {
	return RoomName(user.Role, user.ID)
}
