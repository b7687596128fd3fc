package realtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlyif-au/onlyif/internal/realtime"
)

type recordingClient struct {
	mu     sync.Mutex
	events []any
	fail   error
}

func (r *recordingClient) write(_ context.Context, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail != nil {
		return r.fail
	}

	r.events = append(r.events, event)

	return nil
}

func (r *recordingClient) received() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]any(nil), r.events...)
}

func TestHub_BroadcastReachesRoomMembers(t *testing.T) {
	hub := realtime.NewHub()

	seller := &recordingClient{}
	admin := &recordingClient{}
	other := &recordingClient{}

	hub.Join(seller.write, "seller-1")
	hub.Join(admin.write, "admin-9", "admins")
	hub.Join(other.write, "buyer-2")

	delivered := hub.Broadcast(context.Background(), "seller-1", "contract exchanged")

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []any{"contract exchanged"}, seller.received())
	assert.Empty(t, other.received())

	delivered = hub.Broadcast(context.Background(), "admins", "status changed")

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []any{"status changed"}, admin.received())
}

func TestHub_BroadcastToEmptyRoom(t *testing.T) {
	hub := realtime.NewHub()

	delivered := hub.Broadcast(context.Background(), "seller-404", "anyone home")

	assert.Zero(t, delivered)
}

func TestHub_DropsFailingSubscriber(t *testing.T) {
	hub := realtime.NewHub()

	healthy := &recordingClient{}
	broken := &recordingClient{fail: errors.New("write deadline exceeded")}

	hub.Join(healthy.write, "admins")
	hub.Join(broken.write, "admins")
	require.Equal(t, 2, hub.Count("admins"))

	delivered := hub.Broadcast(context.Background(), "admins", "first")

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, hub.Count("admins"))

	delivered = hub.Broadcast(context.Background(), "admins", "second")

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []any{"first", "second"}, healthy.received())
}

func TestHub_LeaveRemovesFromAllRooms(t *testing.T) {
	hub := realtime.NewHub()

	c := &recordingClient{}
	client := hub.Join(c.write, "admin-9", "admins")

	require.Equal(t, 1, hub.Count("admin-9"))
	require.Equal(t, 1, hub.Count("admins"))

	hub.Leave(client)

	assert.Zero(t, hub.Count("admin-9"))
	assert.Zero(t, hub.Count("admins"))
	assert.Empty(t, hub.Rooms())
}

func TestHub_ConcurrentJoinAndBroadcast(t *testing.T) {
	hub := realtime.NewHub()

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			c := &recordingClient{}
			client := hub.Join(c.write, "admins")
			hub.Broadcast(context.Background(), "admins", "tick")
			hub.Leave(client)
		}()
	}

	wg.Wait()

	assert.Zero(t, hub.Count("admins"))
}
