package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	// In-memory sqlite is per-connection; pin the pool to one.
	s.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { s.DB.Close() })
	return s
}

func TestStore_ChatRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateChat(ctx, Chat{ID: "chat-1", UserID: "u1", ScopeID: "scope-1", Provider: "openai"}))

	chat, err := s.FindChatByID(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", chat.UserID)
	assert.Equal(t, "scope-1", chat.ScopeID)

	_, err = s.FindChatByID(ctx, "missing")
	assert.Error(t, err)
}

func TestStore_AddMessageDefaultsToPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddMessage(ctx, Message{ID: "m1", ChatID: "chat-1", Role: "ai"}))

	msg, err := s.FindMessageByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, msg.Status)
}

func TestStore_ClaimMessageIsOneShot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddMessage(ctx, Message{ID: "m1", ChatID: "chat-1", Role: "ai"}))

	claimed, err := s.ClaimMessage(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, claimed)

	again, err := s.ClaimMessage(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, again)

	msg, err := s.FindMessageByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, msg.Status)
}

func TestStore_ClaimMessageConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddMessage(ctx, Message{ID: "m1", ChatID: "chat-1", Role: "ai"}))

	const attempts = 16
	results := make([]bool, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ClaimMessage(ctx, "m1")
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, ok := range results {
		require.NoError(t, errs[i])
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one claimer wins")
}

func TestStore_ClaimUnknownMessage(t *testing.T) {
	s := newTestStore(t)

	claimed, err := s.ClaimMessage(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestStore_UpdateAssistantMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddMessage(ctx, Message{ID: "m1", ChatID: "chat-1", Role: "ai"}))

	meta := map[string]any{"revisions": 2, "caveat": "unverified"}
	require.NoError(t, s.UpdateAssistantMessage(ctx, "m1", "the answer", meta, StatusComplete))

	msg, err := s.FindMessageByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, msg.Status)
	assert.Equal(t, "the answer", msg.Content)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.Metadata), &decoded))
	assert.Equal(t, float64(2), decoded["revisions"])
}

func TestStore_GetChatMessagesFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddMessage(ctx, Message{
			ID:      fmt.Sprintf("m%d", i),
			ChatID:  "chat-1",
			Role:    "human",
			Content: fmt.Sprintf("question %d", i),
			Status:  StatusComplete,
		}))
	}
	require.NoError(t, s.AddMessage(ctx, Message{ID: "pending", ChatID: "chat-1", Role: "ai"}))
	require.NoError(t, s.AddMessage(ctx, Message{ID: "other", ChatID: "chat-2", Role: "human", Status: StatusComplete}))

	msgs, err := s.GetChatMessages(ctx, "chat-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for _, m := range msgs {
		assert.Equal(t, StatusComplete, m.Status)
		assert.Equal(t, "chat-1", m.ChatID)
	}
}

func TestStore_GetChatMessagesStableWithinSameSecond(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// All inserts land within the same timestamp second; insertion order
	// must still hold in the returned history.
	for i := 0; i < 6; i++ {
		require.NoError(t, s.AddMessage(ctx, Message{
			ID:      fmt.Sprintf("m%d", i),
			ChatID:  "chat-1",
			Role:    "human",
			Content: fmt.Sprintf("turn %d", i),
			Status:  StatusComplete,
		}))
	}

	msgs, err := s.GetChatMessages(ctx, "chat-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.ID)
	}

	// With a limit, the most recent turns survive, still in order.
	tail, err := s.GetChatMessages(ctx, "chat-1", 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "m4", tail[0].ID)
	assert.Equal(t, "m5", tail[1].ID)
}
