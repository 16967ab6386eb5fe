package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/chatterbox/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time {
		return time.UnixMilli(ms)
	}
}

func TestRegistry_CreateSetsActiveAndPersists(t *testing.T) {
	s := store.NewMemoryStore()
	r := NewRegistry(context.Background(), s)

	id := r.Create()
	activeID, ok := r.ActiveID()
	require.True(t, ok)
	require.Equal(t, id, activeID)

	active, ok := r.Active()
	require.True(t, ok)
	require.Empty(t, active.Messages)
	require.Equal(t, 1, s.PutCount(store.KeyConversations))

	loaded, ok := store.Load[[]Conversation](context.Background(), s, store.KeyConversations)
	require.True(t, ok)
	require.Len(t, loaded, 1)
	require.Equal(t, id, loaded[0].ID)
}

func TestRegistry_CreateNeverCollides(t *testing.T) {
	r := NewRegistry(context.Background(), store.NewMemoryStore(), WithClock(fixedClock(1000)))

	a := r.Create()
	b := r.Create()
	c := r.Create()
	require.Equal(t, int64(1000), a)
	require.Equal(t, int64(1001), b)
	require.Equal(t, int64(1002), c)

	require.NoError(t, r.Delete(c))
	d := r.Create()
	require.Greater(t, d, c)
}

func TestRegistry_CreateAfterLoadDoesNotCollide(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, store.Save(ctx, s, store.KeyConversations, []Conversation{{ID: 5000}}))

	r := NewRegistry(ctx, s, WithClock(fixedClock(10)))
	id := r.Create()
	require.Equal(t, int64(5001), id)
}

func TestRegistry_SelectUnknown(t *testing.T) {
	r := NewRegistry(context.Background(), store.NewMemoryStore())
	id := r.Create()

	err := r.Select(id + 42)
	require.ErrorIs(t, err, ErrConversationNotFound)
	require.True(t, r.IsActive(id))
}

func TestRegistry_DeleteActiveClearsPointer(t *testing.T) {
	r := NewRegistry(context.Background(), store.NewMemoryStore(), WithClock(fixedClock(1)))
	a := r.Create()
	b := r.Create()

	require.NoError(t, r.Delete(b))
	_, ok := r.ActiveID()
	require.False(t, ok)
	_, ok = r.Active()
	require.False(t, ok)

	require.NoError(t, r.Select(a))
	require.True(t, r.IsActive(a))
}

func TestRegistry_DeleteInactiveKeepsPointer(t *testing.T) {
	r := NewRegistry(context.Background(), store.NewMemoryStore(), WithClock(fixedClock(1)))
	a := r.Create()
	b := r.Create()

	require.NoError(t, r.Delete(a))
	require.True(t, r.IsActive(b))
	require.ErrorIs(t, r.Delete(a), ErrConversationNotFound)
}

func TestRegistry_AppendToDeletedIsNoop(t *testing.T) {
	s := store.NewMemoryStore()
	r := NewRegistry(context.Background(), s)
	id := r.Create()
	require.NoError(t, r.Delete(id))
	writes := s.PutCount(store.KeyConversations)

	require.False(t, r.Append(id, NewAIMessage("late")))
	require.False(t, r.Exists(id))
	require.Equal(t, 0, r.Len())
	require.Equal(t, writes, s.PutCount(store.KeyConversations))
}

func TestRegistry_AppendOnlyPrefix(t *testing.T) {
	r := NewRegistry(context.Background(), store.NewMemoryStore())
	id := r.Create()

	require.True(t, r.Append(id, NewUserMessage("hi")))
	before, _ := r.Get(id)
	require.True(t, r.Append(id, NewAIMessage("Hello!")))
	after, _ := r.Get(id)

	require.Equal(t, before.Messages, after.Messages[:len(before.Messages)])
	require.Equal(t, []Message{
		{Sender: SenderUser, Text: "hi"},
		{Sender: SenderAI, Text: "Hello!"},
	}, after.Messages)
}

func TestRegistry_ReturnedConversationsAreCopies(t *testing.T) {
	r := NewRegistry(context.Background(), store.NewMemoryStore())
	id := r.Create()
	r.Append(id, NewUserMessage("hi"))

	c, _ := r.Get(id)
	c.Messages[0].Text = "mutated"

	c2, _ := r.Get(id)
	require.Equal(t, "hi", c2.Messages[0].Text)
}

func TestRegistry_ListKeepsCreationOrder(t *testing.T) {
	r := NewRegistry(context.Background(), store.NewMemoryStore(), WithClock(fixedClock(1)))
	a := r.Create()
	b := r.Create()
	c := r.Create()
	require.NoError(t, r.Delete(b))

	ids := []int64{}
	for _, conv := range r.List() {
		ids = append(ids, conv.ID)
	}
	require.Equal(t, []int64{a, c}, ids)
}

func TestRegistry_ReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := NewRegistry(ctx, s, WithClock(fixedClock(1)))
	a := r.Create()
	r.Append(a, NewUserMessage("hi"))
	r.Append(a, NewAIMessage("Hello!"))
	r.Create()

	reloaded := NewRegistry(ctx, s)
	require.Equal(t, r.List(), reloaded.List())
	_, ok := reloaded.ActiveID()
	require.False(t, ok)
}

func TestRegistry_MalformedSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, store.KeyConversations, []byte(`[{"id": "nope"`)))

	r := NewRegistry(ctx, s)
	require.Equal(t, 0, r.Len())

	r.Create()
	require.Equal(t, 1, r.Len())
}

func TestRegistry_InvalidPersistedConversationsAreSkipped(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, store.KeyConversations, []byte(`[
		{"id": 1, "messages": [{"sender": "Bot", "text": "x"}]},
		{"id": 2},
		{"id": 0, "messages": []},
		{"id": 3, "messages": [{"sender": "You", "text": "hi"}]}
	]`)))

	r := NewRegistry(ctx, s)
	convs := r.List()
	require.Len(t, convs, 2)
	assert.Equal(t, int64(2), convs[0].ID)
	assert.NotNil(t, convs[0].Messages)
	assert.Empty(t, convs[0].Messages)
	assert.Equal(t, int64(3), convs[1].ID)
	for _, c := range convs {
		for _, m := range c.Messages {
			assert.True(t, m.Sender.Valid())
		}
	}

	require.NoError(t, r.Flush(ctx))
	raw, ok, err := s.Get(ctx, store.KeyConversations)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(raw), "null")
	assert.NotContains(t, string(raw), "Bot")
}

func TestRegistry_EnsureActive(t *testing.T) {
	r := NewRegistry(context.Background(), store.NewMemoryStore())
	id := r.EnsureActive()
	require.Equal(t, id, r.EnsureActive())
	require.Equal(t, 1, r.Len())
}

func TestRegistry_ListenersSeeCommittedState(t *testing.T) {
	r := NewRegistry(context.Background(), store.NewMemoryStore())

	var mu sync.Mutex
	var changes []Change
	unsubscribe := r.Subscribe(func(c Change) {
		// listeners run outside the lock and may read the registry
		assert.Equal(t, c.Kind != ChangeDeleted, r.Exists(c.ConversationID))
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	id := r.Create()
	r.Append(id, NewUserMessage("hi"))
	require.NoError(t, r.Select(id))
	require.NoError(t, r.Delete(id))
	unsubscribe()
	r.Create()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Change{
		{Kind: ChangeCreated, ConversationID: id},
		{Kind: ChangeAppended, ConversationID: id},
		{Kind: ChangeSelected, ConversationID: id},
		{Kind: ChangeDeleted, ConversationID: id},
	}, changes)
}

func TestRegistry_PersistErrorKeepsMemoryState(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Close())

	var persistErrs []error
	r := NewRegistry(context.Background(), s, WithPersistErrorHandler(func(err error) {
		persistErrs = append(persistErrs, err)
	}))
	id := r.Create()
	require.True(t, r.Exists(id))
	require.Len(t, persistErrs, 1)
	require.ErrorIs(t, persistErrs[0], store.ErrStoreClosed)
}

func TestRegistry_Flush(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := NewRegistry(ctx, s)
	r.Create()
	before := s.PutCount(store.KeyConversations)

	require.NoError(t, r.Flush(ctx))
	require.Equal(t, before+1, s.PutCount(store.KeyConversations))

	require.NoError(t, s.Close())
	require.ErrorIs(t, r.Flush(ctx), store.ErrStoreClosed)
}
