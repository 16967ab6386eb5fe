package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/chatterbox/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeSelected ChangeKind = "selected"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeAppended ChangeKind = "appended"
)

// Change is delivered to registry listeners after a mutation has been applied
// and persisted.
type Change struct {
	Kind           ChangeKind
	ConversationID int64
}

type Listener func(Change)

// Registry is the in-memory set of conversations, ordered by creation, with
// at most one active conversation.
//
// Every mutation writes the full snapshot to the store before returning
// (write-through). Writes are serialized by the registry lock so snapshots
// reach the store in mutation order.
type Registry struct {
	mu            sync.RWMutex
	store         store.Store
	order         []int64
	conversations map[int64]*Conversation
	active        int64
	hasActive     bool
	lastID        int64

	listenersMu    sync.RWMutex
	listeners      map[int]Listener
	nextListenerID int

	now            func() time.Time
	onPersistError func(error)
}

type RegistryOption func(*Registry)

// WithClock overrides the time source used to derive conversation ids.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithPersistErrorHandler is called when a snapshot could not be written.
// The in-memory mutation is kept either way.
func WithPersistErrorHandler(f func(error)) RegistryOption {
	return func(r *Registry) {
		r.onPersistError = f
	}
}

// NewRegistry creates a registry backed by s and loads the persisted
// snapshot. Missing or malformed data yields an empty registry.
func NewRegistry(ctx context.Context, s store.Store, options ...RegistryOption) *Registry {
	r := &Registry{
		store:         s,
		conversations: map[int64]*Conversation{},
		listeners:     map[int]Listener{},
		now:           time.Now,
	}
	for _, o := range options {
		o(r)
	}

	if s == nil {
		return r
	}

	loaded, ok := store.Load[[]Conversation](ctx, s, store.KeyConversations)
	if !ok {
		return r
	}
	for _, c := range loaded {
		if err := c.Validate(); err != nil {
			log.Warn().Err(err).Msg("skipping malformed persisted conversation")
			continue
		}
		if _, exists := r.conversations[c.ID]; exists {
			log.Warn().Int64("conversation_id", c.ID).Msg("skipping duplicate persisted conversation")
			continue
		}
		c_ := c.Clone()
		r.conversations[c.ID] = &c_
		r.order = append(r.order, c.ID)
		if c.ID > r.lastID {
			r.lastID = c.ID
		}
	}
	log.Debug().Int("conversations", len(r.order)).Msg("loaded conversation history")

	return r
}

// Subscribe registers a listener and returns a function removing it.
func (r *Registry) Subscribe(l Listener) func() {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	id := r.nextListenerID
	r.nextListenerID++
	r.listeners[id] = l
	return func() {
		r.listenersMu.Lock()
		defer r.listenersMu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Registry) notify(c Change) {
	r.listenersMu.RLock()
	ls := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		ls = append(ls, l)
	}
	r.listenersMu.RUnlock()

	for _, l := range ls {
		l(c)
	}
}

// Create adds an empty conversation, makes it active and returns its id.
func (r *Registry) Create() int64 {
	r.mu.Lock()
	id := r.now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	r.conversations[id] = &Conversation{ID: id, Messages: []Message{}}
	r.order = append(r.order, id)
	r.active = id
	r.hasActive = true
	r.persistLocked()
	r.mu.Unlock()

	log.Debug().Int64("conversation_id", id).Msg("created conversation")
	r.notify(Change{Kind: ChangeCreated, ConversationID: id})
	return id
}

// EnsureActive returns the active conversation id, creating a new
// conversation if none is active.
func (r *Registry) EnsureActive() int64 {
	if id, ok := r.ActiveID(); ok {
		return id
	}
	return r.Create()
}

func (r *Registry) Select(id int64) error {
	r.mu.Lock()
	if _, ok := r.conversations[id]; !ok {
		r.mu.Unlock()
		return errors.Wrapf(ErrConversationNotFound, "select %d", id)
	}
	r.active = id
	r.hasActive = true
	r.persistLocked()
	r.mu.Unlock()

	r.notify(Change{Kind: ChangeSelected, ConversationID: id})
	return nil
}

// Delete removes a conversation. Deleting the active conversation clears
// the active pointer.
func (r *Registry) Delete(id int64) error {
	r.mu.Lock()
	if _, ok := r.conversations[id]; !ok {
		r.mu.Unlock()
		return errors.Wrapf(ErrConversationNotFound, "delete %d", id)
	}
	delete(r.conversations, id)
	for i, id_ := range r.order {
		if id_ == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	if r.hasActive && r.active == id {
		r.hasActive = false
		r.active = 0
	}
	r.persistLocked()
	r.mu.Unlock()

	log.Debug().Int64("conversation_id", id).Msg("deleted conversation")
	r.notify(Change{Kind: ChangeDeleted, ConversationID: id})
	return nil
}

// Append adds msg to the end of conversation id. It returns false without
// doing anything if the conversation does not exist (anymore).
func (r *Registry) Append(id int64, msg Message) bool {
	r.mu.Lock()
	c, ok := r.conversations[id]
	if !ok {
		r.mu.Unlock()
		log.Debug().Int64("conversation_id", id).Str("sender", string(msg.Sender)).
			Msg("dropping message for missing conversation")
		return false
	}
	c.Messages = append(c.Messages, msg)
	r.persistLocked()
	r.mu.Unlock()

	r.notify(Change{Kind: ChangeAppended, ConversationID: id})
	return true
}

func (r *Registry) Active() (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hasActive {
		return Conversation{}, false
	}
	c, ok := r.conversations[r.active]
	if !ok {
		return Conversation{}, false
	}
	return c.Clone(), true
}

func (r *Registry) ActiveID() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, r.hasActive
}

func (r *Registry) Get(id int64) (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	return c.Clone(), true
}

func (r *Registry) Exists(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conversations[id]
	return ok
}

func (r *Registry) IsActive(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasActive && r.active == id
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// List returns copies of all conversations in creation order.
func (r *Registry) List() []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []Conversation {
	ret := make([]Conversation, 0, len(r.order))
	for _, id := range r.order {
		ret = append(ret, r.conversations[id].Clone())
	}
	return ret
}

// Flush writes the current snapshot again and returns any error.
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		return nil
	}
	return store.Save(ctx, r.store, store.KeyConversations, r.snapshotLocked())
}

func (r *Registry) persistLocked() {
	if r.store == nil {
		return
	}
	err := store.Save(context.Background(), r.store, store.KeyConversations, r.snapshotLocked())
	if err != nil {
		log.Error().Err(err).Msg("could not persist conversations")
		if r.onPersistError != nil {
			r.onPersistError(err)
		}
	}
}
