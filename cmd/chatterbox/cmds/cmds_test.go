package cmds

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/go-go-golems/chatterbox/pkg/completion"
	"github.com/go-go-golems/chatterbox/pkg/config"
	"github.com/go-go-golems/chatterbox/pkg/conversation"
	"github.com/go-go-golems/chatterbox/pkg/reveal"
	"github.com/go-go-golems/chatterbox/pkg/session"
	"github.com/go-go-golems/chatterbox/pkg/store"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, client completion.Client) *session.Session {
	t.Helper()
	registry := conversation.NewRegistry(context.Background(), store.NewMemoryStore())
	s := session.NewSession(registry, client, session.WithRevealer(reveal.New(reveal.WithDelay(0))))
	t.Cleanup(func() {
		s.Wait()
		s.Close()
	})
	return s
}

func TestResolveConversation(t *testing.T) {
	registry := conversation.NewRegistry(context.Background(), store.NewMemoryStore())
	a := registry.Create()
	b := registry.Create()

	id, err := resolveConversation(registry, "1")
	require.NoError(t, err)
	assert.Equal(t, a, id)

	id, err = resolveConversation(registry, "2")
	require.NoError(t, err)
	assert.Equal(t, b, id)

	id, err = resolveConversation(registry, strconv.FormatInt(b, 10))
	require.NoError(t, err)
	assert.Equal(t, b, id)

	_, err = resolveConversation(registry, "3")
	require.ErrorIs(t, err, conversation.ErrConversationNotFound)

	_, err = resolveConversation(registry, "abc")
	require.Error(t, err)
}

func rowValue(t *testing.T, row types.Row, field string) interface{} {
	t.Helper()
	v, ok := row.Get(field)
	require.True(t, ok, "missing field %s", field)
	return v
}

func TestConversationRows(t *testing.T) {
	list := []conversation.Conversation{
		{ID: 1700000000000, Messages: []conversation.Message{
			conversation.NewUserMessage("what is the weather like today"),
			conversation.NewAIMessage("sunny"),
		}},
		{ID: 1700000000001, Messages: []conversation.Message{}},
	}

	rows := conversationRows(list, 10)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rowValue(t, rows[0], "index"))
	assert.Equal(t, int64(1700000000000), rowValue(t, rows[0], "id"))
	assert.Equal(t, 2, rowValue(t, rows[0], "messages"))
	assert.Equal(t, "what is...", rowValue(t, rows[0], "preview"))
	assert.Equal(t, formatTimestamp(1700000000000), rowValue(t, rows[0], "created"))
	assert.Equal(t, 2, rowValue(t, rows[1], "index"))
	assert.Equal(t, 0, rowValue(t, rows[1], "messages"))

	assert.Empty(t, conversationRows(nil, 10))
}

func TestExportRows(t *testing.T) {
	list := []conversation.Conversation{
		{ID: 1, Messages: []conversation.Message{
			conversation.NewUserMessage("hi"),
			conversation.NewAIMessage("Hello!"),
		}},
		{ID: 2, Messages: []conversation.Message{}},
	}

	rows := exportRows(list, false)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rowValue(t, rows[0], "id"))
	assert.Equal(t, []map[string]interface{}{
		{"sender": "You", "text": "hi"},
		{"sender": "AI", "text": "Hello!"},
	}, rowValue(t, rows[0], "messages"))
	assert.Equal(t, []map[string]interface{}{}, rowValue(t, rows[1], "messages"))

	rows = exportRows(list, true)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rowValue(t, rows[1], "conversation_id"))
	assert.Equal(t, 1, rowValue(t, rows[1], "index"))
	assert.Equal(t, "AI", rowValue(t, rows[1], "sender"))
	assert.Equal(t, "Hello!", rowValue(t, rows[1], "text"))

	assert.Empty(t, exportRows(nil, false))
}

func TestConfigRows(t *testing.T) {
	cfg := config.Config{URL: "https://example.com/v1", Key: "sk-secret-1234", Model: "gpt-3.5-turbo"}

	rows := configRows(cfg, false)
	require.Len(t, rows, 3)
	assert.Equal(t, "url", rowValue(t, rows[0], "setting"))
	assert.Equal(t, "https://example.com/v1", rowValue(t, rows[0], "value"))
	assert.Equal(t, "key", rowValue(t, rows[1], "setting"))
	assert.Equal(t, cfg.MaskedKey(), rowValue(t, rows[1], "value"))
	assert.NotContains(t, rowValue(t, rows[1], "value"), "secret")
	assert.Equal(t, "gpt-3.5-turbo", rowValue(t, rows[2], "value"))

	rows = configRows(cfg, true)
	assert.Equal(t, "sk-secret-1234", rowValue(t, rows[1], "value"))
}

func TestGlazeCommandsBuild(t *testing.T) {
	conversationsCmd, err := NewConversationsCommand()
	require.NoError(t, err)
	for _, name := range []string{"list", "export"} {
		sub, _, err := conversationsCmd.Find([]string{name})
		require.NoError(t, err)
		assert.NotNil(t, sub.Flags().Lookup("output"), name)
	}

	configCmd, err := NewConfigCommand()
	require.NoError(t, err)
	show, _, err := configCmd.Find([]string{"show"})
	require.NoError(t, err)
	assert.NotNil(t, show.Flags().Lookup("reveal-key"))
	assert.NotNil(t, show.Flags().Lookup("output"))
}

func TestREPL_Session(t *testing.T) {
	client := completion.NewScriptedClient([]string{"Hel", "lo!"}, nil)
	s := newTestSession(t, client)

	out := &bytes.Buffer{}
	r := &repl{
		in:      strings.NewReader("hi\n/new\nagain\n/list\n/switch 1\n/history\n/bogus\n/quit\nignored\n"),
		out:     out,
		session: s,
	}
	require.NoError(t, r.loop(context.Background()))

	list := s.Registry().List()
	require.Len(t, list, 2)
	assert.Equal(t, []conversation.Message{
		conversation.NewUserMessage("hi"),
		conversation.NewAIMessage("Hello!"),
	}, list[0].Messages)
	assert.Len(t, list[1].Messages, 2)

	activeID, ok := s.Registry().ActiveID()
	require.True(t, ok)
	assert.Equal(t, list[0].ID, activeID)

	text := out.String()
	assert.Contains(t, text, "started conversation")
	assert.Contains(t, text, "   1. Conversation")
	assert.Contains(t, text, "*  2. Conversation")
	assert.Contains(t, text, "You: hi\nAI: Hello!\n")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Len(t, client.Transcripts(), 2)
}

func TestREPL_DeleteAndEmptyInput(t *testing.T) {
	s := newTestSession(t, completion.NewScriptedClient([]string{"x"}, nil))

	out := &bytes.Buffer{}
	r := &repl{
		in:      strings.NewReader("   \n/new\n/delete 1\n/history\n/switch\n"),
		out:     out,
		session: s,
	}
	require.NoError(t, r.loop(context.Background()))

	assert.Equal(t, 0, s.Registry().Len())
	assert.Contains(t, out.String(), "no active conversation")
	assert.Contains(t, out.String(), "usage: /switch <n|id>")
}
