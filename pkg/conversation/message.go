package conversation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Sender identifies who wrote a message. The string values are the labels
// used both in persisted snapshots and in the transcript sent upstream.
type Sender string

const (
	SenderUser Sender = "You"
	SenderAI   Sender = "AI"
)

func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

// Message is immutable once appended to a conversation.
type Message struct {
	Sender Sender `json:"sender" yaml:"sender"`
	Text   string `json:"text" yaml:"text"`
}

func NewUserMessage(text string) Message {
	return Message{Sender: SenderUser, Text: text}
}

func NewAIMessage(text string) Message {
	return Message{Sender: SenderAI, Text: text}
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Sender, m.Text)
}

// Conversation is identified by its creation timestamp in milliseconds.
type Conversation struct {
	ID       int64     `json:"id" yaml:"id"`
	Messages []Message `json:"messages" yaml:"messages"`
}

// Clone deep-copies c. Messages is never nil in the copy.
func (c Conversation) Clone() Conversation {
	ret := Conversation{ID: c.ID, Messages: make([]Message, len(c.Messages))}
	copy(ret.Messages, c.Messages)
	return ret
}

// Validate checks a conversation read back from storage.
func (c Conversation) Validate() error {
	if c.ID <= 0 {
		return errors.Errorf("invalid conversation id %d", c.ID)
	}
	for i, m := range c.Messages {
		if !m.Sender.Valid() {
			return errors.Errorf("conversation %d: message %d has unknown sender %q", c.ID, i, m.Sender)
		}
	}
	return nil
}

// Title is the label shown in conversation lists.
func (c Conversation) Title() string {
	return fmt.Sprintf("Conversation %d", c.ID)
}

// Preview returns the first user message, truncated to maxLen runes.
func (c Conversation) Preview(maxLen int) string {
	for _, m := range c.Messages {
		if m.Sender != SenderUser || m.Text == "" {
			continue
		}
		text := strings.ReplaceAll(m.Text, "\n", " ")
		runes := []rune(text)
		if maxLen > 3 && len(runes) > maxLen {
			return string(runes[:maxLen-3]) + "..."
		}
		return text
	}
	return ""
}

// BuildTranscript renders the prompt sent to the remote endpoint: every prior
// message as a "<sender>: <text>" line, then the new user line and an empty
// AI turn marker. The whole history is resent on every turn.
func BuildTranscript(history []Message, input string) string {
	lines := make([]string, 0, len(history)+2)
	for _, m := range history {
		lines = append(lines, m.String())
	}
	lines = append(lines, NewUserMessage(input).String())
	lines = append(lines, string(SenderAI)+":")
	return strings.Join(lines, "\n")
}
