package events

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// NopChatEventHandler ignores every event. Embed it to handle only a subset.
type NopChatEventHandler struct{}

func (NopChatEventHandler) HandleStart(context.Context, *EventStart) error                 { return nil }
func (NopChatEventHandler) HandleReveal(context.Context, *EventReveal) error               { return nil }
func (NopChatEventHandler) HandleFinal(context.Context, *EventFinal) error                 { return nil }
func (NopChatEventHandler) HandleError(context.Context, *EventError) error                 { return nil }
func (NopChatEventHandler) HandleInterrupt(context.Context, *EventInterrupt) error         { return nil }
func (NopChatEventHandler) HandleResponding(context.Context, *EventResponding) error       { return nil }
func (NopChatEventHandler) HandleConversations(context.Context, *EventConversations) error { return nil }
func (NopChatEventHandler) HandleInputCleared(context.Context, *EventInputCleared) error   { return nil }

var _ ChatEventHandler = NopChatEventHandler{}

type consolePrinter struct {
	NopChatEventHandler
	w    io.Writer
	name string

	mu sync.Mutex
	// lineOpen is set while reveal output has been written without a
	// trailing newline.
	lineOpen bool
}

type PrinterOption func(*consolePrinter)

// WithName prefixes the revealed reply with "name: ".
func WithName(name string) PrinterOption {
	return func(p *consolePrinter) {
		p.name = name
	}
}

// ConsolePrinterFunc returns a router handler writing paced reply text to w
// as it is revealed, terminated by a newline once the reply is final.
func ConsolePrinterFunc(w io.Writer, options ...PrinterOption) func(msg *message.Message) error {
	p := &consolePrinter{w: w}
	for _, o := range options {
		o(p)
	}
	dispatch := NewChatDispatchHandler(p)
	return func(msg *message.Message) error {
		defer msg.Ack()
		return dispatch(msg)
	}
}

func (p *consolePrinter) HandleReveal(_ context.Context, e *EventReveal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lineOpen && p.name != "" {
		if _, err := fmt.Fprintf(p.w, "%s: ", p.name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(p.w, e.Unit); err != nil {
		return err
	}
	p.lineOpen = !strings.HasSuffix(e.Unit, "\n")
	return nil
}

func (p *consolePrinter) closeLine() error {
	if !p.lineOpen {
		return nil
	}
	p.lineOpen = false
	_, err := fmt.Fprintln(p.w)
	return err
}

func (p *consolePrinter) HandleFinal(_ context.Context, _ *EventFinal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLine()
}

func (p *consolePrinter) HandleError(_ context.Context, e *EventError) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.closeLine(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.w, "[error] %s\n", e.ErrorString)
	return err
}

func (p *consolePrinter) HandleInterrupt(_ context.Context, e *EventInterrupt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.closeLine(); err != nil {
		return err
	}
	reason := e.Reason
	if reason == "" {
		reason = "interrupted"
	}
	_, err := fmt.Fprintf(p.w, "[%s]\n", reason)
	return err
}
