package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/chatterbox/pkg/conversation"
	"github.com/go-go-golems/chatterbox/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const chatHelp = `Type a message and press enter to send it.
Commands:
  /new            start a new conversation
  /list           list conversations
  /switch <n|id>  make a conversation active
  /delete <n|id>  delete a conversation
  /history        show the active conversation
  /help           show this help
  /quit           leave
`

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively, with replies revealed as they stream in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			env, err := newTurnEnvironment(ctx, out, "AI")
			if err != nil {
				return err
			}

			return env.run(ctx, func(ctx context.Context) error {
				r := &repl{
					in:      cmd.InOrStdin(),
					out:     out,
					session: env.session,
				}
				return r.loop(ctx)
			})
		},
	}
	addTurnFlags(cmd)
	return cmd
}

type repl struct {
	in      io.Reader
	out     io.Writer
	session *session.Session
}

func (r *repl) prompt() {
	label := "no conversation"
	if id, ok := r.session.Registry().ActiveID(); ok {
		label = fmt.Sprintf("%d", id)
	}
	_, _ = fmt.Fprintf(r.out, "[%s] > ", label)
}

func (r *repl) loop(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	_, _ = fmt.Fprint(r.out, chatHelp)
	r.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			quit, err := r.handle(ctx, line)
			if err != nil {
				_, _ = fmt.Fprintf(r.out, "%s\n", err)
			}
			if quit {
				return nil
			}
			r.prompt()
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false, nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		return false, r.submit(ctx, line)
	}

	fields := strings.Fields(trimmed)
	registry := r.session.Registry()
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		_, _ = fmt.Fprint(r.out, chatHelp)
	case "/new":
		id := registry.Create()
		_, _ = fmt.Fprintf(r.out, "started conversation %d\n", id)
	case "/list":
		printConversationList(r.out, registry)
	case "/switch", "/delete":
		if len(fields) != 2 {
			return false, errors.Errorf("usage: %s <n|id>", fields[0])
		}
		id, err := resolveConversation(registry, fields[1])
		if err != nil {
			return false, err
		}
		if fields[0] == "/switch" {
			return false, registry.Select(id)
		}
		return false, registry.Delete(id)
	case "/history":
		c, ok := registry.Active()
		if !ok {
			return false, session.ErrNoActiveConversation
		}
		printConversation(r.out, c)
	default:
		return false, errors.Errorf("unknown command %s, try /help", fields[0])
	}
	return false, nil
}

func (r *repl) submit(ctx context.Context, line string) error {
	// typing into an empty workspace starts a conversation
	r.session.SetDraft(line)
	h, err := r.session.SubmitDraft(ctx)
	if err != nil {
		if errors.Is(err, session.ErrEmptyInput) {
			return nil
		}
		return err
	}
	// the printer already reported failures
	_, _ = h.Wait()
	return nil
}

func printConversationList(w io.Writer, registry *conversation.Registry) {
	list := registry.List()
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "no conversations")
		return
	}
	activeID, hasActive := registry.ActiveID()
	for i, c := range list {
		marker := " "
		if hasActive && c.ID == activeID {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s %2d. %s  %s  %d messages  %s\n",
			marker, i+1, c.Title(), formatTimestamp(c.ID), len(c.Messages), c.Preview(40))
	}
}

func printConversation(w io.Writer, c conversation.Conversation) {
	_, _ = fmt.Fprintf(w, "%s (%s)\n", c.Title(), formatTimestamp(c.ID))
	for _, m := range c.Messages {
		_, _ = fmt.Fprintln(w, m.String())
	}
}
