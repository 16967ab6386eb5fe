package cmds

import (
	"context"
	"fmt"

	"github.com/go-go-golems/chatterbox/pkg/conversation"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewConversationsCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Inspect and manage stored conversations",
	}

	listCmd, err := NewConversationsListCommand()
	if err != nil {
		return nil, err
	}
	listCobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(listCmd)
	if err != nil {
		return nil, err
	}

	exportCmd, err := NewConversationsExportCommand()
	if err != nil {
		return nil, err
	}
	exportCobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(exportCmd)
	if err != nil {
		return nil, err
	}

	cmd.AddCommand(listCobraCmd)
	cmd.AddCommand(newConversationsShowCommand())
	cmd.AddCommand(newConversationsDeleteCommand())
	cmd.AddCommand(exportCobraCmd)

	return cmd, nil
}

// withRegistry opens the store, loads the conversations and hands them to f.
func withRegistry(ctx context.Context, f func(r *conversation.Registry) error) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()
	return f(conversation.NewRegistry(ctx, s))
}

type ConversationsListSettings struct {
	PreviewLength int `glazed.parameter:"preview-length"`
}

type ConversationsListCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*ConversationsListCommand)(nil)

func NewConversationsListCommand() (*ConversationsListCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ConversationsListCommand{
		CommandDescription: cmds.NewCommandDescription(
			"list",
			cmds.WithShort("List conversations in creation order"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"preview-length",
					parameters.ParameterTypeInteger,
					parameters.WithHelp("Maximum length of the first message preview"),
					parameters.WithDefault(40),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *ConversationsListCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &ConversationsListSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	return withRegistry(ctx, func(r *conversation.Registry) error {
		for _, row := range conversationRows(r.List(), s.PreviewLength) {
			if err := gp.AddRow(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// conversationRows has one row per conversation. index is the 1-based
// position accepted by show, delete and /switch.
func conversationRows(list []conversation.Conversation, previewLength int) []types.Row {
	ret := make([]types.Row, 0, len(list))
	for i, c := range list {
		ret = append(ret, types.NewRow(
			types.MRP("index", i+1),
			types.MRP("id", c.ID),
			types.MRP("created", formatTimestamp(c.ID)),
			types.MRP("messages", len(c.Messages)),
			types.MRP("preview", c.Preview(previewLength)),
		))
	}
	return ret
}

type ConversationsExportSettings struct {
	PerMessage bool `glazed.parameter:"per-message"`
}

type ConversationsExportCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*ConversationsExportCommand)(nil)

func NewConversationsExportCommand() (*ConversationsExportCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ConversationsExportCommand{
		CommandDescription: cmds.NewCommandDescription(
			"export",
			cmds.WithShort("Export all conversations"),
			cmds.WithLong("Export all conversations with their messages. Use --output json or yaml to get the nested form, or --per-message for one row per message."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"per-message",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Emit one row per message instead of one row per conversation"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *ConversationsExportCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &ConversationsExportSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	return withRegistry(ctx, func(r *conversation.Registry) error {
		for _, row := range exportRows(r.List(), s.PerMessage) {
			if err := gp.AddRow(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func exportRows(list []conversation.Conversation, perMessage bool) []types.Row {
	var ret []types.Row
	for _, c := range list {
		if perMessage {
			for i, m := range c.Messages {
				ret = append(ret, types.NewRow(
					types.MRP("conversation_id", c.ID),
					types.MRP("index", i),
					types.MRP("sender", string(m.Sender)),
					types.MRP("text", m.Text),
				))
			}
			continue
		}

		messages := make([]map[string]interface{}, 0, len(c.Messages))
		for _, m := range c.Messages {
			messages = append(messages, map[string]interface{}{
				"sender": string(m.Sender),
				"text":   m.Text,
			})
		}
		ret = append(ret, types.NewRow(
			types.MRP("id", c.ID),
			types.MRP("created", formatTimestamp(c.ID)),
			types.MRP("messages", messages),
		))
	}
	return ret
}

func newConversationsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <n|id>",
		Short: "Print the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(r *conversation.Registry) error {
				id, err := resolveConversation(r, args[0])
				if err != nil {
					return err
				}
				c, _ := r.Get(id)
				printConversation(cmd.OutOrStdout(), c)
				return nil
			})
		},
	}
}

func newConversationsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <n|id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(r *conversation.Registry) error {
				id, err := resolveConversation(r, args[0])
				if err != nil {
					return err
				}
				if err := r.Delete(id); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted conversation %d\n", id)
				return err
			})
		},
	}
}
