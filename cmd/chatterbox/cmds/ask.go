package cmds

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "Ask a single question in a new conversation",
		Long:  "Ask a single question in a new conversation. Use - to read the prompt from stdin.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}

			prompt := strings.Join(args, " ")
			if prompt == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.Wrap(err, "could not read prompt")
				}
				prompt = string(b)
			}

			ctx := cmd.Context()
			env, err := newTurnEnvironment(ctx, cmd.OutOrStdout(), "")
			if err != nil {
				return err
			}

			return env.run(ctx, func(ctx context.Context) error {
				env.registry.Create()
				h, err := env.session.Submit(ctx, prompt)
				if err != nil {
					return err
				}
				_, err = h.Wait()
				return err
			})
		},
	}
	addTurnFlags(cmd)
	return cmd
}
