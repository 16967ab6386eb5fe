package cmds

import (
	"context"

	"github.com/go-go-golems/chatterbox/pkg/config"
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

func NewConfigCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the stored endpoint settings",
	}

	showCmd, err := NewConfigShowCommand()
	if err != nil {
		return nil, err
	}
	showCobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(showCmd)
	if err != nil {
		return nil, err
	}

	cmd.AddCommand(showCobraCmd)
	cmd.AddCommand(newConfigSetCommand())
	return cmd, nil
}

type ConfigShowSettings struct {
	RevealKey bool `glazed.parameter:"reveal-key"`
}

type ConfigShowCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*ConfigShowCommand)(nil)

func NewConfigShowCommand() (*ConfigShowCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ConfigShowCommand{
		CommandDescription: cmds.NewCommandDescription(
			"show",
			cmds.WithShort("Print the stored endpoint settings"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"reveal-key",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Print the API key in clear"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *ConfigShowCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &ConfigShowSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	cfg, err := config.LoadOrInit(ctx, st, config.Default())
	if err != nil {
		return err
	}
	for _, row := range configRows(cfg, s.RevealKey) {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// configRows has one row per setting. The key is masked unless revealKey.
func configRows(cfg config.Config, revealKey bool) []types.Row {
	key := cfg.MaskedKey()
	if revealKey {
		key = cfg.Key
	}
	return []types.Row{
		types.NewRow(types.MRP("setting", "url"), types.MRP("value", cfg.URL)),
		types.NewRow(types.MRP("setting", "key"), types.MRP("value", key)),
		types.NewRow(types.MRP("setting", "model"), types.MRP("value", cfg.Model)),
	}
}

func newConfigSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the stored endpoint settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = s.Close()
			}()

			ctx := cmd.Context()
			cfg, err := config.LoadOrInit(ctx, s, config.Default())
			if err != nil {
				return err
			}

			url, _ := cmd.Flags().GetString("url")
			key, _ := cmd.Flags().GetString("key")
			model, _ := cmd.Flags().GetString("model")
			cfg = cfg.WithOverrides(url, key, model)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return config.Save(ctx, s, cfg)
		},
	}
	cmd.Flags().String("url", "", "Endpoint base URL")
	cmd.Flags().String("key", "", "API key")
	cmd.Flags().String("model", "", "Model")
	return cmd
}
