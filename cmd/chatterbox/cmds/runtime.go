package cmds

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-go-golems/chatterbox/pkg/completion"
	"github.com/go-go-golems/chatterbox/pkg/config"
	"github.com/go-go-golems/chatterbox/pkg/conversation"
	"github.com/go-go-golems/chatterbox/pkg/reveal"
	"github.com/go-go-golems/chatterbox/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const chatTopic = "chat"

// addTurnFlags registers the flags shared by commands that run turns.
func addTurnFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "Override the endpoint base URL")
	cmd.Flags().String("key", "", "Override the API key")
	cmd.Flags().String("model", "", "Override the model")
	cmd.Flags().Duration("delay", reveal.DefaultDelay, "Delay between revealed units, 0 to disable pacing")
	cmd.Flags().String("granularity", "rune", "Reveal unit (rune, word)")
	cmd.Flags().Bool("echo", false, "Echo the input back instead of calling the endpoint")
	cmd.Flags().Duration("timeout", 0, "Timeout for a whole reply, 0 for none")
	cmd.Flags().Bool("print-raw-events", false, "Print every chat event")
	cmd.Flags().String("raw-events-format", "yaml", "Format of raw events (json, yaml)")
}

func bindFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

func dataDir() (string, error) {
	if d := viper.GetString("data-dir"); d != "" {
		return d, nil
	}
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "chatterbox"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine data directory")
	}
	return filepath.Join(home, ".chatterbox"), nil
}

func openStore() (store.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	backend := store.Backend(viper.GetString("store"))
	log.Debug().Str("backend", string(backend)).Str("dir", dir).Msg("opening store")
	return store.Open(backend, dir)
}

// loadConfig loads the persisted endpoint settings and applies the command
// line and environment overrides. Overrides are not saved.
func loadConfig(ctx context.Context, s store.Store) (config.Config, error) {
	cfg, err := config.LoadOrInit(ctx, s, config.Default())
	if err != nil {
		log.Warn().Err(err).Msg("could not save default config")
	}
	cfg = cfg.WithOverrides(viper.GetString("url"), viper.GetString("key"), viper.GetString("model"))
	return cfg, nil
}

func newClient(cfg config.Config) (completion.Client, error) {
	var client completion.Client
	if viper.GetBool("echo") {
		client = completion.NewEchoClient()
	} else {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		c, err := completion.NewOpenAIClient(cfg.URL, cfg.Key, completion.WithModel(cfg.Model))
		if err != nil {
			return nil, err
		}
		client = c
	}
	return completion.WithTimeout(client, viper.GetDuration("timeout")), nil
}

func newRevealer() (*reveal.Revealer, error) {
	granularity := viper.GetString("granularity")
	splitter, ok := reveal.SplitterForGranularity(granularity)
	if !ok {
		return nil, errors.Errorf("unknown reveal granularity %q", granularity)
	}
	delay := viper.GetDuration("delay")
	if delay < 0 {
		delay = 0
	}
	return reveal.New(reveal.WithDelay(delay), reveal.WithSplitter(splitter)), nil
}

// resolveConversation accepts either a 1-based position in the conversation
// list or a conversation id.
func resolveConversation(r *conversation.Registry, arg string) (int64, error) {
	v, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid conversation %q", arg)
	}
	list := r.List()
	if v >= 1 && v <= int64(len(list)) {
		return list[v-1].ID, nil
	}
	if r.Exists(v) {
		return v, nil
	}
	return 0, errors.Wrapf(conversation.ErrConversationNotFound, "%s", arg)
}

func formatTimestamp(id int64) string {
	return time.UnixMilli(id).Local().Format("2006-01-02 15:04:05")
}
