// Package cli implements the gptkit command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dan-solli/gptkit/pkg/config"
	"github.com/dan-solli/gptkit/pkg/gptkit"
	"github.com/dan-solli/gptkit/pkg/llm"
	"github.com/spf13/cobra"
)

// Package-level function variable for testability.
var newKit = gptkit.New

// app carries flag values and the Kit built for the running command.
type app struct {
	configPath  string
	backendFlag string
	model       string
	verbose     bool

	cfg     *config.Config
	backend llm.Backend
	kit     *gptkit.Kit
	logger  *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "gptkit",
		Short: "Call OpenAI-family chat and embedding endpoints",
		Long: `gptkit sends prompts to OpenAI, Azure OpenAI or an OpenAI-compatible endpoint.

Examples:
  gptkit complete "Summarize the plot of Hamlet in one sentence"
  gptkit parse "Alice and Bob are going to a science fair on Friday."
  gptkit classify --labels positive,negative "The food was cold."
  gptkit embed "first text" "second text"`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.Path(), "config file")
	root.PersistentFlags().StringVar(&a.backendFlag, "backend", string(llm.BackendOpenAI), "backend: openai, azure or custom_url")
	root.PersistentFlags().StringVar(&a.model, "model", "", "override the configured model")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newCompleteCmd(a),
		newParseCmd(a),
		newClassifyCmd(a),
		newEmbedCmd(a),
		newTracesCmd(a),
	)
	return root, a
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	root, a := newRoot()
	err := root.ExecuteContext(ctx)
	// Post-run hooks are skipped when a command fails.
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	return err
}

func (a *app) close() error {
	if a.kit == nil {
		return nil
	}
	kit := a.kit
	a.kit = nil
	return kit.Close()
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	backend, err := llm.ParseBackend(a.backendFlag)
	if err != nil {
		return err
	}
	a.backend = backend

	cfg, err := config.Load(a.configPath)
	switch {
	case errors.Is(err, config.ErrNotFound) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	case err != nil:
		return fmt.Errorf("loading %s: %w", a.configPath, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if a.model != "" {
		cfg.Model = a.model
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	kit, err := newKit(*cfg)
	if err != nil {
		return err
	}
	a.kit = kit.WithLogger(a.logger)
	return nil
}

// requireKey fails early when no API key is configured for the selected backend.
func (a *app) requireKey() error {
	if key, _ := a.cfg.Credentials(a.backend); key != "" {
		return nil
	}
	env := config.EnvOpenAIKey
	if a.backend == llm.BackendAzure {
		env = config.EnvAzureKey
	}
	return fmt.Errorf("no API key for backend %s: set %s or add it to %s", a.backend, env, a.configPath)
}

// promptText joins args, or reads standard input when there are none.
func promptText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no prompt given")
	}
	return text, nil
}
