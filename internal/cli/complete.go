package cli

import (
	"fmt"

	"github.com/dan-solli/gptkit/pkg/llm"
	"github.com/spf13/cobra"
)

func newCompleteCmd(a *app) *cobra.Command {
	var (
		system   string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Send a prompt and print the reply",
		Long:  "Send a prompt and print the reply. The prompt is read from stdin when no arguments are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireKey(); err != nil {
				return err
			}
			prompt, err := promptText(cmd, args)
			if err != nil {
				return err
			}

			var messages []llm.Message
			if system != "" {
				messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
			}
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

			session := a.kit.Session(a.backend)
			completion, err := session.GetChatCompletion(cmd.Context(), messages, llm.WithJSONResponse(jsonMode))
			if err != nil {
				return fmt.Errorf("completion failed: %w", err)
			}
			text, err := session.CompletionToString(completion)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&system, "system", "", "system message sent before the prompt")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "request a JSON object reply (openai backend only)")
	return cmd
}
