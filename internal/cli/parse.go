package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dan-solli/gptkit/pkg/llm"
	"github.com/spf13/cobra"
)

// Event is the record extracted by the parse command.
type Event struct {
	EventName string   `json:"event_name" description:"Name of the event"`
	Date      string   `json:"date" description:"When the event takes place, as written in the text"`
	Attendees []string `json:"attendees" description:"People attending the event"`
}

const parseSystemPrompt = "Extract the event information."

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse [text]",
		Short: "Extract an event record from text as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireKey(); err != nil {
				return err
			}
			text, err := promptText(cmd, args)
			if err != nil {
				return err
			}

			messages := []llm.Message{
				{Role: llm.RoleSystem, Content: parseSystemPrompt},
				{Role: llm.RoleUser, Content: text},
			}

			var event Event
			if err := a.kit.Session(a.backend).GetParsedCompletion(cmd.Context(), messages, &event); err != nil {
				return fmt.Errorf("parse failed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(event)
		},
	}
}
