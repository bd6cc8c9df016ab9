package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type embeddingLine struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

func newEmbedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "embed text...",
		Short: "Print one JSON line with the embedding of each text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireKey(); err != nil {
				return err
			}

			vectors, err := a.kit.Embedder(a.backend).Embed(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("embedding failed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for i, v := range vectors {
				if err := enc.Encode(embeddingLine{Text: args[i], Embedding: v}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
