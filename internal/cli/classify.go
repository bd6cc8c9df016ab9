package cli

import (
	"errors"
	"fmt"

	"github.com/dan-solli/gptkit/pkg/classifier"
	"github.com/spf13/cobra"
)

func newClassifyCmd(a *app) *cobra.Command {
	var (
		labels     []string
		structured bool
	)

	cmd := &cobra.Command{
		Use:   "classify --labels a,b text...",
		Short: "Assign one of the given labels to each text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(labels) == 0 {
				return errors.New("--labels is required")
			}
			if err := a.requireKey(); err != nil {
				return err
			}

			clf := a.kit.Classifier(a.backend, labels)
			if structured {
				if err := clf.SetHyperparameters(map[string]any{classifier.ParamStructuredOutput: true}); err != nil {
					return err
				}
			}

			predicted, err := clf.Predict(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("classification failed: %w", err)
			}
			for i, label := range predicted {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", label, args[i])
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&labels, "labels", nil, "comma-separated candidate labels")
	cmd.Flags().BoolVar(&structured, "structured", false, "use a schema-constrained reply")
	return cmd
}
