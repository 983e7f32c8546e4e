package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/agenkit/huddle-go/dataset"
)

func newItemsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Count ordered items across all reservations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.Load(a.cfg.Input)
			if err != nil {
				return err
			}
			counts := dataset.CountItems(ds)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(counts)
			}
			for _, c := range counts {
				fmt.Fprintf(out, "%5d  %s\n", c.Count, c.Item)
			}
			fmt.Fprintf(out, "%d distinct items\n", len(counts))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print counts as JSON")
	return cmd
}
