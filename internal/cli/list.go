package cli

import (
	"github.com/spf13/cobra"

	"meetingrec/internal/catalog"
	"meetingrec/internal/output"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List exported meetings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := catalog.Open(deps.Config.Storage.CatalogPath)
			if err != nil {
				return err
			}
			defer store.Close()

			meetings, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return output.Meetings(cmd.OutOrStdout(), meetings)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum meetings to show (0 for all)")
	return cmd
}
