package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func teardownCmd(a *app) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "teardown",
		Short: "Delete every row, children first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer p.Close()
			if err := p.Teardown(cmd.Context(), yes); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all rows deleted")
			return nil
		},
	}
	c.Flags().BoolVar(&yes, "yes", false, "confirm when safemode is on")
	return c
}
