package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func nextIDCmd(configPath *string) *cobra.Command {
	var current bool

	cmd := &cobra.Command{
		Use:   "next-id",
		Short: "Issue the next patient identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if current {
				state, err := a.seq.Current(cmd.Context())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(state)
			}

			id, _, err := a.seq.Issue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&current, "current", false, "Print the stored counter instead of issuing an identifier")

	return cmd
}
