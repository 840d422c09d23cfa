package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBalanceCmd(a *app, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()

			balance, err := a.client.GetBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), balance)
			}

			address := balance.Address
			if address == "" {
				address = args[0]
			}
			line := fmt.Sprintf("%s: %s", address, balance.Amount)
			if balance.Denom != "" {
				line += " " + balance.Denom
			}
			if balance.USDValue > 0 {
				line += fmt.Sprintf(" ($%.2f)", balance.USDValue)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
			return err
		},
	}
}
