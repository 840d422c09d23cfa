package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"seidash/internal/rpcclient"
)

func newCallCmd(a *app) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "call <method> [params-json]",
		Short: "Perform a raw RPC call and print the result",
		Long:  "Perform a raw RPC call. Older call names such as getBalance or fetchLatestBlock are accepted and translated.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()

			method := args[0]
			if translated, ok := rpcclient.TranslateMethod(method); ok {
				method = translated
			}

			var params json.RawMessage
			if len(args) == 2 {
				params = json.RawMessage(args[1])
				if !json.Valid(params) {
					return errors.New("params must be valid JSON")
				}
			}

			var callOpts []rpcclient.CallOption
			if noCache {
				callOpts = append(callOpts, rpcclient.WithoutCache())
			}

			result, err := a.client.Call(cmd.Context(), method, params, callOpts...)
			if err != nil {
				return err
			}

			var pretty interface{}
			if err := json.Unmarshal(result, &pretty); err != nil {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(result))
				return err
			}
			return writeJSON(cmd.OutOrStdout(), pretty)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the response cache")
	return cmd
}
