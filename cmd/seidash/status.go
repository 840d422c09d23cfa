package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"seidash/internal/cache"
	"seidash/internal/events"
	"seidash/internal/ratelimit"
)

type statusOutput struct {
	Status    events.ConnectionStatus `json:"status"`
	Endpoint  string                  `json:"endpoint"`
	Latency   string                  `json:"latency,omitempty"`
	Cache     cache.Stats             `json:"cache"`
	RateLimit ratelimit.Status        `json:"rateLimit"`
}

func newStatusCmd(a *app, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Connect to the server and show the connection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()

			start := time.Now()
			connectErr := a.client.Connect(cmd.Context())

			out := statusOutput{
				Status:    a.client.Status(),
				Endpoint:  a.cfg.Server.URL,
				Cache:     a.client.CacheStats(),
				RateLimit: a.client.RateLimitStatus(),
			}
			if connectErr == nil {
				out.Latency = time.Since(start).Round(time.Millisecond).String()
			}

			if opts.asJSON {
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				return connectErr
			}

			w := cmd.OutOrStdout()
			state := "disconnected"
			switch {
			case out.Status.Connected && out.Status.Degraded:
				state = "degraded"
			case out.Status.Connected:
				state = "connected"
			}
			fmt.Fprintf(w, "endpoint:  %s\n", out.Endpoint)
			fmt.Fprintf(w, "state:     %s\n", state)
			if out.Status.SessionID != "" {
				fmt.Fprintf(w, "session:   %s\n", out.Status.SessionID)
			}
			if out.Latency != "" {
				fmt.Fprintf(w, "latency:   %s\n", out.Latency)
			}
			if out.Status.Attempts > 0 {
				fmt.Fprintf(w, "attempts:  %d\n", out.Status.Attempts)
			}
			if out.Status.LastError != "" {
				fmt.Fprintf(w, "lastError: %s\n", out.Status.LastError)
			}
			fmt.Fprintf(w, "rateLimit: %d remaining\n", out.RateLimit.Remaining)
			return connectErr
		},
	}
}
