package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"seidash/internal/events"
	"seidash/internal/stream"
)

// watchLine is one printed stream event
type watchLine struct {
	Event string          `json:"event"`
	At    time.Time       `json:"at"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newWatchCmd(a *app) *cobra.Command {
	var duration time.Duration
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live blockchain, market and NFT events as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Server.IsStreamEnabled() {
				return errors.New("server.wsUrl is not configured")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			if err := a.client.Connect(ctx); err != nil {
				return err
			}
			defer a.close()

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server failed")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			var mu sync.Mutex
			emit := func(event string, at time.Time, data interface{}) {
				raw, err := json.Marshal(data)
				if err != nil {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				enc := json.NewEncoder(cmd.OutOrStdout())
				_ = enc.Encode(watchLine{Event: event, At: at, Data: raw})
			}

			n := a.client.Notifier()
			subs := []*events.Subscription{
				n.Blockchain.On(func(e events.BlockchainEvent) { emit(string(e.Type), e.ReceivedAt, e.Data) }),
				n.Market.On(func(e events.MarketUpdate) { emit(events.EventMarket, e.ReceivedAt, e.Data) }),
				n.NFT.On(func(e events.NFTActivity) { emit(events.EventNFT, e.ReceivedAt, e.Data) }),
				n.Status.On(func(s events.ConnectionStatus) { emit(events.EventStatus, time.Now(), s) }),
			}
			defer func() {
				for _, sub := range subs {
					sub.Unsubscribe()
				}
			}()

			listener, err := stream.NewFromConfig(a.cfg, n, a.metrics, a.client.SessionID, a.logger)
			if err != nil {
				return err
			}
			return listener.Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
	return cmd
}
