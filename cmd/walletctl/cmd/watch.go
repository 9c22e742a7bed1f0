package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/OKaluzny/devicewallet/internal/listener"
	"github.com/OKaluzny/devicewallet/internal/storage"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print new transactions of discovered accounts until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w, err := discoveredWallet(cmd)
		if err != nil {
			return err
		}
		client, err := w.Backend()
		if err != nil {
			return err
		}

		network := w.Network()
		l := listener.NewPollingListener(network, cfg.Listener.PollInterval, storage.NewMemoryWatchStore(), client,
			listener.PollingConfig{MaxPages: cfg.Listener.MaxPages, Logger: logger.Log, Metrics: appMetrics()})
		if err := w.Watch(l); err != nil {
			return err
		}

		mgr := listener.NewManager(func(ev models.TransactionEvent) error {
			return printJSON(cmd, ev)
		})
		mgr.RegisterListener(network, l)

		if metricsAddr != "" {
			srv := &http.Server{
				Addr:              metricsAddr,
				Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Log.Error("metrics server", zap.Error(err))
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		if err := mgr.StartAll(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		mgr.StopAll()
		return nil
	},
}

func init() {
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	rootCmd.AddCommand(watchCmd)
}
