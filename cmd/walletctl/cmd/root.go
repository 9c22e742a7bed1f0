// Package cmd implements the walletctl commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/OKaluzny/devicewallet/internal/chain"
	"github.com/OKaluzny/devicewallet/internal/config"
	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/device/emulator"
	"github.com/OKaluzny/devicewallet/internal/metrics"
	"github.com/OKaluzny/devicewallet/internal/wallet"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	coinFlag   string

	cfg      config.Config
	registry = prometheus.NewRegistry()

	walletMetrics *metrics.Metrics
	metricsOnce   sync.Once
)

var rootCmd = &cobra.Command{
	Use:   "walletctl",
	Short: "Multi-chain device wallet",
	Long: `walletctl drives a signing device against chain indexer backends:
account discovery, balances, history, fees, transfers and message checks
for NEM, Stellar and Ripple coins.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if coinFlag != "" {
			cfg.Wallet.Coin = coinFlag
		}
		return logger.Init(cfg.App.Env, cfg.App.LogLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./devicewallet.yaml)")
	rootCmd.PersistentFlags().StringVar(&coinFlag, "coin", "", "coin name or shortcut, overrides wallet.coin")
}

// openWallet connects the configured coin to the software device.
func openWallet() (*wallet.Wallet, error) {
	if cfg.Wallet.Mnemonic == "" {
		return nil, errors.New("wallet.mnemonic is required for the software device")
	}
	m := appMetrics()
	emu, err := emulator.New(cfg.Wallet.Mnemonic, cfg.Wallet.Passphrase, emulator.WithLogger(logger.Log))
	if err != nil {
		return nil, err
	}
	dev := device.New(emu, device.WithLogger(logger.Named("device")), device.WithMetrics(m))

	return wallet.New(cfg.Wallet.Coin, dev, wallet.Options{
		ChainConfig: chain.Config{
			BaseURL:   cfg.Backend.URL,
			Timeout:   cfg.Backend.Timeout,
			RateLimit: cfg.Backend.RateLimit,
			PageSize:  cfg.Backend.PageSize,
		},
		MaxAccounts: cfg.Wallet.MaxAccounts,
		Logger:      logger.Log,
		Metrics:     m,
	})
}

// appMetrics registers the wallet collectors on first use.
func appMetrics() *metrics.Metrics {
	metricsOnce.Do(func() { walletMetrics = metrics.New(registry) })
	return walletMetrics
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
