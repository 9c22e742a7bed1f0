package cmd

import (
	"fmt"
	"strconv"

	"github.com/OKaluzny/devicewallet/internal/wallet"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find the accounts held on the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWallet()
		if err != nil {
			return err
		}
		accounts, err := w.Discover(cmd.Context(), func(a models.AccountState) {
			fmt.Fprintf(cmd.ErrOrStderr(), "found account %d: %s\n", a.Index, a.Address)
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, accounts)
	},
}

var addressCmd = &cobra.Command{
	Use:   "address [index]",
	Short: "Show the address of an account",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := indexArg(args)
		if err != nil {
			return err
		}
		display, _ := cmd.Flags().GetBool("display")
		w, err := openWallet()
		if err != nil {
			return err
		}
		addr, err := w.Address(cmd.Context(), index, display)
		if err != nil {
			return err
		}
		pk, err := w.PublicKey(cmd.Context(), index, false)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"address": addr, "path": pk.Path, "public_key": pk.Key})
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance [index]",
	Short: "Show the stored state of a discovered account",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := indexArg(args)
		if err != nil {
			return err
		}
		w, err := discoveredWallet(cmd)
		if err != nil {
			return err
		}
		a, err := w.Account(index)
		if err != nil {
			return err
		}
		return printJSON(cmd, a)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [index]",
	Short: "List one page of an account's transactions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := indexArg(args)
		if err != nil {
			return err
		}
		cursor, _ := cmd.Flags().GetString("cursor")
		withOps, _ := cmd.Flags().GetBool("operations")
		w, err := discoveredWallet(cmd)
		if err != nil {
			return err
		}
		page, err := w.Transactions(cmd.Context(), index, cursor)
		if err != nil {
			return err
		}
		if !withOps {
			return printJSON(cmd, page)
		}

		out := historyWithOperations{TransactionPage: page, Operations: make(map[string][]models.Operation)}
		for _, rec := range page.Transactions {
			ops, err := w.TransactionOperations(cmd.Context(), rec.Hash)
			if err != nil {
				return errors.WithMessagef(err, "operations of %s", rec.Hash)
			}
			out.Operations[rec.Hash] = ops
		}
		return printJSON(cmd, out)
	},
}

var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Show the backend's current fee levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWallet()
		if err != nil {
			return err
		}
		fee, err := w.Fee(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, fee)
	},
}

func init() {
	addressCmd.Flags().Bool("display", false, "confirm the address on the device screen")
	historyCmd.Flags().String("cursor", "", "cursor returned by the previous page")
	historyCmd.Flags().Bool("operations", false, "list the operations of every transaction (Stellar)")
	rootCmd.AddCommand(discoverCmd, addressCmd, balanceCmd, historyCmd, feeCmd)
}

type historyWithOperations struct {
	*models.TransactionPage
	Operations map[string][]models.Operation `json:"operations"`
}

func indexArg(args []string) (uint32, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseUint(args[0], 10, 31)
	if err != nil {
		return 0, errors.Wrapf(err, "account index %q", args[0])
	}
	return uint32(n), nil
}

// discoveredWallet opens the wallet and runs discovery so account records
// are available.
func discoveredWallet(cmd *cobra.Command) (*wallet.Wallet, error) {
	w, err := openWallet()
	if err != nil {
		return nil, err
	}
	if _, err := w.Discover(cmd.Context(), nil); err != nil {
		return nil, errors.WithMessage(err, "discovery")
	}
	return w, nil
}
