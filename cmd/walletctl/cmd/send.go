package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/OKaluzny/devicewallet/internal/tx"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Build, sign and broadcast a transfer",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		from, _ := flags.GetUint32("from")
		to, _ := flags.GetString("to")
		amountStr, _ := flags.GetString("amount")
		feeStr, _ := flags.GetString("fee")
		memo, _ := flags.GetString("memo")
		create, _ := flags.GetBool("create")
		key, _ := flags.GetString("idempotency-key")
		dryRun, _ := flags.GetBool("dry-run")

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return errors.Wrap(err, "amount")
		}
		var fee decimal.Decimal
		if feeStr != "" {
			if fee, err = decimal.NewFromString(feeStr); err != nil {
				return errors.Wrap(err, "fee")
			}
		}
		if key == "" {
			key = uuid.NewString()
		}
		req := tx.SendRequest{
			IdempotencyKey:      key,
			To:                  to,
			Amount:              amount,
			Fee:                 fee,
			Memo:                memo,
			DestinationUnfunded: create,
			Validity:            cfg.Wallet.Validity,
		}

		w, err := discoveredWallet(cmd)
		if err != nil {
			return err
		}
		if dryRun {
			unsigned, err := w.BuildTransaction(req, from)
			if err != nil {
				return err
			}
			signed, err := w.SignTransaction(cmd.Context(), unsigned)
			if err != nil {
				return err
			}
			return printJSON(cmd, signed)
		}

		receipt, err := w.Send(cmd.Context(), req, from)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "sent with idempotency key %s\n", key)
		return printJSON(cmd, receipt)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a message signature on the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("address")
		message, _ := cmd.Flags().GetString("message")
		sigHex, _ := cmd.Flags().GetString("signature")
		sig, err := hex.DecodeString(sigHex)
		if err != nil {
			return errors.Wrap(err, "signature must be hex")
		}
		w, err := openWallet()
		if err != nil {
			return err
		}
		ok, err := w.VerifyMessage(cmd.Context(), addr, []byte(message), sig)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]bool{"valid": ok})
	},
}

var signMessageCmd = &cobra.Command{
	Use:   "sign-message [index]",
	Short: "Sign a message with an account key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := indexArg(args)
		if err != nil {
			return err
		}
		message, _ := cmd.Flags().GetString("message")
		w, err := openWallet()
		if err != nil {
			return err
		}
		sig, err := w.SignMessage(cmd.Context(), index, []byte(message))
		if err != nil {
			return err
		}
		return printJSON(cmd, sig)
	},
}

func init() {
	f := sendCmd.Flags()
	f.Uint32("from", 0, "sending account index")
	f.String("to", "", "destination address")
	f.String("amount", "", "amount in native units")
	f.String("fee", "", "total fee in native units (default: chain default)")
	f.String("memo", "", "text memo")
	f.Bool("create", false, "create the destination account (Stellar)")
	f.String("idempotency-key", "", "key that makes a repeated send a no-op")
	f.Bool("dry-run", false, "sign and print without broadcasting")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("amount")

	verifyCmd.Flags().String("address", "", "signer address")
	verifyCmd.Flags().String("message", "", "signed message")
	verifyCmd.Flags().String("signature", "", "hex signature")
	_ = verifyCmd.MarkFlagRequired("address")
	_ = verifyCmd.MarkFlagRequired("signature")

	signMessageCmd.Flags().String("message", "", "message to sign")

	rootCmd.AddCommand(sendCmd, verifyCmd, signMessageCmd)
}
