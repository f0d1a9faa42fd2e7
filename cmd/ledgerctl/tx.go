package main

import (
	"fmt"

	"token-launch-gateway/internal/core/domain"

	"github.com/spf13/cobra"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Inspect and repair ledger transactions",
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, _ := cmd.Flags().GetString("state")
		sender, _ := cmd.Flags().GetString("sender")
		limit, _ := cmd.Flags().GetInt("limit")

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		recs, err := e.reports.ListTransactions(cmd.Context(), domain.TxFilter{
			Sender: sender,
			State:  domain.TxState(state),
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Printf("%-88s %-11s %12s SOL  attempts=%d  %s\n",
				r.Signature, r.State, r.Amount.SOL().String(), r.Attempts, r.Sender)
		}
		return nil
	},
}

var txGetCmd = &cobra.Command{
	Use:   "get <signature>",
	Short: "Show one ledger record with its commissions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		detail, err := e.reports.GetTransaction(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(detail)
	},
}

var txResetCmd = &cobra.Command{
	Use:   "reset <signature>",
	Short: "Return an in_process payment to new so it can be retried",
	Long: `reset moves a payment stuck in in_process back to new. The next payment
check that matches it starts a fresh creation. Only reset a payment whose
creation is known to have failed: the server is not consulted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.ops.ResetTransaction(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s reset to %s\n", args[0], domain.TxStateNew)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count ledger records per state and live reservations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.reports.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func init() {
	txListCmd.Flags().String("state", "", "filter by state (new, in_process, created)")
	txListCmd.Flags().String("sender", "", "filter by sender wallet")
	txListCmd.Flags().Int("limit", 50, "maximum records to list")

	txCmd.AddCommand(txListCmd)
	txCmd.AddCommand(txGetCmd)
	txCmd.AddCommand(txResetCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(statsCmd)
}
