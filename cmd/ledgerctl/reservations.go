package main

import (
	"fmt"
	"time"

	"token-launch-gateway/internal/core/domain"

	"github.com/spf13/cobra"
)

var reservationsCmd = &cobra.Command{
	Use:     "reservations",
	Aliases: []string{"rsv"},
	Short:   "Manage wallet reservations",
}

var reservationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wallet reservations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireReservations(); err != nil {
			return err
		}

		list, err := e.reports.ListReservations(cmd.Context())
		if err != nil {
			return err
		}
		now := time.Now()
		for _, r := range list {
			stale := ""
			if r.Expired(now, e.resv.TTL()) {
				stale = "stale"
			}
			fmt.Printf("%-44s %-40s %s %s\n", r.Wallet, r.SessionID, r.ReservedAt.UTC().Format(time.RFC3339), stale)
		}
		return nil
	},
}

var reservationsReleaseCmd = &cobra.Command{
	Use:   "release <wallet>",
	Short: "Free a wallet regardless of the session holding it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := domain.ValidateWallet(args[0]); err != nil {
			return err
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireReservations(); err != nil {
			return err
		}

		released, err := e.ops.ReleaseReservation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !released {
			fmt.Printf("%s was not reserved\n", args[0])
			return nil
		}
		fmt.Printf("%s released\n", args[0])
		return nil
	},
}

var reservationsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Release reservations older than the reservation TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireReservations(); err != nil {
			return err
		}

		n, err := e.ops.SweepReservations(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("released %d stale reservations\n", n)
		return nil
	},
}

func init() {
	reservationsCmd.AddCommand(reservationsListCmd)
	reservationsCmd.AddCommand(reservationsReleaseCmd)
	reservationsCmd.AddCommand(reservationsSweepCmd)
	rootCmd.AddCommand(reservationsCmd)
}
