package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"token-launch-gateway/internal/service"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the ledger schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		fmt.Printf("%s storage is up to date\n", e.cfg.Storage.Driver)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash an operator password for admin.password_hash",
	Long:  `hash-password reads a password from stdin and prints its argon2id hash.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return fmt.Errorf("empty password")
		}
		hash, err := service.NewArgon2HashService().Hash(password)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}
