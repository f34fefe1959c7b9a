package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lugondev/fixed-ratio-trading/internal/wallet"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet management commands",
	Long:  `Commands for generating and inspecting keypair files.`,
}

var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new wallet",
	Long:  `Generate a new keypair. With --out it is written as a JSON keypair file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		w := wallet.New()
		path, _ := cmd.Flags().GetString("out")

		fmt.Fprintln(out, "New wallet generated!")
		fmt.Fprintf(out, "  Public Key:  %s\n", w.PublicKey())
		if path != "" {
			if err := w.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(out, "  Saved to:    %s\n", path)
			return nil
		}
		fmt.Fprintf(out, "  Private Key: %s\n", w.PrivateKey())
		fmt.Fprintln(out, "\nWARNING: Save your private key securely. Never share it with anyone!")
		return nil
	},
}

var walletShowCmd = &cobra.Command{
	Use:   "show [keypair-file]",
	Short: "Show the public key of a keypair file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := wallet.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Public Key: %s\n", w.PublicKey())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletNewCmd)
	walletCmd.AddCommand(walletShowCmd)

	walletNewCmd.Flags().String("out", "", "write the keypair to this file")
}
