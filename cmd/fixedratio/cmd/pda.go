package cmd

import (
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/lugondev/fixed-ratio-trading/internal/pda"
)

var pdaCmd = &cobra.Command{
	Use:   "pda",
	Short: "Derive program addresses",
	Long:  `Derive the program-owned addresses of pools, the treasury and the system state.`,
}

var pdaPoolCmd = &cobra.Command{
	Use:   "pool [mint1] [mint2] [ratio1] [ratio2]",
	Short: "Derive every address of a pool",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := programID(cfg)
		if err != nil {
			return err
		}
		var mints [2]solana.PublicKey
		var ratios [2]uint64
		for i := 0; i < 2; i++ {
			if mints[i], err = solana.PublicKeyFromBase58(args[i]); err != nil {
				return fmt.Errorf("invalid mint %q: %w", args[i], err)
			}
			if ratios[i], err = strconv.ParseUint(args[2+i], 10, 64); err != nil {
				return fmt.Errorf("invalid ratio %q: %w", args[2+i], err)
			}
		}

		addrs, err := pda.DerivePool(id, mints[0], mints[1], ratios[0], ratios[1])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Token A Mint:   %s (ratio %d)\n", addrs.TokenAMint, addrs.RatioA)
		fmt.Fprintf(out, "Token B Mint:   %s (ratio %d)\n", addrs.TokenBMint, addrs.RatioB)
		for _, row := range []struct {
			name string
			addr pda.Address
		}{
			{"Pool State", addrs.PoolState},
			{"Token A Vault", addrs.TokenAVault},
			{"Token B Vault", addrs.TokenBVault},
			{"LP Token A Mint", addrs.LpTokenAMint},
			{"LP Token B Mint", addrs.LpTokenBMint},
		} {
			fmt.Fprintf(out, "%-15s %s (bump %d)\n", row.name+":", row.addr.Key, row.addr.Bump)
		}
		return nil
	},
}

var pdaTreasuryCmd = &cobra.Command{
	Use:   "treasury",
	Short: "Derive the main treasury address",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printAddress(cmd, "Main Treasury", pda.FindMainTreasury)
	},
}

var pdaSystemCmd = &cobra.Command{
	Use:   "system",
	Short: "Derive the system state address",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printAddress(cmd, "System State", pda.FindSystemState)
	},
}

func printAddress(cmd *cobra.Command, name string, find func(solana.PublicKey) (pda.Address, error)) error {
	id, err := programID(cfg)
	if err != nil {
		return err
	}
	addr, err := find(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (bump %d)\n", name, addr.Key, addr.Bump)
	return nil
}

func init() {
	rootCmd.AddCommand(pdaCmd)
	pdaCmd.AddCommand(pdaPoolCmd)
	pdaCmd.AddCommand(pdaTreasuryCmd)
	pdaCmd.AddCommand(pdaSystemCmd)
}
