package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "poolctl",
		Short:        "Offline pool math and live pool event tooling",
		SilenceUsage: true,
	}

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against the given reserves",
		RunE:  runQuote,
	}
	quoteCmd.Flags().Uint64("amount-in", 0, "input amount in base units")
	quoteCmd.Flags().Uint64("reserve-in", 0, "reserve of the input asset")
	quoteCmd.Flags().Uint64("reserve-out", 0, "reserve of the output asset")
	quoteCmd.Flags().Uint64("fee-bps", 30, "pool fee in bps")
	quoteCmd.Flags().Uint64("slippage-bps", 50, "slippage tolerance in bps (e.g. 100 = 1%)")
	root.AddCommand(quoteCmd)

	sharesCmd := &cobra.Command{
		Use:   "shares",
		Short: "Compute shares minted for a deposit",
		RunE:  runShares,
	}
	sharesCmd.Flags().Uint64("amount-a", 0, "deposit of asset A")
	sharesCmd.Flags().Uint64("amount-b", 0, "deposit of asset B")
	sharesCmd.Flags().Uint64("reserve-a", 0, "current reserve A")
	sharesCmd.Flags().Uint64("reserve-b", 0, "current reserve B")
	sharesCmd.Flags().Uint64("supply", 0, "outstanding share supply (0 for a new pool)")
	root.AddCommand(sharesCmd)

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Compute amounts returned for burning shares",
		RunE:  runWithdraw,
	}
	withdrawCmd.Flags().Uint64("shares", 0, "shares to burn")
	withdrawCmd.Flags().Uint64("reserve-a", 0, "current reserve A")
	withdrawCmd.Flags().Uint64("reserve-b", 0, "current reserve B")
	withdrawCmd.Flags().Uint64("supply", 0, "outstanding share supply")
	root.AddCommand(withdrawCmd)

	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the pool, authority, vault and share mint addresses for a pair",
		RunE:  runDerive,
	}
	deriveCmd.Flags().String("asset-a", "", "asset A (base58 mint or symbol, e.g. SOL)")
	deriveCmd.Flags().String("asset-b", "", "asset B (base58 mint or symbol, e.g. USDC)")
	deriveCmd.Flags().String("program-id", "", "program id (defaults to the built-in id)")
	_ = deriveCmd.MarkFlagRequired("asset-a")
	_ = deriveCmd.MarkFlagRequired("asset-b")
	root.AddCommand(deriveCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream pool events from Redis",
		RunE:  runWatch,
	}
	watchCmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	watchCmd.Flags().String("pool", "", "only events of this pool (default: all pools)")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(watchCmd)

	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
