package main

import (
	"fmt"

	"github.com/aman-zulfiqar/minidex/internal/amm"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	amountIn, _ := flags.GetUint64("amount-in")
	reserveIn, _ := flags.GetUint64("reserve-in")
	reserveOut, _ := flags.GetUint64("reserve-out")
	feeBps, _ := flags.GetUint64("fee-bps")
	slippageBps, _ := flags.GetUint64("slippage-bps")

	q, err := amm.NewQuote(amountIn, reserveIn, reserveOut, feeBps, slippageBps)
	if err != nil {
		return describe(err)
	}
	return printJSON(cmd, q)
}

func runShares(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	amountA, _ := flags.GetUint64("amount-a")
	amountB, _ := flags.GetUint64("amount-b")
	reserveA, _ := flags.GetUint64("reserve-a")
	reserveB, _ := flags.GetUint64("reserve-b")
	supply, _ := flags.GetUint64("supply")

	shares, err := amm.ComputeSharesForDeposit(amountA, amountB, reserveA, reserveB, supply)
	if err != nil {
		return describe(err)
	}
	return printJSON(cmd, map[string]uint64{"shares": shares})
}

func runWithdraw(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	shares, _ := flags.GetUint64("shares")
	reserveA, _ := flags.GetUint64("reserve-a")
	reserveB, _ := flags.GetUint64("reserve-b")
	supply, _ := flags.GetUint64("supply")

	a, b, err := amm.ComputeWithdrawAmounts(shares, reserveA, reserveB, supply)
	if err != nil {
		return describe(err)
	}
	return printJSON(cmd, map[string]uint64{"amount_a": a, "amount_b": b})
}

func runDerive(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	rawA, _ := flags.GetString("asset-a")
	rawB, _ := flags.GetString("asset-b")
	rawProgram, _ := flags.GetString("program-id")

	assetA, err := pool.ParseAsset(rawA)
	if err != nil {
		return fmt.Errorf("asset-a: %w", err)
	}
	assetB, err := pool.ParseAsset(rawB)
	if err != nil {
		return fmt.Errorf("asset-b: %w", err)
	}
	programID := pool.DefaultProgramID
	if rawProgram != "" {
		if programID, err = pool.ParseKey(rawProgram); err != nil {
			return fmt.Errorf("program-id: %w", err)
		}
	}
	if assetA.Equals(assetB) {
		return describe(amm.ErrInvalidTokenMints)
	}

	addrs, err := pool.DeriveAddresses(programID, assetA, assetB)
	if err != nil {
		return err
	}
	return printJSON(cmd, struct {
		ProgramID solana.PublicKey `json:"program_id"`
		*pool.Addresses
	}{programID, addrs})
}

// describe prefixes pool errors with their numeric code.
func describe(err error) error {
	if code, ok := amm.Code(err); ok {
		return fmt.Errorf("error %d: %w", code, err)
	}
	return err
}
