package pool

import (
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/minidex/internal/constants"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// DefaultProgramID namespaces every derived pool address.
var DefaultProgramID = solana.MustPublicKeyFromBase58("HazKKeRzso2bAryAMipJ741gA3oGU9wJmDFwHCt29gqJ")

var (
	seedPool      = []byte("pool")
	seedAuthority = []byte("pool_authority")
	seedVaultA    = []byte("token_a_vault")
	seedVaultB    = []byte("token_b_vault")
	seedShareMint = []byte("lp_token_mint")
)

// Addresses are the deterministic identities of one pool. None of them has a
// private key.
type Addresses struct {
	Pool          solana.PublicKey `json:"pool"`
	Authority     solana.PublicKey `json:"authority"`
	VaultA        solana.PublicKey `json:"vault_a"`
	VaultB        solana.PublicKey `json:"vault_b"`
	ShareMint     solana.PublicKey `json:"share_mint"`
	AuthorityBump uint8            `json:"authority_bump"`
}

// DeriveAddress returns the pool address of the ordered pair (assetA, assetB).
func DeriveAddress(programID, assetA, assetB solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{seedPool, assetA.Bytes(), assetB.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool address: %w", err)
	}
	return addr, nil
}

// DeriveAddresses derives the pool, its authority handle, both vaults and the
// share mint for (assetA, assetB).
func DeriveAddresses(programID, assetA, assetB solana.PublicKey) (*Addresses, error) {
	poolAddr, err := DeriveAddress(programID, assetA, assetB)
	if err != nil {
		return nil, err
	}

	authority, bump, err := solana.FindProgramAddress([][]byte{seedAuthority, poolAddr.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("derive pool authority: %w", err)
	}
	vaultA, _, err := solana.FindProgramAddress([][]byte{seedVaultA, poolAddr.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("derive vault a: %w", err)
	}
	vaultB, _, err := solana.FindProgramAddress([][]byte{seedVaultB, poolAddr.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("derive vault b: %w", err)
	}
	shareMint, _, err := solana.FindProgramAddress([][]byte{seedShareMint, poolAddr.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("derive share mint: %w", err)
	}

	return &Addresses{
		Pool:          poolAddr,
		Authority:     authority,
		VaultA:        vaultA,
		VaultB:        vaultB,
		ShareMint:     shareMint,
		AuthorityBump: bump,
	}, nil
}

// VerifyAuthority checks that rec.Authority is the handle derived from the
// pool's own address and stored bump.
func VerifyAuthority(programID solana.PublicKey, rec Record) error {
	want, err := solana.CreateProgramAddress(
		[][]byte{seedAuthority, rec.Address.Bytes(), {rec.AuthorityBump}},
		programID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthorityMismatch, err)
	}
	if !want.Equals(rec.Authority) {
		return ErrAuthorityMismatch
	}
	return nil
}

// ParseKey decodes a base58 asset, account or pool identifier.
func ParseKey(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("empty key")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid base58 key: %w", err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("invalid key length: expected %d bytes, got %d", solana.PublicKeyLength, len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// ParseAsset accepts either a base58 mint or the symbol of a well-known mint
// such as SOL or USDC.
func ParseAsset(s string) (solana.PublicKey, error) {
	if mint, ok := constants.MintForSymbol(s); ok {
		return solana.MustPublicKeyFromBase58(mint), nil
	}
	return ParseKey(s)
}
