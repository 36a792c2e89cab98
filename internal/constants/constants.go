package constants

import "strings"

// Redis keys
const (
	RedisKeyPoolPrefix = "pools:"      // pools:<address> -> encoded record
	RedisKeyPoolIndex  = "pools:index" // set of pool addresses

	RedisKeyCustodyBalances = "custody:balances" // hash <owner>:<asset> -> amount
	RedisKeyCustodyVaults   = "custody:vaults"   // hash <vault> -> <asset>:<authority>
	RedisKeyCustodyMints    = "custody:mints"    // hash <mint> -> authority
	RedisKeyCustodySupply   = "custody:supply"   // hash <mint> -> outstanding shares
)

// Redis Pub/Sub channels
const (
	PubSubChannelPools      = "pools:events"
	PubSubChannelPoolPrefix = "pools:events:"
)

// Well-known mainnet mints by symbol
var TokenMints = map[string]string{
	"SOL":    "So11111111111111111111111111111111111111112",
	"USDC":   "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"USDT":   "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
	"MSOL":   "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So",
	"ETH":    "7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs",
	"BTC":    "3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh",
	"BONK":   "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
	"POPCAT": "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
	"JUP":    "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN",
	"RAY":    "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
}

// Token mint addresses to symbols
var TokenSymbols = func() map[string]string {
	out := make(map[string]string, len(TokenMints))
	for sym, mint := range TokenMints {
		out[mint] = sym
	}
	return out
}()

// MintForSymbol looks up a well-known mint, ignoring case.
func MintForSymbol(symbol string) (string, bool) {
	mint, ok := TokenMints[strings.ToUpper(strings.TrimSpace(symbol))]
	return mint, ok
}
