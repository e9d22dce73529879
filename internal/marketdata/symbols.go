package marketdata

import "strings"

// coinIDs maps exchange tickers to CoinGecko coin ids. Symbols without a
// mapping cannot be quoted and are reported per-symbol, never batch-fatal.
var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"USDT": "tether",
	"USDC": "usd-coin",
	"DOGE": "dogecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"AVAX": "avalanche-2",
	"MATIC": "matic-network",
	"LINK": "chainlink",
	"LTC":  "litecoin",
	"BCH":  "bitcoin-cash",
	"ATOM": "cosmos",
	"UNI":  "uniswap",
	"XLM":  "stellar",
	"ETC":  "ethereum-classic",
}

// CoinID resolves a ticker to its CoinGecko id.
func CoinID(symbol string) (string, bool) {
	id, ok := coinIDs[strings.ToUpper(symbol)]
	return id, ok
}
