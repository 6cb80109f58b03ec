package networks

import "wallet-monitor/internal/models"

// Config describes one supported chain.
type Config struct {
	Name            string
	Kind            models.NetworkKind
	NativeCurrency  string
	NativeDecimals  int
	ExplorerBaseURL string
	// IndexerID is the network identifier used by the upstream GraphQL
	// indexer, which does not always match our own network ids.
	IndexerID string
}

// Stablecoin is one entry of a per-network contract allow-list.
type Stablecoin struct {
	Symbol   string
	Name     string
	Contract string
}

var registry = map[models.Network]Config{
	models.Ethereum: {
		Name:            "Ethereum",
		Kind:            models.KindEVM,
		NativeCurrency:  "ETH",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://api.etherscan.io/api",
		IndexerID:       "ethereum",
	},
	models.BSC: {
		Name:            "BNB Smart Chain",
		Kind:            models.KindEVM,
		NativeCurrency:  "BNB",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://api.bscscan.com/api",
		IndexerID:       "bsc",
	},
	models.Polygon: {
		Name:            "Polygon",
		Kind:            models.KindEVM,
		NativeCurrency:  "MATIC",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://api.polygonscan.com/api",
		IndexerID:       "matic",
	},
	models.Arbitrum: {
		Name:            "Arbitrum One",
		Kind:            models.KindEVM,
		NativeCurrency:  "ETH",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://api.arbiscan.io/api",
		IndexerID:       "arbitrum",
	},
	models.XRP: {
		Name:            "XRP Ledger",
		Kind:            models.KindLedger,
		NativeCurrency:  "XRP",
		NativeDecimals:  6,
		ExplorerBaseURL: "https://api.xrpscan.com/api/v1",
		IndexerID:       "xrpl",
	},
}

var stablecoins = map[models.Network][]Stablecoin{
	models.Ethereum: {
		{Symbol: "USDT", Name: "Tether USD", Contract: "0xdac17f958d2ee523a2206206994597c13d831ec7"},
		{Symbol: "USDC", Name: "USD Coin", Contract: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"},
		{Symbol: "DAI", Name: "Dai Stablecoin", Contract: "0x6b175474e89094c44da98b954eedeac495271d0f"},
	},
	models.BSC: {
		{Symbol: "USDT", Name: "Tether USD", Contract: "0x55d398326f99059ff775485246999027b3197955"},
		{Symbol: "USDC", Name: "USD Coin", Contract: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d"},
		{Symbol: "BUSD", Name: "Binance USD", Contract: "0xe9e7cea3dedca5984780bafc599bd69add087d56"},
	},
	models.Polygon: {
		{Symbol: "USDT", Name: "Tether USD", Contract: "0xc2132d05d31c914a87c6611c10748aeb04b58e8f"},
		{Symbol: "USDC", Name: "USD Coin", Contract: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"},
		{Symbol: "DAI", Name: "Dai Stablecoin", Contract: "0x8f3cf7ad23cd3cadbd9735aff958023239c6a063"},
	},
	models.Arbitrum: {
		{Symbol: "USDT", Name: "Tether USD", Contract: "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9"},
		{Symbol: "USDC", Name: "USD Coin", Contract: "0xaf88d065e77c8cc2239327c5edb3a432268e5831"},
	},
}

// Lookup returns the config for a network id. Unknown ids yield ok=false;
// callers that have a documented fallback should use Default.
func Lookup(n models.Network) (Config, bool) {
	cfg, ok := registry[n]
	return cfg, ok
}

// Default returns the fallback network (Ethereum).
func Default() models.Network {
	return models.Ethereum
}

// Stablecoins returns the stablecoin contract allow-list for a network. The
// list is empty for ledger-style networks.
func Stablecoins(n models.Network) []Stablecoin {
	return stablecoins[n]
}

// StablecoinContracts returns just the contract addresses for a network.
func StablecoinContracts(n models.Network) []string {
	coins := stablecoins[n]
	out := make([]string, 0, len(coins))
	for _, c := range coins {
		out = append(out, c.Contract)
	}
	return out
}

// EVMNetworks lists the networks the stablecoin aggregator fans out over.
func EVMNetworks() []models.Network {
	return []models.Network{models.Ethereum, models.BSC, models.Polygon, models.Arbitrum}
}

// All lists every supported network id.
func All() []models.Network {
	out := make([]models.Network, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return out
}
