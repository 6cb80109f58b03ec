package models

// Network identifies a supported chain.
type Network string

const (
	Ethereum Network = "eth"
	BSC      Network = "bsc"
	Polygon  Network = "polygon"
	Arbitrum Network = "arbitrum"
	XRP      Network = "xrp"
)

func (n Network) String() string {
	return string(n)
}

// NetworkKind distinguishes EVM-style chains from ledger-style chains (XRP),
// which use a structurally different explorer API.
type NetworkKind int

const (
	KindEVM NetworkKind = iota
	KindLedger
)
