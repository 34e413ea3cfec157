package provider

import "strings"

// Canonical chain identifiers stored on pools.
const (
	ChainEthereum  = "ethereum"
	ChainBase      = "base"
	ChainArbitrum  = "arbitrum"
	ChainOptimism  = "optimism"
	ChainPolygon   = "polygon"
	ChainBSC       = "bsc"
	ChainAvalanche = "avalanche"
)

var chainAliases = map[string]string{
	"eth":          ChainEthereum,
	"mainnet":      ChainEthereum,
	"1":            ChainEthereum,
	"8453":         ChainBase,
	"arb":          ChainArbitrum,
	"42161":        ChainArbitrum,
	"op":           ChainOptimism,
	"10":           ChainOptimism,
	"matic":        ChainPolygon,
	"137":          ChainPolygon,
	"bnb":          ChainBSC,
	"56":           ChainBSC,
	"avax":         ChainAvalanche,
	"43114":        ChainAvalanche,
	ChainEthereum:  ChainEthereum,
	ChainBase:      ChainBase,
	ChainArbitrum:  ChainArbitrum,
	ChainOptimism:  ChainOptimism,
	ChainPolygon:   ChainPolygon,
	ChainBSC:       ChainBSC,
	ChainAvalanche: ChainAvalanche,
}

// NormalizeChain maps aliases and chain ids to the canonical identifier.
// Unknown values are returned lower-cased.
func NormalizeChain(chain string) string {
	key := strings.ToLower(strings.TrimSpace(chain))
	if key == "" {
		return ChainEthereum
	}
	if canonical, ok := chainAliases[key]; ok {
		return canonical
	}
	return key
}

// NormalizeAddress lower-cases and trims an EVM address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
