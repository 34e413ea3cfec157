package pricing

// DefaultStablecoins is the built-in address allow-list, lower-cased.
var DefaultStablecoins = []string{
	// ethereum
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", // USDC
	"0xdac17f958d2ee523a2206206994597c13d831ec7", // USDT
	"0x6b175474e89094c44da98b954eedeac495271d0f", // DAI
	"0x853d955acef822db058eb8505911ed77f175b99e", // FRAX
	"0x5f98805a4e8be255a32880fdec7f6728c6568ba0", // LUSD
	"0x6c3ea9036406852006290770bedfcaba0e23a0e8", // PYUSD
	"0x4c9edd5852cd905f086c759e8383e09bff1e68b3", // USDe
	"0x40d16fc0246ad3160ccc09b8d0d3a2cd28ae6c2f", // GHO
	"0xf939e0a03fb07f59a73314e73794be0e57ac1b4e", // crvUSD
	"0xdc035d45d973e3ec169d2276ddab16f1e407384f", // USDS
	// base
	"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", // USDC
	// arbitrum
	"0xaf88d065e77c8cc2239327c5edb3a432268e5831", // USDC
	"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9", // USDT
	// optimism
	"0x0b2c639c533813f4aa9d7837caf62653d097ff85", // USDC
	// polygon
	"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", // USDC
	// bsc
	"0x55d398326f99059ff775485246999027b3197955", // USDT
}

// DefaultStablecoinTickers are matched as substrings of the upper-cased symbol or name.
var DefaultStablecoinTickers = []string{
	"USDC", "USDT", "DAI", "FRAX", "LUSD", "PYUSD", "USDE", "GHO", "CRVUSD", "USDS",
	"TUSD", "BUSD", "FDUSD", "USD0", "RLUSD",
}
