package token

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

const erc4626ABIJSON = `[
  {"inputs": [], "name": "asset", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "uint256", "name": "shares", "type": "uint256"}], "name": "convertToAssets", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

// TransferTopic is topic0 of the ERC20 Transfer(address,address,uint256) event.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var (
	erc20ABIString      abi.ABI
	erc20ABIStringOnce  sync.Once
	erc20ABIStringErr   error
	erc20ABIBytes32     abi.ABI
	erc20ABIBytes32Once sync.Once
	erc20ABIBytes32Err  error
	erc4626ABI          abi.ABI
	erc4626ABIOnce      sync.Once
	erc4626ABIErr       error
)

// ERC20ABI returns the parsed ERC20 ABI with string symbol/name outputs.
func ERC20ABI() (abi.ABI, error) {
	erc20ABIStringOnce.Do(func() {
		erc20ABIString, erc20ABIStringErr = abi.JSON(strings.NewReader(erc20ABIStringJSON))
	})
	return erc20ABIString, erc20ABIStringErr
}

func erc20ABIBytes32Instance() (abi.ABI, error) {
	erc20ABIBytes32Once.Do(func() {
		erc20ABIBytes32, erc20ABIBytes32Err = abi.JSON(strings.NewReader(erc20ABIBytes32JSON))
	})
	return erc20ABIBytes32, erc20ABIBytes32Err
}

// ERC4626ABI returns the parsed subset of the ERC-4626 vault ABI.
func ERC4626ABI() (abi.ABI, error) {
	erc4626ABIOnce.Do(func() {
		erc4626ABI, erc4626ABIErr = abi.JSON(strings.NewReader(erc4626ABIJSON))
	})
	return erc4626ABI, erc4626ABIErr
}
