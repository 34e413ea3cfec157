package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NativeBalanceReader reads native coin balances. *chain.Client satisfies it.
type NativeBalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// BalanceOf returns the ERC20 balance of owner. A nil block means latest.
func BalanceOf(ctx context.Context, caller Caller, token, owner common.Address, blockNumber *big.Int) (*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := callMethod(ctx, caller, token, parsed, "balanceOf", blockNumber, owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// ConvertToAssets returns the ERC-4626 underlying asset and the assets redeemable for shares.
func ConvertToAssets(ctx context.Context, caller Caller, vault common.Address, shares *big.Int) (common.Address, *big.Int, error) {
	parsed, err := ERC4626ABI()
	if err != nil {
		return common.Address{}, nil, err
	}
	values, err := callMethod(ctx, caller, vault, parsed, "asset", nil)
	if err != nil {
		return common.Address{}, nil, err
	}
	asset, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("asset: %w", err)
	}
	values, err = callMethod(ctx, caller, vault, parsed, "convertToAssets", nil, shares)
	if err != nil {
		return common.Address{}, nil, err
	}
	assets, err := asBigInt(values[0])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("convertToAssets: %w", err)
	}
	return asset, assets, nil
}

// FormatUnits scales a raw integer amount down by decimals.
func FormatUnits(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// ParseUnits parses a base-10 raw integer amount.
func ParseUnits(raw string) (*big.Int, bool) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, false
	}
	return value, true
}
