package token

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	t        *testing.T
	parsed   map[common.Address]abi.ABI
	returns  map[string][]interface{}
	failures map[string]bool
	native   *big.Int
}

func newFakeCaller(t *testing.T) *fakeCaller {
	return &fakeCaller{
		t:        t,
		parsed:   make(map[common.Address]abi.ABI),
		returns:  make(map[string][]interface{}),
		failures: make(map[string]bool),
	}
}

func (f *fakeCaller) on(to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	f.parsed[to] = parsed
	f.returns[to.Hex()+":"+method] = values
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, ok := f.parsed[*msg.To]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	for name, method := range parsed.Methods {
		if !bytes.Equal(method.ID, msg.Data[:4]) {
			continue
		}
		key := msg.To.Hex() + ":" + name
		if f.failures[key] {
			return nil, fmt.Errorf("execution reverted")
		}
		values, ok := f.returns[key]
		if !ok {
			return nil, fmt.Errorf("execution reverted")
		}
		out, err := method.Outputs.Pack(values...)
		require.NoError(f.t, err)
		return out, nil
	}
	return nil, fmt.Errorf("execution reverted")
}

func (f *fakeCaller) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	if f.native == nil {
		return nil, fmt.Errorf("rpc down")
	}
	return f.native, nil
}

func TestFetchMetaStringABI(t *testing.T) {
	erc20, err := ERC20ABI()
	require.NoError(t, err)

	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	caller := newFakeCaller(t)
	caller.on(token, erc20, "decimals", uint8(6))
	caller.on(token, erc20, "symbol", "USDC")
	caller.on(token, erc20, "name", "USD Coin")

	meta, err := FetchMeta(context.Background(), caller, "ethereum", token, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), meta.Decimals)
	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, "USD Coin", meta.Name)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", meta.Address)
}

func TestFetchMetaRequiresDecimals(t *testing.T) {
	caller := newFakeCaller(t)
	_, err := FetchMeta(context.Background(), caller, "ethereum", common.HexToAddress("0x2222222222222222222222222222222222222222"), nil)
	require.Error(t, err)
}

func TestServiceDecimalsFallsBackToDefault(t *testing.T) {
	caller := newFakeCaller(t)
	svc := NewService(func(string) (Caller, bool) { return caller, true }, nil)

	got := svc.Decimals(context.Background(), "ethereum", "0x3333333333333333333333333333333333333333")
	assert.Equal(t, DefaultDecimals, got)

	none := NewService(func(string) (Caller, bool) { return nil, false }, nil)
	assert.Equal(t, DefaultDecimals, none.Decimals(context.Background(), "base", "0x3333333333333333333333333333333333333333"))
}

func TestServiceVaultExchangeRate(t *testing.T) {
	erc20, err := ERC20ABI()
	require.NoError(t, err)
	vaultABI, err := ERC4626ABI()
	require.NoError(t, err)

	vault := common.HexToAddress("0x4444444444444444444444444444444444444444")
	asset := common.HexToAddress("0x5555555555555555555555555555555555555555")

	caller := newFakeCaller(t)
	caller.on(asset, erc20, "decimals", uint8(6))

	// The vault answers both ABIs; register ERC20 calls through a merged ABI.
	merged := abi.ABI{Methods: map[string]abi.Method{}}
	for name, m := range erc20.Methods {
		merged.Methods[name] = m
	}
	for name, m := range vaultABI.Methods {
		merged.Methods[name] = m
	}
	caller.on(vault, merged, "decimals", uint8(18))
	caller.on(vault, merged, "symbol", "sVAULT")
	caller.on(vault, merged, "name", "Savings Vault")
	caller.on(vault, merged, "asset", asset)
	caller.on(vault, merged, "convertToAssets", big.NewInt(1_083_500))

	svc := NewService(func(string) (Caller, bool) { return caller, true }, nil)
	underlying, rate, ok, err := svc.VaultExchangeRate(context.Background(), "ethereum", vault.Hex())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0x5555555555555555555555555555555555555555", underlying)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.0835")), "rate %s", rate)
}

func TestServiceVaultExchangeRateNotVault(t *testing.T) {
	erc20, err := ERC20ABI()
	require.NoError(t, err)

	token := common.HexToAddress("0x6666666666666666666666666666666666666666")
	caller := newFakeCaller(t)
	caller.on(token, erc20, "decimals", uint8(18))

	svc := NewService(func(string) (Caller, bool) { return caller, true }, nil)
	_, _, ok, err := svc.VaultExchangeRate(context.Background(), "ethereum", token.Hex())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceNativeBalance(t *testing.T) {
	caller := newFakeCaller(t)
	caller.native = new(big.Int).Mul(big.NewInt(15), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil))

	svc := NewService(func(string) (Caller, bool) { return caller, true }, nil)
	bal, err := svc.NativeBalance(context.Background(), "ethereum", "0x7777777777777777777777777777777777777777")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("1.5")))
}

func TestFormatUnits(t *testing.T) {
	raw, ok := ParseUnits("1234500000")
	require.True(t, ok)
	assert.Equal(t, "1234.5", FormatUnits(raw, 6).String())
	assert.True(t, FormatUnits(nil, 6).IsZero())

	_, ok = ParseUnits("12x")
	assert.False(t, ok)
}
