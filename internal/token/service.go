package token

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holdersync/internal/chain"
	"holdersync/internal/model"
)

// DefaultDecimals is assumed when a token's decimals cannot be read.
const DefaultDecimals uint8 = 18

// CallerLookup returns the contract caller for a chain.
type CallerLookup func(chainName string) (Caller, bool)

// FromRegistry adapts a chain registry into a CallerLookup.
func FromRegistry(reg *chain.Registry) CallerLookup {
	return func(chainName string) (Caller, bool) {
		client, ok := reg.Get(chainName)
		if !ok {
			return nil, false
		}
		return client, true
	}
}

// Service reads token metadata, balances and vault exchange rates over RPC.
type Service struct {
	callers CallerLookup
	cache   *MetaCache
	logger  *zap.Logger
}

func NewService(callers CallerLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{callers: callers, cache: NewMetaCache(), logger: logger}
}

func (s *Service) caller(chainName string) (Caller, error) {
	if s.callers == nil {
		return nil, fmt.Errorf("no rpc configured")
	}
	caller, ok := s.callers(chainName)
	if !ok {
		return nil, fmt.Errorf("no rpc configured for chain %s", chainName)
	}
	return caller, nil
}

// Meta returns cached metadata for a token, loading it on first use.
func (s *Service) Meta(ctx context.Context, chainName, address string) (model.TokenMeta, error) {
	if meta, ok := s.cache.Get(chainName, address); ok {
		return meta, nil
	}
	if !common.IsHexAddress(address) {
		return model.TokenMeta{}, fmt.Errorf("invalid token address: %s", address)
	}
	caller, err := s.caller(chainName)
	if err != nil {
		return model.TokenMeta{}, err
	}
	meta, err := FetchMeta(ctx, caller, chainName, common.HexToAddress(address), s.logger)
	if err != nil {
		return meta, err
	}
	s.cache.Set(meta)
	return meta, nil
}

// Decimals returns the token decimals, or DefaultDecimals when they cannot be read.
func (s *Service) Decimals(ctx context.Context, chainName, address string) uint8 {
	meta, err := s.Meta(ctx, chainName, address)
	if err != nil {
		s.logger.Warn("token decimals unavailable, assuming default",
			zap.String("chain", chainName),
			zap.String("token", address),
			zap.Uint8("decimals", DefaultDecimals),
			zap.Error(err),
		)
		return DefaultDecimals
	}
	return meta.Decimals
}

// NativeBalance returns the holder's native coin balance in whole units.
func (s *Service) NativeBalance(ctx context.Context, chainName, holder string) (decimal.Decimal, error) {
	if !common.IsHexAddress(holder) {
		return decimal.Zero, fmt.Errorf("invalid holder address: %s", holder)
	}
	if s.callers == nil {
		return decimal.Zero, fmt.Errorf("no rpc configured")
	}
	caller, ok := s.callers(chainName)
	if !ok {
		return decimal.Zero, fmt.Errorf("no rpc configured for chain %s", chainName)
	}
	reader, ok := caller.(NativeBalanceReader)
	if !ok {
		return decimal.Zero, fmt.Errorf("chain %s caller cannot read native balances", chainName)
	}
	wei, err := reader.BalanceAt(ctx, common.HexToAddress(holder), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance at: %w", err)
	}
	return FormatUnits(wei, 18), nil
}

// VaultExchangeRate returns the ERC-4626 underlying asset and the amount of it one whole share
// converts to. ok is false when the token does not answer asset().
func (s *Service) VaultExchangeRate(ctx context.Context, chainName, vault string) (string, decimal.Decimal, bool, error) {
	if !common.IsHexAddress(vault) {
		return "", decimal.Zero, false, nil
	}
	caller, err := s.caller(chainName)
	if err != nil {
		return "", decimal.Zero, false, err
	}
	shareMeta, err := s.Meta(ctx, chainName, vault)
	if err != nil {
		return "", decimal.Zero, false, err
	}

	asset, assets, err := ConvertToAssets(ctx, caller, common.HexToAddress(vault), oneUnit(shareMeta.Decimals))
	if err != nil {
		s.logger.Debug("not an erc4626 vault", zap.String("token", vault), zap.Error(err))
		return "", decimal.Zero, false, nil
	}

	assetAddr := strings.ToLower(asset.Hex())
	assetDecimals := s.Decimals(ctx, chainName, assetAddr)
	return assetAddr, FormatUnits(assets, assetDecimals), true, nil
}

func oneUnit(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
