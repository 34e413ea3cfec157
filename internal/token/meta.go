package token

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"holdersync/internal/model"
)

// MetaCache caches token metadata by chain and address.
type MetaCache struct {
	mu   sync.RWMutex
	data map[string]model.TokenMeta
}

func NewMetaCache() *MetaCache {
	return &MetaCache{data: make(map[string]model.TokenMeta)}
}

func (c *MetaCache) Get(chainName, address string) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[cacheKey(chainName, address)]
	c.mu.RUnlock()
	return meta, ok
}

func (c *MetaCache) Set(meta model.TokenMeta) {
	c.mu.Lock()
	c.data[cacheKey(meta.Chain, meta.Address)] = meta
	c.mu.Unlock()
}

func cacheKey(chainName, address string) string {
	return strings.ToLower(chainName) + ":" + strings.ToLower(address)
}

// FetchMeta loads token metadata via ERC20 calls. Decimals are required; symbol and name
// fall back to the bytes32 ABI used by older tokens.
func FetchMeta(ctx context.Context, caller Caller, chainName string, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Chain: chainName, Address: strings.ToLower(token.Hex())}
	if caller == nil {
		return meta, fmt.Errorf("chain caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		return callMethod(ctx, caller, token, parsed, method, nil)
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := call("symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := call("symbol", bytes32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := call("name", stringABI); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := call("name", bytes32ABI); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}
