// Package onchain derives holder lists directly from ERC20 Transfer logs over RPC.
// It needs no API key but is slow, so it is normally the last adapter in the chain.
package onchain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"holdersync/internal/chain"
	"holdersync/internal/model"
	"holdersync/internal/provider"
	"holdersync/internal/token"
)

const Name = "onchain"

// Backend is the RPC surface the scanner needs. *chain.Client satisfies it.
type Backend interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BackendLookup returns the backend for a chain.
type BackendLookup func(chainName string) (Backend, bool)

// FromRegistry adapts a chain registry into a BackendLookup.
func FromRegistry(reg *chain.Registry) BackendLookup {
	return func(chainName string) (Backend, bool) {
		client, ok := reg.Get(chainName)
		if !ok {
			return nil, false
		}
		return client, true
	}
}

// Config controls the scan window and RPC pacing.
type Config struct {
	LookbackBlocks uint64
	BatchSize      uint64
	MaxCandidates  int
	MaxRetries     int
	RetryBackoff   time.Duration
	CacheTTL       time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = 2000
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 5000
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	return c
}

type scanResult struct {
	holders []model.RawHolder
	at      time.Time
}

// Scanner implements HolderLister and HolderCounter. The count covers addresses that moved the
// token inside the lookback window and still hold a balance.
type Scanner struct {
	cfg      Config
	backends BackendLookup
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]scanResult
}

func NewScanner(cfg Config, backends BackendLookup, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		cfg:      cfg.withDefaults(),
		backends: backends,
		logger:   logger.With(zap.String("provider", Name)),
		now:      time.Now,
		cache:    make(map[string]scanResult),
	}
}

func (s *Scanner) Name() string { return Name }

// ListHolders returns up to max current holders ordered by balance descending.
func (s *Scanner) ListHolders(ctx context.Context, tokenAddr, chainName string, max int) ([]model.RawHolder, error) {
	holders, err := s.scan(ctx, tokenAddr, chainName)
	if err != nil {
		return nil, err
	}
	if max > 0 && len(holders) > max {
		holders = holders[:max]
	}
	out := make([]model.RawHolder, len(holders))
	copy(out, holders)
	return out, nil
}

// CountHolders returns the number of non-zero holders found by the scan.
func (s *Scanner) CountHolders(ctx context.Context, tokenAddr, chainName string) (int64, error) {
	holders, err := s.scan(ctx, tokenAddr, chainName)
	if err != nil {
		return 0, err
	}
	return int64(len(holders)), nil
}

func (s *Scanner) scan(ctx context.Context, tokenAddr, chainName string) ([]model.RawHolder, error) {
	if !common.IsHexAddress(tokenAddr) {
		return nil, fmt.Errorf("invalid token address: %s", tokenAddr)
	}
	key := strings.ToLower(chainName) + ":" + strings.ToLower(tokenAddr)

	s.mu.Lock()
	cached, ok := s.cache[key]
	s.mu.Unlock()
	if ok && s.now().Sub(cached.at) < s.cfg.CacheTTL {
		return cached.holders, nil
	}

	backend, ok := s.backends(chainName)
	if !ok {
		return nil, fmt.Errorf("onchain chain %s: %w", chainName, provider.ErrUnsupported)
	}

	holders, err := s.scanBackend(ctx, backend, common.HexToAddress(tokenAddr))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = scanResult{holders: holders, at: s.now()}
	s.mu.Unlock()
	return holders, nil
}

func (s *Scanner) scanBackend(ctx context.Context, backend Backend, tokenAddr common.Address) ([]model.RawHolder, error) {
	var latest uint64
	err := provider.WithRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = backend.LatestBlockNumber(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}

	from, to := chain.LookbackRange(latest, s.cfg.LookbackBlocks)
	ranges, err := chain.SplitRange(from, to, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	candidates := make(map[common.Address]struct{})
	order := make([]common.Address, 0, 256)
	truncated := false

scan:
	for _, blockRange := range ranges {
		var logs []types.Log
		err := provider.WithRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			logs, err = backend.FilterLogs(ctx, blockRange.From, blockRange.To, []common.Address{tokenAddr}, []common.Hash{token.TransferTopic})
			if err != nil {
				s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("filter transfer logs: %w", err)
		}

		for _, log := range logs {
			if log.Removed || len(log.Topics) < 3 {
				continue
			}
			for _, topic := range log.Topics[1:3] {
				addr := common.BytesToAddress(topic.Bytes())
				if addr == (common.Address{}) {
					continue
				}
				if _, ok := candidates[addr]; ok {
					continue
				}
				if len(order) >= s.cfg.MaxCandidates {
					truncated = true
					break scan
				}
				candidates[addr] = struct{}{}
				order = append(order, addr)
			}
		}
	}
	if truncated {
		s.logger.Warn("candidate limit reached, holder scan is partial",
			zap.String("token", tokenAddr.Hex()),
			zap.Int("max_candidates", s.cfg.MaxCandidates),
		)
	}

	snapshot := new(big.Int).SetUint64(to)
	holders := make([]model.RawHolder, 0, len(order))
	balances := make(map[string]*big.Int, len(order))
	for _, addr := range order {
		var bal *big.Int
		err := provider.WithRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			bal, err = token.BalanceOf(ctx, backend, tokenAddr, addr, snapshot)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("balanceOf %s: %w", addr.Hex(), err)
		}
		if bal.Sign() <= 0 {
			continue
		}
		holderAddr := strings.ToLower(addr.Hex())
		balances[holderAddr] = bal
		holders = append(holders, model.RawHolder{Address: holderAddr, Balance: bal.String()})
	}

	sort.SliceStable(holders, func(i, j int) bool {
		cmp := balances[holders[i].Address].Cmp(balances[holders[j].Address])
		if cmp != 0 {
			return cmp > 0
		}
		return holders[i].Address < holders[j].Address
	})
	return holders, nil
}
