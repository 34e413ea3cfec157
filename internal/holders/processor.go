package holders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"holdersync/internal/metrics"
	"holdersync/internal/model"
	"holdersync/internal/provider"
)

const defaultWalletConcurrency = 4

// TokenInfo supplies token decimals and native balances. *token.Service satisfies it.
type TokenInfo interface {
	Decimals(ctx context.Context, chainName, address string) uint8
	NativeBalance(ctx context.Context, chainName, holder string) (decimal.Decimal, error)
}

type Config struct {
	WalletConcurrency int
}

// Input is one pool's fetched holder set and resolved unit price.
type Input struct {
	Pool    model.Pool
	Holders []model.RawHolder
	Price   decimal.Decimal
}

type Processor struct {
	cfg     Config
	tokens  TokenInfo
	wallets []provider.PortfolioValuer
	logger  *zap.Logger
	now     func() time.Time
}

func NewProcessor(cfg Config, tokens TokenInfo, wallets []provider.PortfolioValuer, logger *zap.Logger) *Processor {
	if cfg.WalletConcurrency <= 0 {
		cfg.WalletConcurrency = defaultWalletConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:     cfg,
		tokens:  tokens,
		wallets: wallets,
		logger:  logger,
		now:     time.Now,
	}
}

// Process ranks the holders and enriches each with wallet value and ETH balance. A failed
// enrichment lookup never fails the batch.
func (p *Processor) Process(ctx context.Context, in Input) ([]model.HolderRecord, error) {
	decimals := uint8(18)
	if p.tokens != nil {
		decimals = p.tokens.Decimals(ctx, in.Pool.Chain, in.Pool.Address)
	}

	records := Rank(in.Holders, decimals, in.Price)
	updatedAt := p.now().UTC()
	for i := range records {
		records[i].PoolID = in.Pool.ID
		records[i].TokenAddress = in.Pool.Address
		records[i].UpdatedAt = updatedAt
	}

	var group errgroup.Group
	group.SetLimit(p.cfg.WalletConcurrency)
	for i := range records {
		record := &records[i]
		group.Go(func() error {
			record.WalletUSDValue = p.walletValue(ctx, in.Pool.Chain, record.HolderAddress, record.USDValue)
			record.ETHBalance = p.nativeBalance(ctx, in.Pool.Chain, record.HolderAddress)
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (p *Processor) walletValue(ctx context.Context, chainName, holder string, position decimal.Decimal) decimal.Decimal {
	for _, valuer := range p.wallets {
		if ctx.Err() != nil {
			break
		}
		value, err := valuer.WalletValue(ctx, holder, chainName)
		metrics.RecordProviderCall(valuer.Name(), provider.CapabilityWalletValue, provider.StatusOf(err, false))
		if err != nil {
			p.logger.Debug("wallet value lookup failed",
				zap.String("provider", valuer.Name()),
				zap.String("holder", holder),
				zap.Error(err),
			)
			continue
		}
		return decimal.Max(value, position)
	}
	return position
}

func (p *Processor) nativeBalance(ctx context.Context, chainName, holder string) decimal.Decimal {
	if p.tokens == nil {
		return decimal.Zero
	}
	balance, err := p.tokens.NativeBalance(ctx, chainName, holder)
	if err != nil {
		p.logger.Debug("eth balance lookup failed", zap.String("holder", holder), zap.Error(err))
		return decimal.Zero
	}
	return balance
}
