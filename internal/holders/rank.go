// Package holders turns raw provider balances into ranked, valued holder records.
package holders

import (
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"holdersync/internal/model"
	"holdersync/internal/token"
)

var hundred = decimal.NewFromInt(100)

type parsedHolder struct {
	address string
	raw     string
	balance *big.Int
}

// Rank orders holders by balance, drops zero or unparsable balances, and fills in the
// formatted balance, USD value, pool share and rank. Shares are relative to the sum of
// the given set.
func Rank(raw []model.RawHolder, decimals uint8, price decimal.Decimal) []model.HolderRecord {
	parsed := normalize(raw)
	if len(parsed) == 0 {
		return nil
	}

	total := new(big.Int)
	for _, h := range parsed {
		total.Add(total, h.balance)
	}
	totalDec := decimal.NewFromBigInt(total, 0)

	records := make([]model.HolderRecord, len(parsed))
	for i, h := range parsed {
		formatted := token.FormatUnits(h.balance, decimals)
		records[i] = model.HolderRecord{
			HolderAddress:    h.address,
			RawBalance:       h.raw,
			FormattedBalance: formatted,
			USDValue:         formatted.Mul(price),
			PoolShare:        decimal.NewFromBigInt(h.balance, 0).Mul(hundred).Div(totalDec),
			Rank:             i + 1,
		}
	}
	return records
}

// TopN keeps the max largest holders. max <= 0 keeps everything.
func TopN(raw []model.RawHolder, max int) []model.RawHolder {
	parsed := normalize(raw)
	if max > 0 && len(parsed) > max {
		parsed = parsed[:max]
	}
	out := make([]model.RawHolder, len(parsed))
	for i, h := range parsed {
		out[i] = model.RawHolder{Address: h.address, Balance: h.raw}
	}
	return out
}

func normalize(raw []model.RawHolder) []parsedHolder {
	byAddress := make(map[string]int, len(raw))
	parsed := make([]parsedHolder, 0, len(raw))
	for _, h := range raw {
		address := strings.ToLower(strings.TrimSpace(h.Address))
		if address == "" {
			continue
		}
		balance, ok := token.ParseUnits(h.Balance)
		if !ok || balance.Sign() <= 0 {
			continue
		}
		entry := parsedHolder{address: address, raw: balance.String(), balance: balance}
		if idx, seen := byAddress[address]; seen {
			if balance.Cmp(parsed[idx].balance) > 0 {
				parsed[idx] = entry
			}
			continue
		}
		byAddress[address] = len(parsed)
		parsed = append(parsed, entry)
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		cmp := parsed[i].balance.Cmp(parsed[j].balance)
		if cmp != 0 {
			return cmp > 0
		}
		return parsed[i].address < parsed[j].address
	})
	return parsed
}
