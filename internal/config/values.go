package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"holdersync/internal/pricing"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

// parseStringMap reads "k1=v1,k2=v2".
func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func lowerAll(items []string) []string {
	for i := range items {
		items[i] = strings.ToLower(items[i])
	}
	return items
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func parseDurationMap(in map[string]string) (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(in))
	for k, raw := range in {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[strings.ToLower(k)] = d
	}
	return out, nil
}

func parseFloatMap(in map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(in))
	for k, raw := range in {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[strings.ToLower(k)] = f
	}
	return out, nil
}

func parseDecimalMap(in map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(in))
	for k, raw := range in {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[strings.ToLower(k)] = d
	}
	return out, nil
}

// parseVaultRates reads "multiplier" or "multiplier@underlying" per vault address.
func parseVaultRates(in map[string]string) (map[string]pricing.VaultRate, error) {
	out := make(map[string]pricing.VaultRate, len(in))
	for k, raw := range in {
		multiplier, underlying, _ := strings.Cut(raw, "@")
		d, err := decimal.NewFromString(strings.TrimSpace(multiplier))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		underlying = strings.ToLower(strings.TrimSpace(underlying))
		if underlying != "" && !common.IsHexAddress(underlying) {
			return nil, fmt.Errorf("%s: invalid underlying address %s", k, underlying)
		}
		out[strings.ToLower(k)] = pricing.VaultRate{Multiplier: d, Underlying: underlying}
	}
	return out, nil
}
