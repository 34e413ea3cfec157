package onchain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdersync/internal/token"
)

type fakeBackend struct {
	t        *testing.T
	latest   uint64
	logs     []types.Log
	balances map[common.Address]*big.Int
	filters  int32
}

func (f *fakeBackend) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeBackend) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	atomic.AddInt32(&f.filters, 1)
	require.Equal(f.t, []common.Hash{token.TransferTopic}, topic0)
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := token.ERC20ABI()
	require.NoError(f.t, err)
	method := parsed.Methods["balanceOf"]
	if !bytes.Equal(method.ID, msg.Data[:4]) {
		return nil, fmt.Errorf("unexpected call")
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)
	owner := args[0].(common.Address)
	bal, ok := f.balances[owner]
	if !ok {
		bal = big.NewInt(0)
	}
	return method.Outputs.Pack(bal)
}

func transferLog(block uint64, from, to common.Address) types.Log {
	return types.Log{
		BlockNumber: block,
		Topics: []common.Hash{
			token.TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
	}
}

func TestScannerListsCurrentHoldersByBalance(t *testing.T) {
	alice := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	backend := &fakeBackend{
		t:      t,
		latest: 100,
		logs: []types.Log{
			transferLog(10, common.Address{}, alice),
			transferLog(40, alice, bob),
			transferLog(95, bob, carol),
		},
		balances: map[common.Address]*big.Int{
			alice: big.NewInt(500),
			bob:   big.NewInt(0),
			carol: big.NewInt(900),
		},
	}

	scanner := NewScanner(Config{BatchSize: 30, RetryBackoff: time.Millisecond}, func(string) (Backend, bool) { return backend, true }, nil)

	holders, err := scanner.ListHolders(context.Background(), "0x1111111111111111111111111111111111111111", "ethereum", 10)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "0xcccccccccccccccccccccccccccccccccccccccc", holders[0].Address)
	assert.Equal(t, "900", holders[0].Balance)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", holders[1].Address)

	filtersAfterList := atomic.LoadInt32(&backend.filters)
	assert.Equal(t, int32(4), filtersAfterList)

	count, err := scanner.CountHolders(context.Background(), "0x1111111111111111111111111111111111111111", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, filtersAfterList, atomic.LoadInt32(&backend.filters), "count should reuse the cached scan")
}

func TestScannerUnsupportedChain(t *testing.T) {
	scanner := NewScanner(Config{}, func(string) (Backend, bool) { return nil, false }, nil)
	_, err := scanner.ListHolders(context.Background(), "0x1111111111111111111111111111111111111111", "base", 10)
	require.Error(t, err)
}
