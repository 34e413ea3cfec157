package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdersync/internal/model"
)

func TestExportHoldersJSONL(t *testing.T) {
	records := []model.HolderRecord{
		{PoolID: 7, HolderAddress: "0xaa", RawBalance: "300", PoolShare: decimal.RequireFromString("75"), Rank: 1},
		{PoolID: 7, HolderAddress: "0xbb", RawBalance: "100", PoolShare: decimal.RequireFromString("25"), Rank: 2},
	}

	path := filepath.Join(t.TempDir(), "out", "holders.jsonl")
	require.NoError(t, ExportHoldersJSONL(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var got []model.HolderRecord
	for scanner.Scan() {
		var record model.HolderRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		got = append(got, record)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "0xaa", got[0].HolderAddress)
	assert.Equal(t, 2, got[1].Rank)
	assert.True(t, got[1].PoolShare.Equal(decimal.NewFromInt(25)))
}
