/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package amendments_test

import (
	"sync"
	"testing"

	"github.com/meridianledger/mirror/common/amendments"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/stretchr/testify/require"
)

func featureLedger(seq uint64, features ...uint32) *mirrorpb.LedgerData {
	return &mirrorpb.LedgerData{
		Header: &mirrorpb.LedgerHeader{
			Sequence:        seq,
			EnabledFeatures: features,
		},
	}
}

func TestRegistryKnowsBuiltinsAndExtras(t *testing.T) {
	reg := amendments.NewRegistry(9, 12)

	require.True(t, reg.Known(amendments.FeatureBaseProtocol))
	require.True(t, reg.Known(amendments.FeatureSM3TxsetHash))
	require.True(t, reg.Known(9))
	require.True(t, reg.Known(12))
	require.False(t, reg.Known(4))

	// 排序、去重后的完整集合
	require.Equal(t, []uint32{1, 2, 3, 5, 9, 12}, reg.KnownFeatures())
}

func TestRegistryDeduplicatesExtras(t *testing.T) {
	reg := amendments.NewRegistry(amendments.FeatureBatchDelta, 9, 9)
	require.Equal(t, []uint32{1, 2, 3, 5, 9}, reg.KnownFeatures())
}

func TestHandlerAcceptsKnownFeatures(t *testing.T) {
	h := amendments.NewHandler(amendments.NewRegistry(), &amendments.BlockState{})

	require.NoError(t, h.Check(featureLedger(3)))
	require.NoError(t, h.Check(featureLedger(4, amendments.FeatureBaseProtocol, amendments.FeatureCompactTxLists)))
	require.False(t, h.State().Blocked())
}

func TestHandlerBlocksOnUnknownFeature(t *testing.T) {
	state := &amendments.BlockState{}
	h := amendments.NewHandler(amendments.NewRegistry(), state)

	err := h.Check(featureLedger(7, amendments.FeatureBaseProtocol, 42))
	require.Error(t, err)

	var blocked *amendments.BlockedError
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, uint32(42), blocked.Feature)
	require.Equal(t, uint64(7), blocked.Sequence)

	require.True(t, state.Blocked())
	feature, ok := state.Feature()
	require.True(t, ok)
	require.Equal(t, uint32(42), feature)
	reason, ok := state.Reason()
	require.True(t, ok)
	require.Contains(t, reason, "账本 7")
	require.Contains(t, reason, "特性 42")
}

func TestHandlerStaysBlockedForKnownLedgers(t *testing.T) {
	state := &amendments.BlockState{}
	h := amendments.NewHandler(amendments.NewRegistry(), state)

	require.Error(t, h.Check(featureLedger(7, 42)))

	// 封锁后连完全合规的账本也被拒绝, 重启前不可恢复
	err := h.Check(featureLedger(8))
	require.Error(t, err)
	require.Contains(t, err.Error(), "流水线已封锁")
}

func TestBlockStateKeepsFirstReason(t *testing.T) {
	state := &amendments.BlockState{}

	require.True(t, state.Block(41, "首个原因"))
	require.False(t, state.Block(43, "后来的原因"))

	reason, ok := state.Reason()
	require.True(t, ok)
	require.Equal(t, "首个原因", reason)
}

func TestBlockStateConcurrentBlockIsSingleWinner(t *testing.T) {
	state := &amendments.BlockState{}

	var wg sync.WaitGroup
	wins := make(chan uint32, 16)
	for i := 0; i < 16; i++ {
		feature := uint32(100 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if state.Block(feature, "并发封锁") {
				wins <- feature
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []uint32
	for f := range wins {
		winners = append(winners, f)
	}
	require.Len(t, winners, 1)

	feature, ok := state.Feature()
	require.True(t, ok)
	require.Equal(t, winners[0], feature)
}

func TestUnblockedStateReportsNothing(t *testing.T) {
	state := &amendments.BlockState{}

	require.False(t, state.Blocked())
	_, ok := state.Reason()
	require.False(t, ok)
	_, ok = state.Feature()
	require.False(t, ok)
}
