/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package featuretally_test

import (
	"testing"

	"github.com/meridianledger/mirror/common/metrics/metricsfakes"
	"github.com/meridianledger/mirror/core/hooks/featuretally"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/stretchr/testify/require"
)

func TestTallyCountsEnabledFeatures(t *testing.T) {
	provider := metricsfakes.NewProvider()
	tally := featuretally.New(provider)
	require.Equal(t, "featuretally", tally.Name())

	require.NoError(t, tally.OnCommit(&mirrorpb.LedgerData{
		Header: &mirrorpb.LedgerHeader{Sequence: 12, EnabledFeatures: []uint32{1, 7}},
	}))
	require.NoError(t, tally.OnCommit(&mirrorpb.LedgerData{
		Header: &mirrorpb.LedgerHeader{Sequence: 13, EnabledFeatures: []uint32{7}},
	}))

	counter := provider.CounterFake
	require.Equal(t, 3, counter.AddCallCount())
	require.Equal(t, []string{"feature", "1"}, counter.WithArgsForCall(0))
	require.Equal(t, []string{"feature", "7"}, counter.WithArgsForCall(1))
	require.Equal(t, []string{"feature", "7"}, counter.WithArgsForCall(2))
}

func TestTallyIgnoresLedgersWithoutFeatures(t *testing.T) {
	provider := metricsfakes.NewProvider()
	tally := featuretally.New(provider)

	require.NoError(t, tally.OnCommit(&mirrorpb.LedgerData{
		Header: &mirrorpb.LedgerHeader{Sequence: 20},
	}))
	require.Equal(t, 0, provider.CounterFake.AddCallCount())
}
