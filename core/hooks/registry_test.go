/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package hooks_test

import (
	"testing"

	"github.com/meridianledger/mirror/common/metrics/metricsfakes"
	"github.com/meridianledger/mirror/core/hooks"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// scriptedHook 记录自己被调用的顺序, 并按脚本返回错误或恐慌。
type scriptedHook struct {
	name    string
	calls   *[]string
	err     error
	panicAt bool
}

func (s *scriptedHook) Name() string { return s.name }

func (s *scriptedHook) OnCommit(data *mirrorpb.LedgerData) error {
	*s.calls = append(*s.calls, s.name)
	if s.panicAt {
		panic("钩子内部故障")
	}
	return s.err
}

func committedLedger(seq uint64) *mirrorpb.LedgerData {
	return &mirrorpb.LedgerData{
		Header: &mirrorpb.LedgerHeader{Sequence: seq},
	}
}

func TestRegistryInvokesInRegistrationOrder(t *testing.T) {
	var calls []string
	reg := hooks.NewRegistry(nil)
	require.NoError(t, reg.Register(&scriptedHook{name: "first", calls: &calls}))
	require.NoError(t, reg.Register(&scriptedHook{name: "second", calls: &calls}))
	require.NoError(t, reg.Register(&scriptedHook{name: "third", calls: &calls}))

	reg.Invoke(committedLedger(7))
	require.Equal(t, []string{"first", "second", "third"}, calls)
	require.Equal(t, []string{"first", "second", "third"}, reg.Names())
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	var calls []string
	reg := hooks.NewRegistry(nil)
	require.NoError(t, reg.Register(&scriptedHook{name: "index", calls: &calls}))

	err := reg.Register(&scriptedHook{name: "index", calls: &calls})
	require.EqualError(t, err, "钩子 index 已经注册")
}

func TestRegistryHookErrorDoesNotStopChain(t *testing.T) {
	provider := metricsfakes.NewProvider()
	var calls []string
	reg := hooks.NewRegistry(hooks.NewMetrics(provider))
	require.NoError(t, reg.Register(&scriptedHook{name: "broken", calls: &calls, err: errors.New("boom")}))
	require.NoError(t, reg.Register(&scriptedHook{name: "healthy", calls: &calls}))

	reg.Invoke(committedLedger(3))

	// 出错的钩子不影响后续钩子
	require.Equal(t, []string{"broken", "healthy"}, calls)
	require.Equal(t, 1, provider.CounterFake.AddCallCount())
	require.Equal(t, []string{"hook", "broken"}, provider.CounterFake.WithArgsForCall(0))
}

func TestRegistryRecoversHookPanic(t *testing.T) {
	provider := metricsfakes.NewProvider()
	var calls []string
	reg := hooks.NewRegistry(hooks.NewMetrics(provider))
	require.NoError(t, reg.Register(&scriptedHook{name: "panicky", calls: &calls, panicAt: true}))
	require.NoError(t, reg.Register(&scriptedHook{name: "survivor", calls: &calls}))

	require.NotPanics(t, func() { reg.Invoke(committedLedger(9)) })
	require.Equal(t, []string{"panicky", "survivor"}, calls)
	require.Equal(t, 1, provider.CounterFake.AddCallCount())
	require.Equal(t, []string{"hook", "panicky"}, provider.CounterFake.WithArgsForCall(0))
	// 每次钩子调用都会观测耗时, 包括恐慌的那次
	require.Equal(t, 2, provider.HistogramFake.ObserveCallCount())
}
