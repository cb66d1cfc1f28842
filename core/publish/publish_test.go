/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package publish_test

import (
	"sync"
	"testing"

	"github.com/meridianledger/mirror/common/metrics/metricsfakes"
	"github.com/meridianledger/mirror/core/publish"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/stretchr/testify/require"
)

// recordingFeed 收集投递到的账本序号。gate 与 entered 非空时,
// Notify 在进入后先发信号再阻塞, 用于把派发协程卡在投递中。
type recordingFeed struct {
	mutex   sync.Mutex
	seqs    []uint64
	gate    chan struct{}
	entered chan struct{}
}

func (f *recordingFeed) Notify(data *mirrorpb.LedgerData) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.seqs = append(f.seqs, data.GetHeader().GetSequence())
}

func (f *recordingFeed) received() []uint64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]uint64(nil), f.seqs...)
}

type panickyFeed struct{}

func (panickyFeed) Notify(*mirrorpb.LedgerData) { panic("订阅面故障") }

func ledger(seq uint64) *mirrorpb.LedgerData {
	return &mirrorpb.LedgerData{
		Header: &mirrorpb.LedgerHeader{Sequence: seq},
	}
}

func TestPublisherDeliversToAllFeeds(t *testing.T) {
	first := &recordingFeed{}
	second := &recordingFeed{}
	p := publish.NewPublisher(0, nil, first, second)

	p.Publish(ledger(1))
	p.Publish(ledger(2))
	p.Publish(ledger(3))
	p.Stop()

	require.Equal(t, []uint64{1, 2, 3}, first.received())
	require.Equal(t, []uint64{1, 2, 3}, second.received())
	require.Equal(t, uint64(3), p.LastValidatedSequence())
}

func TestPublisherWatermarkIsMonotonic(t *testing.T) {
	provider := metricsfakes.NewProvider()
	sink := &recordingFeed{}
	p := publish.NewPublisher(0, publish.NewMetrics(provider), sink)
	defer p.Stop()

	p.Publish(ledger(5))
	require.Equal(t, uint64(5), p.LastValidatedSequence())

	// 重放旧序号不回退水位
	p.Publish(ledger(3))
	require.Equal(t, uint64(5), p.LastValidatedSequence())
	require.Equal(t, float64(5), provider.GaugeFake.LastSet())
}

func TestPublisherDropsOldestWhenQueueIsFull(t *testing.T) {
	provider := metricsfakes.NewProvider()
	sink := &recordingFeed{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
	p := publish.NewPublisher(2, publish.NewMetrics(provider), sink)

	// 账本 1 进入投递并阻塞, 此时队列为空
	p.Publish(ledger(1))
	<-sink.entered

	// 填满队列后再发布: 最旧的账本 2 被弹出, 账本 4 占位
	p.Publish(ledger(2))
	p.Publish(ledger(3))
	p.Publish(ledger(4))

	close(sink.gate)
	p.Stop()

	require.Equal(t, []uint64{1, 3, 4}, sink.received())
	require.Equal(t, uint64(4), p.LastValidatedSequence())
	require.Equal(t, float64(4), provider.GaugeFake.LastSet())
}

func TestPublisherStopIsIdempotent(t *testing.T) {
	sink := &recordingFeed{}
	p := publish.NewPublisher(0, nil, sink)

	p.Publish(ledger(8))
	p.Stop()
	require.NotPanics(t, p.Stop)
	require.Equal(t, []uint64{8}, sink.received())

	// 停止后发布只推进水位, 不再投递
	p.Publish(ledger(9))
	require.Equal(t, uint64(9), p.LastValidatedSequence())
	require.Equal(t, []uint64{8}, sink.received())
}

func TestPublisherRecoversFeedPanic(t *testing.T) {
	sink := &recordingFeed{}
	p := publish.NewPublisher(0, nil, panickyFeed{}, sink)

	p.Publish(ledger(2))
	p.Stop()

	// 前一个投递端恐慌不影响后续投递端
	require.Equal(t, []uint64{2}, sink.received())
}
