/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package extract_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/core/extract"
	"github.com/meridianledger/mirror/core/extract/fakepeer"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

// memorySink 在内存里累积初始装载的对象与游标。
type memorySink struct {
	mutex   sync.Mutex
	objects []*mirrorpb.StateObject
	cursor  []byte
	saveErr error
}

func (m *memorySink) StateCursor(context.Context) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.cursor == nil {
		return nil, nil
	}
	return append([]byte{}, m.cursor...), nil
}

func (m *memorySink) SaveStateCursor(_ context.Context, objects []*mirrorpb.StateObject, lastKey []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.objects = append(m.objects, objects...)
	m.cursor = append([]byte{}, lastKey...)
	return nil
}

func newBalancer(t *testing.T, sink extract.InitialStateSink, opts extract.Options, peers ...*fakepeer.Peer) *extract.LoadBalancer {
	var sources []*extract.Source
	for _, peer := range peers {
		sources = append(sources, newTestSource(t, peer))
	}
	extractor := &extract.Extractor{HashFamily: util.SM3, WalkBatchSize: 4}
	return extract.NewLoadBalancer(sources, extractor, sink, opts)
}

func startPeers(t *testing.T, n int) []*fakepeer.Peer {
	var peers []*fakepeer.Peer
	for i := 0; i < n; i++ {
		peer, err := fakepeer.Start()
		require.NoError(t, err)
		t.Cleanup(peer.Stop)
		peers = append(peers, peer)
	}
	return peers
}

func TestFailoverMarksUnhealthy(t *testing.T) {
	peers := startPeers(t, 3)
	peers[0].FailAll(codes.Unavailable)
	peers[1].FailAll(codes.Unavailable)
	peers[2].AddLedger(fakepeer.BuildLedger(util.SM3, 10, 2))

	lb := newBalancer(t, &memorySink{}, extract.Options{}, peers...)
	data, err := lb.ExtractLedger(context.Background(), 10, false)
	require.NoError(t, err)
	require.Equal(t, uint64(10), data.Header.Sequence)

	health := lb.Health()
	require.Equal(t, extract.StatusUnhealthy, health[0].Status)
	require.Equal(t, extract.StatusUnhealthy, health[1].Status)
	require.Equal(t, extract.StatusHealthy, health[2].Status)
	require.Equal(t, uint64(10), health[2].LastSequence)
}

func TestExtractLedgerNotFoundKeepsHealth(t *testing.T) {
	peers := startPeers(t, 2)

	lb := newBalancer(t, &memorySink{}, extract.Options{}, peers...)
	_, err := lb.ExtractLedger(context.Background(), 99, false)
	require.ErrorIs(t, err, extract.ErrNotFound)

	// 对端明确应答未找到, 不应降级: 账本尚未关闭是常态
	for _, sh := range lb.Health() {
		require.Equal(t, extract.StatusUnknown, sh.Status)
		require.NotEmpty(t, sh.LastError)
	}
}

func TestMalformedFailsOverToNextSource(t *testing.T) {
	peers := startPeers(t, 2)

	corrupt := fakepeer.BuildLedger(util.SM3, 20, 2)
	corrupt.Header.TxsetHash = []byte("tampered")
	peers[0].AddLedger(corrupt)
	peers[1].AddLedger(fakepeer.BuildLedger(util.SM3, 20, 2))

	lb := newBalancer(t, &memorySink{}, extract.Options{}, peers...)
	data, err := lb.ExtractLedger(context.Background(), 20, false)
	require.NoError(t, err)
	require.Equal(t, uint64(20), data.Header.Sequence)

	health := lb.Health()
	require.Equal(t, extract.StatusUnhealthy, health[0].Status)
	require.Contains(t, health[0].LastError, "校验")
	require.Equal(t, extract.StatusHealthy, health[1].Status)
}

func TestExtractLedgerExhausted(t *testing.T) {
	peers := startPeers(t, 2)
	peers[0].FailAll(codes.Unavailable)
	peers[1].FailAll(codes.Internal)

	lb := newBalancer(t, &memorySink{}, extract.Options{}, peers...)
	_, err := lb.ExtractLedger(context.Background(), 3, false)
	require.ErrorIs(t, err, extract.ErrExhausted)
}

func TestAttemptTimeoutAdvances(t *testing.T) {
	peers := startPeers(t, 2)
	peers[0].AddLedger(fakepeer.BuildLedger(util.SM3, 8, 1))
	peers[0].SetLedgerDelay(func(uint64) time.Duration { return 300 * time.Millisecond })
	peers[1].AddLedger(fakepeer.BuildLedger(util.SM3, 8, 1))

	lb := newBalancer(t, &memorySink{}, extract.Options{AttemptTimeout: 50 * time.Millisecond}, peers...)
	data, err := lb.ExtractLedger(context.Background(), 8, false)
	require.NoError(t, err)
	require.Equal(t, uint64(8), data.Header.Sequence)
	require.Equal(t, extract.StatusUnhealthy, lb.Health()[0].Status)
}

func TestHealthWeightedOrder(t *testing.T) {
	peers := startPeers(t, 2)
	peers[1].AddLedger(fakepeer.BuildLedger(util.SM3, 30, 1))
	peers[1].AddLedger(fakepeer.BuildLedger(util.SM3, 31, 1))

	lb := newBalancer(t, &memorySink{}, extract.Options{}, peers...)

	// 第一次: 池中都是 UNKNOWN, 按配置顺序尝试, 0 号记录未找到
	_, err := lb.ExtractLedger(context.Background(), 30, false)
	require.NoError(t, err)
	require.Equal(t, extract.StatusHealthy, lb.Health()[1].Status)
	firstErr := lb.Health()[0].LastError
	require.Contains(t, firstErr, "30")

	// 第二次: HEALTHY 的 1 号优先, 0 号不应再被尝试, 记录的错误不变
	_, err = lb.ExtractLedger(context.Background(), 31, false)
	require.NoError(t, err)
	require.Equal(t, firstErr, lb.Health()[0].LastError)
}

func TestCooldownReadmission(t *testing.T) {
	peers := startPeers(t, 1)
	peers[0].FailAll(codes.Unavailable)

	lb := newBalancer(t, &memorySink{}, extract.Options{SourceCooldown: 50 * time.Millisecond}, peers...)
	_, err := lb.ExtractLedger(context.Background(), 5, false)
	require.ErrorIs(t, err, extract.ErrExhausted)

	// 冷却期内唯一的源不参与候选
	_, err = lb.ExtractLedger(context.Background(), 5, false)
	require.ErrorIs(t, err, extract.ErrNoHealthySource)

	peers[0].Recover()
	peers[0].AddLedger(fakepeer.BuildLedger(util.SM3, 5, 1))
	time.Sleep(80 * time.Millisecond)

	data, err := lb.ExtractLedger(context.Background(), 5, false)
	require.NoError(t, err)
	require.Equal(t, uint64(5), data.Header.Sequence)
	require.Equal(t, extract.StatusHealthy, lb.Health()[0].Status)
}

func TestForward(t *testing.T) {
	peers := startPeers(t, 1)

	lb := newBalancer(t, &memorySink{}, extract.Options{AttemptTimeout: time.Second}, peers...)
	resp, err := lb.Forward(context.Background(), &mirrorpb.ForwardRequest{Payload: []byte("query")})
	require.NoError(t, err)
	require.Equal(t, []byte("query"), resp.Payload)
	require.Equal(t, extract.StatusHealthy, lb.Health()[0].Status)

	peers[0].Stop()
	_, err = lb.Forward(context.Background(), &mirrorpb.ForwardRequest{Payload: []byte("query")})
	require.ErrorIs(t, err, extract.ErrNoHealthySource)

	// 唯一的源已降级, 不再有转发候选
	_, err = lb.Forward(context.Background(), &mirrorpb.ForwardRequest{Payload: []byte("query")})
	require.ErrorIs(t, err, extract.ErrNoHealthySource)
}

func TestProbeAll(t *testing.T) {
	peers := startPeers(t, 2)
	peers[0].AddLedger(fakepeer.BuildLedger(util.SM3, 40, 1))
	peers[0].AddLedger(fakepeer.BuildLedger(util.SM3, 44, 1))
	peers[1].Stop()

	lb := newBalancer(t, &memorySink{}, extract.Options{AttemptTimeout: time.Second}, peers...)
	lb.ProbeAll(context.Background())

	health := lb.Health()
	require.Equal(t, extract.StatusHealthy, health[0].Status)
	require.Equal(t, uint64(44), health[0].LastSequence)
	require.Equal(t, extract.StatusUnhealthy, health[1].Status)

	require.NoError(t, lb.HealthCheck(context.Background()))
}

func TestInitialLoadResumesAcrossSources(t *testing.T) {
	peers := startPeers(t, 2)

	var state []*mirrorpb.StateObject
	for i := 0; i < 10; i++ {
		state = append(state, &mirrorpb.StateObject{
			Op:      mirrorpb.StateOp_STATE_OP_INSERT,
			Key:     []byte{byte(i)},
			Payload: []byte{0xA0, byte(i)},
		})
	}
	for _, peer := range peers {
		peer.AddLedger(fakepeer.BuildLedger(util.SM3, 100, 2))
		peer.SetState(state)
	}
	// 0 号在第一批之后断流, 走读应换源续走而不是从头再来
	peers[0].FailWalkAfter(1)

	sink := &memorySink{}
	lb := newBalancer(t, sink, extract.Options{}, peers...)

	data, err := lb.ExtractLedger(context.Background(), 100, true)
	require.NoError(t, err)
	require.Equal(t, uint64(100), data.Header.Sequence)

	require.Len(t, sink.objects, 10)
	for i, obj := range sink.objects {
		require.Equal(t, []byte{byte(i)}, obj.Key)
	}

	health := lb.Health()
	require.Equal(t, extract.StatusUnhealthy, health[0].Status)
	require.Equal(t, extract.StatusHealthy, health[1].Status)
}

func TestInitialLoadSinkFailureDoesNotBlameSource(t *testing.T) {
	peers := startPeers(t, 1)
	peers[0].AddLedger(fakepeer.BuildLedger(util.SM3, 50, 1))
	peers[0].SetState([]*mirrorpb.StateObject{
		{Op: mirrorpb.StateOp_STATE_OP_INSERT, Key: []byte{1}},
	})

	sinkFailure := errors.New("disk full")
	sink := &memorySink{saveErr: sinkFailure}
	lb := newBalancer(t, sink, extract.Options{}, peers...)

	_, err := lb.ExtractLedger(context.Background(), 50, true)
	require.ErrorIs(t, err, sinkFailure)
	require.NotEqual(t, extract.StatusUnhealthy, lb.Health()[0].Status)
}

func TestExtractLedgerEmptyPool(t *testing.T) {
	lb := extract.NewLoadBalancer(nil, &extract.Extractor{HashFamily: util.SM3}, &memorySink{}, extract.Options{})
	_, err := lb.ExtractLedger(context.Background(), 1, false)
	require.ErrorIs(t, err, extract.ErrNoHealthySource)
	require.Error(t, lb.HealthCheck(context.Background()))
}
