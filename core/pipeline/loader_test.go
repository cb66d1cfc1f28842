/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/meridianledger/mirror/core/ledger/store"
	"github.com/meridianledger/mirror/core/ledger/store/leveldbstore"
	"github.com/meridianledger/mirror/core/pipeline"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// scriptedStore 按脚本应答 Commit, 其余操作保持最小语义。
type scriptedStore struct {
	mu        sync.Mutex
	watermark uint64
	ledgers   map[uint64]*mirrorpb.LedgerData
	commitErr []error // 依次弹出, 耗尽后成功
	commits   int
}

func newScriptedStore(watermark uint64, commitErr ...error) *scriptedStore {
	return &scriptedStore{
		watermark: watermark,
		ledgers:   map[uint64]*mirrorpb.LedgerData{},
		commitErr: commitErr,
	}
}

func (s *scriptedStore) Commit(_ context.Context, seq uint64, data *mirrorpb.LedgerData, isInitial bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	if len(s.commitErr) > 0 {
		err := s.commitErr[0]
		s.commitErr = s.commitErr[1:]
		if err != nil {
			return 0, err
		}
	}
	if !isInitial && seq <= s.watermark {
		return s.watermark, nil
	}
	s.ledgers[seq] = data
	s.watermark = seq
	return s.watermark, nil
}

func (s *scriptedStore) LastCommittedSequence(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark, nil
}

func (s *scriptedStore) Ledger(_ context.Context, seq uint64) (*mirrorpb.LedgerData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.ledgers[seq]; ok {
		return data, nil
	}
	return nil, store.ErrNotFound
}

func (s *scriptedStore) StateCursor(context.Context) ([]byte, error) { return nil, nil }
func (s *scriptedStore) SaveStateCursor(context.Context, []*mirrorpb.StateObject, []byte) error {
	return nil
}
func (s *scriptedStore) ClearStateCursor(context.Context) error { return nil }
func (s *scriptedStore) Close()                                 {}

func (s *scriptedStore) commitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func fastRetryConfig() pipeline.Config {
	return pipeline.Config{
		MaxConcurrency:    1,
		MaxWindow:         8,
		InitialRetryDelay: time.Millisecond,
		MaxRetryDelay:     5 * time.Millisecond,
		MaxRetries:        3,
	}
}

func TestLoaderCommitAdvancesScheduler(t *testing.T) {
	backend := newScriptedStore(100)
	sched := pipeline.NewScheduler(100, 8, 1)
	loader := pipeline.NewLoader(backend, sched, fastRetryConfig(), pipeline.NewMetrics(nil))

	committed, err := loader.Load(context.Background(), testLedger(101), false)
	require.NoError(t, err)
	require.Equal(t, uint64(101), committed)
	require.Equal(t, uint64(101), sched.CommittedSequence())
}

func TestLoaderRetriesStorageUnavailable(t *testing.T) {
	backend := newScriptedStore(100, store.ErrStorageUnavailable, store.ErrStorageUnavailable)
	sched := pipeline.NewScheduler(100, 8, 1)
	loader := pipeline.NewLoader(backend, sched, fastRetryConfig(), pipeline.NewMetrics(nil))

	committed, err := loader.Load(context.Background(), testLedger(101), false)
	require.NoError(t, err)
	require.Equal(t, uint64(101), committed)
	require.Equal(t, 3, backend.commitCalls())
}

func TestLoaderGivesUpAfterRetryBudget(t *testing.T) {
	backend := newScriptedStore(100,
		store.ErrStorageUnavailable, store.ErrStorageUnavailable,
		store.ErrStorageUnavailable, store.ErrStorageUnavailable,
		store.ErrStorageUnavailable, store.ErrStorageUnavailable)
	sched := pipeline.NewScheduler(100, 8, 1)
	loader := pipeline.NewLoader(backend, sched, fastRetryConfig(), pipeline.NewMetrics(nil))

	_, err := loader.Load(context.Background(), testLedger(101), false)
	require.Error(t, err)
	require.True(t, errors.Is(err, store.ErrStorageUnavailable))
	// 预算为 3 次重试, 合计 4 次尝试
	require.Equal(t, 4, backend.commitCalls())
	require.Equal(t, uint64(100), sched.CommittedSequence())
}

func TestLoaderFatalErrorsAreNotRetried(t *testing.T) {
	backend := newScriptedStore(100, store.ErrCorrupt)
	sched := pipeline.NewScheduler(100, 8, 1)
	loader := pipeline.NewLoader(backend, sched, fastRetryConfig(), pipeline.NewMetrics(nil))

	_, err := loader.Load(context.Background(), testLedger(101), false)
	require.True(t, errors.Is(err, store.ErrCorrupt))
	require.Equal(t, 1, backend.commitCalls())
}

func TestLoaderRejectsFrontierGap(t *testing.T) {
	backend := newScriptedStore(100)
	sched := pipeline.NewScheduler(100, 8, 1)
	loader := pipeline.NewLoader(backend, sched, fastRetryConfig(), pipeline.NewMetrics(nil))

	_, err := loader.Load(context.Background(), testLedger(103), false)
	require.True(t, errors.Is(err, store.ErrSequenceGap))
	require.Equal(t, 0, backend.commitCalls())

	// 锚点提交不受前沿防线约束
	committed, err := loader.Load(context.Background(), testLedger(500), true)
	require.NoError(t, err)
	require.Equal(t, uint64(500), committed)
}

func TestLoaderCancelledDuringBackoff(t *testing.T) {
	backend := newScriptedStore(100,
		store.ErrStorageUnavailable, store.ErrStorageUnavailable,
		store.ErrStorageUnavailable, store.ErrStorageUnavailable)
	sched := pipeline.NewScheduler(100, 8, 1)
	cfg := fastRetryConfig()
	cfg.InitialRetryDelay = 50 * time.Millisecond
	cfg.MaxRetryDelay = time.Second
	loader := pipeline.NewLoader(backend, sched, cfg, pipeline.NewMetrics(nil))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := loader.Load(ctx, testLedger(101), false)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	require.Less(t, time.Since(start), 40*time.Millisecond, "取消应当立即打断退避等待")
}

// 同一 (序号, 账本) 重复装载得到完全相同的状态, 使用真实的
// LevelDB 后端验证。
func TestLoaderIdempotentReplay(t *testing.T) {
	backend, err := leveldbstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(backend.Close)

	ctx := context.Background()
	_, err = backend.Commit(ctx, 100, testLedger(100), true)
	require.NoError(t, err)

	sched := pipeline.NewScheduler(100, 8, 1)
	loader := pipeline.NewLoader(backend, sched, fastRetryConfig(), pipeline.NewMetrics(nil))

	data := testLedger(101)
	committed, err := loader.Load(ctx, data, false)
	require.NoError(t, err)
	require.Equal(t, uint64(101), committed)

	// 重放同一单元: 无操作的成功, 状态不变
	committed, err = loader.Load(ctx, data, false)
	require.NoError(t, err)
	require.Equal(t, uint64(101), committed)

	last, err := backend.LastCommittedSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(101), last)

	stored, err := backend.Ledger(ctx, 101)
	require.NoError(t, err)
	require.Equal(t, uint64(101), stored.GetHeader().GetSequence())
}
