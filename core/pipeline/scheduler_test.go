/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pipeline_test

import (
	"testing"
	"time"

	"github.com/meridianledger/mirror/core/pipeline"
	"github.com/stretchr/testify/require"
)

func TestSchedulerAdmissible(t *testing.T) {
	s := pipeline.NewScheduler(100, 5, 2)

	require.True(t, s.Admissible(101))
	require.True(t, s.Admissible(105))
	require.False(t, s.Admissible(106))

	s.CommitDone(101)
	require.True(t, s.Admissible(106))
	require.False(t, s.Admissible(107))
	require.Equal(t, uint64(101), s.CommittedSequence())
}

func TestSchedulerAssignsByStride(t *testing.T) {
	s := pipeline.NewScheduler(100, 10, 2)

	seq, ok := s.NextFor(0)
	require.True(t, ok)
	require.Equal(t, uint64(101), seq)

	seq, ok = s.NextFor(1)
	require.True(t, ok)
	require.Equal(t, uint64(102), seq)

	// 同一执行线按步长前进
	seq, ok = s.NextFor(0)
	require.True(t, ok)
	require.Equal(t, uint64(103), seq)

	seq, ok = s.NextFor(1)
	require.True(t, ok)
	require.Equal(t, uint64(104), seq)
}

func TestSchedulerNextForBlocksOutsideWindow(t *testing.T) {
	s := pipeline.NewScheduler(100, 1, 1)

	seq, ok := s.NextFor(0)
	require.True(t, ok)
	require.Equal(t, uint64(101), seq)

	got := make(chan uint64, 1)
	go func() {
		seq, ok := s.NextFor(0)
		if ok {
			got <- seq
		}
	}()

	select {
	case seq := <-got:
		t.Fatalf("窗口未开时不应分派序号, 却得到 %d", seq)
	case <-time.After(50 * time.Millisecond):
	}

	s.CommitDone(101)
	select {
	case seq := <-got:
		require.Equal(t, uint64(102), seq)
	case <-time.After(time.Second):
		t.Fatal("提交推进后窗口应当打开")
	}
}

func TestSchedulerWaitTurnOrdersCommits(t *testing.T) {
	s := pipeline.NewScheduler(100, 10, 2)

	// 直接后继立即放行
	require.True(t, s.WaitTurn(101))

	// 已提交过的序号也放行, 由装载方的幂等语义兜底
	require.True(t, s.WaitTurn(100))

	released := make(chan bool, 1)
	go func() {
		released <- s.WaitTurn(103)
	}()

	select {
	case <-released:
		t.Fatal("前驱未提交时 103 不应放行")
	case <-time.After(50 * time.Millisecond):
	}

	s.CommitDone(101)
	select {
	case <-released:
		t.Fatal("前沿为 101 时 103 仍不应放行")
	case <-time.After(50 * time.Millisecond):
	}

	s.CommitDone(102)
	select {
	case ok := <-released:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("前沿推进到 102 后 103 应当放行")
	}
}

func TestSchedulerStopUnblocksWaiters(t *testing.T) {
	s := pipeline.NewScheduler(100, 1, 2)

	results := make(chan bool, 2)
	go func() {
		_, ok := s.NextFor(1) // 102 超窗, 阻塞
		results <- ok
	}()
	go func() {
		results <- s.WaitTurn(105)
	}()

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case ok := <-results:
			require.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("停止后等待者应当立即返回")
		}
	}
}

func TestSchedulerFrontierMonotonic(t *testing.T) {
	s := pipeline.NewScheduler(100, 5, 1)

	s.CommitDone(103)
	require.Equal(t, uint64(103), s.CommittedSequence())

	// 迟到的重复通知不会让前沿回退
	s.CommitDone(101)
	require.Equal(t, uint64(103), s.CommittedSequence())
}
