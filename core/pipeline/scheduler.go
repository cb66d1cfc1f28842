/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"sync"
	"sync/atomic"
)

// Scheduler 守护预取窗口与全局提交前沿。
//
// 序号按模数预先分派给各执行线: 执行线 i 负责 base+i, base+i+stride,
// base+i+2*stride ... 其中 stride 为执行线数量。准入规则是
// seq <= committedSequence + maxWindow; 未达准入的执行线与等待提交
// 顺位的执行线阻塞在同一个条件变量上, 每次提交成功都会广播唤醒。
//
// committedSequence 只在锁内由提交路径写入, 同时镜像到一个原子字段
// 供状态面与准入判断无锁读取。
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    []uint64 // 每条执行线的下一个待处理序号
	stride  uint64
	window  uint64
	stopped bool

	committed uint64 // 锁内权威值
	frontier  uint64 // 原子镜像, 无锁读取
}

// NewScheduler 以给定的提交前沿、预取窗口和执行线数量创建调度器。
func NewScheduler(committed, window uint64, strands int) *Scheduler {
	s := &Scheduler{
		next:      make([]uint64, strands),
		stride:    uint64(strands),
		window:    window,
		committed: committed,
	}
	s.cond = sync.NewCond(&s.mu)
	atomic.StoreUint64(&s.frontier, committed)
	for i := range s.next {
		s.next[i] = committed + 1 + uint64(i)
	}
	return s
}

// Admissible 判断序号是否落在预取窗口内, 无锁。
func (s *Scheduler) Admissible(seq uint64) bool {
	return seq <= s.CommittedSequence()+s.window
}

// NextFor 返回执行线 strand 的下一个待处理序号, 窗口未开时阻塞,
// 直到提交前沿推进或调度器停止。
//
// 返回值：
//   - uint64：分派给该执行线的序号。
//   - bool：false 表示调度器已停止, 执行线应当退出。
func (s *Scheduler) NextFor(strand int) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.next[strand]
	for !s.stopped && seq > s.committed+s.window {
		s.cond.Wait()
	}
	if s.stopped {
		return 0, false
	}
	s.next[strand] = seq + s.stride
	return seq, true
}

// WaitTurn 阻塞到 seq 成为提交前沿的直接后继, 即轮到该序号提交。
// 序号已被提交过时直接放行, 由装载方的幂等语义兜底。
// 返回 false 表示调度器已停止, 等待中的单元应当被丢弃。
func (s *Scheduler) WaitTurn(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.stopped && seq > s.committed+1 {
		s.cond.Wait()
	}
	return !s.stopped
}

// CommitDone 推进提交前沿并广播唤醒所有等待者。
// 乱序或重复的通知只广播不回退, 前沿单调不减。
func (s *Scheduler) CommitDone(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq > s.committed {
		s.committed = seq
		atomic.StoreUint64(&s.frontier, seq)
	}
	s.cond.Broadcast()
}

// CommittedSequence 无锁读取当前提交前沿。
func (s *Scheduler) CommittedSequence() uint64 {
	return atomic.LoadUint64(&s.frontier)
}

// Stop 让所有阻塞中的执行线立即返回, 幂等。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.cond.Broadcast()
}
