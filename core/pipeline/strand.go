/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

// strandState 标识执行线状态机所处的阶段。
type strandState uint32

const (
	strandIdle strandState = iota
	strandExtracting
	strandLoading
	strandPublishing
	strandHalted
)

func (s strandState) String() string {
	switch s {
	case strandIdle:
		return "IDLE"
	case strandExtracting:
		return "EXTRACTING"
	case strandLoading:
		return "LOADING"
	case strandPublishing:
		return "PUBLISHING"
	case strandHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// strand 是一条串行执行线。它对分派给自己的每个序号依次完成
// 提取、顺位等待、装载、发布, 线内严格按序, 任何时刻最多持有
// 一个已提取而未提交的单元。不可恢复的错误会使整个任务管理器
// 停摆, 本线进入终态 HALTED。
type strand struct {
	index  int
	tm     *TaskManager
	logger *flogging.FabricLogger

	state uint32 // strandState, 原子读写
	seq   uint64 // 当前处理中的序号, 原子读写, 0 表示空闲
}

func newStrand(index int, tm *TaskManager) *strand {
	return &strand{
		index:  index,
		tm:     tm,
		logger: logger.With("strand", index),
	}
}

// run 是执行线的主循环, 在任务管理器停止或本线停摆时退出。
func (st *strand) run() {
	defer st.tm.wg.Done()

	for {
		st.transition(strandIdle, 0)
		seq, ok := st.tm.sched.NextFor(st.index)
		if !ok {
			return
		}

		st.transition(strandExtracting, seq)
		data, err := st.extract(seq)
		if err != nil {
			st.halt(err)
			return
		}
		if data == nil {
			// 重试等待被停止信号打断
			st.transition(strandIdle, 0)
			return
		}

		// 修正案拦截: 头部带有本构建不认识的特性编号时立即停摆,
		// 该账本与其后继都不会被提交
		if err := st.tm.amendments.Check(data); err != nil {
			st.halt(errors.WithMessagef(err, "账本 %d 触发修正案拦截", seq))
			return
		}

		// 顺位等待: 本线只保留这一个完成单元, 直到前沿推进到 seq-1
		st.transition(strandLoading, seq)
		if !st.tm.sched.WaitTurn(seq) {
			st.transition(strandIdle, 0)
			return
		}
		committed, err := st.tm.loader.Load(st.tm.ctx, data, false)
		if err != nil {
			if st.tm.ctx.Err() != nil {
				st.transition(strandIdle, 0)
				return
			}
			st.halt(errors.WithMessagef(err, "账本 %d 的装载不可恢复", seq))
			return
		}
		st.tm.metrics.CommittedSequence.Set(float64(committed))

		st.transition(strandPublishing, seq)
		st.tm.invokeHooks(data)
		st.tm.publish(data)
		st.logger.Debugw("账本提交并发布完成", "sequence", seq, "committed", committed)
	}
}

// extract 带退避地反复通过源池提取账本。换源与源评级在均衡器内部
// 完成, 这里只消耗总的重试预算。返回 (nil, nil) 表示等待期间收到
// 停止信号, 调用方应当直接退出。
func (st *strand) extract(seq uint64) (*mirrorpb.LedgerData, error) {
	failures := 0
	for {
		start := time.Now()
		data, err := st.tm.pool.ExtractLedger(st.tm.ctx, seq, false)
		if err == nil {
			st.tm.metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
			return data, nil
		}
		if st.tm.ctx.Err() != nil {
			return nil, nil
		}

		failures++
		st.tm.metrics.ExtractionRetries.Add(1)
		if failures > st.tm.retries {
			return nil, errors.WithMessagef(err, "账本 %d 的提取在 %d 次重试后仍然失败", seq, failures-1)
		}

		delay := st.tm.backoff.delay(failures)
		st.logger.Warnw("提取失败, 退避后重试", "sequence", seq, "failures", failures, "delay", delay, "error", err)
		st.tm.sleeper.Sleep(delay, st.tm.ctx.Done())
		if st.tm.ctx.Err() != nil {
			return nil, nil
		}
	}
}

// halt 把本线置为终态并停摆整个任务管理器。
func (st *strand) halt(err error) {
	atomic.StoreUint32(&st.state, uint32(strandHalted))
	st.logger.Errorw("执行线遇到不可恢复错误", "sequence", atomic.LoadUint64(&st.seq), "error", err)
	st.tm.halt(err)
}

func (st *strand) transition(s strandState, seq uint64) {
	atomic.StoreUint32(&st.state, uint32(s))
	atomic.StoreUint64(&st.seq, seq)
}

// status 返回本线的原子快照。
func (st *strand) status() StrandStatus {
	return StrandStatus{
		Strand:   st.index,
		State:    strandState(atomic.LoadUint32(&st.state)).String(),
		Sequence: atomic.LoadUint64(&st.seq),
	}
}
