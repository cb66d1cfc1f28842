/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"code.cloudfoundry.org/clock"
	"github.com/meridianledger/mirror/common/amendments"
	"github.com/meridianledger/mirror/protos/mirrorpb"
)

// TaskManager 运行固定数量的执行线并收敛它们的致命错误。
//
// 停机只有一条路径: shutdown 同时停掉调度器、取消运行上下文,
// 在途的提取与装载随之尽快返回, 已完成而未到提交顺位的单元被丢弃
// (重启后会被重新提取, 不会产生部分写入)。停摆是带原因的停机,
// 原因只记第一个, 此后整个进程生命周期内不再发起任何提取或提交。
type TaskManager struct {
	pool       SourcePool
	sched      *Scheduler
	loader     *Loader
	amendments *amendments.Handler
	hooks      HookInvoker
	publisher  Notifier
	metrics    *Metrics

	backoff backoffPolicy
	retries int
	sleeper sleeper

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	strands []*strand

	stopOnce   sync.Once
	halted     uint32       // 原子布尔
	haltReason atomic.Value // string
}

func newTaskManager(parent context.Context, cfg Config, deps Deps, sched *Scheduler, loader *Loader) *TaskManager {
	ctx, cancel := context.WithCancel(parent)
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	tm := &TaskManager{
		pool:       deps.Pool,
		sched:      sched,
		loader:     loader,
		amendments: deps.Amendments,
		hooks:      deps.Hooks,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		backoff:    backoffPolicy{initialDelay: cfg.InitialRetryDelay, maxDelay: cfg.MaxRetryDelay},
		retries:    cfg.MaxRetries,
		sleeper:    sleeper{clock: clk},
		ctx:        ctx,
		cancel:     cancel,
	}
	loader.sleeper = sleeper{clock: clk}
	for i := 0; i < cfg.MaxConcurrency; i++ {
		tm.strands = append(tm.strands, newStrand(i, tm))
	}
	return tm
}

// start 启动全部执行线与上下文看护协程。
func (tm *TaskManager) start() {
	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		// 外部上下文取消等价于优雅停机
		<-tm.ctx.Done()
		tm.shutdown(nil)
	}()

	for _, st := range tm.strands {
		tm.wg.Add(1)
		go st.run()
	}
}

// halt 带原因地停摆, 只记录第一个原因。
func (tm *TaskManager) halt(err error) {
	tm.shutdown(err)
}

// stop 优雅停机并等待全部执行线退出。
func (tm *TaskManager) stop() {
	tm.shutdown(nil)
	tm.wg.Wait()
}

func (tm *TaskManager) shutdown(err error) {
	tm.stopOnce.Do(func() {
		if err != nil {
			atomic.StoreUint32(&tm.halted, 1)
			tm.haltReason.Store(err.Error())
			tm.metrics.Halted.Set(1)
			logger.Errorw("管道进入停摆状态", "reason", err.Error())
		} else {
			logger.Info("管道停机")
		}
		tm.sched.Stop()
		tm.cancel()
	})
}

// isHalted 报告管道是否因致命错误停摆。
func (tm *TaskManager) isHalted() bool {
	return atomic.LoadUint32(&tm.halted) == 1
}

// haltedReason 返回第一个致命错误的描述, 未停摆时为空串。
func (tm *TaskManager) haltedReason() string {
	if reason, ok := tm.haltReason.Load().(string); ok {
		return reason
	}
	return ""
}

func (tm *TaskManager) invokeHooks(data *mirrorpb.LedgerData) {
	if tm.hooks != nil {
		tm.hooks.Invoke(data)
	}
}

func (tm *TaskManager) publish(data *mirrorpb.LedgerData) {
	if tm.publisher != nil {
		tm.publisher.Publish(data)
	}
}
