/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/meridianledger/mirror/core/ledger/store"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

// Loader 把提取完成的账本写入存储后端: 暂时性故障按退避有界重试,
// 提交成功后推进调度器的前沿并唤醒等待窗口的执行线。
//
// 无缺口不变式在这里再设一道防线: 非锚点提交的序号必须不超过
// 前沿的直接后继, 越过前沿按致命错误上抛。
type Loader struct {
	backend store.Store
	sched   *Scheduler
	backoff backoffPolicy
	retries int
	sleeper sleeper
	metrics *Metrics
}

// NewLoader 创建装载器。退避参数与重试预算取自管道配置。
func NewLoader(backend store.Store, sched *Scheduler, cfg Config, m *Metrics) *Loader {
	return &Loader{
		backend: backend,
		sched:   sched,
		backoff: backoffPolicy{initialDelay: cfg.InitialRetryDelay, maxDelay: cfg.MaxRetryDelay},
		retries: cfg.MaxRetries,
		sleeper: sleeper{clock: clock.NewClock()},
		metrics: m,
	}
}

// Load 原子地提交一个账本单元。
//
// 输入参数：
//   - ctx：取消即中止重试等待, 上抛取消错误。
//   - data：完整提取单元, 序号取自头部。
//   - isInitial：锚点提交, 跳过前沿防线并允许任意起始序号。
//
// 返回值：
//   - uint64：新的已提交序列号。对 seq <= 前沿 的重复提交返回现有
//     前沿 (幂等无操作)。
//   - error：ErrStorageUnavailable 重试预算耗尽、ErrCorrupt 或
//     ErrSequenceGap, 都应视为致命。
func (l *Loader) Load(ctx context.Context, data *mirrorpb.LedgerData, isInitial bool) (uint64, error) {
	seq := data.GetHeader().GetSequence()
	if !isInitial {
		if committed := l.sched.CommittedSequence(); seq > committed+1 {
			return 0, errors.WithMessagef(store.ErrSequenceGap, "账本 %d 越过了提交前沿 %d", seq, committed)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= l.retries; attempt++ {
		if attempt > 0 {
			delay := l.backoff.delay(attempt)
			logger.Warnw("存储暂时不可用, 退避后重试提交", "sequence", seq, "attempt", attempt, "delay", delay, "error", lastErr)
			l.metrics.LoadRetries.Add(1)
			l.sleeper.Sleep(delay, ctx.Done())
			if err := ctx.Err(); err != nil {
				return 0, errors.WithMessage(err, "装载在重试等待中被取消")
			}
		}

		start := time.Now()
		committed, err := l.backend.Commit(ctx, seq, data, isInitial)
		if err == nil {
			l.metrics.CommitDuration.Observe(time.Since(start).Seconds())
			l.sched.CommitDone(committed)
			return committed, nil
		}
		lastErr = err
		if !errors.Is(err, store.ErrStorageUnavailable) {
			// 损坏、断档或其它后端错误, 不重试
			return 0, err
		}
	}
	return 0, errors.WithMessagef(lastErr, "账本 %d 的提交在 %d 次重试后仍然失败", seq, l.retries)
}
