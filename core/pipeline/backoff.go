/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"math"
	"time"

	"code.cloudfoundry.org/clock"
)

// backoffExponentBase 是重试间隔的指数底数。间隔从 InitialRetryDelay
// 开始按 1.2 的幂增长, 到 MaxRetryDelay 封顶。
const backoffExponentBase = 1.2

// backoffPolicy 计算第 n 次失败之后应当等待的时长。
type backoffPolicy struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

func (p backoffPolicy) delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := time.Duration(math.Pow(backoffExponentBase, float64(failures-1)) * float64(p.initialDelay))
	if d > p.maxDelay || d <= 0 {
		return p.maxDelay
	}
	return d
}

// sleeper 把退避等待与停止信号解耦。计时器来自可注入的时钟,
// 停止信号到达时等待立即结束。
type sleeper struct {
	clock clock.Clock
}

func (s sleeper) Sleep(d time.Duration, doneC <-chan struct{}) {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C():
	case <-doneC:
	}
}
