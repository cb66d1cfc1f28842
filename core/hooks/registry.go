/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package hooks 管理提交后观察者: 每个账本落盘之后、发布之前,
// 注册表按注册顺序同步调用所有钩子。钩子只观察已提交数据,
// 单个钩子的错误或 panic 会被恢复、记录并计数, 永远不会反向中断提取管道。
package hooks

import (
	"runtime/debug"
	"time"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("hooks")

// Hook 是提交后观察者, 调用顺序与注册顺序一致。
type Hook interface {
	// Name 返回钩子的注册名, 用于日志与度量标签。
	Name() string
	// OnCommit 观察一个已提交的账本。返回的错误只被记录, 不会向上传播。
	OnCommit(data *mirrorpb.LedgerData) error
}

// Registry 按注册顺序持有命名钩子。
// 注册发生在管道启动之前, Invoke 之后不再变更, 因此无需加锁。
type Registry struct {
	hooks   []Hook
	metrics *Metrics
}

// NewRegistry 创建一个空的钩子注册表。
// 输入参数：
//   - m：钩子度量, 为 nil 时使用禁用的度量工厂。
//
// 返回值：
//   - *Registry：新的注册表实例。
func NewRegistry(m *Metrics) *Registry {
	if m == nil {
		m = newDisabledMetrics()
	}
	return &Registry{metrics: m}
}

// Register 将钩子追加到调用链末尾, 名称重复时返回错误。
func (r *Registry) Register(h Hook) error {
	for _, existing := range r.hooks {
		if existing.Name() == h.Name() {
			return errors.Errorf("钩子 %s 已经注册", h.Name())
		}
	}
	r.hooks = append(r.hooks, h)
	logger.Infof("已注册提交后钩子: %s", h.Name())
	return nil
}

// Names 返回已注册钩子的名称, 顺序与调用顺序一致。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.hooks))
	for _, h := range r.hooks {
		names = append(names, h.Name())
	}
	return names
}

// Invoke 按注册顺序同步调用所有钩子观察一个已提交账本。
// 钩子失败只影响它自己: 记录日志、累加失败计数, 然后继续下一个钩子。
func (r *Registry) Invoke(data *mirrorpb.LedgerData) {
	for _, h := range r.hooks {
		r.invokeOne(h, data)
	}
}

// invokeOne 调用单个钩子并吸收它的错误与 panic。
func (r *Registry) invokeOne(h Hook, data *mirrorpb.LedgerData) {
	startTime := time.Now()
	defer func() {
		r.metrics.Duration.With("hook", h.Name()).Observe(time.Since(startTime).Seconds())
		if rec := recover(); rec != nil {
			r.metrics.Failures.With("hook", h.Name()).Add(1)
			logger.Criticalf("钩子 %s 触发恐慌, 已恢复: %s\n%s", h.Name(), rec, debug.Stack())
		}
	}()

	if err := h.OnCommit(data); err != nil {
		r.metrics.Failures.With("hook", h.Name()).Add(1)
		logger.Warningf("钩子 %s 处理账本 %d 失败: %s", h.Name(), data.GetHeader().GetSequence(), err)
	}
}
