/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package amendments 维护本构建认识的修正案特性集,
// 并在账本头出现未知特性时进入永久封锁状态。
// 封锁是故意的失效保护: 继续镜像会产生无法察觉的错误数据。
package amendments

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/protos/mirrorpb"
)

var logger = flogging.MustGetLogger("common.amendments")

// 本构建内置支持的特性位。配置可以在此基础上追加,
// 但不能移除(移除等价于谎报能力)。
const (
	FeatureBaseProtocol   uint32 = 1  // 基础账本协议
	FeatureBatchDelta     uint32 = 2  // 状态增量批量编码
	FeatureCompactTxLists uint32 = 3  // 紧凑交易列表
	FeatureSM3TxsetHash   uint32 = 5  // 交易集 SM3 摘要
)

// builtinFeatures 为所有构建默认认识的特性位。
func builtinFeatures() []uint32 {
	return []uint32{
		FeatureBaseProtocol,
		FeatureBatchDelta,
		FeatureCompactTxLists,
		FeatureSM3TxsetHash,
	}
}

// Registry 是已知特性注册表, 构造后只读。
type Registry struct {
	known map[uint32]struct{}
}

// NewRegistry 创建已知特性注册表。
//
// 输入参数：
//   - extra: 配置追加的特性位, 与内置集合并。
//
// 返回值：
//   - *Registry: 注册表实例。
func NewRegistry(extra ...uint32) *Registry {
	known := map[uint32]struct{}{}
	for _, f := range builtinFeatures() {
		known[f] = struct{}{}
	}
	for _, f := range extra {
		known[f] = struct{}{}
	}
	return &Registry{known: known}
}

// Known 判断单个特性位是否被本构建认识。
func (r *Registry) Known(feature uint32) bool {
	_, ok := r.known[feature]
	return ok
}

// KnownFeatures 返回排序后的全部已知特性位, 供状态上报。
func (r *Registry) KnownFeatures() []uint32 {
	features := make([]uint32, 0, len(r.known))
	for f := range r.known {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })
	return features
}

// BlockedError 表示账本启用了本构建不认识的特性。
type BlockedError struct {
	Feature  uint32
	Sequence uint64
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("账本 %d 启用了未知的修正案特性 %d, 本构建无法正确解释后续数据", e.Sequence, e.Feature)
}

// BlockState 是进程级封锁标志, 只会被置位一次, 重启前不可恢复。
// 由流水线实例持有, 不使用包级全局, 便于测试各自独立。
type BlockState struct {
	blocked uint32 // 原子读写

	mutex   sync.Mutex
	feature uint32
	reason  string
}

// Block 置位封锁标志, 首次置位返回 true。并发置位只保留第一个原因。
func (s *BlockState) Block(feature uint32, reason string) bool {
	if !atomic.CompareAndSwapUint32(&s.blocked, 0, 1) {
		return false
	}
	s.mutex.Lock()
	s.feature = feature
	s.reason = reason
	s.mutex.Unlock()
	return true
}

// Blocked 返回是否已封锁, 为无锁快速路径。
func (s *BlockState) Blocked() bool {
	return atomic.LoadUint32(&s.blocked) == 1
}

// Reason 返回封锁原因, 未封锁时第二个返回值为 false。
func (s *BlockState) Reason() (string, bool) {
	if !s.Blocked() {
		return "", false
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.reason, true
}

// Feature 返回触发封锁的特性位, 未封锁时第二个返回值为 false。
func (s *BlockState) Feature() (uint32, bool) {
	if !s.Blocked() {
		return 0, false
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.feature, true
}

// Handler 逐账本检查启用特性集, 发现未知特性时封锁。
type Handler struct {
	registry *Registry
	state    *BlockState
}

// NewHandler 创建检查器。state 由调用方(流水线实例)持有并共享。
func NewHandler(registry *Registry, state *BlockState) *Handler {
	return &Handler{registry: registry, state: state}
}

// Check 校验一个提取到的账本的特性集。
//
// 输入参数：
//   - ledger: 提取到的账本。
//
// 返回值：
//   - error: 全部特性已知时为 nil, 否则为 *BlockedError 并已置位封锁标志。
func (h *Handler) Check(ledger *mirrorpb.LedgerData) error {
	if h.state.Blocked() {
		reason, _ := h.state.Reason()
		return fmt.Errorf("流水线已封锁: %s", reason)
	}

	header := ledger.GetHeader()
	for _, feature := range header.GetEnabledFeatures() {
		if h.registry.Known(feature) {
			continue
		}
		err := &BlockedError{Feature: feature, Sequence: header.GetSequence()}
		if h.state.Block(feature, err.Error()) {
			logger.Errorf("检测到未知修正案特性: feature=%d sequence=%d, 流水线进入永久封锁", feature, header.GetSequence())
		}
		return err
	}
	return nil
}

// State 返回封锁状态的引用, 供状态上报层读取。
func (h *Handler) State() *BlockState {
	return h.state
}
