/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package extract

import (
	"context"
	"sync"
	"time"

	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

const (
	// DefaultAttemptTimeout 是单个源上一次提取尝试的时间预算。
	DefaultAttemptTimeout = 10 * time.Second

	// DefaultSourceCooldown 是源被评为 UNHEALTHY 后重新参与候选的冷却期。
	DefaultSourceCooldown = 30 * time.Second
)

// HealthStatus 是 LoadBalancer 对单个源的健康评级。
type HealthStatus string

const (
	StatusUnknown   HealthStatus = "UNKNOWN"
	StatusHealthy   HealthStatus = "HEALTHY"
	StatusUnhealthy HealthStatus = "UNHEALTHY"
)

// SourceHealth 是状态面向外报告的单源快照。
type SourceHealth struct {
	Address      string       `json:"address"`
	Status       HealthStatus `json:"status"`
	LastSequence uint64       `json:"last_sequence,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
	ConnState    string       `json:"conn_state"`
}

type sourceEntry struct {
	source     *Source
	status     HealthStatus
	lastErr    error
	lastSeq    uint64
	lastChange time.Time
}

// Options 控制 LoadBalancer 的迭代行为。
type Options struct {
	// AttemptTimeout 单个源上一次尝试的时间预算, 0 取默认值。
	AttemptTimeout time.Duration

	// SourceCooldown UNHEALTHY 源重新参与候选的冷却期, 0 取默认值。
	SourceCooldown time.Duration
}

// LoadBalancer 持有源池与健康评级表。评级表是多个 strand 并发
// 变更的唯一共享状态, 由短持锁保护; 提取与走读本身在锁外进行。
type LoadBalancer struct {
	extractor LedgerExtractor
	sink      InitialStateSink

	attemptTimeout time.Duration
	cooldown       time.Duration

	mutex sync.Mutex
	pool  []*sourceEntry
}

// NewLoadBalancer 构造均衡器, 所有源初始评级为 UNKNOWN。
func NewLoadBalancer(sources []*Source, extractor LedgerExtractor, sink InitialStateSink, opts Options) *LoadBalancer {
	lb := &LoadBalancer{
		extractor:      extractor,
		sink:           sink,
		attemptTimeout: opts.AttemptTimeout,
		cooldown:       opts.SourceCooldown,
	}
	if lb.attemptTimeout <= 0 {
		lb.attemptTimeout = DefaultAttemptTimeout
	}
	if lb.cooldown <= 0 {
		lb.cooldown = DefaultSourceCooldown
	}
	for _, source := range sources {
		lb.pool = append(lb.pool, &sourceEntry{source: source, status: StatusUnknown})
	}
	return lb
}

// ExtractLedger 提取序号为 seq 的账本。按健康评级迭代候选源:
// HEALTHY 优先, 其次 UNKNOWN, 冷却期已过的 UNHEALTHY 殿后;
// 每次尝试受 AttemptTimeout 约束, 出错则将该源评为 UNHEALTHY
// 并前进到下一个候选。allowInitialLoad 为真时在账本提取成功后
// 对同一个源走读全量状态, 经 InitialStateSink 持久化并断点续传。
//
// 返回值：
//   - *mirrorpb.LedgerData：提取并校验过的账本。
//   - error：全部候选都报未找到时为 ErrNotFound, 其余为 ErrExhausted;
//     初始装载的持久化失败原样上抛, 不影响源评级。
func (lb *LoadBalancer) ExtractLedger(ctx context.Context, seq uint64, allowInitialLoad bool) (*mirrorpb.LedgerData, error) {
	candidates := lb.candidates(true)
	if len(candidates) == 0 {
		return nil, errors.WithMessage(ErrNoHealthySource, "源池为空或全部处于冷却期")
	}

	var lastErr error
	notFoundOnly := true
	for _, entry := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithMessage(err, "提取被取消")
		}

		data, err := lb.attempt(ctx, entry, seq, allowInitialLoad)
		if err == nil {
			lb.markHealthy(entry, seq)
			return data, nil
		}
		if se, ok := err.(*sinkError); ok {
			// 存储侧失败不归咎于源
			return nil, errors.WithMessage(se.err, "初始全量装载的持久化失败")
		}

		lastErr = err
		if errors.Is(err, ErrNotFound) {
			// 对端已明确应答, 只是没有该账本: 不降级, 尝试下一个
			lb.recordError(entry, err)
			continue
		}
		notFoundOnly = false
		lb.markUnhealthy(entry, err)
		logger.Warnw("源提取失败, 切换下一个候选", "address", entry.source.Address(), "sequence", seq, "error", err)
	}

	if notFoundOnly {
		return nil, errors.WithMessagef(ErrNotFound, "全部 %d 个候选源都无法提供账本 %d", len(candidates), seq)
	}
	return nil, errors.WithMessagef(ErrExhausted, "账本 %d 的提取在全部 %d 个候选源上失败, 最后错误: %s", seq, len(candidates), lastErr)
}

// Forward 把不透明的查询层请求转发给当前健康的源并返回原始应答。
// 只在 HEALTHY 与 UNKNOWN 源之间失败切换, 成功同样刷新评级。
func (lb *LoadBalancer) Forward(ctx context.Context, req *mirrorpb.ForwardRequest) (*mirrorpb.ForwardResponse, error) {
	candidates := lb.candidates(false)
	if len(candidates) == 0 {
		return nil, errors.WithMessage(ErrNoHealthySource, "无法转发查询请求")
	}

	var lastErr error
	for _, entry := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithMessage(err, "转发被取消")
		}

		attemptCtx, cancel := context.WithTimeout(ctx, lb.attemptTimeout)
		resp, err := entry.source.Forward(attemptCtx, req)
		cancel()
		if err == nil {
			lb.markHealthy(entry, 0)
			return resp, nil
		}
		lastErr = err
		lb.markUnhealthy(entry, err)
	}
	return nil, errors.WithMessagef(ErrNoHealthySource, "全部健康源转发失败, 最后错误: %s", lastErr)
}

// ProbeAll 用标准 gRPC 健康服务与对端状态 RPC 刷新每个源的评级,
// 由节点的后台定时器驱动。探测成功可以让 UNHEALTHY 源提前出冷却。
func (lb *LoadBalancer) ProbeAll(ctx context.Context) {
	for _, entry := range lb.snapshot() {
		attemptCtx, cancel := context.WithTimeout(ctx, lb.attemptTimeout)
		status, err := entry.source.Probe(attemptCtx)
		cancel()
		if err != nil {
			lb.markUnhealthy(entry, err)
			continue
		}
		lb.markHealthy(entry, status.LastSequence)
	}
}

// Health 返回整个源池的快照, 供状态面与健康检查使用。
func (lb *LoadBalancer) Health() []SourceHealth {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	out := make([]SourceHealth, 0, len(lb.pool))
	for _, entry := range lb.pool {
		sh := SourceHealth{
			Address:      entry.source.Address(),
			Status:       entry.status,
			LastSequence: entry.lastSeq,
			ConnState:    entry.source.ConnState().String(),
		}
		if entry.lastErr != nil {
			sh.LastError = entry.lastErr.Error()
		}
		out = append(out, sh)
	}
	return out
}

// HealthCheck 实现运维面健康检查: 只要有一个源不是 UNHEALTHY 即通过。
func (lb *LoadBalancer) HealthCheck(context.Context) error {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	for _, entry := range lb.pool {
		if entry.status != StatusUnhealthy {
			return nil
		}
	}
	return errors.New("源池中没有可用的上游节点")
}

// Close 关闭池中全部源连接。
func (lb *LoadBalancer) Close() {
	for _, entry := range lb.snapshot() {
		if err := entry.source.Close(); err != nil {
			logger.Warnw("关闭源连接失败", "address", entry.source.Address(), "error", err)
		}
	}
}

// attempt 在单个源上完成一次提取尝试, 账本拉取受尝试级超时约束;
// 全量走读只受进展超时约束, 批与游标经 sink 落盘后换源不丢进度。
func (lb *LoadBalancer) attempt(ctx context.Context, entry *sourceEntry, seq uint64, allowInitialLoad bool) (*mirrorpb.LedgerData, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, lb.attemptTimeout)
	data, err := lb.extractor.Extract(attemptCtx, entry.source, seq)
	cancel()
	if err != nil {
		return nil, err
	}

	if allowInitialLoad {
		if err := lb.walkInitialState(ctx, entry, seq); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (lb *LoadBalancer) walkInitialState(ctx context.Context, entry *sourceEntry, seq uint64) error {
	cursor, err := lb.sink.StateCursor(ctx)
	if err != nil {
		return &sinkError{err: err}
	}

	var persistErr error
	visit := func(objects []*mirrorpb.StateObject, lastKey []byte) error {
		if err := lb.sink.SaveStateCursor(ctx, objects, lastKey); err != nil {
			persistErr = err
			return err
		}
		return nil
	}

	err = lb.extractor.ExtractInitial(ctx, entry.source, seq, cursor, visit)
	if persistErr != nil {
		return &sinkError{err: persistErr}
	}
	return err
}

// candidates 在锁内按评级分桶: HEALTHY, UNKNOWN, 冷却期已过的
// UNHEALTHY, 桶内保持配置顺序。includeUnhealthy 为假时只取前两桶。
func (lb *LoadBalancer) candidates(includeUnhealthy bool) []*sourceEntry {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	var healthy, unknown, cooled []*sourceEntry
	now := time.Now()
	for _, entry := range lb.pool {
		switch entry.status {
		case StatusHealthy:
			healthy = append(healthy, entry)
		case StatusUnknown:
			unknown = append(unknown, entry)
		case StatusUnhealthy:
			if includeUnhealthy && now.Sub(entry.lastChange) >= lb.cooldown {
				cooled = append(cooled, entry)
			}
		}
	}
	return append(append(healthy, unknown...), cooled...)
}

func (lb *LoadBalancer) snapshot() []*sourceEntry {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()
	return append([]*sourceEntry{}, lb.pool...)
}

// markHealthy 刷新评级并记录观测到的最高可服务序号。
func (lb *LoadBalancer) markHealthy(entry *sourceEntry, seq uint64) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	entry.status = StatusHealthy
	entry.lastErr = nil
	entry.lastChange = time.Now()
	if seq > entry.lastSeq {
		entry.lastSeq = seq
	}
}

// markUnhealthy 每次失败都重置冷却起点, 持续失败的源不会被反复选中。
func (lb *LoadBalancer) markUnhealthy(entry *sourceEntry, err error) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	entry.status = StatusUnhealthy
	entry.lastErr = err
	entry.lastChange = time.Now()
}

func (lb *LoadBalancer) recordError(entry *sourceEntry, err error) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()
	entry.lastErr = err
}

// sinkError 标记初始装载中存储侧的失败, 用于与源侧错误区分。
type sinkError struct {
	err error
}

func (e *sinkError) Error() string {
	return e.err.Error()
}
