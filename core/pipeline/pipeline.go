/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package pipeline 实现镜像的持续提取-装载管道。
//
// 管道由固定数量的执行线 (strand) 驱动: 序号按模数分派, 线内严格
// 按序, 跨线的提交经由顺位交接串行化, 全局前沿永远连续推进, 存储
// 中不会出现 "已提交 N+1 但缺少 N"。预取窗口限制前沿之外的预读
// 深度, 由调度器统一准入。
//
// 错误按三类处置: 暂时性错误 (超时、存储不可用) 在检测点按指数
// 退避有界重试; 选源类错误 (格式损坏、未找到) 交给负载均衡器换源;
// 致命错误 (修正案拦截、存储损坏、重试预算耗尽、提交断档) 使管道
// 停摆, 只上报不自愈。
package pipeline

import (
	"context"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/meridianledger/mirror/common/amendments"
	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/common/metrics/disabled"
	"github.com/meridianledger/mirror/core/extract"
	"github.com/meridianledger/mirror/core/ledger/store"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("pipeline")

const (
	// DefaultMaxConcurrency 是执行线数量的默认值。
	DefaultMaxConcurrency = 4

	// DefaultMaxWindow 是预取窗口的默认深度。
	DefaultMaxWindow = 16

	// DefaultInitialRetryDelay 是首次重试前的等待时长。
	DefaultInitialRetryDelay = 100 * time.Millisecond

	// DefaultMaxRetryDelay 是重试等待的上限。
	DefaultMaxRetryDelay = 10 * time.Second

	// DefaultMaxRetries 是单个序号的重试预算。
	DefaultMaxRetries = 5
)

// SourcePool 是管道对源侧的全部依赖: 按健康序选源提取一个账本,
// 以及供状态面使用的健康快照。*extract.LoadBalancer 实现了它。
type SourcePool interface {
	// ExtractLedger 提取并校验序号为 seq 的账本, allowInitialLoad
	// 同时完成可续传的初始全量状态装载。
	ExtractLedger(ctx context.Context, seq uint64, allowInitialLoad bool) (*mirrorpb.LedgerData, error)

	// Health 返回每个源的健康快照。
	Health() []extract.SourceHealth
}

// HookInvoker 在提交之后、发布之前同步回调已注册的钩子。
// 钩子的错误与恐慌由实现方自行吞掉, 永远不会阻断管道。
type HookInvoker interface {
	Invoke(data *mirrorpb.LedgerData)
}

// Notifier 把已提交账本交给订阅面, 不阻塞提交路径。
// *publish.Publisher 实现了它。
type Notifier interface {
	Publish(data *mirrorpb.LedgerData)
	LastValidatedSequence() uint64
}

// Config 汇集管道的全部可调参数, 零值字段由 New 填入默认值。
type Config struct {
	// InitialSequence 是空库冷启动时的锚点序列号, 存储非空时忽略。
	InitialSequence uint64

	// MaxConcurrency 是执行线数量。
	MaxConcurrency int

	// MaxWindow 是预取窗口深度: 只提取 seq <= 前沿+窗口 的账本。
	MaxWindow uint64

	// InitialRetryDelay、MaxRetryDelay、MaxRetries 控制暂时性错误
	// 的指数退避节奏与预算。
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	MaxRetries        int
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MaxWindow == 0 {
		c.MaxWindow = DefaultMaxWindow
	}
	if c.InitialRetryDelay <= 0 {
		c.InitialRetryDelay = DefaultInitialRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// Deps 汇集管道运转所需的协作组件。Pool 与 Store 必填,
// 其余为空时取安全的默认实现或直接跳过。
type Deps struct {
	Pool       SourcePool
	Store      store.Store
	Amendments *amendments.Handler
	Hooks      HookInvoker
	Publisher  Notifier
	Metrics    *Metrics
	Clock      clock.Clock
}

// Pipeline 是提取-装载管道的公开句柄。
type Pipeline struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	tm      *TaskManager
	started bool
}

// New 创建管道。配置的零值字段取默认值; Pool 或 Store 缺失属于
// 装配错误, 直接恐慌。
func New(cfg Config, deps Deps) *Pipeline {
	if deps.Pool == nil || deps.Store == nil {
		logger.Panic("管道装配不完整: 必须提供源池与存储后端")
	}
	cfg.applyDefaults()
	if deps.Amendments == nil {
		deps.Amendments = amendments.NewHandler(amendments.NewRegistry(), &amendments.BlockState{})
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(&disabled.Provider{})
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// Start 引导并启动管道。
//
// 空库时先执行锚点引导: 从源池提取 InitialSequence 的账本并完成
// 可续传的全量状态装载, 锚点提交与状态加载日志游标的清除原子地
// 一起发生。引导是快速失败的, 失败原样上抛给启动方处置。
// 引导完成或存储已非空时, 启动执行线持续追加后继账本。
//
// 传入的 ctx 贯穿管道整个生命周期, 取消等价于调用 Stop。
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("管道已经启动")
	}

	committed, err := p.deps.Store.LastCommittedSequence(ctx)
	if err != nil {
		return errors.WithMessage(err, "读取提交水位失败")
	}

	if committed == 0 {
		if committed, err = p.bootstrap(ctx); err != nil {
			return err
		}
	}

	sched := NewScheduler(committed, p.cfg.MaxWindow, p.cfg.MaxConcurrency)
	loader := NewLoader(p.deps.Store, sched, p.cfg, p.deps.Metrics)
	p.tm = newTaskManager(ctx, p.cfg, p.deps, sched, loader)
	p.tm.metrics.CommittedSequence.Set(float64(committed))
	p.tm.metrics.Halted.Set(0)
	p.tm.start()
	p.started = true

	logger.Infow("管道已启动",
		"committedSequence", committed,
		"strands", p.cfg.MaxConcurrency,
		"maxWindow", p.cfg.MaxWindow)
	return nil
}

// bootstrap 对空库执行锚点引导, 返回锚点提交后的水位。
func (p *Pipeline) bootstrap(ctx context.Context) (uint64, error) {
	if p.cfg.InitialSequence == 0 {
		return 0, errors.New("存储为空且未配置锚点序列号, 无法引导")
	}

	logger.Infow("存储为空, 开始初始全量装载", "anchor", p.cfg.InitialSequence)
	data, err := p.deps.Pool.ExtractLedger(ctx, p.cfg.InitialSequence, true)
	if err != nil {
		return 0, errors.WithMessagef(err, "锚点账本 %d 的初始装载失败", p.cfg.InitialSequence)
	}
	if err := p.deps.Amendments.Check(data); err != nil {
		return 0, errors.WithMessage(err, "锚点账本触发修正案拦截")
	}

	committed, err := p.deps.Store.Commit(ctx, data.GetHeader().GetSequence(), data, true)
	if err != nil {
		return 0, errors.WithMessagef(err, "锚点账本 %d 的提交失败", p.cfg.InitialSequence)
	}

	if p.deps.Hooks != nil {
		p.deps.Hooks.Invoke(data)
	}
	if p.deps.Publisher != nil {
		p.deps.Publisher.Publish(data)
	}
	logger.Infow("初始全量装载完成", "committedSequence", committed)
	return committed, nil
}

// Stop 优雅停机: 不再发起新的提取, 在途调用完成或超时后退出,
// 不产生部分写入。可重复调用。
func (p *Pipeline) Stop() {
	if tm := p.manager(); tm != nil {
		tm.stop()
	}
}

// IsHalted 报告管道是否因致命错误停摆。
func (p *Pipeline) IsHalted() bool {
	tm := p.manager()
	return tm != nil && tm.isHalted()
}

// HaltReason 返回第一个致命错误的描述, 未停摆时为空串。
func (p *Pipeline) HaltReason() string {
	if tm := p.manager(); tm != nil {
		return tm.haltedReason()
	}
	return ""
}

// CommittedSequence 返回当前的全局提交前沿, 未启动时为 0。
func (p *Pipeline) CommittedSequence() uint64 {
	if tm := p.manager(); tm != nil {
		return tm.sched.CommittedSequence()
	}
	return 0
}

// Status 返回管道的只读快照, 供运维端点以 JSON 暴露。
// 停摆后快照继续可用, 指向最后提交的状态。
func (p *Pipeline) Status() Status {
	st := Status{Sources: p.deps.Pool.Health()}
	tm := p.manager()
	if tm == nil {
		return st
	}
	st.CommittedSequence = tm.sched.CommittedSequence()
	st.Halted = tm.isHalted()
	st.HaltReason = tm.haltedReason()
	for _, s := range tm.strands {
		st.Strands = append(st.Strands, s.status())
	}
	if tm.publisher != nil {
		st.LastValidatedSequence = tm.publisher.LastValidatedSequence()
	}
	return st
}

// HealthCheck 供运维健康端点使用, 停摆视为不健康。
func (p *Pipeline) HealthCheck(context.Context) error {
	if p.IsHalted() {
		return errors.Errorf("管道已停摆: %s", p.HaltReason())
	}
	return nil
}

func (p *Pipeline) manager() *TaskManager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tm
}

// StrandStatus 是单条执行线的可观测快照。
type StrandStatus struct {
	Strand   int    `json:"strand"`
	State    string `json:"state"`
	Sequence uint64 `json:"sequence,omitempty"`
}

// Status 是管道的只读快照。
type Status struct {
	CommittedSequence     uint64                 `json:"committed_sequence"`
	LastValidatedSequence uint64                 `json:"last_validated_sequence,omitempty"`
	Halted                bool                   `json:"halted"`
	HaltReason            string                 `json:"halt_reason,omitempty"`
	Sources               []extract.SourceHealth `json:"sources,omitempty"`
	Strands               []StrandStatus         `json:"strands,omitempty"`
}
