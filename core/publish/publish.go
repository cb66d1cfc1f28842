/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package publish 在账本持久化之后向订阅面发布通知,
// 并维护对外可见的"最后已验证序号"水位。
//
// 发布是投递即忘: Publish 只做入队与水位推进, 慢订阅者由各个
// Feed 自行消化, 永远不会反压提取-装载流水线。
package publish

import (
	"sync"
	"sync/atomic"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/protos/mirrorpb"
)

var logger = flogging.MustGetLogger("publish")

// DefaultQueueSize 是发布队列的默认容量。
const DefaultQueueSize = 128

// Feed 是订阅面的投递端。实现包括进程内扇出 (InProcessFeed)
// 与可选的 Kafka 中继 (publish/kafka)。
type Feed interface {
	// Notify 投递一个已提交的账本。实现自行处理慢消费与失败,
	// 只在发布器的派发协程里被调用, 不会阻塞流水线。
	Notify(data *mirrorpb.LedgerData)
}

// Publisher 持有有界发布队列与已验证水位。
// 队列满时丢弃最旧的通知并计数: 订阅面看到的是"最近的"而不是
// "全部的"账本, 完整历史始终以存储为准。
type Publisher struct {
	feeds   []Feed
	queue   chan *mirrorpb.LedgerData
	metrics *Metrics

	lastValidated uint64 // 原子读写

	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPublisher 创建发布器并启动派发协程。
//
// 输入参数：
//   - queueSize：发布队列容量, <=0 取默认值。
//   - metrics：发布指标, nil 时禁用。
//   - feeds：订阅面投递端, 按注册顺序依次投递。
//
// 返回值：
//   - *Publisher：已启动的发布器。
func NewPublisher(queueSize int, metrics *Metrics, feeds ...Feed) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if metrics == nil {
		metrics = newDisabledMetrics()
	}
	p := &Publisher{
		feeds:   feeds,
		queue:   make(chan *mirrorpb.LedgerData, queueSize),
		metrics: metrics,
		doneCh:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.dispatch()
	return p
}

// Publish 推进已验证水位并把账本放入发布队列, 不阻塞调用方。
// 队列满时弹出最旧的通知为新账本腾位并计数。
func (p *Publisher) Publish(data *mirrorpb.LedgerData) {
	seq := data.GetHeader().GetSequence()
	p.advance(seq)
	p.metrics.LastValidatedSequence.Set(float64(p.LastValidatedSequence()))

	for {
		select {
		case p.queue <- data:
			p.metrics.NotificationsEnqueued.Add(1)
			return
		default:
		}
		select {
		case dropped := <-p.queue:
			p.metrics.NotificationsDropped.Add(1)
			logger.Warnf("发布队列已满, 丢弃最旧的账本通知 %d", dropped.GetHeader().GetSequence())
		default:
		}
	}
}

// LastValidatedSequence 返回对外可见的最后已验证序号。
func (p *Publisher) LastValidatedSequence() uint64 {
	return atomic.LoadUint64(&p.lastValidated)
}

// Stop 停止派发并投递队列中剩余的通知。
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.doneCh)
	})
	p.wg.Wait()
}

// dispatch 串行地把队列中的账本投递给每个 Feed。
// 收到停止信号后先排空队列再退出, 停止期间新的 Publish 只推水位。
func (p *Publisher) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case data := <-p.queue:
			p.deliver(data)
		case <-p.doneCh:
			for {
				select {
				case data := <-p.queue:
					p.deliver(data)
				default:
					return
				}
			}
		}
	}
}

// deliver 按注册顺序投递到每个 Feed, 单个 Feed 的 panic 被恢复并记录。
func (p *Publisher) deliver(data *mirrorpb.LedgerData) {
	for _, feed := range p.feeds {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("订阅投递端 panic, 账本 %d: %v", data.GetHeader().GetSequence(), r)
				}
			}()
			feed.Notify(data)
		}()
	}
	p.metrics.NotificationsDelivered.Add(1)
}

// advance 单调推进水位, 重放的旧序号不回退。
func (p *Publisher) advance(seq uint64) {
	for {
		cur := atomic.LoadUint64(&p.lastValidated)
		if seq <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&p.lastValidated, cur, seq) {
			return
		}
	}
}
