/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package publish

import (
	"sync"

	"github.com/meridianledger/mirror/protos/mirrorpb"
)

// DefaultSubscriberBuffer 是单个订阅者通道的默认容量。
const DefaultSubscriberBuffer = 16

// InProcessFeed 把已提交账本扇出给进程内订阅者, WebSocket/RPC
// 前端经由它拿到实时推送。每个订阅者有自己的有界通道, 跟不上的
// 订阅者丢最新的一条并计数, 互不影响。
type InProcessFeed struct {
	buffer int

	mutex       sync.Mutex
	subscribers map[uint64]chan *mirrorpb.LedgerData
	nextID      uint64
	dropped     map[uint64]uint64
}

// NewInProcessFeed 创建进程内扇出, buffer <=0 取默认值。
func NewInProcessFeed(buffer int) *InProcessFeed {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &InProcessFeed{
		buffer:      buffer,
		subscribers: map[uint64]chan *mirrorpb.LedgerData{},
		dropped:     map[uint64]uint64{},
	}
}

// Subscribe 注册一个订阅者, 返回接收通道和注销函数。
// 注销后通道被关闭, 订阅者应停止读取。
func (f *InProcessFeed) Subscribe() (<-chan *mirrorpb.LedgerData, func()) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan *mirrorpb.LedgerData, f.buffer)
	f.subscribers[id] = ch

	cancel := func() {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		if sub, ok := f.subscribers[id]; ok {
			delete(f.subscribers, id)
			delete(f.dropped, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Notify 给每个订阅者投递一份, 订阅者通道满时丢弃这一条。
func (f *InProcessFeed) Notify(data *mirrorpb.LedgerData) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	for id, ch := range f.subscribers {
		select {
		case ch <- data:
		default:
			f.dropped[id]++
			if f.dropped[id] == 1 || f.dropped[id]%100 == 0 {
				logger.Warnf("订阅者 %d 消费过慢, 已丢弃 %d 条通知", id, f.dropped[id])
			}
		}
	}
}

// SubscriberCount 返回当前订阅者数量。
func (f *InProcessFeed) SubscriberCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.subscribers)
}
