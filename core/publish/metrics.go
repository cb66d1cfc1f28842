/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package publish

import (
	"github.com/meridianledger/mirror/common/metrics"
	"github.com/meridianledger/mirror/common/metrics/disabled"
)

var (
	notificationsEnqueued = metrics.CounterOpts{
		Namespace:    "publish",
		Name:         "notifications_enqueued",
		Help:         "The number of ledger notifications placed on the publish queue.",
		StatsdFormat: "%{#fqname}",
	}
	notificationsDelivered = metrics.CounterOpts{
		Namespace:    "publish",
		Name:         "notifications_delivered",
		Help:         "The number of ledger notifications delivered to all feeds.",
		StatsdFormat: "%{#fqname}",
	}
	notificationsDropped = metrics.CounterOpts{
		Namespace:    "publish",
		Name:         "notifications_dropped",
		Help:         "The number of ledger notifications dropped because the publish queue was full.",
		StatsdFormat: "%{#fqname}",
	}
	lastValidatedSequence = metrics.GaugeOpts{
		Namespace:    "publish",
		Name:         "last_validated_sequence",
		Help:         "The externally visible last validated ledger sequence.",
		StatsdFormat: "%{#fqname}",
	}
)

// Metrics 记录发布器的队列与水位指标。
type Metrics struct {
	NotificationsEnqueued  metrics.Counter // 入队的通知数
	NotificationsDelivered metrics.Counter // 投递完成的通知数
	NotificationsDropped   metrics.Counter // 因队列满被丢弃的通知数
	LastValidatedSequence  metrics.Gauge   // 最后已验证序号
}

// NewMetrics 从度量工厂创建发布器指标。
func NewMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		NotificationsEnqueued:  p.NewCounter(notificationsEnqueued),
		NotificationsDelivered: p.NewCounter(notificationsDelivered),
		NotificationsDropped:   p.NewCounter(notificationsDropped),
		LastValidatedSequence:  p.NewGauge(lastValidatedSequence),
	}
}

func newDisabledMetrics() *Metrics {
	return NewMetrics(&disabled.Provider{})
}
