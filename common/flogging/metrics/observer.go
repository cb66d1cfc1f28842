/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics 把日志子系统的吞吐暴露为度量。
package metrics

import (
	"github.com/meridianledger/mirror/common/metrics"
	"go.uber.org/zap/zapcore"
)

var (
	checkedCountOpts = metrics.CounterOpts{
		Namespace:    "logging",
		Name:         "entries_checked",
		Help:         "根据活动日志记录级别检查的日志条目数",
		LabelNames:   []string{"level"},
		StatsdFormat: "%{#fqname}.%{level}",
	}

	writtenCountOpts = metrics.CounterOpts{
		Namespace:    "logging",
		Name:         "entries_written",
		Help:         "写入的日志条目数",
		LabelNames:   []string{"level"},
		StatsdFormat: "%{#fqname}.%{level}",
	}
)

// Observer 实现 flogging.Observer, 按级别统计检查与写入的日志条目。
type Observer struct {
	checked metrics.Counter
	written metrics.Counter
}

func NewObserver(provider metrics.Provider) *Observer {
	return &Observer{
		checked: provider.NewCounter(checkedCountOpts),
		written: provider.NewCounter(writtenCountOpts),
	}
}

func (o *Observer) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) {
	o.checked.With("level", e.Level.String()).Add(1)
}

func (o *Observer) WriteEntry(e zapcore.Entry, fields []zapcore.Field) {
	o.written.With("level", e.Level.String()).Add(1)
}
