/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"github.com/meridianledger/mirror/common/metrics"
	"github.com/meridianledger/mirror/common/metrics/disabled"
)

var (
	committedSequenceOpts = metrics.GaugeOpts{
		Namespace:    "pipeline",
		Name:         "committed_sequence",
		Help:         "已提交账本的全局前沿序列号。",
		StatsdFormat: "%{#fqname}",
	}

	haltedOpts = metrics.GaugeOpts{
		Namespace:    "pipeline",
		Name:         "halted",
		Help:         "管道是否处于停摆状态, 0 为运行中, 1 为停摆。",
		StatsdFormat: "%{#fqname}",
	}

	retriesOpts = metrics.CounterOpts{
		Namespace:    "pipeline",
		Name:         "retries",
		Help:         "按阶段统计的重试次数。",
		LabelNames:   []string{"phase"},
		StatsdFormat: "%{#fqname}.%{phase}",
	}

	extractionDurationOpts = metrics.HistogramOpts{
		Namespace:    "pipeline",
		Name:         "extraction_duration",
		Help:         "单个账本从请求到通过校验的耗时, 单位秒。",
		StatsdFormat: "%{#fqname}",
	}

	commitDurationOpts = metrics.HistogramOpts{
		Namespace:    "pipeline",
		Name:         "commit_duration",
		Help:         "单个账本的存储提交耗时, 单位秒。",
		StatsdFormat: "%{#fqname}",
	}
)

// Metrics 汇集管道的运行指标。
type Metrics struct {
	CommittedSequence  metrics.Gauge
	Halted             metrics.Gauge
	ExtractionRetries  metrics.Counter
	LoadRetries        metrics.Counter
	ExtractionDuration metrics.Histogram
	CommitDuration     metrics.Histogram
}

// NewMetrics 从提供者创建全套管道指标, nil 视为禁用。
func NewMetrics(p metrics.Provider) *Metrics {
	if p == nil {
		p = &disabled.Provider{}
	}
	retries := p.NewCounter(retriesOpts)
	return &Metrics{
		CommittedSequence:  p.NewGauge(committedSequenceOpts),
		Halted:             p.NewGauge(haltedOpts),
		ExtractionRetries:  retries.With("phase", "extract"),
		LoadRetries:        retries.With("phase", "load"),
		ExtractionDuration: p.NewHistogram(extractionDurationOpts),
		CommitDuration:     p.NewHistogram(commitDurationOpts),
	}
}
