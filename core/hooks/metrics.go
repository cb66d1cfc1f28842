/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package hooks

import (
	"github.com/meridianledger/mirror/common/metrics"
	"github.com/meridianledger/mirror/common/metrics/disabled"
)

var (
	hookFailures = metrics.CounterOpts{
		Namespace:    "hooks",
		Name:         "failures",
		Help:         "The number of hook invocations that returned an error or panicked.",
		LabelNames:   []string{"hook"},
		StatsdFormat: "%{#fqname}.%{hook}",
	}
	hookDuration = metrics.HistogramOpts{
		Namespace:    "hooks",
		Name:         "invoke_duration",
		Help:         "The time a single hook invocation took to complete.",
		LabelNames:   []string{"hook"},
		StatsdFormat: "%{#fqname}.%{hook}",
	}
)

// Metrics 记录钩子的失败计数与执行耗时, 按钩子名打标签。
type Metrics struct {
	Failures metrics.Counter
	Duration metrics.Histogram
}

// NewMetrics 从度量工厂创建钩子指标。
func NewMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Failures: p.NewCounter(hookFailures),
		Duration: p.NewHistogram(hookDuration),
	}
}

func newDisabledMetrics() *Metrics {
	return NewMetrics(&disabled.Provider{})
}
