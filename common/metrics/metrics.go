/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

// Provider 是度量工厂接口, 由 prometheus、statsd、disabled 三种实现提供。
type Provider interface {
	// NewCounter 创建计数器实例。
	NewCounter(CounterOpts) Counter
	// NewGauge 创建仪表盘实例。
	NewGauge(GaugeOpts) Gauge
	// NewHistogram 创建直方图实例。
	NewHistogram(HistogramOpts) Histogram
}

// Counter 表示单调递增的累计值。
type Counter interface {
	// With 绑定标签值, 顺序为 label1, value1, label2, value2 ...
	With(labelValues ...string) Counter
	// Add 累加计数。
	Add(delta float64)
}

// CounterOpts 描述计数器的命名与标签。
type CounterOpts struct {
	// Namespace、Subsystem、Name 共同组成完整指标名。
	Namespace string
	Subsystem string
	Name      string

	// Help 为指标的说明文字。
	Help string

	// LabelNames 为标签名列表。
	LabelNames []string

	// StatsdFormat 为 statsd 指标名模板, 支持 %{#fqname}、%{#namespace}、
	// %{#subsystem}、%{#name} 以及 %{label} 占位符。
	StatsdFormat string
}

// Gauge 表示可任意变化的瞬时值。
type Gauge interface {
	With(labelValues ...string) Gauge
	Add(delta float64)
	Set(value float64)
}

// GaugeOpts 描述仪表盘的命名与标签。
type GaugeOpts struct {
	Namespace string
	Subsystem string
	Name      string

	Help string

	LabelNames []string

	StatsdFormat string
}

// Histogram 记录数值分布。
type Histogram interface {
	With(labelValues ...string) Histogram
	Observe(value float64)
}

// HistogramOpts 描述直方图的命名、标签与分桶。
type HistogramOpts struct {
	Namespace string
	Subsystem string
	Name      string

	Help string

	// Buckets 为分桶上界, 为空时由实现选择默认分桶。
	Buckets []float64

	LabelNames []string

	StatsdFormat string
}
