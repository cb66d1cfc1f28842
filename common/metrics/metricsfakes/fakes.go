/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metricsfakes 提供记录型度量假件, 供各包测试断言计数与标签。
package metricsfakes

import (
	"sync"

	"github.com/meridianledger/mirror/common/metrics"
)

// Provider 返回共享的假件实例, 便于测试直接读取。
type Provider struct {
	CounterFake   *Counter
	GaugeFake     *Gauge
	HistogramFake *Histogram
}

func NewProvider() *Provider {
	return &Provider{
		CounterFake:   &Counter{},
		GaugeFake:     &Gauge{},
		HistogramFake: &Histogram{},
	}
}

func (p *Provider) NewCounter(o metrics.CounterOpts) metrics.Counter       { return p.CounterFake }
func (p *Provider) NewGauge(o metrics.GaugeOpts) metrics.Gauge             { return p.GaugeFake }
func (p *Provider) NewHistogram(o metrics.HistogramOpts) metrics.Histogram { return p.HistogramFake }

// Counter 记录全部 Add 与 With 调用。
type Counter struct {
	mutex      sync.Mutex
	addInvokes []float64
	withLabels [][]string
}

func (c *Counter) Add(delta float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.addInvokes = append(c.addInvokes, delta)
}

func (c *Counter) With(labelValues ...string) metrics.Counter {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.withLabels = append(c.withLabels, labelValues)
	return c
}

// AddCallCount 返回 Add 被调用的次数。
func (c *Counter) AddCallCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.addInvokes)
}

// AddSum 返回所有 Add 增量之和。
func (c *Counter) AddSum() float64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var sum float64
	for _, v := range c.addInvokes {
		sum += v
	}
	return sum
}

// WithArgsForCall 返回第 i 次 With 的标签值。
func (c *Counter) WithArgsForCall(i int) []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.withLabels[i]
}

// WithCallCount 返回 With 被调用的次数。
func (c *Counter) WithCallCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.withLabels)
}

// Gauge 记录全部 Set、Add 与 With 调用。
type Gauge struct {
	mutex      sync.Mutex
	setInvokes []float64
	addInvokes []float64
	withLabels [][]string
}

func (g *Gauge) Add(delta float64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.addInvokes = append(g.addInvokes, delta)
}

func (g *Gauge) Set(value float64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.setInvokes = append(g.setInvokes, value)
}

func (g *Gauge) With(labelValues ...string) metrics.Gauge {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.withLabels = append(g.withLabels, labelValues)
	return g
}

// SetCallCount 返回 Set 被调用的次数。
func (g *Gauge) SetCallCount() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.setInvokes)
}

// SetArgsForCall 返回第 i 次 Set 的值。
func (g *Gauge) SetArgsForCall(i int) float64 {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.setInvokes[i]
}

// LastSet 返回最近一次 Set 的值, 未调用过返回 0。
func (g *Gauge) LastSet() float64 {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if len(g.setInvokes) == 0 {
		return 0
	}
	return g.setInvokes[len(g.setInvokes)-1]
}

// WithArgsForCall 返回第 i 次 With 的标签值。
func (g *Gauge) WithArgsForCall(i int) []string {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.withLabels[i]
}

// Histogram 记录全部 Observe 与 With 调用。
type Histogram struct {
	mutex          sync.Mutex
	observeInvokes []float64
	withLabels     [][]string
}

func (h *Histogram) Observe(value float64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.observeInvokes = append(h.observeInvokes, value)
}

func (h *Histogram) With(labelValues ...string) metrics.Histogram {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.withLabels = append(h.withLabels, labelValues)
	return h
}

// ObserveCallCount 返回 Observe 被调用的次数。
func (h *Histogram) ObserveCallCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.observeInvokes)
}

// WithArgsForCall 返回第 i 次 With 的标签值。
func (h *Histogram) WithArgsForCall(i int) []string {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.withLabels[i]
}
