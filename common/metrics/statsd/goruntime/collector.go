/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package goruntime 周期性采集 Go 运行时统计并发布为仪表盘指标。
// statsd 没有 prometheus 那样的进程采集器, 镜像以 statsd 上报时由它补齐。
package goruntime

import (
	"runtime"
	"time"

	"github.com/meridianledger/mirror/common/metrics"
)

// Collector 按节拍采集运行时统计并写入仪表盘。
type Collector struct {
	metrics *Metrics
}

func NewCollector(provider metrics.Provider) *Collector {
	return &Collector{metrics: NewMetrics(provider)}
}

// CollectAndPublish 在每个节拍上采集一次并发布, 通道关闭时返回。
func (c *Collector) CollectAndPublish(ticks <-chan time.Time) {
	for range ticks {
		stats := CollectStats()
		c.Publish(stats)
	}
}

// Publish 把一份统计快照写入全部仪表盘。
func (c *Collector) Publish(stats Stats) {
	c.metrics.CgoCalls.Set(float64(stats.CgoCalls))
	c.metrics.GoRoutines.Set(float64(stats.GoRoutines))
	c.metrics.ThreadsCreated.Set(float64(stats.ThreadsCreated))
	c.metrics.HeapAlloc.Set(float64(stats.MemStats.HeapAlloc))
	c.metrics.TotalAlloc.Set(float64(stats.MemStats.TotalAlloc))
	c.metrics.Mallocs.Set(float64(stats.MemStats.Mallocs))
	c.metrics.Frees.Set(float64(stats.MemStats.Frees))
	c.metrics.HeapSys.Set(float64(stats.MemStats.HeapSys))
	c.metrics.HeapIdle.Set(float64(stats.MemStats.HeapIdle))
	c.metrics.HeapInuse.Set(float64(stats.MemStats.HeapInuse))
	c.metrics.HeapReleased.Set(float64(stats.MemStats.HeapReleased))
	c.metrics.HeapObjects.Set(float64(stats.MemStats.HeapObjects))
	c.metrics.NumGC.Set(float64(stats.MemStats.NumGC))
	c.metrics.PauseTotalNs.Set(float64(stats.MemStats.PauseTotalNs))
}

// Stats 是一次运行时统计采样。
type Stats struct {
	CgoCalls       int64
	GoRoutines     int
	ThreadsCreated int
	MemStats       runtime.MemStats
}

// CollectStats 采集当前的运行时统计。
func CollectStats() Stats {
	stats := Stats{
		CgoCalls:   runtime.NumCgoCall(),
		GoRoutines: runtime.NumGoroutine(),
	}
	numThreads, _ := runtime.ThreadCreateProfile(nil)
	stats.ThreadsCreated = numThreads
	runtime.ReadMemStats(&stats.MemStats)
	return stats
}
