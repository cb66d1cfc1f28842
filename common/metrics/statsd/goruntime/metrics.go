/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package goruntime

import (
	"github.com/meridianledger/mirror/common/metrics"
)

// Metrics 持有运行时统计的全部仪表盘。
type Metrics struct {
	CgoCalls       metrics.Gauge
	GoRoutines     metrics.Gauge
	ThreadsCreated metrics.Gauge
	HeapAlloc      metrics.Gauge
	TotalAlloc     metrics.Gauge
	Mallocs        metrics.Gauge
	Frees          metrics.Gauge
	HeapSys        metrics.Gauge
	HeapIdle       metrics.Gauge
	HeapInuse      metrics.Gauge
	HeapReleased   metrics.Gauge
	HeapObjects    metrics.Gauge
	NumGC          metrics.Gauge
	PauseTotalNs   metrics.Gauge
}

func NewMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		CgoCalls:       p.NewGauge(cgoCallsGaugeOpts),
		GoRoutines:     p.NewGauge(goRoutinesGaugeOpts),
		ThreadsCreated: p.NewGauge(threadsCreatedGaugeOpts),
		HeapAlloc:      p.NewGauge(heapAllocGaugeOpts),
		TotalAlloc:     p.NewGauge(totalAllocGaugeOpts),
		Mallocs:        p.NewGauge(mallocsGaugeOpts),
		Frees:          p.NewGauge(freesGaugeOpts),
		HeapSys:        p.NewGauge(heapSysGaugeOpts),
		HeapIdle:       p.NewGauge(heapIdleGaugeOpts),
		HeapInuse:      p.NewGauge(heapInuseGaugeOpts),
		HeapReleased:   p.NewGauge(heapReleasedGaugeOpts),
		HeapObjects:    p.NewGauge(heapObjectsGaugeOpts),
		NumGC:          p.NewGauge(numGCGaugeOpts),
		PauseTotalNs:   p.NewGauge(pauseTotalNsGaugeOpts),
	}
}

var (
	cgoCallsGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Name:         "cgo_calls",
		Help:         "The number of cgo calls made by the current process.",
		StatsdFormat: "%{#fqname}",
	}
	goRoutinesGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Name:         "goroutine_count",
		Help:         "The number of goroutines that currently exist.",
		StatsdFormat: "%{#fqname}",
	}
	threadsCreatedGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Name:         "threads_created",
		Help:         "The total number of OS threads created.",
		StatsdFormat: "%{#fqname}",
	}
	heapAllocGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "heap_alloc_bytes",
		Help:         "Bytes of allocated heap objects.",
		StatsdFormat: "%{#fqname}",
	}
	totalAllocGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "total_alloc_bytes",
		Help:         "Cumulative bytes allocated for heap objects.",
		StatsdFormat: "%{#fqname}",
	}
	mallocsGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "malloc_count",
		Help:         "The cumulative count of heap objects allocated.",
		StatsdFormat: "%{#fqname}",
	}
	freesGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "free_count",
		Help:         "The cumulative count of heap objects freed.",
		StatsdFormat: "%{#fqname}",
	}
	heapSysGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "heap_sys_bytes",
		Help:         "Bytes of heap memory obtained from the OS.",
		StatsdFormat: "%{#fqname}",
	}
	heapIdleGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "heap_idle_bytes",
		Help:         "Bytes in idle (unused) spans.",
		StatsdFormat: "%{#fqname}",
	}
	heapInuseGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "heap_inuse_bytes",
		Help:         "Bytes in in-use spans.",
		StatsdFormat: "%{#fqname}",
	}
	heapReleasedGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "heap_released_bytes",
		Help:         "Bytes of physical memory returned to the OS.",
		StatsdFormat: "%{#fqname}",
	}
	heapObjectsGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "heap_objects",
		Help:         "The number of allocated heap objects.",
		StatsdFormat: "%{#fqname}",
	}
	numGCGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "gc_completed_count",
		Help:         "The number of completed GC cycles.",
		StatsdFormat: "%{#fqname}",
	}
	pauseTotalNsGaugeOpts = metrics.GaugeOpts{
		Namespace:    "go",
		Subsystem:    "mem",
		Name:         "gc_pause_total_ns",
		Help:         "The cumulative nanoseconds in GC stop-the-world pauses.",
		StatsdFormat: "%{#fqname}",
	}
)
