/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"context"

	"github.com/meridianledger/mirror/common/metrics"
	"google.golang.org/grpc/stats"
)

var (
	// 已打开的连接计数, 打开减去关闭就是活动的连接数
	openConnCounterOpts = metrics.CounterOpts{
		Namespace: "grpc",
		Subsystem: "comm",
		Name:      "conn_opened",
		Help:      "gRPC connections opened. Open minus closed is the active number of connections.",

		StatsdFormat: "%{#fqname}",
	}

	// 已关闭的连接计数
	closedConnCounterOpts = metrics.CounterOpts{
		Namespace: "grpc",
		Subsystem: "comm",
		Name:      "conn_closed",
		Help:      "gRPC connections closed. Open minus closed is the active number of connections.",

		StatsdFormat: "%{#fqname}",
	}
)

// ServerStatsHandler 报告gRPC服务器的连接指标。
type ServerStatsHandler struct {
	OpenConnCounter   metrics.Counter // 已打开的连接计数器
	ClosedConnCounter metrics.Counter // 已关闭的连接计数器
}

// NewServerStatsHandler 使用给定的指标提供者创建一个 ServerStatsHandler。
func NewServerStatsHandler(p metrics.Provider) *ServerStatsHandler {
	return &ServerStatsHandler{
		OpenConnCounter:   p.NewCounter(openConnCounterOpts),
		ClosedConnCounter: p.NewCounter(closedConnCounterOpts),
	}
}

// TagRPC 实现 stats.Handler 接口。
func (h *ServerStatsHandler) TagRPC(ctx context.Context, info *stats.RPCTagInfo) context.Context {
	return ctx
}

// HandleRPC 实现 stats.Handler 接口。
func (h *ServerStatsHandler) HandleRPC(context.Context, stats.RPCStats) {}

// TagConn 实现 stats.Handler 接口。
func (h *ServerStatsHandler) TagConn(ctx context.Context, info *stats.ConnTagInfo) context.Context {
	return ctx
}

// HandleConn 处理连接的打开与关闭事件并更新计数。
func (h *ServerStatsHandler) HandleConn(ctx context.Context, connStats stats.ConnStats) {
	switch connStats.(type) {
	case *stats.ConnBegin:
		h.OpenConnCounter.Add(1)
	case *stats.ConnEnd:
		h.ClosedConnCounter.Add(1)
	}
}
