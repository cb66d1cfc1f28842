/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package extract 从上游全量历史节点提取已关闭的账本。
//
// Source 封装到单个对端的 gRPC 连接; LoadBalancer 持有源池,
// 按健康评级迭代并在出错时切换; Extractor 负责单个账本的流式
// 提取与结构校验, 以及初始全量装载的断点续走。
package extract

import (
	"context"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("extract")

var (
	// ErrNotFound 对端无法提供请求的账本, 通常是该序号尚未关闭或已被修剪。
	ErrNotFound = errors.New("ledger not available on peer")

	// ErrTimeout 提取尝试超出时间预算。
	ErrTimeout = errors.New("extraction attempt timed out")

	// ErrMalformed 提取结果未通过结构校验, 不会在同一个源上重试。
	ErrMalformed = errors.New("extracted ledger failed structural validation")

	// ErrExhausted 本次请求在全部候选源上失败。
	ErrExhausted = errors.New("all sources failed for this request")

	// ErrNoHealthySource 源池中没有可用于转发的健康源。
	ErrNoHealthySource = errors.New("no healthy source available")
)

// StateVisit 在初始全量装载中按批回调, 调用方负责持久化
// 对象与游标, 返回错误则中止走读。
type StateVisit func(objects []*mirrorpb.StateObject, lastKey []byte) error

// LedgerExtractor 从选定的源拉取一个完整账本, 或走读全量状态。
type LedgerExtractor interface {
	Extract(ctx context.Context, source *Source, seq uint64) (*mirrorpb.LedgerData, error)
	ExtractInitial(ctx context.Context, source *Source, asOfSeq uint64, resumeKey []byte, visit StateVisit) error
}

// InitialStateSink 持久化初始全量装载的对象与游标, 使走读可以断点续传。
type InitialStateSink interface {
	// StateCursor 返回上次走读完成的键, nil 表示从头开始。
	StateCursor(ctx context.Context) ([]byte, error)

	// SaveStateCursor 原子地持久化一批状态对象及其游标。
	SaveStateCursor(ctx context.Context, objects []*mirrorpb.StateObject, lastKey []byte) error
}
