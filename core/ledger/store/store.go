/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package store 定义了镜像账本的持久化后端接口。
//
// 后端只通过这个窄接口被驱动: 提交是以序列号为键的单个原子批次,
// 可以安全地重复应用 (崩溃后重放会产生相同的状态, 不会重复)。
// 存储中永远不会出现 "已提交 N+1 但缺少 N" 的情况。
package store

import (
	"context"

	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

var (
	// ErrStorageUnavailable 表示后端暂时不可用 (连接中断、I/O 超时)。
	// 调用方应使用退避策略重试。
	ErrStorageUnavailable = errors.New("storage backend unavailable")

	// ErrCorrupt 表示后端数据已损坏 (格式不匹配、记录无法解码)。
	// 致命错误, 调用方必须停止管道。
	ErrCorrupt = errors.New("storage backend corrupt")

	// ErrSequenceGap 表示提交的序列号不是 committedSequence+1 的直接后继。
	// 致命错误, 说明进程内的顺序保证被破坏。
	ErrSequenceGap = errors.New("commit sequence is not the successor of the committed frontier")

	// ErrNotFound 表示请求的账本序列号不存在。
	ErrNotFound = errors.New("ledger not found")
)

// Store 是镜像账本的存储后端。
//
// Commit 将一个完整的账本单元 (头、交易集、状态增量) 作为单个原子批次写入,
// 并推进已提交水位。对 seq <= 水位 的重复提交是无操作的成功 (幂等)。
// isInitial 标记冷启动的锚点提交: 允许写入任意起始序列号,
// 并与状态加载日志游标的清除原子地一起发生。
type Store interface {
	// Commit 原子地提交一个账本。返回新的已提交序列号。
	Commit(ctx context.Context, seq uint64, data *mirrorpb.LedgerData, isInitial bool) (uint64, error)

	// LastCommittedSequence 返回已提交水位, 0 表示存储为空。
	LastCommittedSequence(ctx context.Context) (uint64, error)

	// Ledger 返回指定序列号的账本, 不存在时返回 ErrNotFound。
	Ledger(ctx context.Context, seq uint64) (*mirrorpb.LedgerData, error)

	// StateCursor 返回初始全量加载日志的游标 (最后完成的状态键),
	// nil 表示没有未完成的初始加载。
	StateCursor(ctx context.Context) ([]byte, error)

	// SaveStateCursor 与一批状态对象的应用原子地持久化游标。
	SaveStateCursor(ctx context.Context, objects []*mirrorpb.StateObject, lastKey []byte) error

	// ClearStateCursor 删除初始加载日志的游标。
	ClearStateCursor(ctx context.Context) error

	// Close 释放后端资源。
	Close()
}
