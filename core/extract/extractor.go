/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package extract

import (
	"context"
	"io"
	"time"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/meridianledger/mirror/protoutil"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// DefaultWalkBatchSize 是建议对端每批返回的状态对象数。
	DefaultWalkBatchSize = 1000

	// DefaultWalkProgressTimeout 是全量走读中相邻两批之间允许的最大间隔。
	DefaultWalkProgressTimeout = 10 * time.Second
)

// Extractor 从选定的源流式拉取单个账本并做结构校验, 不写存储。
type Extractor struct {
	// HashFamily 选择交易集摘要的算法族, 为空默认 SM3。
	HashFamily util.HashFamily

	// WalkBatchSize 是全量走读时给对端的批大小建议, 0 取默认值。
	WalkBatchSize uint32

	// WalkProgressTimeout 全量走读无进展的判定阈值, 0 取默认值。
	// 走读整体没有时间上限, 只要对端持续产出批次就继续。
	WalkProgressTimeout time.Duration

	Logger *flogging.FabricLogger
}

// Extract 向源请求序号为 seq 的单个账本, 校验后返回。
//
// 输入参数：
//   - ctx：调用方负责设置尝试级超时。
//   - source：由 LoadBalancer 选定的源。
//   - seq：账本序号。
//
// 返回值：
//   - *mirrorpb.LedgerData：完整提取单元(头部、交易集、状态增量)。
//   - error：ErrNotFound / ErrTimeout / ErrMalformed 或传输错误。
func (e *Extractor) Extract(ctx context.Context, source *Source, seq uint64) (*mirrorpb.LedgerData, error) {
	stream, err := source.Client().LedgerStream(ctx, &mirrorpb.LedgerSeekRequest{
		StartSequence:     seq,
		EndSequence:       0,
		IncludeStateDelta: true,
	})
	if err != nil {
		return nil, mapRPCError(err, source.Address())
	}

	var data *mirrorpb.LedgerData
recvLoop:
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break recvLoop
		}
		if err != nil {
			return nil, mapRPCError(err, source.Address())
		}

		switch {
		case resp.Ledger != nil:
			if data != nil {
				return nil, errors.WithMessagef(ErrMalformed, "对端 '%s' 为单账本请求返回了多个数据帧", source.Address())
			}
			data = resp.Ledger
		case resp.Status != mirrorpb.Status_UNKNOWN:
			// 终止帧
			if err := statusToError(resp.Status, source.Address(), seq); err != nil {
				return nil, err
			}
			break recvLoop
		}
	}

	if data == nil {
		return nil, errors.WithMessagef(ErrMalformed, "对端 '%s' 结束了流但未携带账本 %d", source.Address(), seq)
	}
	if err := e.validate(data, seq, source.Address()); err != nil {
		return nil, err
	}
	e.logf().Debugw("账本提取完成", "address", source.Address(), "sequence", seq, "transactions", len(data.Transactions), "delta", len(data.StateDelta))
	return data, nil
}

// validate 做结构校验: 头部序号必须等于请求序号, 交易集摘要必须与头部一致。
func (e *Extractor) validate(data *mirrorpb.LedgerData, seq uint64, address string) error {
	if data.Header == nil {
		return errors.WithMessagef(ErrMalformed, "对端 '%s' 返回的账本缺少头部", address)
	}
	if data.Header.Sequence != seq {
		return errors.WithMessagef(ErrMalformed, "对端 '%s' 返回的头部序号 %d 与请求的 %d 不符", address, data.Header.Sequence, seq)
	}
	if err := protoutil.VerifyTxSet(e.HashFamily, data); err != nil {
		return errors.WithMessagef(ErrMalformed, "对端 '%s' 返回的账本 %d 未通过校验: %s", address, seq, err)
	}
	return nil
}

func (e *Extractor) logf() *flogging.FabricLogger {
	if e.Logger != nil {
		return e.Logger
	}
	return logger
}

func (e *Extractor) walkBatchSize() uint32 {
	if e.WalkBatchSize == 0 {
		return DefaultWalkBatchSize
	}
	return e.WalkBatchSize
}

func (e *Extractor) walkProgressTimeout() time.Duration {
	if e.WalkProgressTimeout <= 0 {
		return DefaultWalkProgressTimeout
	}
	return e.WalkProgressTimeout
}

// statusToError 把终止帧的状态码映射为本包的错误分类。
func statusToError(st mirrorpb.Status, address string, seq uint64) error {
	switch st {
	case mirrorpb.Status_SUCCESS:
		return nil
	case mirrorpb.Status_NOT_FOUND:
		return errors.WithMessagef(ErrNotFound, "对端 '%s' 无法提供账本 %d", address, seq)
	case mirrorpb.Status_SERVICE_UNAVAILABLE:
		return errors.Errorf("对端 '%s' 暂时无法服务账本 %d", address, seq)
	default:
		return errors.Errorf("对端 '%s' 为账本 %d 返回了错误状态: %s", address, seq, st)
	}
}

// mapRPCError 把 gRPC 传输错误映射为本包的错误分类。
func mapRPCError(err error, address string) error {
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return errors.WithMessagef(ErrTimeout, "对端 '%s' 未在时限内应答", address)
	case codes.NotFound:
		return errors.WithMessagef(ErrNotFound, "对端 '%s' 报告未找到", address)
	}
	return errors.WithMessagef(err, "对端 '%s' 流错误", address)
}
