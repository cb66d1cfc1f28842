/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package extract

import (
	"context"
	"io"
	"time"

	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

// ExtractInitial 按键序走读 asOfSeq 时点的全量状态, 每收到一批
// 就回调 visit。resumeKey 非空时从该键之后继续, 由调用方持久化
// 游标实现断点续传。走读整体不设时限, 但相邻两批之间超过
// WalkProgressTimeout 视为该源无进展, 中止并返回 ErrTimeout。
//
// 输入参数：
//   - ctx：取消信号, 走读在批边界响应取消。
//   - source：由 LoadBalancer 选定的源。
//   - asOfSeq：状态快照的时点序号。
//   - resumeKey：断点游标, nil 表示从头走读。
//   - visit：按批回调, 返回错误则中止走读并原样上抛。
//
// 返回值：
//   - error：nil 表示对端已发出完成标记。
func (e *Extractor) ExtractInitial(ctx context.Context, source *Source, asOfSeq uint64, resumeKey []byte, visit StateVisit) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := source.Client().StateWalk(ctx, &mirrorpb.StateWalkRequest{
		AsOfSequence:   asOfSeq,
		ResumeAfterKey: resumeKey,
		BatchSize:      e.walkBatchSize(),
	})
	if err != nil {
		return mapRPCError(err, source.Address())
	}

	connLogger := e.logf().With("address", source.Address(), "as-of-sequence", asOfSeq)
	if len(resumeKey) > 0 {
		connLogger.Infow("从断点游标恢复全量状态走读", "resume-after-key", resumeKey)
	} else {
		connLogger.Info("开始全量状态走读")
	}

	recv := make(chan *mirrorpb.StateBatch)
	recvErr := make(chan error, 1)
	go func() {
		for {
			batch, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case recv <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	progress := time.NewTimer(e.walkProgressTimeout())
	defer progress.Stop()

	var batches, objects int
	for {
		select {
		case batch := <-recv:
			batches++
			objects += len(batch.Objects)
			if len(batch.Objects) > 0 {
				if err := visit(batch.Objects, batch.LastKey); err != nil {
					return err
				}
			}
			if batch.Done {
				connLogger.Infow("全量状态走读完成", "batches", batches, "objects", objects)
				return nil
			}
			if !progress.Stop() {
				select {
				case <-progress.C:
				default:
				}
			}
			progress.Reset(e.walkProgressTimeout())
		case err := <-recvErr:
			if err == io.EOF {
				return errors.WithMessagef(ErrMalformed, "对端 '%s' 在完成标记前结束了状态走读", source.Address())
			}
			return mapRPCError(err, source.Address())
		case <-progress.C:
			return errors.WithMessagef(ErrTimeout, "对端 '%s' 的状态走读在 %v 内无进展", source.Address(), e.walkProgressTimeout())
		case <-ctx.Done():
			return errors.WithMessage(ctx.Err(), "状态走读被取消")
		}
	}
}
