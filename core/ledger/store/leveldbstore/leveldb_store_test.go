/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package leveldbstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/meridianledger/mirror/core/ledger/store"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/stretchr/testify/require"
)

func sampleLedger(seq uint64) *mirrorpb.LedgerData {
	return &mirrorpb.LedgerData{
		Header: &mirrorpb.LedgerHeader{
			Sequence:        seq,
			LedgerHash:      []byte(fmt.Sprintf("hash-%d", seq)),
			ParentHash:      []byte(fmt.Sprintf("hash-%d", seq-1)),
			TxsetHash:       []byte(fmt.Sprintf("txset-%d", seq)),
			CloseTime:       &timestamp.Timestamp{Seconds: int64(seq) * 10},
			EnabledFeatures: []uint32{1, 2},
		},
		Transactions: []*mirrorpb.Transaction{
			{Id: []byte(fmt.Sprintf("tx-%d-0", seq)), Payload: []byte("payload"), Result: 0},
		},
		StateDelta: []*mirrorpb.StateObject{
			{Op: mirrorpb.StateOp_STATE_OP_INSERT, Key: []byte(fmt.Sprintf("acct-%d", seq)), Payload: []byte("balance")},
		},
	}
}

func TestOpenAndFileLock(t *testing.T) {
	dbPath := t.TempDir()
	s, err := Open(dbPath)
	require.NoError(t, err)

	// 第二次打开同一目录必须因为文件锁而失败
	_, err = Open(dbPath)
	require.Error(t, err)

	s.Close()

	// 锁释放后可以重新打开
	s2, err := Open(dbPath)
	require.NoError(t, err)
	s2.Close()
}

func TestCommitAndWatermark(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	last, err := s.LastCommittedSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), last)

	// 空存储拒绝非锚点提交
	_, err = s.Commit(ctx, 100, sampleLedger(100), false)
	require.ErrorIs(t, err, store.ErrSequenceGap)

	// 锚点提交建立起点
	committed, err := s.Commit(ctx, 100, sampleLedger(100), true)
	require.NoError(t, err)
	require.Equal(t, uint64(100), committed)

	// 顺序提交推进水位
	committed, err = s.Commit(ctx, 101, sampleLedger(101), false)
	require.NoError(t, err)
	require.Equal(t, uint64(101), committed)

	last, err = s.LastCommittedSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(101), last)

	// 跳过 102 直接提交 103 是致命的间隙
	_, err = s.Commit(ctx, 103, sampleLedger(103), false)
	require.ErrorIs(t, err, store.ErrSequenceGap)
}

func TestCommitIdempotence(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Commit(ctx, 7, sampleLedger(7), true)
	require.NoError(t, err)
	_, err = s.Commit(ctx, 8, sampleLedger(8), false)
	require.NoError(t, err)

	// 重放已提交的序列号: 成功, 水位不变, 状态不变
	committed, err := s.Commit(ctx, 8, sampleLedger(8), false)
	require.NoError(t, err)
	require.Equal(t, uint64(8), committed)

	committed, err = s.Commit(ctx, 7, sampleLedger(7), false)
	require.NoError(t, err)
	require.Equal(t, uint64(8), committed)

	ledger, err := s.Ledger(ctx, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(8), ledger.GetHeader().GetSequence())
}

func TestLedgerRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	want := sampleLedger(42)
	_, err = s.Commit(ctx, 42, want, true)
	require.NoError(t, err)

	got, err := s.Ledger(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, want.GetHeader().GetLedgerHash(), got.GetHeader().GetLedgerHash())
	require.Equal(t, want.GetHeader().GetTxsetHash(), got.GetHeader().GetTxsetHash())
	require.Len(t, got.GetTransactions(), 1)
	require.Len(t, got.GetStateDelta(), 1)

	_, err = s.Ledger(ctx, 43)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStateDeltaApplied(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	first := sampleLedger(1)
	first.StateDelta = []*mirrorpb.StateObject{
		{Op: mirrorpb.StateOp_STATE_OP_INSERT, Key: []byte("a"), Payload: []byte("v1")},
		{Op: mirrorpb.StateOp_STATE_OP_INSERT, Key: []byte("b"), Payload: []byte("v2")},
	}
	_, err = s.Commit(ctx, 1, first, true)
	require.NoError(t, err)

	second := sampleLedger(2)
	second.StateDelta = []*mirrorpb.StateObject{
		{Op: mirrorpb.StateOp_STATE_OP_MODIFY, Key: []byte("a"), Payload: []byte("v1-modified")},
		{Op: mirrorpb.StateOp_STATE_OP_DELETE, Key: []byte("b")},
	}
	_, err = s.Commit(ctx, 2, second, false)
	require.NoError(t, err)

	v, err := s.StateObject(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1-modified"), v)

	v, err = s.StateObject(ctx, []byte("b"))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestStateCursorJournal(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	cursor, err := s.StateCursor(ctx)
	require.NoError(t, err)
	require.Nil(t, cursor)

	objects := []*mirrorpb.StateObject{
		{Op: mirrorpb.StateOp_STATE_OP_INSERT, Key: []byte("k1"), Payload: []byte("v1")},
		{Op: mirrorpb.StateOp_STATE_OP_INSERT, Key: []byte("k2"), Payload: []byte("v2")},
	}
	require.NoError(t, s.SaveStateCursor(ctx, objects, []byte("k2")))

	cursor, err = s.StateCursor(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("k2"), cursor)

	v, err := s.StateObject(ctx, []byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	// 锚点提交原子地清除游标
	_, err = s.Commit(ctx, 5, sampleLedger(5), true)
	require.NoError(t, err)
	cursor, err = s.StateCursor(ctx)
	require.NoError(t, err)
	require.Nil(t, cursor)
}

func TestReopenKeepsState(t *testing.T) {
	dbPath := t.TempDir()
	s, err := Open(dbPath)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Commit(ctx, 10, sampleLedger(10), true)
	require.NoError(t, err)
	_, err = s.Commit(ctx, 11, sampleLedger(11), false)
	require.NoError(t, err)
	s.Close()

	s, err = Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	last, err := s.LastCommittedSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(11), last)

	first, err := s.FirstLedgerSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(10), first)
}

func TestLedgerCorruptRecordDetected(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Commit(ctx, 7, sampleLedger(7), true)
	require.NoError(t, err)

	// 直接改写底层记录, 模拟磁盘上的数据损坏
	require.NoError(t, s.db.Put(ledgerKey(7), []byte{0xff, 0xfe, 0xfd}, true))

	_, err = s.Ledger(ctx, 7)
	require.ErrorIs(t, err, store.ErrCorrupt)
}
