/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package leveldbstore

import (
	"context"
	"encoding/binary"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/common/ledger/dataformat"
	"github.com/meridianledger/mirror/common/ledger/util/leveldbhelper"
	"github.com/meridianledger/mirror/core/ledger/store"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/meridianledger/mirror/protoutil"
	"github.com/pkg/errors"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
)

var logger = flogging.MustGetLogger("leveldbstore")

// mirrorDBName 是账本数据所在的逻辑数据库名称。
// 派生索引 (如账户索引钩子) 使用同一 Provider 下的其他逻辑数据库。
const mirrorDBName = "mirror"

var (
	ledgerKeyPrefix  = []byte{'l'} // 'l' + 大端序列号 -> 序列化的 LedgerData
	stateKeyPrefix   = []byte{'s'} // 's' + 状态键 -> 不透明负载
	committedSeqKey  = []byte{'w'} // 已提交水位
	stateCursorKey   = []byte{'j'} // 初始加载日志游标
	ledgerScanEndKey = []byte{'m'} // 'l' 前缀范围扫描的结束键
)

// Store 是基于 goleveldb 的镜像账本存储。
// 提交是单个原子批次: 账本记录、状态增量和水位一起写入。
type Store struct {
	fileLock *leveldbhelper.FileLock
	provider *leveldbhelper.Provider
	db       *leveldbhelper.DBHandle
}

// Open 打开 (或创建) dbPath 处的存储。
// 在 dbPath/fileLock 上获取文件锁, 防止两个进程同时打开同一个存储。
// 方法接收者：无（函数）
// 输入参数：
//   - dbPath：存储目录。
//
// 返回值：
//   - *Store：打开的存储实例。
//   - error：打开过程中的错误，如果没有错误则为 nil。
func Open(dbPath string) (*Store, error) {
	// 文件锁, 另一个 mirrord 或 ledgerutil 进程持有锁时打开失败
	fileLock := leveldbhelper.NewFileLock(filepath.Join(dbPath, "fileLock"))
	if err := fileLock.Lock(); err != nil {
		return nil, errors.WithMessage(err, "另一个进程正在使用该存储, 请先停止它")
	}

	provider, err := leveldbhelper.NewProvider(&leveldbhelper.Conf{
		DBPath:         filepath.Join(dbPath, "data"),
		ExpectedFormat: dataformat.CurrentFormat,
	})
	if err != nil {
		fileLock.Unlock()
		if dataformat.IsVersionMismatch(err) {
			return nil, errors.Wrap(store.ErrCorrupt, err.Error())
		}
		return nil, mapLevelDBError(err)
	}

	s := &Store{
		fileLock: fileLock,
		provider: provider,
		db:       provider.GetDBHandle(mirrorDBName),
	}

	// 打开后立即恢复水位与日志游标, 用于调试崩溃后的状态
	committed, err := s.LastCommittedSequence(context.Background())
	if err != nil {
		s.Close()
		return nil, err
	}
	cursor, err := s.StateCursor(context.Background())
	if err != nil {
		s.Close()
		return nil, err
	}
	logger.Debugf("镜像存储恢复信息 = %s", spew.Sdump(struct {
		CommittedSequence uint64
		StateCursor       []byte
	}{committed, cursor}))

	return s, nil
}

// IndexProvider 返回底层的 leveldb Provider, 供派生索引使用各自的逻辑数据库。
func (s *Store) IndexProvider() *leveldbhelper.Provider {
	return s.provider
}

// Commit 原子地提交一个账本。
// 对 seq <= 水位 的重复提交是无操作的成功 (幂等)。
// 空存储只接受 isInitial 的锚点提交; 非空存储要求 seq 恰好是水位+1。
func (s *Store) Commit(ctx context.Context, seq uint64, data *mirrorpb.LedgerData, isInitial bool) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	last, err := s.LastCommittedSequence(ctx)
	if err != nil {
		return 0, err
	}

	if last != 0 && seq <= last {
		// 幂等: 该序列号已经提交过, 重放不改变状态
		logger.Debugf("序列号 %d 已提交 (水位 %d), 跳过重复提交", seq, last)
		return last, nil
	}
	if last != 0 && seq != last+1 {
		return 0, errors.Wrapf(store.ErrSequenceGap, "提交序列号 %d, 但水位是 %d", seq, last)
	}
	if last == 0 && !isInitial {
		return 0, errors.Wrapf(store.ErrSequenceGap, "空存储不能提交非锚点账本 %d", seq)
	}

	value, err := protoutil.Marshal(data)
	if err != nil {
		return 0, errors.WithMessagef(err, "序列化账本 %d 失败", seq)
	}

	// 单个原子批次: 账本记录 + 状态增量 + 水位 (+ 清除初始加载日志)
	batch := s.db.NewUpdateBatch()
	batch.Put(ledgerKey(seq), value)
	for _, obj := range data.GetStateDelta() {
		if obj.GetOp() == mirrorpb.StateOp_STATE_OP_DELETE {
			batch.Delete(stateKey(obj.GetKey()))
			continue
		}
		payload := obj.GetPayload()
		if payload == nil {
			payload = []byte{}
		}
		batch.Put(stateKey(obj.GetKey()), payload)
	}
	batch.Put(committedSeqKey, encodeSequence(seq))
	if isInitial {
		batch.Delete(stateCursorKey)
	}

	if err := s.db.WriteBatch(batch, true); err != nil {
		return 0, mapLevelDBError(err)
	}
	return seq, nil
}

// LastCommittedSequence 返回已提交水位, 0 表示存储为空。
func (s *Store) LastCommittedSequence(ctx context.Context) (uint64, error) {
	v, err := s.db.Get(committedSeqKey)
	if err != nil {
		return 0, mapLevelDBError(err)
	}
	if len(v) == 0 {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, errors.Wrapf(store.ErrCorrupt, "水位记录长度异常 %d", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// Ledger 返回指定序列号的账本, 不存在时返回 ErrNotFound。
func (s *Store) Ledger(ctx context.Context, seq uint64) (*mirrorpb.LedgerData, error) {
	v, err := s.db.Get(ledgerKey(seq))
	if err != nil {
		return nil, mapLevelDBError(err)
	}
	if v == nil {
		return nil, errors.Wrapf(store.ErrNotFound, "序列号 %d", seq)
	}
	data, err := protoutil.UnmarshalLedgerData(v)
	if err != nil {
		return nil, errors.Wrapf(store.ErrCorrupt, "反序列化账本 %d 失败: %s", seq, err)
	}
	return data, nil
}

// StateObject 返回状态对象的当前负载, 不存在时返回 nil。
func (s *Store) StateObject(ctx context.Context, key []byte) ([]byte, error) {
	v, err := s.db.Get(stateKey(key))
	if err != nil {
		return nil, mapLevelDBError(err)
	}
	return v, nil
}

// StateCursor 返回初始加载日志的游标, nil 表示没有未完成的初始加载。
func (s *Store) StateCursor(ctx context.Context) ([]byte, error) {
	v, err := s.db.Get(stateCursorKey)
	if err != nil {
		return nil, mapLevelDBError(err)
	}
	return v, nil
}

// SaveStateCursor 原子地应用一批状态对象并持久化游标。
// 初始全量加载的每个批次调用一次; 崩溃后从游标处恢复遍历。
func (s *Store) SaveStateCursor(ctx context.Context, objects []*mirrorpb.StateObject, lastKey []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := s.db.NewUpdateBatch()
	for _, obj := range objects {
		payload := obj.GetPayload()
		if payload == nil {
			payload = []byte{}
		}
		batch.Put(stateKey(obj.GetKey()), payload)
	}
	batch.Put(stateCursorKey, lastKey)
	if err := s.db.WriteBatch(batch, true); err != nil {
		return mapLevelDBError(err)
	}
	return nil
}

// ClearStateCursor 删除初始加载日志的游标。
func (s *Store) ClearStateCursor(ctx context.Context) error {
	if err := s.db.Delete(stateCursorKey, true); err != nil {
		return mapLevelDBError(err)
	}
	return nil
}

// FirstLedgerSequence 返回存储中最小的账本序列号, 0 表示没有账本记录。
// ledgerutil 的校验遍历使用它确定起点。
func (s *Store) FirstLedgerSequence(ctx context.Context) (uint64, error) {
	itr, err := s.db.GetIterator(ledgerKeyPrefix, ledgerScanEndKey)
	if err != nil {
		return 0, mapLevelDBError(err)
	}
	defer itr.Release()

	if !itr.Next() {
		if err := itr.Error(); err != nil {
			return 0, mapLevelDBError(err)
		}
		return 0, nil
	}
	key := itr.Key()
	if len(key) != 9 || key[0] != 'l' {
		return 0, errors.Wrapf(store.ErrCorrupt, "账本键格式异常 %#v", key)
	}
	return binary.BigEndian.Uint64(key[1:]), nil
}

// HealthCheck 供运维端点的健康检查器使用, 通过读取水位验证底层数据库可用。
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.LastCommittedSequence(ctx)
	return err
}

// Close 释放存储并解除文件锁。
func (s *Store) Close() {
	s.provider.Close()
	s.fileLock.Unlock()
}

func ledgerKey(seq uint64) []byte {
	return append(ledgerKeyPrefix, encodeSequence(seq)...)
}

func stateKey(key []byte) []byte {
	return append(stateKeyPrefix, key...)
}

// 大端编码保持迭代顺序与序列号顺序一致
func encodeSequence(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

// 将底层 leveldb 错误映射到存储错误分类: 损坏是致命的, 其余视为暂时不可用
func mapLevelDBError(err error) error {
	if err == nil {
		return nil
	}
	if ldberrors.IsCorrupted(errors.Cause(err)) {
		return errors.Wrap(store.ErrCorrupt, err.Error())
	}
	return errors.Wrap(store.ErrStorageUnavailable, err.Error())
}
