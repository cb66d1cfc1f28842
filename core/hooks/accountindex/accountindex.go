/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package accountindex 维护账户键到最后触及序列号的派生索引。
// 索引作为提交后钩子增量更新, 存放在镜像存储同一 leveldb Provider
// 的独立逻辑数据库里, 与主数据隔离且可整体重建。
package accountindex

import (
	"encoding/binary"

	"github.com/meridianledger/mirror/common/ledger/util/leveldbhelper"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

// HookName 是该钩子在注册表中的名字。
const HookName = "accountindex"

// indexDBName 是派生索引所在的逻辑数据库名称, 与主数据库 "mirror" 并列。
const indexDBName = "accountindex"

// Index 把每个状态增量键映射到最后修改它的账本序列号。
// 删除账户时索引条目一并移除, 与主状态保持一致。
type Index struct {
	db *leveldbhelper.DBHandle
}

// New 在镜像存储的 leveldb Provider 上创建账户索引。
// 输入参数：
//   - provider：镜像存储暴露的 leveldb Provider。
//
// 返回值：
//   - *Index：索引钩子实例。
func New(provider *leveldbhelper.Provider) *Index {
	return &Index{db: provider.GetDBHandle(indexDBName)}
}

// Name 返回钩子注册名。
func (i *Index) Name() string { return HookName }

// OnCommit 把一个已提交账本的状态增量应用到索引。
// 单个账本的全部索引变更在一个批次里写入; 派生索引可重建,
// 因此批次不要求同步落盘。
func (i *Index) OnCommit(data *mirrorpb.LedgerData) error {
	delta := data.GetStateDelta()
	if len(delta) == 0 {
		return nil
	}

	seq := data.GetHeader().GetSequence()
	batch := i.db.NewUpdateBatch()
	for _, obj := range delta {
		if obj.GetOp() == mirrorpb.StateOp_STATE_OP_DELETE {
			batch.Delete(obj.GetKey())
			continue
		}
		batch.Put(obj.GetKey(), encodeSequence(seq))
	}
	if err := i.db.WriteBatch(batch, false); err != nil {
		return errors.WithMessagef(err, "写入账本 %d 的账户索引失败", seq)
	}
	return nil
}

// LastTouched 返回最后修改该账户的账本序列号。
// 账户从未出现或已被删除时 ok 为 false。
func (i *Index) LastTouched(key []byte) (seq uint64, ok bool, err error) {
	v, err := i.db.Get(key)
	if err != nil {
		return 0, false, errors.WithMessage(err, "读取账户索引失败")
	}
	if len(v) == 0 {
		return 0, false, nil
	}
	if len(v) != 8 {
		return 0, false, errors.Errorf("账户索引条目长度异常 %d", len(v))
	}
	return binary.BigEndian.Uint64(v), true, nil
}

// Drop 删除索引逻辑数据库中的全部条目。索引可由账本记录完整重建,
// ledgerutil 在重建前用它清掉陈旧数据。
func Drop(provider *leveldbhelper.Provider) error {
	return provider.Drop(indexDBName)
}

func encodeSequence(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
