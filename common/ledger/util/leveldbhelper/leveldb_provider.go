/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package leveldbhelper

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/meridianledger/mirror/common/ledger/dataformat"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
)

const (
	// internalDBName 是记录数据格式版本等内部信息的逻辑数据库。
	// "_" 不是合法的对外逻辑数据库名, 不会与使用方冲突。
	internalDBName = "_"

	// deleteBatchBytes 是 deleteAll 单个删除批次的键字节总量上限 (1MB)。
	deleteBatchBytes = 1000000
)

var (
	dbNameKeySep     = []byte{0x00}
	lastKeyIndicator = byte(0x01)
	formatVersionKey = []byte{'f'} // 内部数据库中数据格式版本的键
)

// Conf 是 Provider 的配置。
//
// ExpectedFormat 是内部数据库中格式版本键的预期值: 打开时要求
// 数据库为空 (首次创建, 此时写入该值) 或已有值与之相等, 否则报
// dataformat.ErrFormatMismatch。空的 ExpectedFormat 表示不使用
// 格式版本记录。
type Conf struct {
	DBPath         string
	ExpectedFormat string
}

// Provider 把单个物理 leveldb 复用为多个逻辑数据库: 键上添加
// "<dbName>0x00" 前缀相互隔离。镜像账本数据与派生索引各占一个
// 逻辑数据库, 共享一次打开的文件句柄。
type Provider struct {
	db      *DB
	mu      sync.Mutex
	handles map[string]*DBHandle
}

// NewProvider 打开 (或创建) conf.DBPath 处的物理数据库并校验数据格式。
func NewProvider(conf *Conf) (*Provider, error) {
	db := openDB(conf)
	if err := verifyFormat(db, conf); err != nil {
		db.Close()
		return nil, err
	}
	return &Provider{
		db:      db,
		handles: make(map[string]*DBHandle),
	}, nil
}

// verifyFormat 对照 conf.ExpectedFormat 校验内部数据库里的格式版本。
// 空库在首次打开时写入预期值。
func verifyFormat(db *DB, conf *Conf) error {
	internal := &DBHandle{dbName: internalDBName, db: db}

	empty, err := db.IsEmpty()
	if err != nil {
		return err
	}
	if empty && conf.ExpectedFormat != "" {
		logger.Infof("leveldb 为空, 写入数据格式版本 %s", conf.ExpectedFormat)
		return internal.Put(formatVersionKey, []byte(conf.ExpectedFormat), true)
	}

	version, err := internal.Get(formatVersionKey)
	if err != nil {
		return err
	}
	logger.Debugf("校验 [%s] 处的数据格式版本", conf.DBPath)

	if !bytes.Equal(version, []byte(conf.ExpectedFormat)) {
		logger.Errorf("[%s] 处的数据格式版本不匹配. 预期 = [%s] (%#v), 实际 = [%s] (%#v).",
			conf.DBPath, conf.ExpectedFormat, []byte(conf.ExpectedFormat), version, version)
		return &dataformat.ErrFormatMismatch{
			ExpectedFormat: conf.ExpectedFormat,
			Format:         string(version),
			DBInfo:         fmt.Sprintf("leveldb at [%s]", conf.DBPath),
		}
	}
	logger.Debug("数据格式版本一致")
	return nil
}

// GetDBHandle 返回指向命名逻辑数据库的句柄, 同名调用返回同一个句柄。
func (p *Provider) GetDBHandle(dbName string) *DBHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if handle, ok := p.handles[dbName]; ok {
		return handle
	}
	handle := &DBHandle{
		dbName: dbName,
		db:     p.db,
		onClose: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.handles, dbName)
		},
	}
	p.handles[dbName] = handle
	return handle
}

// Close 关闭底层的物理数据库。
func (p *Provider) Close() {
	p.db.Close()
}

// Drop 删除命名逻辑数据库的全部数据。派生索引重建前用它清场。
func (p *Provider) Drop(dbName string) error {
	handle := p.GetDBHandle(dbName)
	defer handle.Close()
	return handle.deleteAll()
}

// DBHandle 是指向一个逻辑数据库的句柄, 所有操作自动带上名称前缀。
type DBHandle struct {
	dbName  string
	db      *DB
	onClose func()
}

// Get 返回给定键的值, 键不存在时返回 nil。
func (h *DBHandle) Get(key []byte) ([]byte, error) {
	return h.db.Get(prefixKey(h.dbName, key))
}

// Put 保存键值对。
func (h *DBHandle) Put(key []byte, value []byte, sync bool) error {
	return h.db.Put(prefixKey(h.dbName, key), value, sync)
}

// Delete 删除给定键。
func (h *DBHandle) Delete(key []byte, sync bool) error {
	return h.db.Delete(prefixKey(h.dbName, key), sync)
}

// deleteAll 删除属于该逻辑数据库的所有键。批次按键字节量而不是
// 键个数切分, 攒够 deleteBatchBytes 就提交一次, 控制内存占用。
func (h *DBHandle) deleteAll() error {
	iter, err := h.GetIterator(nil, nil)
	if err != nil {
		return err
	}
	defer iter.Release()

	// 直接用底层迭代器, 省掉每个键的前缀剥离
	raw := iter.Iterator

	var numKeys, batchBytes int
	batch := &leveldb.Batch{}
	for raw.Next() {
		if err := raw.Error(); err != nil {
			return errors.Wrap(err, "迭代 leveldb 时出现内部错误")
		}
		key := raw.Key()
		numKeys++
		batchBytes += len(key)
		batch.Delete(key)
		if batchBytes >= deleteBatchBytes {
			if err := h.db.WriteBatch(batch, true); err != nil {
				return err
			}
			logger.Infof("已从逻辑数据库 %s 删除 %d 个键 (leveldb %s)", h.dbName, numKeys, h.db.conf.DBPath)
			batchBytes = 0
			batch.Reset()
		}
	}
	if batch.Len() > 0 {
		return h.db.WriteBatch(batch, true)
	}
	return nil
}

// NewUpdateBatch 返回一个作用于该逻辑数据库的更新批次。
func (h *DBHandle) NewUpdateBatch() *UpdateBatch {
	return &UpdateBatch{
		dbName: h.dbName,
		Batch:  &leveldb.Batch{},
	}
}

// WriteBatch 原子地应用一个更新批次, nil 或空批次是无操作。
func (h *DBHandle) WriteBatch(batch *UpdateBatch, sync bool) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	return h.db.WriteBatch(batch.Batch, sync)
}

// GetIterator 返回该逻辑数据库上 [startKey, endKey) 范围的迭代器。
// 空的 startKey 表示第一个键, 空的 endKey 表示最后一个键之后。
// 用完必须 Release。
func (h *DBHandle) GetIterator(startKey []byte, endKey []byte) (*Iterator, error) {
	sKey := prefixKey(h.dbName, startKey)
	eKey := prefixKey(h.dbName, endKey)
	if endKey == nil {
		// 把结尾的 dbNameKeySep 换成 lastKeyIndicator, 覆盖到本库最后一个键
		eKey[len(eKey)-1] = lastKeyIndicator
	}
	logger.Debugf("获取范围 [%#v] - [%#v] 的迭代器", sKey, eKey)
	itr := h.db.GetIterator(sKey, eKey)
	if err := itr.Error(); err != nil {
		itr.Release()
		return nil, errors.Wrapf(err, "获取 leveldb 迭代器时出现内部错误")
	}
	return &Iterator{h.dbName, itr}, nil
}

// Close 关闭句柄并把它从 Provider 的句柄表中移除。
func (h *DBHandle) Close() {
	if h.onClose != nil {
		h.onClose()
	}
}

// UpdateBatch 是带逻辑数据库前缀的更新批次。
type UpdateBatch struct {
	*leveldb.Batch
	dbName string
}

// Put 向批次添加一个键值对, nil 值非法。
func (b *UpdateBatch) Put(key []byte, value []byte) {
	if value == nil {
		panic("leveldb 批次不接受 nil 值")
	}
	b.Batch.Put(prefixKey(b.dbName, key), value)
}

// Delete 向批次添加一个删除。
func (b *UpdateBatch) Delete(key []byte) {
	b.Batch.Delete(prefixKey(b.dbName, key))
}

// Iterator 包装底层迭代器, Key 返回剥离前缀后的应用键。
type Iterator struct {
	dbName string
	iterator.Iterator
}

// Key 返回当前条目的应用键。
func (itr *Iterator) Key() []byte {
	return stripPrefix(itr.Iterator.Key())
}

func prefixKey(dbName string, key []byte) []byte {
	return append(append([]byte(dbName), dbNameKeySep...), key...)
}

func stripPrefix(levelKey []byte) []byte {
	return bytes.SplitN(levelKey, dbNameKeySep, 2)[1]
}
