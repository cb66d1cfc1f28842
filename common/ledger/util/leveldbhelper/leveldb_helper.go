/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package leveldbhelper

import (
	"fmt"
	"sync"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/internal/fileutil"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	goleveldbutil "github.com/syndtr/goleveldb/leveldb/util"
)

var logger = flogging.MustGetLogger("leveldbhelper")

// DB 包装一个已打开的 goleveldb 实例, 统一读写选项。
// 镜像账本与派生索引共享同一个 DB, 通过 Provider 划分逻辑数据库。
type DB struct {
	conf       *Conf
	db         *leveldb.DB
	mu         sync.RWMutex
	open       bool
	readOpts   *opt.ReadOptions
	writeAsync *opt.WriteOptions
	writeSync  *opt.WriteOptions
}

// openDB 打开 conf.DBPath 处的数据库, 目录不存在时创建。
// 打开失败意味着存储根本不可用, 直接恐慌。
func openDB(conf *Conf) *DB {
	dirEmpty, err := fileutil.CreateDirIfMissing(conf.DBPath)
	if err != nil {
		panic(fmt.Sprintf("创建 leveldb 存储目录时出错: %s", err))
	}

	// 目录非空却打不开说明数据有问题, 不能静默重建
	ldb, err := leveldb.OpenFile(conf.DBPath, &opt.Options{ErrorIfMissing: !dirEmpty})
	if err != nil {
		panic(fmt.Sprintf("打开 leveldb 时出错: %s", err))
	}

	return &DB{
		conf:       conf,
		db:         ldb,
		open:       true,
		readOpts:   &opt.ReadOptions{},
		writeAsync: &opt.WriteOptions{},
		writeSync:  &opt.WriteOptions{Sync: true},
	}
}

func (d *DB) writeOpts(sync bool) *opt.WriteOptions {
	if sync {
		return d.writeSync
	}
	return d.writeAsync
}

// IsEmpty 报告数据库中是否没有任何键值对。
func (d *DB) IsEmpty() (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	itr := d.db.NewIterator(&goleveldbutil.Range{}, d.readOpts)
	defer itr.Release()
	hasItems := itr.Next()
	return !hasItems, errors.Wrapf(itr.Error(), "检查 [%s] 处的 leveldb 是否为空时出错", d.conf.DBPath)
}

// Close 关闭底层数据库, 重复调用是无操作。
func (d *DB) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return
	}
	if err := d.db.Close(); err != nil {
		logger.Errorf("关闭 leveldb 时出错: %s", err)
	}
	d.open = false
}

// Get 返回给定键的值, 键不存在时返回 nil。
func (d *DB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	value, err := d.db.Get(key, d.readOpts)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "读取 leveldb 键 [%#v] 时出错", key)
	}
	return value, nil
}

// Put 保存键值对, sync 为 true 时等待落盘。
func (d *DB) Put(key []byte, value []byte, sync bool) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.db.Put(key, value, d.writeOpts(sync)); err != nil {
		return errors.Wrapf(err, "写入 leveldb 键 [%#v] 时出错", key)
	}
	return nil
}

// Delete 删除给定键, 键不存在时也是成功。
func (d *DB) Delete(key []byte, sync bool) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.db.Delete(key, d.writeOpts(sync)); err != nil {
		return errors.Wrapf(err, "删除 leveldb 键 [%#v] 时出错", key)
	}
	return nil
}

// WriteBatch 原子地应用一个批次, sync 为 true 时等待落盘。
func (d *DB) WriteBatch(batch *leveldb.Batch, sync bool) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.db.Write(batch, d.writeOpts(sync)); err != nil {
		return errors.Wrap(err, "写入 leveldb 批次时出错")
	}
	return nil
}

// GetIterator 返回 [startKey, endKey) 范围上的迭代器, 基于当前快照。
// 空的 startKey 表示第一个可用键, 空的 endKey 表示最后一个可用键之后。
// 用完必须 Release。
func (d *DB) GetIterator(startKey []byte, endKey []byte) iterator.Iterator {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.NewIterator(&goleveldbutil.Range{Start: startKey, Limit: endKey}, d.readOpts)
}
