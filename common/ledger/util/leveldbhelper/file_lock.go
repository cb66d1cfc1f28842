/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package leveldbhelper

import (
	"fmt"
	"syscall"

	"github.com/meridianledger/mirror/internal/fileutil"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// FileLock 是跨进程的存储目录互斥锁。
//
// 实现上借用 leveldb 自带的文件锁: 打开一个专用的小 db 即持有锁,
// 同一路径被第二个进程打开时报错, db 关闭或进程死亡时锁自动释放。
// leveldb 在 Windows、Solaris 和 Unix 上都实现了这套语义, 镜像进程
// 与 ledgerutil 靠它避免同时触碰同一个存储目录。
//
// FileLock 设计为单进程单协程使用, 不做内部同步。
type FileLock struct {
	db       *leveldb.DB
	filePath string
}

// NewFileLock 返回 filePath 上的文件锁, 此时还未加锁。
func NewFileLock(filePath string) *FileLock {
	return &FileLock{
		filePath: filePath,
	}
}

// Lock 获取文件锁, 已被其他进程持有时返回错误。
func (f *FileLock) Lock() error {
	dirEmpty, err := fileutil.CreateDirIfMissing(f.filePath)
	if err != nil {
		panic(fmt.Sprintf("创建锁目录时出错: %s", err))
	}
	db, err := leveldb.OpenFile(f.filePath, &opt.Options{ErrorIfMissing: !dirEmpty})
	if err == syscall.EAGAIN {
		return errors.Errorf("文件 %s 上的锁已被其他进程持有", f.filePath)
	}
	if err != nil {
		panic(fmt.Sprintf("获取文件 %s 上的锁时出错: %s", f.filePath, err))
	}

	// 确认拿到锁之后才记录 db 引用
	f.db = db

	return nil
}

// IsLocked 报告锁当前是否被本实例持有。
func (f *FileLock) IsLocked() bool {
	return f.db != nil
}

// Unlock 释放之前获取的锁, 可以重复调用。
func (f *FileLock) Unlock() {
	if f.db == nil {
		return
	}
	if err := f.db.Close(); err != nil {
		logger.Warningf("释放文件 %s 上的锁失败: %s", f.filePath, err)
		return
	}
	f.db = nil
}
