/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package fileutil 提供存储目录初始化所需的少量文件系统原语。
package fileutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CreateDirIfMissing 确保目录存在并返回它是否为空。
// 创建后同步父目录, 保证崩溃后目录项持久可见。
func CreateDirIfMissing(dirPath string) (bool, error) {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return false, errors.Wrapf(err, "创建目录时出错: %s", dirPath)
	}
	if err := SyncParentDir(dirPath); err != nil {
		return false, err
	}
	return DirEmpty(dirPath)
}

// SyncParentDir 同步路径所在的父目录
func SyncParentDir(path string) error {
	return SyncDir(filepath.Dir(path))
}

// SyncDir 对目录本身执行 fsync
func SyncDir(dirPath string) error {
	dir, err := os.Open(dirPath)
	if err != nil {
		return errors.Wrapf(err, "打开目录时出错: %s", dirPath)
	}
	if err := dir.Sync(); err != nil {
		dir.Close()
		return errors.Wrapf(err, "同步目录时出错: %s", dirPath)
	}
	if err := dir.Close(); err != nil {
		return errors.Wrapf(err, "关闭目录时出错: %s", dirPath)
	}
	return nil
}

// DirEmpty 如果目录没有任何条目则返回 true。
// 只探测一个目录项, 不读取整个目录。
func DirEmpty(dirPath string) (bool, error) {
	f, err := os.Open(dirPath)
	if err != nil {
		return false, errors.Wrapf(err, "打开目录时出错 [%s]", dirPath)
	}
	defer f.Close()

	if _, err = f.Readdirnames(1); err == io.EOF {
		return true, nil
	}
	return false, errors.Wrapf(err, "检查目录 [%s] 是否为空时出错", dirPath)
}
